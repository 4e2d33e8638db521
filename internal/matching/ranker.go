// Package matching implements the CV ranking pipeline: embed the job
// description and candidate documents, retrieve the nearest candidates with
// an in-memory index, score them with an AI provider and sort the results.
package matching

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rankworks/cv-ranker/internal/ai"
	"github.com/rankworks/cv-ranker/internal/candidate"
	"github.com/rankworks/cv-ranker/internal/index"
)

const (
	// DefaultTopK is the number of nearest candidates retrieved per request.
	DefaultTopK = 3
	// DefaultMinJobTextLength is the minimum accepted job description length
	// in runes.
	DefaultMinJobTextLength = 50

	defaultScoreTimeout = 30 * time.Second
	defaultEmbedTimeout = 30 * time.Second

	// fallbackJustification is returned when the scoring provider cannot be
	// consulted and the score is derived from vector distance alone.
	fallbackJustification = "Strong keyword and conceptual match based on vector similarity."
)

// Config tunes a Ranker. Zero values fall back to defaults.
type Config struct {
	TopK             int
	MinJobTextLength int
	ScoreTimeout     time.Duration
	EmbedTimeout     time.Duration
}

// Ranker runs the end-to-end matching pipeline. Each Rank call is an
// independent run: vectors and the similarity index live only for the
// duration of the call.
type Ranker struct {
	embedder     ai.Embedder
	scorer       ai.Scorer
	logger       *zap.Logger
	topK         int
	minJobLen    int
	scoreTimeout time.Duration
	embedTimeout time.Duration
}

func NewRanker(embedder ai.Embedder, scorer ai.Scorer, log *zap.Logger, cfg Config) *Ranker {
	if log == nil {
		log = zap.NewNop()
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	minJobLen := cfg.MinJobTextLength
	if minJobLen <= 0 {
		minJobLen = DefaultMinJobTextLength
	}

	scoreTimeout := cfg.ScoreTimeout
	if scoreTimeout <= 0 {
		scoreTimeout = defaultScoreTimeout
	}

	embedTimeout := cfg.EmbedTimeout
	if embedTimeout <= 0 {
		embedTimeout = defaultEmbedTimeout
	}

	return &Ranker{
		embedder:     embedder,
		scorer:       scorer,
		logger:       log,
		topK:         topK,
		minJobLen:    minJobLen,
		scoreTimeout: scoreTimeout,
		embedTimeout: embedTimeout,
	}
}

// Rank ranks the candidates against the job description and returns up to
// min(topK, len(candidates)) results sorted by score descending. Ties keep
// retrieval order.
func (r *Ranker) Rank(ctx context.Context, jobText string, profiles []candidate.Profile) ([]candidate.MatchResult, error) {
	if err := validateInput(jobText, profiles, r.minJobLen); err != nil {
		return nil, err
	}

	log := r.logger.With(zap.String("run_id", uuid.NewString()))

	documents := make([]string, len(profiles))
	for i := range profiles {
		documents[i] = profiles[i].Document()
	}

	// Unlike scoring, an embedding failure or timeout aborts the request:
	// there is nothing to rank without vectors.
	jobVector, err := r.embedJob(ctx, jobText)
	if err != nil {
		return nil, fmt.Errorf("embed job description: %w", err)
	}

	candidateVectors, err := r.embedDocuments(ctx, documents)
	if err != nil {
		return nil, fmt.Errorf("embed candidate documents: %w", err)
	}

	idx, err := index.Build(candidateVectors)
	if err != nil {
		return nil, fmt.Errorf("build similarity index: %w", err)
	}

	hits, err := idx.Search(jobVector, r.topK)
	if err != nil {
		return nil, fmt.Errorf("search similarity index: %w", err)
	}

	log.Debug("retrieved nearest candidates",
		zap.Int("candidates", len(profiles)),
		zap.Int("retrieved", len(hits)),
		zap.Int("dimension", idx.Dimension()),
	)

	results := make([]candidate.MatchResult, len(hits))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(hits))
	for i, hit := range hits {
		g.Go(func() error {
			results[i] = r.scoreCandidate(gctx, log, jobText, profiles[hit.Index], hit)
			return nil
		})
	}

	// Tasks never return errors; Wait only joins them.
	_ = g.Wait()

	// A cancelled request must not produce a partially scored ranking.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	log.Info("ranked candidates",
		zap.Int("candidates", len(profiles)),
		zap.Int("results", len(results)),
	)

	return results, nil
}

func (r *Ranker) embedJob(ctx context.Context, jobText string) ([]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	return r.embedder.Embed(ectx, jobText)
}

func (r *Ranker) embedDocuments(ctx context.Context, documents []string) ([][]float32, error) {
	ectx, cancel := context.WithTimeout(ctx, r.embedTimeout)
	defer cancel()

	return r.embedder.EmbedBatch(ectx, documents)
}

// scoreCandidate asks the scoring provider for a verdict and falls back to a
// distance-derived score when the call fails. A scoring failure is never
// fatal to the request.
func (r *Ranker) scoreCandidate(ctx context.Context, log *zap.Logger, jobText string, profile candidate.Profile, hit index.Hit) candidate.MatchResult {
	sctx, cancel := context.WithTimeout(ctx, r.scoreTimeout)
	defer cancel()

	assessment, err := r.scorer.Score(sctx, jobText, profile)
	if err != nil {
		log.Warn("scoring failed, falling back to similarity score",
			zap.String("candidate", profile.Name),
			zap.Float64("distance", float64(hit.Distance)),
			zap.Error(err),
		)

		return candidate.MatchResult{
			Name:          profile.Name,
			Score:         FallbackScore(hit.Distance),
			Justification: fallbackJustification,
		}
	}

	return candidate.MatchResult{
		Name:          profile.Name,
		Score:         clampScore(assessment.Score),
		Justification: assessment.Justification,
	}
}

// FallbackScore derives a score from a squared L2 distance. The linear
// transform is a heuristic carried over from the original scoring behavior
// and is part of the observable output; do not recalibrate it.
func FallbackScore(distance float32) int {
	return clampScore(100 - int(math.Round(float64(distance)*50)))
}

func validateInput(jobText string, profiles []candidate.Profile, minJobLen int) error {
	if jobText == "" {
		return newInputError("job description is missing")
	}

	if length := utf8.RuneCountInString(jobText); length < minJobLen {
		return newInputError("job description is too short: %d characters, need at least %d", length, minJobLen)
	}

	if len(profiles) == 0 {
		return newInputError("candidate list is empty")
	}

	return nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
