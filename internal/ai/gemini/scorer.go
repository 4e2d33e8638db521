package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/ai"
	"github.com/rankworks/cv-ranker/internal/candidate"
	"github.com/rankworks/cv-ranker/internal/logger"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

//go:embed score_prompt.md
var scorePromptTemplate string

const (
	opScore = "score"

	defaultMaxLogLength = 200
)

// Scorer asks Gemini to score a candidate profile against a job description.
type Scorer struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewScorer(generator contentGenerator, log *zap.Logger, maxLogLength int) *Scorer {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Scorer{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Score evaluates how well the profile matches the job description. The
// returned assessment always carries a score within [0, 100].
func (s *Scorer) Score(ctx context.Context, jobText string, profile candidate.Profile) (*ai.Assessment, error) {
	payload := map[string]any{
		"name":       profile.Name,
		"experience": profile.TotalExperienceYears,
		"summary":    profile.Summary,
		"skills":     strings.Join(profile.Skills, ", "),
	}

	profileJSON, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, &ai.ProviderError{Op: opScore, Err: fmt.Errorf("marshal candidate payload: %w", err)}
	}

	prompt := buildScorePrompt(jobText, string(profileJSON))

	s.logger.Debug("gemini score request",
		zap.String("candidate", profile.Name),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, s.maxLogLen)),
	)

	raw, err := s.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, &ai.ProviderError{Op: opScore, Err: err}
	}

	s.logger.Debug("gemini score response",
		zap.String("candidate", profile.Name),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, s.maxLogLen)),
	)

	assessment, err := parseScoreResponse(raw)
	if err != nil {
		return nil, &ai.ProviderError{Op: opScore, Err: err}
	}

	return assessment, nil
}

func buildScorePrompt(jobText, profileJSON string) string {
	prompt := strings.ReplaceAll(scorePromptTemplate, "{{JOB_DESCRIPTION}}", jobText)
	return strings.ReplaceAll(prompt, "{{CANDIDATE_PROFILE}}", profileJSON)
}

func parseScoreResponse(raw string) (*ai.Assessment, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse score response: %w", err)
	}

	score := coerceFloat(data["score"])
	if math.IsNaN(score) {
		return nil, fmt.Errorf("score response carries no usable score: %s", cleaned)
	}

	justification := coerceString(data["justification"])
	if justification == "" {
		justification = "No justification provided."
	}

	return &ai.Assessment{
		Score:         clampScore(int(math.Round(score))),
		Justification: justification,
		Raw:           raw,
	}, nil
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

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}
