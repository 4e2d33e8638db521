package ai

import (
	"context"
	"fmt"

	"github.com/rankworks/cv-ranker/internal/candidate"
)

// Assessment is a scoring provider's verdict for a single candidate.
type Assessment struct {
	// Score is an integer within [0, 100].
	Score int
	// Justification is a short human-readable explanation of the score.
	Justification string
	// Raw is the unprocessed provider response, kept for debugging.
	Raw string
}

// Embedder converts texts into fixed-dimension vectors. EmbedBatch preserves
// input order: vector i corresponds to texts[i]. Implementations perform no
// retries; retry policy belongs to the caller.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Scorer evaluates how well a candidate profile matches a job description.
type Scorer interface {
	Score(ctx context.Context, jobText string, profile candidate.Profile) (*Assessment, error)
}

// Extractor turns raw CV text into a structured candidate profile.
type Extractor interface {
	Extract(ctx context.Context, cvText string) (*candidate.ExtractedProfile, error)
}

// ProviderError wraps a failure of an external AI provider call.
type ProviderError struct {
	// Op names the failed operation, e.g. "embed" or "score".
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
