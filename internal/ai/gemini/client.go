package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/rankworks/cv-ranker/internal/ai"
	"github.com/rankworks/cv-ranker/internal/utils"
)

const (
	defaultModel          = "gemini-2.0-flash"
	defaultEmbeddingModel = "text-embedding-004"

	opEmbed = "embed"

	retryDelay = 2 * time.Second
)

// models is the subset of the genai model API the generator relies on.
// *genai.Models satisfies it; tests substitute a fake.
type models interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Generator wraps the Google GenAI client to provide prompt-based generation
// and text embeddings.
type Generator struct {
	models         models
	modelName      string
	embeddingModel string
	maxRetries     int
	logger         *zap.Logger
}

// Config controls the generator construction.
type Config struct {
	APIKey         string
	Model          string
	EmbeddingModel string
	MaxRetries     int
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, cfg Config, logger *zap.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	embeddingModel := strings.TrimSpace(cfg.EmbeddingModel)
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}

	return &Generator{
		models:         client.Models,
		modelName:      model,
		embeddingModel: embeddingModel,
		maxRetries:     cfg.MaxRetries,
		logger:         logger,
	}, nil
}

// GenerateContent sends the prompt to Gemini and returns the first textual
// response. Failed calls are retried up to the configured attempt count.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			g.logger.Debug("retrying gemini request",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			if err := utils.WaitFor(ctx, retryDelay); err != nil {
				return "", err
			}
		}

		resp, err := g.models.GenerateContent(ctx, g.modelName, genai.Text(prompt), nil)
		if err != nil {
			lastErr = fmt.Errorf("generate content: %w", err)
			continue
		}

		output := collectText(resp)
		if output == "" {
			lastErr = errors.New("gemini api returned empty response")
			continue
		}

		return output, nil
	}

	return "", lastErr
}

// Embed converts a single text into an embedding vector.
func (g *Generator) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch converts the texts into embedding vectors, preserving order:
// vector i corresponds to texts[i]. No retries are performed here; the
// caller owns the retry policy.
func (g *Generator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if g == nil || g.models == nil {
		return nil, &ai.ProviderError{Op: opEmbed, Err: errors.New("gemini generator is not initialized")}
	}

	if len(texts) == 0 {
		return nil, &ai.ProviderError{Op: opEmbed, Err: errors.New("at least one text is required")}
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	resp, err := g.models.EmbedContent(ctx, g.embeddingModel, contents, nil)
	if err != nil {
		return nil, &ai.ProviderError{Op: opEmbed, Err: err}
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, &ai.ProviderError{
			Op:  opEmbed,
			Err: fmt.Errorf("embedding count mismatch: got %d, want %d", got, len(texts)),
		}
	}

	vectors := make([][]float32, len(texts))
	for i, embedding := range resp.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, &ai.ProviderError{
				Op:  opEmbed,
				Err: fmt.Errorf("empty embedding at position %d", i),
			}
		}
		vectors[i] = embedding.Values
	}

	return vectors, nil
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}

func (g *Generator) EmbeddingModel() string {
	if g == nil {
		return ""
	}
	return g.embeddingModel
}

func collectText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}
