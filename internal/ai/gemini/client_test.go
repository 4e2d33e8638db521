package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/rankworks/cv-ranker/internal/ai"
)

type fakeModels struct {
	mu sync.Mutex

	generateResponses []fakeGenerateResponse
	generatePrompts   []string

	embedResponse *genai.EmbedContentResponse
	embedErr      error
	embedModel    string
	embedContents []*genai.Content
}

type fakeGenerateResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(_ context.Context, _ string, contents []*genai.Content, _ *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, content := range contents {
		for _, part := range content.Parts {
			f.generatePrompts = append(f.generatePrompts, part.Text)
		}
	}

	if len(f.generateResponses) == 0 {
		return nil, errors.New("unexpected call")
	}

	next := f.generateResponses[0]
	f.generateResponses = f.generateResponses[1:]
	return next.resp, next.err
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, _ *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.embedModel = model
	f.embedContents = contents

	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedResponse, nil
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{Text: text}},
			},
		}},
	}
}

func newTestGenerator(models *fakeModels, maxRetries int) *Generator {
	return &Generator{
		models:         models,
		modelName:      "test-model",
		embeddingModel: "test-embedding-model",
		maxRetries:     maxRetries,
		logger:         zap.NewNop(),
	}
}

func TestNewGeneratorRequiresAPIKey(t *testing.T) {
	_, err := NewGenerator(context.Background(), Config{APIKey: "   "}, zap.NewNop())
	if err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestGenerateContent(t *testing.T) {
	fake := &fakeModels{generateResponses: []fakeGenerateResponse{
		{resp: textResponse("hello from gemini")},
	}}
	generator := newTestGenerator(fake, 0)

	output, err := generator.GenerateContent(context.Background(), "say hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if output != "hello from gemini" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(fake.generatePrompts) != 1 || fake.generatePrompts[0] != "say hello" {
		t.Fatalf("unexpected prompts: %v", fake.generatePrompts)
	}
}

func TestGenerateContentRejectsEmptyPrompt(t *testing.T) {
	generator := newTestGenerator(&fakeModels{}, 0)

	if _, err := generator.GenerateContent(context.Background(), "   "); err == nil {
		t.Fatalf("expected error for empty prompt")
	}
}

func TestGenerateContentNoRetriesByDefault(t *testing.T) {
	fake := &fakeModels{generateResponses: []fakeGenerateResponse{
		{err: errors.New("temporary failure")},
		{resp: textResponse("should not be reached")},
	}}
	generator := newTestGenerator(fake, 0)

	if _, err := generator.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error without retries")
	}

	if len(fake.generatePrompts) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(fake.generatePrompts))
	}
}

func TestGenerateContentRetryStopsOnCancelledContext(t *testing.T) {
	fake := &fakeModels{generateResponses: []fakeGenerateResponse{
		{err: errors.New("temporary failure")},
		{resp: textResponse("never reached")},
	}}
	generator := newTestGenerator(fake, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := generator.GenerateContent(ctx, "prompt")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEmbedBatchPreservesOrder(t *testing.T) {
	fake := &fakeModels{embedResponse: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{
			{Values: []float32{1, 0}},
			{Values: []float32{0, 1}},
		},
	}}
	generator := newTestGenerator(fake, 0)

	vectors, err := generator.EmbedBatch(context.Background(), []string{"doc a", "doc b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}

	if vectors[0][0] != 1 || vectors[1][1] != 1 {
		t.Fatalf("vectors out of order: %v", vectors)
	}

	if fake.embedModel != "test-embedding-model" {
		t.Fatalf("unexpected embedding model: %s", fake.embedModel)
	}

	if len(fake.embedContents) != 2 {
		t.Fatalf("expected 2 contents, got %d", len(fake.embedContents))
	}
}

func TestEmbedBatchCountMismatch(t *testing.T) {
	fake := &fakeModels{embedResponse: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{1}}},
	}}
	generator := newTestGenerator(fake, 0)

	_, err := generator.EmbedBatch(context.Background(), []string{"a", "b"})

	var providerErr *ai.ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}

	if providerErr.Op != "embed" {
		t.Fatalf("expected op embed, got %s", providerErr.Op)
	}
}

func TestEmbedBatchEmptyEmbedding(t *testing.T) {
	fake := &fakeModels{embedResponse: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{
			{Values: []float32{1}},
			{},
		},
	}}
	generator := newTestGenerator(fake, 0)

	var providerErr *ai.ProviderError
	if _, err := generator.EmbedBatch(context.Background(), []string{"a", "b"}); !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
}

func TestEmbedBatchWrapsTransportErrors(t *testing.T) {
	cause := errors.New("unreachable")
	generator := newTestGenerator(&fakeModels{embedErr: cause}, 0)

	_, err := generator.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestEmbedDelegatesToBatch(t *testing.T) {
	fake := &fakeModels{embedResponse: &genai.EmbedContentResponse{
		Embeddings: []*genai.ContentEmbedding{{Values: []float32{0.5, 0.5}}},
	}}
	generator := newTestGenerator(fake, 0)

	vector, err := generator.Embed(context.Background(), "job text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(vector) != 2 {
		t.Fatalf("unexpected vector: %v", vector)
	}
}
