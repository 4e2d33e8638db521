package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/rankworks/cv-ranker/internal/ai"
	"github.com/rankworks/cv-ranker/internal/candidate"
	"github.com/rankworks/cv-ranker/internal/logger"
)

//go:embed extract_prompt.md
var extractPromptTemplate string

const opExtract = "extract"

// Extractor parses raw CV text into a structured candidate profile using
// Gemini.
type Extractor struct {
	generator contentGenerator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(generator contentGenerator, log *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	if log == nil {
		log = zap.NewNop()
	}

	return &Extractor{
		generator: generator,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

func (e *Extractor) Extract(ctx context.Context, cvText string) (*candidate.ExtractedProfile, error) {
	prompt := strings.ReplaceAll(extractPromptTemplate, "{{CV_TEXT}}", cvText)

	e.logger.Debug("gemini extract request",
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, &ai.ProviderError{Op: opExtract, Err: err}
	}

	e.logger.Debug("gemini extract response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, e.maxLogLen)),
	)

	profile, err := parseExtractResponse(raw)
	if err != nil {
		return nil, &ai.ProviderError{Op: opExtract, Err: err}
	}

	return profile, nil
}

func parseExtractResponse(raw string) (*candidate.ExtractedProfile, error) {
	cleaned := extractJSON(raw)

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse extraction response: %w", err)
	}

	var profile candidate.ExtractedProfile
	cfg := &mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &profile,
	}

	decoder, _ := mapstructure.NewDecoder(cfg)
	if err := decoder.Decode(data); err != nil {
		return nil, fmt.Errorf("decode extracted profile: %w", err)
	}

	if strings.TrimSpace(profile.Name) == "" {
		return nil, fmt.Errorf("extraction response carries no candidate name: %s", cleaned)
	}

	if profile.TotalExperienceYears < 0 {
		profile.TotalExperienceYears = 0
	}

	return &profile, nil
}
