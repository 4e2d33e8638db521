package candidate

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Profile is a structured candidate profile. It is treated as immutable input
// by the matching pipeline.
type Profile struct {
	Name                 string   `json:"name" mapstructure:"name" validate:"required"`
	TotalExperienceYears float64  `json:"totalExperienceYears" mapstructure:"totalExperienceYears" validate:"gte=0"`
	Summary              string   `json:"summary" mapstructure:"summary"`
	Skills               []string `json:"skills" mapstructure:"skills"`
}

// ExtractedProfile is a Profile enriched with the extra fields the CV
// extractor produces.
type ExtractedProfile struct {
	Profile    `mapstructure:",squash"`
	Companies  string `json:"companies" mapstructure:"companies"`
	Education  string `json:"education" mapstructure:"education"`
	Discipline string `json:"discipline" mapstructure:"discipline"`
	Industry   string `json:"industry" mapstructure:"industry"`
}

// Document builds the plain-text form of the profile used for embedding.
// The format is part of the pipeline's observable behavior and must stay
// stable across releases.
func (p *Profile) Document() string {
	return fmt.Sprintf("Summary: %s\nSkills: %s", p.Summary, strings.Join(p.Skills, ", "))
}

// MatchResult is the outcome of ranking a single candidate against a job
// description. Score is always within [0, 100].
type MatchResult struct {
	Name          string `json:"name"`
	Score         int    `json:"score"`
	Justification string `json:"justification"`
}

// MatchResults wraps an ordered result list.
type MatchResults struct {
	Items []MatchResult
}

func (r *MatchResults) Len() int {
	return len(r.Items)
}

func (r *MatchResults) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "matches_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r.Items); err != nil {
		return "", err
	}
	return file.Name(), nil
}

// ProfilesFromFile loads candidate profiles from a JSON file containing an
// array of profile objects.
func ProfilesFromFile(path string) ([]Profile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var raw []map[string]any
	if err := json.NewDecoder(file).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode candidates file: %w", err)
	}

	profiles := make([]Profile, 0, len(raw))
	cfg := &mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &profiles,
	}

	decoder, _ := mapstructure.NewDecoder(cfg)
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode candidate profiles: %w", err)
	}

	return profiles, nil
}
