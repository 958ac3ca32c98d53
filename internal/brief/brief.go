// Package brief loads session inputs from files.
//
// A brief is either a YAML (or JSON) document whose keys are the session inputs,
// or a markdown document whose frontmatter holds requirements, criteria and limits
// and whose body is the material.
package brief

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"
	"github.com/aretw0/quill/pkg/domain"
	"gopkg.in/yaml.v3"
)

// ErrUnsupported is returned for files that are neither YAML, JSON nor markdown.
var ErrUnsupported = errors.New("unsupported brief format")

// Frontmatter is the metadata block of a markdown brief.
type Frontmatter struct {
	Requirements    string         `mapstructure:"requirements"`
	ScoringCriteria string         `mapstructure:"scoring_criteria"`
	ScoreThreshold  *int           `mapstructure:"score_threshold"`
	MaxIterations   *int           `mapstructure:"max_iterations"`
	Extra           map[string]any `mapstructure:"extra"`
}

// Load reads the brief at path.
func Load(ctx context.Context, path string) (domain.Inputs, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return loadYAML(path)
	case ".md", ".markdown":
		return loadMarkdown(ctx, path)
	default:
		return domain.Inputs{}, fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
}

func loadYAML(path string) (domain.Inputs, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("read brief: %w", err)
	}
	var in domain.Inputs
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return domain.Inputs{}, fmt.Errorf("parse brief %s: %w", path, err)
	}
	return in, nil
}

func loadMarkdown(ctx context.Context, path string) (domain.Inputs, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("invalid path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return domain.Inputs{}, fmt.Errorf("read brief: %w", err)
	}

	repo, err := loam.Init(filepath.Dir(abs),
		loam.WithStrict(true),
		loam.WithReadOnly(true),
		loam.WithVersioning(false),
	)
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("failed to initialize loam: %w", err)
	}

	doc, err := loam.NewTypedRepository[Frontmatter](repo).Get(ctx, filepath.Base(abs))
	if err != nil {
		return domain.Inputs{}, fmt.Errorf("load brief %s: %w", path, err)
	}

	return domain.Inputs{
		Material:        strings.TrimSpace(doc.Content),
		Requirements:    doc.Data.Requirements,
		ScoringCriteria: doc.Data.ScoringCriteria,
		ScoreThreshold:  doc.Data.ScoreThreshold,
		MaxIterations:   doc.Data.MaxIterations,
		Extra:           doc.Data.Extra,
	}, nil
}

// Overrides are values given on the command line; non-empty fields replace the brief's.
type Overrides struct {
	Material        string
	Requirements    string
	ScoringCriteria string
	ScoreThreshold  *int
	MaxIterations   *int
}

// Apply returns in with the non-empty overrides applied.
func (o Overrides) Apply(in domain.Inputs) domain.Inputs {
	if o.Material != "" {
		in.Material = o.Material
	}
	if o.Requirements != "" {
		in.Requirements = o.Requirements
	}
	if o.ScoringCriteria != "" {
		in.ScoringCriteria = o.ScoringCriteria
	}
	if o.ScoreThreshold != nil {
		in.ScoreThreshold = o.ScoreThreshold
	}
	if o.MaxIterations != nil {
		in.MaxIterations = o.MaxIterations
	}
	return in
}
