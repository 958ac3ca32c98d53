package stage

import (
	"bytes"
	"fmt"
	"text/template"
)

// Templates holds the raw text/template sources for the three prompts.
// Templates see the session values by key ({{.material}}, {{.current_draft}}, ...);
// {{.key_issues}} is a []string.
type Templates struct {
	Initial    string
	Revision   string
	Evaluation string
}

// DefaultTemplates returns the built-in prompt templates.
func DefaultTemplates() Templates {
	return Templates{
		Initial:    defaultInitial,
		Revision:   defaultRevision,
		Evaluation: defaultEvaluation,
	}
}

const defaultInitial = `You are a careful writer. Write a complete piece based on the material below.

## Material
{{.material}}

## Requirements
{{.requirements}}

## How the piece will be judged
{{.scoring_criteria}}

Reply with the piece only, without preamble or commentary.`

const defaultRevision = `You are revising your own draft after an editorial review.

## Current draft
{{.current_draft}}

## Reviewer feedback
{{.current_feedback}}
{{- if .key_issues}}

## Issues to fix
{{range .key_issues}}- {{.}}
{{end}}{{end}}

## How the piece will be judged
{{.scoring_criteria}}

Rewrite the draft so that it addresses the feedback while keeping what already works.
Reply with the full revised piece only.`

const defaultEvaluation = `You are a strict reviewer. Score the draft below against the criteria.

## Criteria
{{.scoring_criteria}}

## Draft
{{.current_draft}}

Answer in this exact layout:
1. <score, an integer from 0 to 100>
Feedback: <one paragraph of commentary>
- <first concrete issue to fix>
- <further issues, one per line>`

// GeneralImprovements replaces empty reviewer feedback in revision prompts.
const GeneralImprovements = "No specific feedback was given. Apply general improvements to clarity, structure and accuracy."

// Prompts is a compiled set of Templates.
type Prompts struct {
	initial    *template.Template
	revision   *template.Template
	evaluation *template.Template
}

// Compile parses t. Empty fields fall back to the defaults.
func Compile(t Templates) (*Prompts, error) {
	def := DefaultTemplates()
	if t.Initial == "" {
		t.Initial = def.Initial
	}
	if t.Revision == "" {
		t.Revision = def.Revision
	}
	if t.Evaluation == "" {
		t.Evaluation = def.Evaluation
	}

	p := &Prompts{}
	var err error
	if p.initial, err = parse("initial", t.Initial); err != nil {
		return nil, err
	}
	if p.revision, err = parse("revision", t.Revision); err != nil {
		return nil, err
	}
	if p.evaluation, err = parse("evaluation", t.Evaluation); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultPrompts returns the compiled built-in templates.
func DefaultPrompts() *Prompts {
	p, err := Compile(DefaultTemplates())
	if err != nil {
		panic(err)
	}
	return p
}

func parse(name, src string) (*template.Template, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid %s prompt template: %w", name, err)
	}
	return tmpl, nil
}

func render(tmpl *template.Template, data map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
