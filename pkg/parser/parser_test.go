package parser_test

import (
	"testing"

	"github.com/aretw0/quill/pkg/parser"
	"github.com/stretchr/testify/assert"
)

func TestParse_OrdinalScoreWithIssues(t *testing.T) {
	eval := parser.Parse("1. 95\n反馈: 很好\n- 补充案例\n- 增加数据")

	assert.Equal(t, 95, eval.Score)
	assert.Equal(t, []string{"补充案例", "增加数据"}, eval.KeyIssues)
	assert.Contains(t, eval.Feedback, "很好")
	assert.NotContains(t, eval.Feedback, "95")
}

func TestParse_IsDeterministic(t *testing.T) {
	in := "Overall score: 72\n- needs a stronger opening\n- cut the repetition"
	assert.Equal(t, parser.Parse(in), parser.Parse(in))
}

func TestParse_Score(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"standalone token", "Score: 88 out of the scale", 88},
		{"ideographic ordinal", "1、77\nfine", 77},
		{"first in-scale token wins", "Total 250 pts; rated 64", 64},
		{"ordinal beats earlier tokens", "draft 3 reviewed\n2. 81", 81},
		{"out of scale ordinal falls through", "1. 200\nGood work 85", 85},
		{"decimal ordinal falls through", "1. 95.5\nrounded to 96", 96},
		{"marker is never the score", "1. 200", 0},
		{"zero is not a score", "0", 0},
		{"above scale", "I would say 101", 0},
		{"decimal ignored", "ratio 3.5 then 42", 42},
		{"glued to letters", "v2 release, section A3, grade 55", 55},
		{"no digits", "no numbers here", 0},
		{"maximum", "100", 100},
		{"minimum", "1", 1},
		{"blank", "   ", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parser.Parse(tt.in).Score)
		})
	}
}

func TestParse_ScoreAlwaysInScale(t *testing.T) {
	inputs := []string{"", "999", "-5", "1. 0", "12345 and 7", "3.14159", "100.5"}
	for _, in := range inputs {
		score := parser.Parse(in).Score
		assert.GreaterOrEqual(t, score, 0, in)
		assert.LessOrEqual(t, score, 100, in)
	}
}

func TestParse_NoScoreKeepsWholeText(t *testing.T) {
	in := "  looks fine overall  "
	eval := parser.Parse(in)

	assert.Zero(t, eval.Score)
	assert.Equal(t, in, eval.Feedback)
	assert.NotNil(t, eval.KeyIssues)
	assert.Empty(t, eval.KeyIssues)
}

func TestParse_ScoreLineIsNotAnIssue(t *testing.T) {
	eval := parser.Parse("- overall rating 80\n- missing a conclusion")

	assert.Equal(t, 80, eval.Score)
	assert.Equal(t, []string{"missing a conclusion"}, eval.KeyIssues)
}

func TestParse_ShortBulletsAreSkipped(t *testing.T) {
	eval := parser.Parse("Score 50\n- ok\n-  tiny \n- tighten the argument")

	assert.Equal(t, []string{"tighten the argument"}, eval.KeyIssues)
}

func TestParseAny(t *testing.T) {
	assert.Equal(t, parser.Parse(""), parser.ParseAny(nil))
	assert.Equal(t, 42, parser.ParseAny(42).Score)
	assert.Equal(t, 61, parser.ParseAny([]byte("1. 61")).Score)
}
