package validator

import (
	"strings"
	"testing"

	"github.com/aretw0/quill/internal/testutils"
	"github.com/aretw0/quill/pkg/schema"
)

func TestValidateInputs(t *testing.T) {
	// Scenario A: complete inputs
	if err := ValidateInputs(testutils.Inputs(), nil); err != nil {
		t.Errorf("Scenario A (Valid) failed: %v", err)
	}

	// Scenario B: blank requirement and out-of-range threshold
	in := testutils.Inputs()
	in.Requirements = "   "
	threshold := 140
	in.ScoreThreshold = &threshold

	err := ValidateInputs(in, nil)
	if err == nil {
		t.Fatal("Scenario B (Broken) should have failed, but got nil")
	}
	for _, want := range []string{"found 2 errors", "score_threshold", "required input 'requirements'"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Expected %q in error, got: %v", want, err)
		}
	}

	// Scenario C: extra typed key
	extra, err := schema.ParseTypeMap(map[string]string{"word_limit": "int[1,500]"})
	if err != nil {
		t.Fatal(err)
	}
	in = testutils.Inputs()
	in.Extra = map[string]any{"word_limit": 900}
	if err := ValidateInputs(in, extra); err == nil || !strings.Contains(err.Error(), "word_limit") {
		t.Errorf("Scenario C expected a word_limit error, got: %v", err)
	}
}
