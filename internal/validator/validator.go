// Package validator checks session inputs before any model is called.
package validator

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/schema"
	"github.com/aretw0/quill/pkg/state"
)

// ValidateInputs reports every problem with in at once: values that fail their
// type or range check and required inputs that are missing or blank. extra declares
// additional typed keys on top of the default schema.
func ValidateInputs(in domain.Inputs, extra schema.Schema) error {
	sch := state.DefaultSchema().Merge(extra)
	values := in.Values()

	var problems []string
	for _, k := range slices.Sorted(maps.Keys(values)) {
		if err := sch.Check(k, values[k]); err != nil {
			problems = append(problems, err.Error())
		}
	}

	st := state.New(domain.NewState("validate"), state.WithSchema(extra))
	st.Update(values)
	for _, k := range st.Missing(domain.RequiredInputs...) {
		problems = append(problems, fmt.Sprintf("required input '%s' is missing or blank", k))
	}

	if len(problems) > 0 {
		return fmt.Errorf("found %d errors:\n- %s", len(problems), strings.Join(problems, "\n- "))
	}
	return nil
}
