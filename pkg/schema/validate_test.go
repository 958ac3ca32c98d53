package schema

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestSchemaCheck(t *testing.T) {
	s := Schema{
		"current_score": IntRange(0, 100),
		"key_issues":    Slice(String()),
	}

	if err := s.Check("current_score", 95); err != nil {
		t.Errorf("Check(95) error = %v", err)
	}

	err := s.Check("current_score", "95")
	if err == nil {
		t.Fatal("Check(\"95\") expected error")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Key != "current_score" {
		t.Errorf("Key = %q, want current_score", ve.Key)
	}

	if err := s.Check("unknown", struct{}{}); err != nil {
		t.Errorf("unknown keys must be accepted, got %v", err)
	}
}

func TestValidate_Success(t *testing.T) {
	s := Schema{
		"material":  String(),
		"threshold": IntRange(0, 100),
		"done":      Bool(),
		"issues":    Slice(String()),
	}

	data := map[string]any{
		"material":  "notes",
		"threshold": 60,
		"done":      false,
		"issues":    []string{"more data"},
	}

	if err := Validate(s, data); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	s := Schema{
		"material":  String(),
		"threshold": IntRange(0, 100),
		"done":      Bool(),
	}

	data := map[string]any{
		"threshold": 400,
		"done":      "yes",
	}

	err := Validate(s, data)
	if err == nil {
		t.Fatal("expected error")
	}
	errs := ValidationErrors(err)
	if len(errs) != 3 {
		t.Fatalf("expected 3 errors, got %d: %v", len(errs), err)
	}
	if !strings.Contains(err.Error(), "3 validation errors") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestValidateFields_UndefinedField(t *testing.T) {
	s := Schema{"material": String()}

	err := ValidateFields(s, map[string]any{"material": "x"}, "material", "ghost")
	errs := ValidationErrors(err)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", err)
	}
	if !strings.Contains(errs[0].Error(), "not defined in schema") {
		t.Errorf("unexpected error: %v", errs[0])
	}
}

func TestSchemaMerge(t *testing.T) {
	base := Schema{"a": String()}
	merged := base.Merge(Schema{"a": Int(), "b": Bool()})

	if merged["a"].Name() != "int" {
		t.Errorf("override lost: %s", merged["a"].Name())
	}
	if len(base) != 1 {
		t.Error("Merge must not modify the receiver")
	}
	if got := merged.Keys(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Keys() = %v", got)
	}
}

func TestSchemaJSON(t *testing.T) {
	s := Schema{
		"current_score": IntRange(0, 100),
		"key_issues":    Slice(String()),
	}

	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var back Schema
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if back["current_score"].Name() != "int[0,100]" {
		t.Errorf("current_score = %s", back["current_score"].Name())
	}
	if back["key_issues"].Name() != "[string]" {
		t.Errorf("key_issues = %s", back["key_issues"].Name())
	}

	if err := json.Unmarshal([]byte(`{"x": 1}`), &back); err == nil {
		t.Error("expected error for non-string type name")
	}
}
