package schema

import "sort"

// Schema maps field names to their expected types.
type Schema map[string]Type

// Check validates a single value against the type registered for key.
// Keys unknown to the schema are accepted.
func (s Schema) Check(key string, value any) error {
	t, ok := s[key]
	if !ok || t == nil {
		return nil
	}
	if err := t.Validate(value); err != nil {
		return &ValidationError{Key: key, Reason: err.Error(), Value: value}
	}
	return nil
}

// Merge returns a new schema holding s overlaid with other.
func (s Schema) Merge(other Schema) Schema {
	out := make(Schema, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Keys returns the schema keys in sorted order.
func (s Schema) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Validate checks that every schema field is present in data and well typed.
// Returns an *AggregateError holding all failures.
func Validate(schema Schema, data map[string]any) error {
	return ValidateFields(schema, data, schema.Keys()...)
}

// ValidateFields validates only the named fields. Missing fields are errors.
func ValidateFields(schema Schema, data map[string]any, fields ...string) error {
	var errs []error
	for _, field := range fields {
		fieldType, defined := schema[field]
		if !defined {
			errs = append(errs, &ValidationError{Key: field, Reason: "not defined in schema"})
			continue
		}
		value, present := data[field]
		if !present {
			errs = append(errs, &ValidationError{Key: field, Reason: "required"})
			continue
		}
		if err := fieldType.Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: field, Reason: err.Error(), Value: value})
		}
	}
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
