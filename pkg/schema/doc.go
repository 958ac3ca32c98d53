// Package schema provides the runtime type table used to validate session state writes.
//
// A Schema maps keys to Types. Built-in types cover strings, integers (optionally
// bounded), floats, booleans and slices; Custom wraps any validation function.
//
//	s := schema.Schema{
//	    "current_score": schema.IntRange(0, 100),
//	    "key_issues":    schema.Slice(schema.String()),
//	}
//
//	if err := s.Check("current_score", 140); err != nil {
//	    // *ValidationError: value 140 out of range [0,100]
//	}
//
// Schemas can also be declared as type strings, which is how extra keys are
// configured:
//
//	extra, err := schema.ParseTypeMap(map[string]string{
//	    "tone":       "string",
//	    "word_limit": "int[0,5000]",
//	})
//
// The package depends only on the standard library.
package schema
