package state

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aretw0/quill/internal/logging"
	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/schema"
)

// PreviewLength is the number of characters kept in a draft preview.
const PreviewLength = 100

// DefaultSchema returns the type table for the built-in session keys.
func DefaultSchema() schema.Schema {
	return schema.Schema{
		domain.KeyMaterial:        schema.String(),
		domain.KeyRequirements:    schema.String(),
		domain.KeyScoringCriteria: schema.String(),
		domain.KeyCurrentDraft:    schema.String(),
		domain.KeyPreviousDraft:   schema.String(),
		domain.KeyDraftFailed:     schema.Bool(),
		domain.KeyCurrentScore:    schema.IntRange(0, domain.MaxScore),
		domain.KeyCurrentFeedback: schema.String(),
		domain.KeyKeyIssues:       schema.Slice(schema.String()),
		domain.KeyScoreThreshold:  schema.IntRange(0, domain.MaxScore),
		domain.KeyMaxIterations:   schema.IntRange(1, math.MaxInt32),
		domain.KeyIterationCount:  schema.IntRange(0, math.MaxInt32),
		domain.KeyIsComplete:      schema.Bool(),
	}
}

// Store is a typed view over a domain.State.
// Every write is validated against the schema; rejected writes leave the prior value
// in place. Store is not safe for concurrent use: one session has one writer.
type Store struct {
	state  *domain.State
	schema schema.Schema
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSchema overlays extra key types on top of DefaultSchema.
func WithSchema(extra schema.Schema) Option {
	return func(s *Store) {
		s.schema = s.schema.Merge(extra)
	}
}

// WithLogger sets the logger used to report rejected writes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock injects the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New wraps st. Values decoded from JSON (float64 numbers, []any lists) are
// normalized to the schema's Go types so typed getters work after a reload.
func New(st *domain.State, opts ...Option) *Store {
	if st == nil {
		st = domain.NewState("")
	}
	if st.Values == nil {
		st.Values = make(map[string]any)
	}
	if st.Revisions == nil {
		st.Revisions = make(map[string]uint64)
	}

	s := &Store{
		state:  st,
		schema: DefaultSchema(),
		logger: logging.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}

	for k, v := range st.Values {
		st.Values[k] = s.normalize(k, v)
	}
	return s
}

// State returns the underlying session state.
func (s *Store) State() *domain.State {
	return s.state
}

// Schema returns the effective type table.
func (s *Store) Schema() schema.Schema {
	return s.schema
}

// Get returns the value stored under key, or def when the key is absent.
func (s *Store) Get(key string, def any) any {
	if v, ok := s.state.Values[key]; ok {
		return v
	}
	return def
}

// Has reports whether key holds a non-nil value.
func (s *Store) Has(key string) bool {
	v, ok := s.state.Values[key]
	return ok && v != nil
}

// Set validates value against the schema entry for key and stores it.
// It returns false, keeping the previous value, when validation fails.
func (s *Store) Set(key string, value any) bool {
	if err := s.schema.Check(key, value); err != nil {
		s.logger.Warn("State write rejected", "key", key, "err", err)
		return false
	}

	s.state.Clock++
	s.state.Values[key] = s.normalize(key, value)
	s.state.Revisions[key] = s.state.Clock
	s.state.UpdatedAt = s.now()
	return true
}

// Update applies Set to every entry independently and reports the outcome per key.
// Keys are written in sorted order so revisions are deterministic.
func (s *Store) Update(values map[string]any) map[string]bool {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	results := make(map[string]bool, len(values))
	for _, k := range keys {
		results[k] = s.Set(k, values[k])
	}
	return results
}

// Delete removes key. It returns false when the key was not present.
func (s *Store) Delete(key string) bool {
	if _, ok := s.state.Values[key]; !ok {
		return false
	}
	delete(s.state.Values, key)
	delete(s.state.Revisions, key)
	s.state.UpdatedAt = s.now()
	return true
}

// Revision returns the clock tick of the latest accepted write to key (0 if never written).
func (s *Store) Revision(key string) uint64 {
	return s.state.Revisions[key]
}

// NewerThan reports whether key was written after other.
func (s *Store) NewerThan(key, other string) bool {
	return s.Revision(key) > s.Revision(other)
}

// String returns the string under key, or "" when absent or not a string.
func (s *Store) String(key string) string {
	v, _ := s.state.Values[key].(string)
	return v
}

// Int returns the integer under key.
func (s *Store) Int(key string) (int, bool) {
	v, ok := s.state.Values[key]
	if !ok || v == nil {
		return 0, false
	}
	n, err := schema.AsInt(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Bool returns the boolean under key, false when absent.
func (s *Store) Bool(key string) bool {
	v, _ := s.state.Values[key].(bool)
	return v
}

// Strings returns a copy of the string list under key.
func (s *Store) Strings(key string) []string {
	switch v := s.state.Values[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// Missing returns the keys that are absent, nil or blank strings, in argument order.
func (s *Store) Missing(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		v, ok := s.state.Values[k]
		if !ok || v == nil {
			missing = append(missing, k)
			continue
		}
		if str, isStr := v.(string); isStr && strings.TrimSpace(str) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// Snapshot returns a shallow copy of all values.
func (s *Store) Snapshot() map[string]any {
	out := make(map[string]any, len(s.state.Values))
	for k, v := range s.state.Values {
		if list, ok := v.([]string); ok {
			v = append([]string(nil), list...)
		}
		out[k] = v
	}
	return out
}

// DraftInfo describes the current draft without exposing all of it.
type DraftInfo struct {
	Exists  bool   `json:"exists"`
	Length  int    `json:"length"`
	Preview string `json:"preview"`
}

// DraftInfo reports existence, length in characters and a short preview of the draft.
func (s *Store) DraftInfo() DraftInfo {
	draft := s.String(domain.KeyCurrentDraft)
	if draft == "" {
		return DraftInfo{}
	}
	preview := draft
	if utf8.RuneCountInString(draft) > PreviewLength {
		preview = string([]rune(draft)[:PreviewLength])
	}
	return DraftInfo{
		Exists:  true,
		Length:  utf8.RuneCountInString(draft),
		Preview: preview,
	}
}

func (s *Store) normalize(key string, value any) any {
	switch s.schema[key].(type) {
	case *schema.IntType, *schema.IntRangeType:
		if n, err := schema.AsInt(value); err == nil {
			return n
		}
	case *schema.SliceType:
		if list, ok := value.([]any); ok {
			out := make([]string, 0, len(list))
			for _, item := range list {
				str, isStr := item.(string)
				if !isStr {
					return value
				}
				out = append(out, str)
			}
			return out
		}
		if list, ok := value.([]string); ok {
			return append([]string(nil), list...)
		}
	}
	return value
}
