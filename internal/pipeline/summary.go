package pipeline

import (
	"fmt"
	"io"
	"sort"

	"scoreloop/internal/domain"
)

// Count is one printed summary value.
type Count struct {
	Key   string
	Value any
}

// Failure is a systemic condition that fails the whole run.
type Failure struct {
	Kind      domain.ErrorKind
	Condition string
}

// Summary is the machine-parseable result of one tool run.
type Summary struct {
	Tool    string
	Counts  []Count
	Wrote   []string
	Failure *Failure
}

// NewSummary starts a summary for tool.
func NewSummary(tool string) *Summary {
	return &Summary{Tool: tool}
}

// Add appends one count. Order of calls is print order.
func (s *Summary) Add(key string, v any) {
	s.Counts = append(s.Counts, Count{Key: key, Value: v})
}

// AddMap appends every entry of m as prefix+key, sorted by key.
func (s *Summary) AddMap(prefix string, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.Add(prefix+k, m[k])
	}
}

// Get returns the value recorded for key.
func (s *Summary) Get(key string) (any, bool) {
	for _, c := range s.Counts {
		if c.Key == key {
			return c.Value, true
		}
	}
	return nil, false
}

// Fail marks the run failed. The first failure wins.
func (s *Summary) Fail(kind domain.ErrorKind, format string, args ...any) {
	if s.Failure != nil {
		return
	}
	s.Failure = &Failure{Kind: kind, Condition: fmt.Sprintf(format, args...)}
}

// Passed reports whether no systemic failure was recorded.
func (s *Summary) Passed() bool {
	return s.Failure == nil
}

// ExitCode is 0 on PASS and 1 on FAIL.
func (s *Summary) ExitCode() int {
	if s.Passed() {
		return 0
	}
	return 1
}

// Print writes key=value lines followed by PASS or FAIL: <condition>.
func (s *Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "tool=%s\n", s.Tool)
	for _, c := range s.Counts {
		fmt.Fprintf(w, "%s=%v\n", c.Key, c.Value)
	}
	for _, p := range s.Wrote {
		fmt.Fprintf(w, "wrote=%s\n", p)
	}
	if s.Failure != nil {
		fmt.Fprintf(w, "FAIL: %s\n", s.Failure.Condition)
		return
	}
	fmt.Fprintln(w, "PASS")
}

// err returns the failure as an error, or nil.
func (s *Summary) err() error {
	if s.Failure == nil {
		return nil
	}
	return fmt.Errorf("%s: %s", s.Tool, s.Failure.Condition)
}
