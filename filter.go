package trc

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"
)

// Filter is a set of rules that can be applied to an individual trace, which
// will either be allowed (pass) or rejected (fail). Zero-value fields impose no
// rule.
type Filter struct {
	Sources     []string       `json:"sources,omitempty"`
	IDs         []string       `json:"ids,omitempty"`
	Category    string         `json:"category,omitempty"`
	User        string         `json:"user,omitempty"`     // exact match of the header user
	HasUser     bool           `json:"has_user,omitempty"` // header user is non-empty
	IsActive    bool           `json:"is_active,omitempty"`
	IsFinished  bool           `json:"is_finished,omitempty"`
	MinDuration *time.Duration `json:"min_duration,omitempty"`
	IsSuccess   bool           `json:"is_success,omitempty"`
	IsErrored   bool           `json:"is_errored,omitempty"`
	Query       string         `json:"query,omitempty"` // regexp over user, events, and stacks

	regexp *regexp.Regexp
}

// Normalize must be called before the filter can be used. Contradictory or
// invalid rules are dropped, and reported as errors.
func (f *Filter) Normalize() []error {
	var errs []error

	if err := f.compileQuery(); err != nil {
		errs = append(errs, fmt.Errorf("query: %w", err))
	}

	if f.IsActive && f.IsFinished {
		errs = append(errs, fmt.Errorf("cannot select both active and finished traces, ignoring both"))
		f.IsActive, f.IsFinished = false, false
	}

	if f.IsSuccess && f.IsErrored {
		errs = append(errs, fmt.Errorf("cannot select both successful and errored traces, ignoring both"))
		f.IsSuccess, f.IsErrored = false, false
	}

	return errs
}

// String returns an operator-readable representation of the filter.
func (f Filter) String() string {
	var elems []string
	add := func(cond bool, format string, args ...any) {
		if cond {
			elems = append(elems, fmt.Sprintf(format, args...))
		}
	}

	add(len(f.Sources) > 0, "Sources=%v", f.Sources)
	add(len(f.IDs) > 0, "IDs=%v", f.IDs)
	add(f.Category != "", "Category='%s'", f.Category)
	add(f.User != "", "User='%s'", f.User)
	add(f.HasUser, "HasUser")
	add(f.IsActive, "IsActive")
	add(f.IsFinished, "IsFinished")
	if f.MinDuration != nil {
		add(true, "MinDuration=%s", *f.MinDuration)
	}
	add(f.IsSuccess, "IsSuccess")
	add(f.IsErrored, "IsErrored")
	add(f.Query != "", "Query='%s'", f.Query)

	if len(elems) <= 0 {
		return "(allow all)"
	}

	return strings.Join(elems, " ")
}

// Allow returns true if the trace satisfies every rule in the filter.
func (f *Filter) Allow(tr Trace) bool {
	switch {
	case len(f.Sources) > 0 && !slices.Contains(f.Sources, tr.Source()):
		return false
	case len(f.IDs) > 0 && !slices.Contains(f.IDs, tr.ID()):
		return false
	case f.Category != "" && f.Category != tr.Category():
		return false
	case f.User != "" && f.User != tr.User():
		return false
	case f.HasUser && tr.User() == "":
		return false
	case f.IsActive && tr.Finished():
		return false
	case f.IsFinished && !tr.Finished():
		return false
	case f.MinDuration != nil && (!tr.Finished() || tr.Duration() < *f.MinDuration):
		return false
	case f.IsSuccess && (!tr.Finished() || tr.Errored()):
		return false
	case f.IsErrored && !tr.Errored():
		return false
	}

	f.compileQuery()
	if f.regexp == nil {
		return true
	}

	return f.matchQuery(tr)
}

func (f *Filter) matchQuery(tr Trace) bool {
	if user := tr.User(); user != "" && f.regexp.MatchString(user) {
		return true
	}

	for _, ev := range tr.Events() {
		if f.regexp.MatchString(ev.What) {
			return true
		}
		for _, fr := range ev.Stack {
			if f.regexp.MatchString(fr.Function) || f.regexp.MatchString(fr.CompactFileLine()) {
				return true
			}
		}
	}

	return false
}

func (f *Filter) compileQuery() error {
	if f.regexp != nil || f.Query == "" {
		return nil
	}

	re, err := regexp.Compile(f.Query)
	if err != nil {
		f.Query = ""
		return fmt.Errorf("invalid, ignoring (%w)", err)
	}

	f.regexp = re
	return nil
}
