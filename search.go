package trc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sessiontrace/trc/internal/trcpubsub"
)

// Searcher models anything that can serve search requests.
type Searcher interface {
	Search(context.Context, *SearchRequest) (*SearchResponse, error)
}

// Streamer models anything that can stream traces as they change.
type Streamer interface {
	Stream(ctx context.Context, f Filter, ch chan<- Trace) (StreamStats, error)
	StreamStats(ctx context.Context, ch chan<- Trace) (StreamStats, error)
}

// StreamStats describe a single stream.
type StreamStats = trcpubsub.Stats

// SearchRequest describes a complete search request.
type SearchRequest struct {
	Filter     Filter `json:"filter,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	StackDepth int    `json:"stack_depth,omitempty"` // 0 is default stacks, -1 for no stacks
}

const (
	// SearchLimitMin is the minimum search limit.
	SearchLimitMin = 1

	// SearchLimitDefault is the default search limit.
	SearchLimitDefault = 10

	// SearchLimitMax is the maximum search limit.
	SearchLimitMax = 250
)

// Normalize ensures the search request is valid, modifying it if necessary. It
// returns any errors encountered in the process.
func (req *SearchRequest) Normalize() []error {
	var errs []error

	for _, err := range req.Filter.Normalize() {
		errs = append(errs, fmt.Errorf("filter: %w", err))
	}

	switch {
	case req.Limit <= 0:
		req.Limit = SearchLimitDefault
	case req.Limit < SearchLimitMin:
		req.Limit = SearchLimitMin
	case req.Limit > SearchLimitMax:
		req.Limit = SearchLimitMax
	}

	return errs
}

// String implements fmt.Stringer.
func (req SearchRequest) String() string {
	elems := []string{
		fmt.Sprintf("Filter:[%s]", req.Filter),
		fmt.Sprintf("Limit:%d", req.Limit),
	}

	if req.StackDepth != 0 {
		elems = append(elems, fmt.Sprintf("StackDepth:%d", req.StackDepth))
	}

	return strings.Join(elems, " ")
}

// SearchResponse returned by a search request.
type SearchResponse struct {
	Request    *SearchRequest `json:"request,omitempty"`
	Sources    []string       `json:"sources"`
	TotalCount int            `json:"total_count"`
	MatchCount int            `json:"match_count"`
	Traces     []*StaticTrace `json:"traces"`
	Users      map[string]int `json:"users,omitempty"`
	Problems   []string       `json:"problems,omitempty"`
	Duration   time.Duration  `json:"duration"`
}
