package main

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffval"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trchttp"
)

type searchConfig struct {
	*rootConfig

	limit          int
	stackDepth     int
	includeRequest bool
}

func (cfg *searchConfig) register(fs *ff.FlagSet) {
	fs.AddFlag(ff.FlagConfig{ShortName: 'n', LongName: "limit" /*           */, Value: ffval.NewValueDefault(&cfg.limit, 10) /* */, Usage: "maximum number of traces to return"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "stack-depth" /*     */, Value: ffval.NewValue(&cfg.stackDepth) /*       */, Usage: "number of stack frames to include with each event"})
	fs.AddFlag(ff.FlagConfig{ShortName: 0x0, LongName: "include-request" /* */, Value: ffval.NewValue(&cfg.includeRequest) /*   */, Usage: "include search request in output", NoDefault: true})
}

func (cfg *searchConfig) Exec(ctx context.Context, args []string) error {
	ctx, tr := cfg.newTrace(ctx, "search")
	defer tr.Finish()

	if len(cfg.uris) <= 0 {
		return fmt.Errorf("at least one URI is required")
	}

	if cfg.stackDepth == 0 {
		cfg.stackDepth = -1 // 0 means all available stacks, -1 means no stacks
	}

	req := &trc.SearchRequest{
		Filter:     cfg.filter,
		Limit:      cfg.limit,
		StackDepth: cfg.stackDepth,
	}

	cfg.log.Debugf("request: filter: %s", cfg.filter)
	cfg.log.Debugf("request: limit: %d", cfg.limit)
	cfg.log.Debugf("request: stack depth: %d", cfg.stackDepth)

	client := trchttp.NewUnixHTTPClient()
	searchers := make([]trc.Searcher, len(cfg.uris))
	for i, uri := range cfg.uris {
		searchers[i] = trchttp.NewClient(client, uri)
	}

	res := searchAll(ctx, searchers, req)

	cfg.log.Debugf("response: sources: %d (%s)", len(res.Sources), strings.Join(res.Sources, " "))
	cfg.log.Debugf("response: total: %d", res.TotalCount)
	cfg.log.Debugf("response: matched: %d", res.MatchCount)
	cfg.log.Debugf("response: returned: %d", len(res.Traces))
	cfg.log.Debugf("response: users: %d", len(res.Users))
	cfg.log.Debugf("response: duration: %s", res.Duration)

	for _, problem := range res.Problems {
		cfg.log.Warnf("problem: %s", problem)
	}

	if !cfg.includeRequest {
		res.Request = nil
	}

	if err := cfg.newEncoder(cfg.stdout)(res); err != nil {
		return fmt.Errorf("write response: %w", err)
	}

	return nil
}

// searchAll runs the request against every searcher, and merges the results.
// Errors from individual searchers are reported as problems.
func searchAll(ctx context.Context, searchers []trc.Searcher, req *trc.SearchRequest) *trc.SearchResponse {
	begin := time.Now()

	type result struct {
		res *trc.SearchResponse
		err error
	}
	results := make(chan result, len(searchers))
	for _, s := range searchers {
		go func(s trc.Searcher) {
			res, err := s.Search(ctx, req)
			results <- result{res, err}
		}(s)
	}

	merged := &trc.SearchResponse{Request: req, Users: map[string]int{}}
	for range searchers {
		r := <-results
		if r.err != nil {
			merged.Problems = append(merged.Problems, r.err.Error())
			continue
		}
		merged.Sources = append(merged.Sources, r.res.Sources...)
		merged.TotalCount += r.res.TotalCount
		merged.MatchCount += r.res.MatchCount
		merged.Traces = append(merged.Traces, r.res.Traces...)
		merged.Problems = append(merged.Problems, r.res.Problems...)
		for user, n := range r.res.Users {
			merged.Users[user] += n
		}
	}

	sort.Strings(merged.Sources)
	sort.Slice(merged.Traces, func(i, j int) bool {
		return merged.Traces[i].Started().After(merged.Traces[j].Started())
	})
	if limit := req.Limit; limit > 0 && len(merged.Traces) > limit {
		merged.Traces = merged.Traces[:limit]
	}
	merged.Duration = time.Since(begin)

	return merged
}
