package trc

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sessiontrace/trc/internal/trcpubsub"
	"github.com/sessiontrace/trc/internal/trcringbuf"
)

// Collector maintains recent traces in per-category ring buffers, and serves
// search and stream requests over them.
type Collector struct {
	source     string
	decorators []DecoratorFunc
	broker     *trcpubsub.Broker[Trace]

	mtx        sync.Mutex
	size       int
	categories map[string]*trcringbuf.RingBuffer[Trace]
}

var (
	_ Searcher = (*Collector)(nil)
	_ Streamer = (*Collector)(nil)
)

// CollectorConfig captures the configuration parameters for a collector.
type CollectorConfig struct {
	// Source is used as the source for all traces created by the collector.
	// If not provided, the DefaultSource is used.
	Source string

	// CategorySize is the maximum number of traces retained per category.
	// If not provided, the default value of 1000 is used.
	CategorySize int

	// Decorators are applied to every trace created by the collector.
	Decorators []DecoratorFunc
}

// DefaultSource is the source used by collectors when none is provided.
var DefaultSource = "local"

const collectorCategorySizeDefault = 1000

// NewCollector returns a new collector with the provided config.
func NewCollector(cfg CollectorConfig) *Collector {
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}
	if cfg.CategorySize <= 0 {
		cfg.CategorySize = collectorCategorySizeDefault
	}

	return &Collector{
		source:     cfg.Source,
		decorators: cfg.Decorators,
		broker:     trcpubsub.NewBroker(func(tr Trace) Trace { return NewStaticTrace(tr, -1) }),
		size:       cfg.CategorySize,
		categories: map[string]*trcringbuf.RingBuffer[Trace]{},
	}
}

// NewDefaultCollector returns a new collector with the default config.
func NewDefaultCollector() *Collector {
	return NewCollector(CollectorConfig{})
}

// NewTrace starts a new trace in the given category, and injects it into the
// context. The trace is retained in the collector, and is published to any
// active streams as it changes.
func (c *Collector) NewTrace(ctx context.Context, category string) (context.Context, Trace) {
	decorators := append([]DecoratorFunc{PublishDecorator(c)}, c.decorators...)
	ctx, tr := New(ctx, c.source, category, decorators...)
	c.getOrCreateCategory(category).Add(tr)
	return ctx, tr
}

// Publish implements Publisher.
func (c *Collector) Publish(ctx context.Context, tr Trace) {
	c.broker.Publish(ctx, tr)
}

// SetCategorySize changes the maximum number of traces retained per category.
// Existing categories are resized, dropping their oldest traces if necessary.
func (c *Collector) SetCategorySize(n int) {
	if n <= 0 {
		return
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	c.size = n
	for _, rb := range c.categories {
		rb.Resize(n)
	}
}

func (c *Collector) getOrCreateCategory(category string) *trcringbuf.RingBuffer[Trace] {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	rb, ok := c.categories[category]
	if !ok {
		rb = trcringbuf.NewRingBuffer[Trace](c.size)
		c.categories[category] = rb
	}
	return rb
}

// Search the traces in the collector, returning the most recent traces which
// are allowed by the request filter, up to the request limit.
func (c *Collector) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	var (
		begin    = time.Now()
		tr       = Get(ctx)
		problems = req.Normalize()
	)

	var all Traces
	for _, rb := range c.getAllCategories() {
		all = append(all, rb.Snapshot()...)
	}
	sort.Sort(all)

	var (
		matched = Traces{}
		users   = map[string]int{}
	)
	for _, candidate := range all {
		if !req.Filter.Allow(candidate) {
			continue
		}
		if user := candidate.User(); user != "" {
			users[user]++
		}
		matched = append(matched, candidate)
	}

	selected := matched
	if len(selected) > req.Limit {
		selected = selected[:req.Limit]
	}

	traces := make([]*StaticTrace, len(selected))
	for i, candidate := range selected {
		traces[i] = NewStaticTrace(candidate, req.StackDepth)
	}

	res := &SearchResponse{
		Request:    req,
		Sources:    []string{c.source},
		TotalCount: len(all),
		MatchCount: len(matched),
		Traces:     traces,
		Users:      users,
		Duration:   time.Since(begin),
	}
	for _, problem := range problems {
		res.Problems = append(res.Problems, problem.Error())
	}

	tr.LazyTracef("%s: total %d, matched %d, returned %d", c.source, res.TotalCount, res.MatchCount, len(res.Traces))

	return res, nil
}

// Stream sends traces which satisfy the filter to the channel as they change.
// Traces are sent as static snapshots, without stacks. Stream blocks until the
// context is canceled, and returns stats about the stream.
func (c *Collector) Stream(ctx context.Context, f Filter, ch chan<- Trace) (StreamStats, error) {
	if errs := f.Normalize(); len(errs) > 0 {
		return StreamStats{}, fmt.Errorf("invalid filter: %v", errs)
	}
	return c.broker.Subscribe(ctx, f.Allow, ch)
}

// StreamStats returns the current stats of the active stream to ch.
func (c *Collector) StreamStats(ctx context.Context, ch chan<- Trace) (StreamStats, error) {
	return c.broker.Stats(ctx, ch)
}

func (c *Collector) getAllCategories() []*trcringbuf.RingBuffer[Trace] {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	res := make([]*trcringbuf.RingBuffer[Trace], 0, len(c.categories))
	for _, rb := range c.categories {
		res = append(res, rb)
	}
	return res
}
