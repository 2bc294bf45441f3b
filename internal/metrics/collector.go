// Package metrics keeps in-memory call statistics for the chat pipeline.
// Nothing is persisted; counters start over with the process.
package metrics

import (
	"slices"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpChat         = "chat"
	OpEmbedding    = "embedding"
	OpLLMGenerate  = "llm_generate"
	OpVectorSearch = "vector_search"
	OpVectorUpsert = "vector_upsert"
)

// knownOps fixes the order of operations in a Snapshot.
var knownOps = []string{OpChat, OpEmbedding, OpLLMGenerate, OpVectorSearch, OpVectorUpsert}

// opStats accumulates one operation. Guarded by Collector.mu.
type opStats struct {
	calls    int64
	failures int64
	total    time.Duration
	fastest  time.Duration
	slowest  time.Duration

	tokensIn  int64
	tokensOut int64
	hasTokens bool
}

func (s *opStats) observe(d time.Duration) {
	if s.calls == 0 || d < s.fastest {
		s.fastest = d
	}
	if d > s.slowest {
		s.slowest = d
	}
	s.calls++
	s.total += d
}

// OperationSnapshot is the computed view of one operation.
type OperationSnapshot struct {
	Operation   string
	Count       int64
	Errors      int64
	TotalTimeMs int64
	AvgTimeMs   float64
	MinTimeMs   int64
	MaxTimeMs   int64

	// Nil unless the operation reported token usage.
	TotalInputTokens  *int64
	TotalOutputTokens *int64
}

// Snapshot is the state of a Collector at one point in time.
type Snapshot struct {
	UptimeSeconds float64
	// Operations that ran at least once, known operations first.
	Operations []OperationSnapshot
}

// Op returns the snapshot of a single operation, or nil if it has not run.
func (s Snapshot) Op(name string) *OperationSnapshot {
	for i := range s.Operations {
		if s.Operations[i].Operation == name {
			return &s.Operations[i]
		}
	}
	return nil
}

// Collector aggregates call statistics. It is safe for concurrent use, and
// a nil *Collector silently drops every record.
type Collector struct {
	mu      sync.Mutex
	started time.Time
	now     func() time.Time
	ops     map[string]*opStats
}

// NewCollector creates an empty collector; uptime counts from now.
func NewCollector() *Collector {
	return &Collector{
		started: time.Now(),
		now:     time.Now,
		ops:     make(map[string]*opStats),
	}
}

// stats returns the accumulator for op. Caller must hold c.mu.
func (c *Collector) stats(op string) *opStats {
	s, ok := c.ops[op]
	if !ok {
		s = &opStats{}
		c.ops[op] = s
	}
	return s
}

// Since records the time elapsed since start for op. Intended for defer:
//
//	defer c.Since(metrics.OpVectorSearch, time.Now())
func (c *Collector) Since(op string, start time.Time) {
	c.RecordTiming(op, time.Since(start))
}

// RecordTiming records one successful call.
func (c *Collector) RecordTiming(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats(op).observe(d)
}

// RecordFailure records one failed call. Its duration counts toward timing.
func (c *Collector) RecordFailure(op string, d time.Duration) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats(op)
	s.observe(d)
	s.failures++
}

// RecordLLMUsage records one successful model call with its token usage.
func (c *Collector) RecordLLMUsage(op string, d time.Duration, inputTokens, outputTokens int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats(op)
	s.observe(d)
	s.tokensIn += inputTokens
	s.tokensOut += outputTokens
	s.hasTokens = s.hasTokens || inputTokens > 0 || outputTokens > 0
}

// Snapshot returns the current statistics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.ops))
	for name := range c.ops {
		if !slices.Contains(knownOps, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	names = append(slices.Clone(knownOps), names...)

	snap := Snapshot{UptimeSeconds: c.now().Sub(c.started).Seconds()}
	for _, name := range names {
		s, ok := c.ops[name]
		if !ok || s.calls == 0 {
			continue
		}
		snap.Operations = append(snap.Operations, s.snapshot(name))
	}
	return snap
}

func (s *opStats) snapshot(name string) OperationSnapshot {
	out := OperationSnapshot{
		Operation:   name,
		Count:       s.calls,
		Errors:      s.failures,
		TotalTimeMs: s.total.Milliseconds(),
		AvgTimeMs:   float64(s.total.Microseconds()) / 1000 / float64(s.calls),
		MinTimeMs:   s.fastest.Milliseconds(),
		MaxTimeMs:   s.slowest.Milliseconds(),
	}
	if s.hasTokens {
		in, out2 := s.tokensIn, s.tokensOut
		out.TotalInputTokens = &in
		out.TotalOutputTokens = &out2
	}
	return out
}
