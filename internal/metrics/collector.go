// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpGeneration   = "generation"
	OpNameCheck    = "name_check"
	OpStoragePut   = "storage_put"
	OpStorageGet   = "storage_get"
	OpProcessCycle = "process_cycle"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Failures  int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (only for LLM operations)
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count           int64    `json:"count"`
	Failures        int64    `json:"failures"`
	TotalTimeMs     int64    `json:"totalTimeMs"`
	AvgTimeMs       float64  `json:"avgTimeMs"`
	MinTimeMs       int64    `json:"minTimeMs"`
	MaxTimeMs       int64    `json:"maxTimeMs"`
	InputTokens     *int64   `json:"inputTokens,omitempty"`
	OutputTokens    *int64   `json:"outputTokens,omitempty"`
	AvgOutputTokens *float64 `json:"avgOutputTokens,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64                       `json:"uptimeSeconds"`
	Operations    map[string]*OperationSnapshot `json:"operations"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record(op, duration)
}

// RecordFailure records a failed operation with its elapsed time.
func (c *Collector) RecordFailure(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.record(op, duration)
	m.Failures++
}

// RecordLLMUsage records timing and token usage for an LLM operation.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.record(op, duration)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// record updates count and timing. Caller must hold write lock.
func (c *Collector) record(op string, duration time.Duration) *OperationMetrics {
	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
	return m
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(c.startTime).Seconds(),
		Operations:    make(map[string]*OperationSnapshot, len(c.ops)),
	}

	for op, m := range c.ops {
		if m.Count == 0 {
			continue
		}

		s := &OperationSnapshot{
			Count:       m.Count,
			Failures:    m.Failures,
			TotalTimeMs: m.TotalTime.Milliseconds(),
			AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
			MinTimeMs:   m.MinTime.Milliseconds(),
			MaxTimeMs:   m.MaxTime.Milliseconds(),
		}

		if m.TotalInputTokens > 0 || m.TotalOutputTokens > 0 {
			in := m.TotalInputTokens
			out := m.TotalOutputTokens
			avgOut := float64(out) / float64(m.Count)
			s.InputTokens = &in
			s.OutputTokens = &out
			s.AvgOutputTokens = &avgOut
		}

		snap.Operations[op] = s
	}
	return snap
}
