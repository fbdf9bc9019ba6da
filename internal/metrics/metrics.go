// Package metrics keeps lightweight in-process counters for the stats
// endpoint: message volume, unique users and a rolling response-time average.
package metrics

import (
	"sync"
	"time"

	"github.com/johnlen7/teacher-sarah/internal/domain"
)

const responseTimeWindow = 100

type Stats struct {
	UptimeHours       float64 `json:"uptime_hours"`
	TotalMessages     int64   `json:"total_messages"`
	TotalVoice        int64   `json:"total_voice"`
	TotalErrors       int64   `json:"total_errors"`
	UniqueUsers       int     `json:"unique_users"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
	ErrorRatePercent  float64 `json:"error_rate_percent"`
}

type Collector struct {
	mu            sync.Mutex
	startedAt     time.Time
	totalMessages int64
	totalVoice    int64
	totalErrors   int64
	users         map[int64]struct{}
	responseTimes []time.Duration
}

func NewCollector() *Collector {
	return &Collector{
		startedAt: time.Now(),
		users:     make(map[int64]struct{}),
	}
}

// TrackMessage records one processed message and its handling time.
func (c *Collector) TrackMessage(userID int64, kind domain.EventKind, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalMessages++
	if kind == domain.EventKindVoice {
		c.totalVoice++
	}
	c.users[userID] = struct{}{}
	c.responseTimes = append(c.responseTimes, elapsed)
	if len(c.responseTimes) > responseTimeWindow {
		c.responseTimes = c.responseTimes[len(c.responseTimes)-responseTimeWindow:]
	}
}

// TrackError records one failed message.
func (c *Collector) TrackError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalErrors++
}

func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var avg float64
	if len(c.responseTimes) > 0 {
		var total time.Duration
		for _, elapsed := range c.responseTimes {
			total += elapsed
		}
		avg = float64(total.Milliseconds()) / float64(len(c.responseTimes))
	}

	errorRate := 0.0
	if c.totalMessages > 0 {
		errorRate = float64(c.totalErrors) / float64(c.totalMessages) * 100
	}

	return Stats{
		UptimeHours:       time.Since(c.startedAt).Hours(),
		TotalMessages:     c.totalMessages,
		TotalVoice:        c.totalVoice,
		TotalErrors:       c.totalErrors,
		UniqueUsers:       len(c.users),
		AvgResponseTimeMS: avg,
		ErrorRatePercent:  errorRate,
	}
}
