package secmon

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/insano70/bcos-sub014/internal/audit"
	"github.com/insano70/bcos-sub014/internal/rate"
)

// Config tunes abuse-pattern detection.
type Config struct {
	// Window is the fixed counting window per (kind, source IP).
	Window time.Duration
	// Threshold is the rejection count within one window that triggers a
	// critical escalation event. Zero disables escalation.
	Threshold int64
}

// Monitor records credential rejections keyed by source IP so bursts from one
// address become visible as an abuse pattern. It never blocks or fails the
// operation that produced the rejection: counter errors degrade to a log line.
type Monitor struct {
	limiter *rate.Limiter
	cfg     Config
	emit    func(ctx context.Context, event audit.Event)
}

// New creates a Monitor. emit may be nil when no audit pipeline is attached.
func New(limiter *rate.Limiter, cfg Config, emit func(ctx context.Context, event audit.Event)) *Monitor {
	return &Monitor{
		limiter: limiter,
		cfg:     cfg,
		emit:    emit,
	}
}

// RecordRejection notes one rejected credential of the given kind from
// sourceIP and reports whether this rejection crossed the escalation
// threshold. The count comparison is exact, so each window escalates at most
// once regardless of how many rejections follow.
func (m *Monitor) RecordRejection(ctx context.Context, kind, sourceIP, userAgent, severity string, now time.Time) bool {
	if m == nil {
		return false
	}

	var count int64
	if m.limiter != nil && sourceIP != "" {
		var err error
		count, err = m.limiter.Increment(ctx, "sec:"+kind, sourceIP, m.cfg.Window, now)
		if err != nil {
			log.Print("authcore: security monitor counter unavailable: ", err)
			count = 0
		}
	}

	m.send(ctx, audit.Event{
		Timestamp: now,
		EventType: "security.rejection",
		Severity:  severity,
		IP:        sourceIP,
		UserAgent: userAgent,
		Success:   false,
		Metadata: map[string]string{
			"kind":         kind,
			"window_count": strconv.FormatInt(count, 10),
		},
	})

	escalated := m.cfg.Threshold > 0 && count == m.cfg.Threshold
	if escalated {
		m.send(ctx, audit.Event{
			Timestamp: now,
			EventType: "security.abuse_threshold",
			Severity:  audit.SeverityCritical,
			IP:        sourceIP,
			UserAgent: userAgent,
			Success:   false,
			Metadata: map[string]string{
				"kind":      kind,
				"threshold": strconv.FormatInt(m.cfg.Threshold, 10),
			},
		})
	}
	return escalated
}

// WindowCount returns the current rejection count for (kind, sourceIP),
// reading zero when the counter backend is unreachable.
func (m *Monitor) WindowCount(ctx context.Context, kind, sourceIP string, now time.Time) int64 {
	if m == nil || m.limiter == nil || sourceIP == "" {
		return 0
	}
	count, err := m.limiter.Check(ctx, "sec:"+kind, sourceIP, m.cfg.Window, now)
	if err != nil {
		log.Print("authcore: security monitor counter unavailable: ", err)
		return 0
	}
	return count
}

func (m *Monitor) send(ctx context.Context, event audit.Event) {
	if m.emit != nil {
		m.emit(ctx, event)
	}
}
