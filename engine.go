package authcore

import (
	"context"
	"log"
	"time"

	"github.com/insano70/bcos-sub014/csrf"
	"github.com/insano70/bcos-sub014/internal/audit"
	"github.com/insano70/bcos-sub014/internal/flows"
	"github.com/insano70/bcos-sub014/internal/rate"
	"github.com/insano70/bcos-sub014/internal/secmon"
	"github.com/insano70/bcos-sub014/internal/stores"
	"github.com/insano70/bcos-sub014/jwt"
	"github.com/insano70/bcos-sub014/store"
	"github.com/insano70/bcos-sub014/store/sqlstore"
)

// Engine composes the five session-security components behind one façade:
// token pair lifecycle, progressive lockout, concurrent session limiting,
// stateless CSRF validation, and MFA onboarding grace. Build one through
// NewBuilder; the zero value is not usable.
//
// All methods are safe for concurrent use. Cross-worker correctness comes
// from store transactions, never from in-process locking.
type Engine struct {
	config     Config
	flows      flows.Service
	jwtManager *jwt.Manager
	csrf       *csrf.Validator
	blacklist  *stores.BlacklistStore
	limiter    *rate.Limiter
	monitor    *secmon.Monitor
	audit      *audit.Dispatcher
	metrics    *Metrics
	security   store.SecurityStore
	directory  UserDirectory
	ownedStore *sqlstore.Store
	clock      func() time.Time
}

// Close flushes the audit pipeline and releases any store the builder opened.
// Redis clients and stores supplied by the caller stay open.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.ownedStore != nil {
		return e.ownedStore.Close()
	}
	return nil
}

// AuditDropped reports how many audit events drop-if-full backpressure
// discarded since construction.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of every counter. Empty when
// metrics are disabled.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Health pings both backends and reports per-backend reachability with the
// combined probe latency.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if err := e.ready(); err != nil {
		return HealthStatus{}
	}
	return e.flows.Health(ctx)
}

// RotateSigningKey swaps the active access-token signing key. Tokens signed
// under the previous key keep verifying until they expire. HS256 only.
func (e *Engine) RotateSigningKey(keyID string, secret []byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.jwtManager.Rotate(keyID, secret)
}

// WatchSigningKeyFile watches a TOML key file and rotates the signing key on
// change. It returns after the watcher is installed; watching stops when ctx
// ends.
func (e *Engine) WatchSigningKeyFile(ctx context.Context, path string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return jwt.WatchKeyFile(ctx, e.jwtManager, path)
}

func (e *Engine) ready() error {
	if e == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) now() time.Time {
	return e.clock()
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

func (e *Engine) metricAdd(id MetricID, n int) {
	if n > 0 {
		e.metrics.Add(id, uint64(n))
	}
}

// recordRejection feeds the security monitor and counts a threshold crossing.
func (e *Engine) recordRejection(ctx context.Context, kind, ip, userAgent, severity string) {
	if e.monitor == nil {
		return
	}
	if e.monitor.RecordRejection(ctx, kind, ip, userAgent, severity, e.now()) {
		e.metricInc(MetricSecurityEscalation)
	}
}

// markSuspicious arms the account's suspicious-activity flag, best effort.
func (e *Engine) markSuspicious(ctx context.Context, userID string) {
	if e.security == nil || userID == "" {
		return
	}
	if err := e.security.MarkSuspicious(ctx, userID, e.now()); err != nil {
		log.Print("authcore: mark suspicious failed: ", err)
	}
}

func flowDevice(device DeviceInfo) flows.Device {
	return flows.Device{
		IPAddress:   device.IPAddress,
		UserAgent:   device.UserAgent,
		Fingerprint: device.Fingerprint,
		DeviceName:  device.DeviceName,
	}
}

// sourceIP prefers the explicitly observed device address over the context
// attachment.
func sourceIP(ctx context.Context, device DeviceInfo) string {
	if device.IPAddress != "" {
		return device.IPAddress
	}
	return clientIPFromContext(ctx)
}

func sourceUserAgent(ctx context.Context, device DeviceInfo) string {
	if device.UserAgent != "" {
		return device.UserAgent
	}
	return userAgentFromContext(ctx)
}
