package authcore

import (
	"context"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/insano70/bcos-sub014/csrf"
	"github.com/insano70/bcos-sub014/internal"
	"github.com/insano70/bcos-sub014/internal/audit"
	"github.com/insano70/bcos-sub014/internal/flows"
	"github.com/insano70/bcos-sub014/internal/rate"
	"github.com/insano70/bcos-sub014/internal/secmon"
	"github.com/insano70/bcos-sub014/internal/stores"
	"github.com/insano70/bcos-sub014/jwt"
	"github.com/insano70/bcos-sub014/store"
	"github.com/insano70/bcos-sub014/store/sqlstore"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it; a Builder is not safe for concurrent use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	dialect sqlstore.Dialect
	dsn     string

	sqlStore  *sqlstore.Store
	tokens    store.TokenStore
	sessions  store.SessionStore
	security  store.SecurityStore
	pingStore func(ctx context.Context) error

	directory UserDirectory
	sink      AuditSink
	clock     func() time.Time

	built bool
}

// NewBuilder returns a Builder seeded with DefaultConfig.
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the full configuration. The value is cloned, so later
// mutations of cfg do not reach the Builder.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the cache client used for the blacklist, refresh
// throttle, and security monitor counters. The caller keeps ownership; Close
// never touches it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithDatabase tells Build to open the relational store itself. The engine
// owns the resulting handle, ensures the schema on build, and closes it on
// Close. Mutually exclusive with WithSQLStore and WithStores.
func (b *Builder) WithDatabase(dialect sqlstore.Dialect, dsn string) *Builder {
	b.dialect = dialect
	b.dsn = dsn
	return b
}

// WithSQLStore wires all three persistence concerns to an already opened
// sqlstore.Store. The caller keeps ownership of the handle.
func (b *Builder) WithSQLStore(s *sqlstore.Store) *Builder {
	b.sqlStore = s
	return b
}

// WithStores wires custom persistence implementations, for deployments that
// bring their own storage layer.
func (b *Builder) WithStores(tokens store.TokenStore, sessions store.SessionStore, security store.SecurityStore) *Builder {
	b.tokens = tokens
	b.sessions = sessions
	b.security = security
	return b
}

// WithStorePing supplies the liveness probe Health uses for the relational
// backend. WithDatabase and WithSQLStore set it automatically.
func (b *Builder) WithStorePing(ping func(ctx context.Context) error) *Builder {
	b.pingStore = ping
	return b
}

// WithUserDirectory supplies the read-only identity lookup. Required: the
// lockout tracker resolves e-mails through it and refresh re-resolves the
// e-mail claim.
func (b *Builder) WithUserDirectory(d UserDirectory) *Builder {
	b.directory = d
	return b
}

// WithAuditSink attaches the audit delivery target. Events flow only when
// Audit.Enabled is also set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithClock overrides the time source for every component, keeping token
// expiry, lock windows, and CSRF windows on one clock in tests.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// WithMetricsEnabled toggles the counter set without replacing the whole
// configuration.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles validation latency buckets.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires every component, and returns the
// Engine. A Builder builds at most once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	tokens, sessions, security, pingStore, owned, err := b.resolveStores()
	if err != nil {
		return nil, err
	}

	directory := b.directory
	if directory == nil {
		return nil, errors.New("user directory required")
	}

	jwtManager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.Tokens.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.Tokens.SigningMethod),
		Secret:        cloneBytes(cfg.Tokens.PrivateKey),
		PublicKey:     cloneBytes(cfg.Tokens.PublicKey),
		Issuer:        cfg.Tokens.Issuer,
		Audience:      cfg.Tokens.Audience,
		Leeway:        cfg.Tokens.Leeway,
		KeyID:         cfg.Tokens.KeyID,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	csrfValidator, err := csrf.NewValidator(csrf.Config{
		Secret:        cloneBytes(cfg.CSRF.Secret),
		AnonWindow:    cfg.CSRF.AnonWindow,
		AllowPrevious: !cfg.Security.ProductionMode,
		AuthMaxAge:    cfg.CSRF.AuthMaxAge,
		Now:           clock,
	})
	if err != nil {
		return nil, err
	}

	blacklist := stores.NewBlacklistStore(b.redis, cfg.Security.KeyPrefix)
	limiter := rate.New(b.redis, cfg.Security.KeyPrefix)
	dispatcher := audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.sink)

	var emit func(ctx context.Context, event audit.Event)
	if dispatcher != nil {
		emit = dispatcher.Emit
	}
	monitor := secmon.New(limiter, secmon.Config{
		Window:    cfg.Security.MonitorWindow,
		Threshold: cfg.Security.MonitorThreshold,
	}, emit)

	newSessionID := func() (string, error) {
		sid, err := internal.NewSessionID()
		if err != nil {
			return "", err
		}
		return sid.String(), nil
	}
	hashSecret := func(secret [32]byte) string {
		sum := internal.HashRefreshSecret(secret)
		return hex.EncodeToString(sum[:])
	}
	lookupEmail := func(ctx context.Context, userID string) string {
		user, ok, err := directory.LookupByID(ctx, userID)
		if err != nil || !ok {
			return ""
		}
		return user.Email
	}
	lookupUser := func(ctx context.Context, email string) (string, bool, error) {
		user, ok, err := directory.LookupByEmail(ctx, email)
		if err != nil {
			return "", false, err
		}
		return user.UserID, ok, nil
	}

	var throttle func(ctx context.Context, sessionID string) error
	if cfg.Security.EnableRefreshThrottle {
		maxAttempts := int64(cfg.Security.MaxRefreshAttempts)
		cooldown := cfg.Security.RefreshCooldown
		throttle = func(ctx context.Context, sessionID string) error {
			count, err := limiter.Increment(ctx, "refresh", sessionID, cooldown, clock())
			if err != nil {
				// Counter outages degrade to log-only; refresh proceeds
				// unthrottled.
				log.Print("authcore: refresh throttle counter unavailable: ", err)
				return nil
			}
			if count > maxAttempts {
				return ErrRefreshRateLimited
			}
			return nil
		}
	}

	defaults := store.SecurityDefaults{
		MaxConcurrentSessions:   cfg.Sessions.MaxConcurrentSessions,
		RequireFreshAuthMinutes: cfg.Sessions.RequireFreshAuthMinutes,
	}
	modeCfg := flows.ModeResolverConfig{
		ModeInherit: int(ModeInherit),
		ModeFast:    int(ModeFast),
		ModeStrict:  int(ModeStrict),
	}
	engineMode := int(cfg.Security.ValidationMode)

	service := flows.New(flows.Deps{
		Issue: flows.IssueDeps{
			Now:              clock,
			NewSessionID:     newSessionID,
			NewID:            uuid.NewString,
			NewRefreshSecret: internal.NewRefreshSecret,
			HashSecret:       hashSecret,
			EncodeRefresh:    internal.EncodeRefreshToken,
			SignAccess:       jwtManager.CreateAccess,
			HashFingerprint:  internal.FingerprintHex,
			RefreshTTL:       cfg.Tokens.RefreshTTL,
			RememberMeTTL:    cfg.Tokens.RememberMeTTL,
			Defaults:         defaults,
			TokenStore:       tokens,
			SessionStore:     sessions,
			SecurityStore:    security,
			Warn:             log.Printf,
		},
		Refresh: flows.RefreshDeps{
			Now:              clock,
			DecodeRefresh:    internal.DecodeRefreshToken,
			NewRefreshSecret: internal.NewRefreshSecret,
			HashSecret:       hashSecret,
			EncodeRefresh:    internal.EncodeRefreshToken,
			SignAccess:       jwtManager.CreateAccess,
			HashFingerprint:  internal.FingerprintHex,
			LookupEmail:      lookupEmail,
			NewID:            uuid.NewString,
			Throttle:         throttle,
			TokenStore:       tokens,
		},
		Revoke: flows.RevokeDeps{
			Now:           clock,
			DecodeRefresh: internal.DecodeRefreshToken,
			HashSecret:    hashSecret,
			ParseAccess:   jwtManager.ParseAccess,
			TokenStore:    tokens,
			SessionStore:  sessions,
			Blacklist:     blacklist,
		},
		Validate: flows.ValidateDeps{
			ParseAccess: jwtManager.ParseAccess,
			ResolveMode: func(callMode int) (int, bool) {
				return flows.ResolveMode(callMode, engineMode, modeCfg)
			},
			ModeStrict:        int(ModeStrict),
			BlacklistContains: blacklist.Contains,
		},
		FreshAuth: flows.FreshAuthDeps{
			Now:            clock,
			DefaultMinutes: cfg.Sessions.RequireFreshAuthMinutes,
			SecurityStore:  security,
		},
		Lockout: flows.LockoutDeps{
			Now:        clock,
			LookupUser: lookupUser,
			Tiers: flows.LockTiers{
				First:   cfg.Lockout.FirstLock,
				Second:  cfg.Lockout.SecondLock,
				Ceiling: cfg.Lockout.MaxLock,
			},
			Defaults:      defaults,
			SecurityStore: security,
		},
		Sessions: flows.SessionsDeps{
			Now:          clock,
			SessionStore: sessions,
		},
		MFA: flows.MFADeps{
			Now:           clock,
			Allowance:     cfg.MFA.SkipAllowance,
			Defaults:      defaults,
			SecurityStore: security,
		},
		Sweep: flows.SweepDeps{
			Now:           clock,
			Grace:         cfg.Tokens.SweepGrace,
			TokenStore:    tokens,
			Blacklist:     blacklist,
			SecurityStore: security,
			Warn:          log.Printf,
		},
		Health: flows.HealthDeps{
			PingStore: pingStore,
			PingCache: blacklist.Ping,
		},
	})

	b.built = true

	return &Engine{
		config:     cfg,
		flows:      service,
		jwtManager: jwtManager,
		csrf:       csrfValidator,
		blacklist:  blacklist,
		limiter:    limiter,
		monitor:    monitor,
		audit:      dispatcher,
		metrics:    NewMetrics(cfg.Metrics),
		security:   security,
		directory:  directory,
		ownedStore: owned,
		clock:      clock,
	}, nil
}

// resolveStores picks exactly one persistence source among WithDatabase,
// WithSQLStore, and WithStores.
func (b *Builder) resolveStores() (store.TokenStore, store.SessionStore, store.SecurityStore, func(ctx context.Context) error, *sqlstore.Store, error) {
	sources := 0
	if b.dsn != "" {
		sources++
	}
	if b.sqlStore != nil {
		sources++
	}
	if b.tokens != nil || b.sessions != nil || b.security != nil {
		sources++
	}
	if sources == 0 {
		return nil, nil, nil, nil, nil, errors.New("persistent store required")
	}
	if sources > 1 {
		return nil, nil, nil, nil, nil, errors.New("conflicting store configuration")
	}

	switch {
	case b.dsn != "":
		s, err := sqlstore.Open(b.dialect, b.dsn)
		if err != nil {
			return nil, nil, nil, nil, nil, err
		}
		if err := s.EnsureSchema(context.Background()); err != nil {
			_ = s.Close()
			return nil, nil, nil, nil, nil, err
		}
		return s.Tokens(), s.Sessions(), s.Security(), s.Ping, s, nil
	case b.sqlStore != nil:
		s := b.sqlStore
		ping := b.pingStore
		if ping == nil {
			ping = s.Ping
		}
		return s.Tokens(), s.Sessions(), s.Security(), ping, nil, nil
	default:
		if b.tokens == nil || b.sessions == nil || b.security == nil {
			return nil, nil, nil, nil, nil, errors.New("token, session, and security stores are all required")
		}
		return b.tokens, b.sessions, b.security, b.pingStore, nil, nil
	}
}
