// Command authsweep runs the expired-state sweeps against a deployment's
// stores on a schedule. It shares the service's key file and store
// configuration, so retention behavior matches what the engine itself
// would do inline.
//
// The configuration file is TOML:
//
//	[database]
//	driver = "postgres"            # or "sqlite"
//	dsn    = "postgres://authcore:...@db/authcore?sslmode=verify-full"
//
//	[redis]
//	addr = "127.0.0.1:6379"
//
//	[signing]
//	key_file = "/etc/authcore/signing.toml"
//
//	[csrf]
//	secret = "base64 of at least 32 bytes"
//
//	[sweep]
//	token_interval   = "15m"
//	lockout_interval = "15m"
package main

import (
	"context"
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	authcore "github.com/insano70/bcos-sub014"
	"github.com/insano70/bcos-sub014/jwt"
	"github.com/insano70/bcos-sub014/store/sqlstore"
)

const defaultSweepInterval = 15 * time.Minute

// sweepTimeout bounds one sweep pass so a hung store cannot stall the
// scheduler loop.
const sweepTimeout = time.Minute

type fileConfig struct {
	Database databaseConfig `toml:"database"`
	Redis    redisConfig    `toml:"redis"`
	Signing  signingConfig  `toml:"signing"`
	CSRF     csrfConfig     `toml:"csrf"`
	Sweep    sweepConfig    `toml:"sweep"`
}

type databaseConfig struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type redisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type signingConfig struct {
	KeyFile string `toml:"key_file"`
}

type csrfConfig struct {
	Secret string `toml:"secret"`
}

type sweepConfig struct {
	TokenInterval   duration `toml:"token_interval"`
	LockoutInterval duration `toml:"lockout_interval"`
}

// duration makes time.Duration strings like "15m" decodable from TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func main() {
	var (
		configPath = flag.String("config", "authsweep.toml", "path to the sweep configuration file")
		once       = flag.Bool("once", false, "run both sweeps once and exit, for cron-style scheduling")
	)
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authsweep: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, client, err := buildEngine(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "authsweep: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = engine.Close()
		_ = client.Close()
	}()

	log.Printf("authsweep: connected, driver=%s redis=%s", cfg.Database.Driver, cfg.Redis.Addr)

	if *once {
		sweepTokens(ctx, engine)
		sweepLockouts(ctx, engine)
		return
	}

	run(ctx, engine, cfg.Sweep.TokenInterval.Duration, cfg.Sweep.LockoutInterval.Duration)
	log.Print("authsweep: shutting down")
}

func loadConfig(path string) (*fileConfig, error) {
	var cfg fileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	switch cfg.Database.Driver {
	case "postgres", "sqlite":
	case "":
		return nil, errors.New("database driver is required")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return nil, errors.New("database dsn is required")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if cfg.Signing.KeyFile == "" {
		return nil, errors.New("signing key_file is required")
	}
	if cfg.CSRF.Secret == "" {
		return nil, errors.New("csrf secret is required")
	}

	if cfg.Sweep.TokenInterval.Duration <= 0 {
		cfg.Sweep.TokenInterval.Duration = defaultSweepInterval
	}
	if cfg.Sweep.LockoutInterval.Duration <= 0 {
		cfg.Sweep.LockoutInterval.Duration = defaultSweepInterval
	}

	return &cfg, nil
}

func buildEngine(ctx context.Context, cfg *fileConfig) (*authcore.Engine, redis.UniversalClient, error) {
	keyID, secret, err := jwt.LoadKeyFile(cfg.Signing.KeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("signing key: %w", err)
	}
	csrfSecret, err := base64.StdEncoding.DecodeString(cfg.CSRF.Secret)
	if err != nil {
		return nil, nil, fmt.Errorf("decode csrf secret: %w", err)
	}

	dialect := sqlstore.DialectSQLite
	if cfg.Database.Driver == "postgres" {
		dialect = sqlstore.DialectPostgres
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	coreCfg := authcore.DefaultConfig()
	coreCfg.Tokens.PrivateKey = secret
	coreCfg.Tokens.KeyID = keyID
	coreCfg.CSRF.Secret = csrfSecret

	engine, err := authcore.NewBuilder().
		WithConfig(coreCfg).
		WithDatabase(dialect, cfg.Database.DSN).
		WithRedis(client).
		WithUserDirectory(sweepDirectory{}).
		Build()
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return engine, client, nil
}

func run(ctx context.Context, engine *authcore.Engine, tokenEvery, lockoutEvery time.Duration) {
	tokens := time.NewTicker(tokenEvery)
	defer tokens.Stop()
	lockouts := time.NewTicker(lockoutEvery)
	defer lockouts.Stop()

	// One pass up front, so a restart never waits a full interval to catch up.
	sweepTokens(ctx, engine)
	sweepLockouts(ctx, engine)

	for {
		select {
		case <-ctx.Done():
			return
		case <-tokens.C:
			sweepTokens(ctx, engine)
		case <-lockouts.C:
			sweepLockouts(ctx, engine)
		}
	}
}

func sweepTokens(ctx context.Context, engine *authcore.Engine) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	res := engine.CleanupExpiredTokens(ctx)
	log.Printf("token sweep: refresh=%d blacklist=%d success=%t", res.RefreshTokens, res.BlacklistEntries, res.Success)
}

func sweepLockouts(ctx context.Context, engine *authcore.Engine) {
	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()
	res := engine.CleanupExpiredLockouts(ctx)
	log.Printf("lockout sweep: cleared=%d success=%t", res.Cleared, res.Success)
}

// sweepDirectory satisfies the engine's directory requirement. Sweeps never
// resolve identities, so every lookup reports not found.
type sweepDirectory struct{}

func (sweepDirectory) LookupByEmail(context.Context, string) (authcore.DirectoryUser, bool, error) {
	return authcore.DirectoryUser{}, false, nil
}

func (sweepDirectory) LookupByID(context.Context, string) (authcore.DirectoryUser, bool, error) {
	return authcore.DirectoryUser{}, false, nil
}
