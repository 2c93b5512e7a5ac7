// Command storebench hammers a full engine with concurrent validations and
// refresh rotations, and measures how cleanly rotation picks a single winner
// under deliberate contention.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	authcore "github.com/insano70/bcos-sub014"
	"github.com/insano70/bcos-sub014/store/sqlstore"
)

type chainState struct {
	userID  string
	refresh string
	access  string
	mu      sync.Mutex
}

func main() {
	var (
		chains       = flag.Int("chains", 5000, "number of refresh chains to seed")
		concurrency  = flag.Int("concurrency", 64, "number of concurrent workers")
		ops          = flag.Int("ops", 20000, "operations per phase (validate + rotate)")
		redisAddr    = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		driver       = flag.String("driver", "sqlite", "database driver: sqlite or postgres")
		dsn          = flag.String("db", ":memory:", "database dsn")
		mode         = flag.String("mode", "fast", "validation mode: fast or strict")
		contendRound = flag.Int("contend-rounds", 200, "rounds of same-token contention")
		contendWidth = flag.Int("contend-width", 8, "goroutines redeeming the same token per round")
	)
	flag.Parse()

	if *chains <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "chains, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	var validationMode authcore.ValidationMode
	switch *mode {
	case "fast":
		validationMode = authcore.ModeFast
	case "strict":
		validationMode = authcore.ModeStrict
	default:
		fmt.Fprintln(os.Stderr, "mode must be fast or strict")
		os.Exit(2)
	}

	dialect := sqlstore.DialectSQLite
	switch *driver {
	case "sqlite":
	case "postgres":
		dialect = sqlstore.DialectPostgres
	default:
		fmt.Fprintln(os.Stderr, "driver must be sqlite or postgres")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	engine, err := buildEngine(client, dialect, *dsn, validationMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build engine: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	device := authcore.DeviceInfo{
		IPAddress:   "127.0.0.1",
		UserAgent:   "storebench/1",
		Fingerprint: "bench-device",
	}

	states := make([]chainState, *chains)
	fmt.Printf("seeding %d chains...\n", *chains)
	startSeed := time.Now()
	for i := 0; i < *chains; i++ {
		userID := fmt.Sprintf("u-%d", i)
		pair, err := engine.CreateTokenPair(ctx, userID, userID+"@bench.local", device, false)
		if err != nil {
			fmt.Fprintf(os.Stderr, "seed failed at chain %d: %v\n", i, err)
			os.Exit(1)
		}
		states[i] = chainState{userID: userID, refresh: pair.RefreshToken, access: pair.AccessToken}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runValidatePhase(ctx, engine, validationMode, states, *ops, *concurrency)
	rotateStats := runRotatePhase(ctx, engine, device, states, *ops, *concurrency)
	winners := runContentionPhase(ctx, engine, device, states, *contendRound, *contendWidth)

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	printStats("rotate", rotateStats)
	printContention(winners, *contendRound, *contendWidth)
}

func buildEngine(client redis.UniversalClient, dialect sqlstore.Dialect, dsn string, mode authcore.ValidationMode) (*authcore.Engine, error) {
	cfg := authcore.DefaultConfig()
	cfg.Tokens.PrivateKey = []byte("storebench-storebench-storebench")
	cfg.Tokens.KeyID = "bench"
	cfg.CSRF.Secret = []byte("storebench-csrf-storebench-csrf!")
	cfg.Security.ValidationMode = mode
	// The harness rotates far faster than any real client; the per-session
	// throttle would dominate the numbers.
	cfg.Security.EnableRefreshThrottle = false

	return authcore.NewBuilder().
		WithConfig(cfg).
		WithDatabase(dialect, dsn).
		WithRedis(client).
		WithUserDirectory(benchDirectory{}).
		Build()
}

func runValidatePhase(ctx context.Context, engine *authcore.Engine, mode authcore.ValidationMode, states []chainState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				state := &states[idx]
				state.mu.Lock()
				token := state.access
				state.mu.Unlock()

				t0 := time.Now()
				_, err := engine.Validate(ctx, token, mode)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func runRotatePhase(ctx context.Context, engine *authcore.Engine, device authcore.DeviceInfo, states []chainState, ops, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*6151))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				idx := r.Intn(len(states))
				state := &states[idx]

				state.mu.Lock()
				t0 := time.Now()
				pair, err := engine.RefreshTokenPair(ctx, state.refresh, device)
				d := time.Since(t0)
				if err == nil {
					state.refresh = pair.RefreshToken
					state.access = pair.AccessToken
				} else {
					atomic.AddInt64(&failures, 1)
				}
				state.mu.Unlock()

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

// runContentionPhase redeems the same refresh token from width goroutines at
// once and reports how many won per round. Anything other than exactly one
// winner per round means rotation exclusivity broke.
func runContentionPhase(ctx context.Context, engine *authcore.Engine, device authcore.DeviceInfo, states []chainState, rounds, width int) []int {
	winners := make([]int, 0, rounds)
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	for round := 0; round < rounds; round++ {
		state := &states[r.Intn(len(states))]
		state.mu.Lock()
		token := state.refresh

		var (
			wg      sync.WaitGroup
			wins    int64
			winner  atomic.Pointer[authcore.TokenPair]
			release = make(chan struct{})
		)
		for g := 0; g < width; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-release
				pair, err := engine.RefreshTokenPair(ctx, token, device)
				if err == nil {
					atomic.AddInt64(&wins, 1)
					winner.Store(pair)
				}
			}()
		}
		close(release)
		wg.Wait()

		if pair := winner.Load(); pair != nil {
			state.refresh = pair.RefreshToken
			state.access = pair.AccessToken
		}
		state.mu.Unlock()

		winners = append(winners, int(wins))
	}
	return winners
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

func printContention(winners []int, rounds, width int) {
	single := 0
	multi := 0
	zero := 0
	for _, w := range winners {
		switch {
		case w == 1:
			single++
		case w == 0:
			zero++
		default:
			multi++
		}
	}
	ratio := 0.0
	if len(winners) > 0 {
		ratio = float64(single) / float64(len(winners))
	}
	fmt.Printf("contend: rounds=%d width=%d single-winner=%.4f zero=%d multi=%d\n",
		rounds, width, ratio, zero, multi)
	if multi > 0 {
		fmt.Println("contend: FAIL, a refresh token was redeemed more than once")
	}
}

// benchDirectory resolves the synthetic u-N population without storage.
type benchDirectory struct{}

func (benchDirectory) LookupByEmail(_ context.Context, email string) (authcore.DirectoryUser, bool, error) {
	id, _, ok := strings.Cut(email, "@")
	if !ok {
		return authcore.DirectoryUser{}, false, nil
	}
	return authcore.DirectoryUser{UserID: id, Email: email}, true, nil
}

func (benchDirectory) LookupByID(_ context.Context, id string) (authcore.DirectoryUser, bool, error) {
	return authcore.DirectoryUser{UserID: id, Email: id + "@bench.local"}, true, nil
}
