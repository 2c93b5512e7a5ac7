// Command perf-regression compares two `go test -bench` output files and
// fails when a gated benchmark slowed past its allowed ratio. It exists to
// keep the hot paths honest: fast validation must stay allocation-flat and
// off the network, and a refresh rotation must not quietly grow.
//
// The gate ships with defaults covering the library's benchmarks. A TOML
// file can replace them:
//
//	default_ratio = 0.30
//
//	[[gate]]
//	benchmark = "BenchmarkValidateFast"
//	metrics   = ["ns/op", "allocs/op"]
//	ratio     = 0.10
//
// Metrics without an explicit ratio use default_ratio. Runs are expected to
// come from `go test -bench . -benchmem -count=N`; the median across counts
// is compared, so a single noisy sample does not gate a merge.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

const defaultRatio = 0.30

type gateConfig struct {
	DefaultRatio float64     `toml:"default_ratio"`
	Gates        []gateEntry `toml:"gate"`
}

type gateEntry struct {
	Benchmark string   `toml:"benchmark"`
	Metrics   []string `toml:"metrics"`
	Ratio     float64  `toml:"ratio"`
}

// defaultGates covers every benchmark the library ships. Allocation counts
// get a tight ratio: a new allocation on the validate path is a real change,
// not noise.
func defaultGates() gateConfig {
	return gateConfig{
		DefaultRatio: defaultRatio,
		Gates: []gateEntry{
			{Benchmark: "BenchmarkValidateFast", Metrics: []string{"ns/op"}, Ratio: 0.15},
			{Benchmark: "BenchmarkValidateFast", Metrics: []string{"allocs/op"}, Ratio: 0.01},
			{Benchmark: "BenchmarkValidateStrict", Metrics: []string{"ns/op"}, Ratio: 0.20},
			{Benchmark: "BenchmarkValidateStrict", Metrics: []string{"allocs/op"}, Ratio: 0.01},
			{Benchmark: "BenchmarkRefreshRotation", Metrics: []string{"ns/op"}},
			{Benchmark: "BenchmarkCreateTokenPair", Metrics: []string{"ns/op"}},
			{Benchmark: "BenchmarkCSRFVerify", Metrics: []string{"ns/op", "allocs/op"}},
		},
	}
}

type benchSamples map[string]map[string][]float64

func main() {
	var (
		baselinePath  string
		candidatePath string
		gatePath      string
	)

	flag.StringVar(&baselinePath, "baseline", "", "benchmark output from the baseline build")
	flag.StringVar(&candidatePath, "candidate", "", "benchmark output from the candidate build")
	flag.StringVar(&gatePath, "gate", "", "TOML gate file (optional, built-in gates otherwise)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}

	gates, err := loadGates(gatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load gates: %v\n", err)
		os.Exit(2)
	}

	gated := gatedBenchmarks(gates)
	baseline, err := readSamples(baselinePath, gated)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := readSamples(candidatePath, gated)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read candidate: %v\n", err)
		os.Exit(1)
	}

	failures := compare(gates, baseline, candidate, os.Stdout)
	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "benchmark gate failed:")
		for _, failure := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", failure)
		}
		os.Exit(1)
	}
}

func loadGates(path string) (gateConfig, error) {
	if path == "" {
		return defaultGates(), nil
	}

	var cfg gateConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return gateConfig{}, err
	}
	if cfg.DefaultRatio < 0 {
		return gateConfig{}, fmt.Errorf("default_ratio must be >= 0, got %v", cfg.DefaultRatio)
	}
	if cfg.DefaultRatio == 0 {
		cfg.DefaultRatio = defaultRatio
	}
	if len(cfg.Gates) == 0 {
		return gateConfig{}, fmt.Errorf("gate file %s defines no [[gate]] entries", path)
	}
	for i, gate := range cfg.Gates {
		if gate.Benchmark == "" {
			return gateConfig{}, fmt.Errorf("gate %d has no benchmark name", i)
		}
		if len(gate.Metrics) == 0 {
			return gateConfig{}, fmt.Errorf("gate %d (%s) lists no metrics", i, gate.Benchmark)
		}
		if gate.Ratio < 0 {
			return gateConfig{}, fmt.Errorf("gate %d (%s) has negative ratio", i, gate.Benchmark)
		}
	}
	return cfg, nil
}

func gatedBenchmarks(cfg gateConfig) map[string]bool {
	out := make(map[string]bool, len(cfg.Gates))
	for _, gate := range cfg.Gates {
		out[gate.Benchmark] = true
	}
	return out
}

// compare prints one row per gated metric and returns the failures. Rows
// come out in gate order so two runs of the tool diff cleanly.
func compare(cfg gateConfig, baseline, candidate benchSamples, out *os.File) []string {
	var failures []string
	fmt.Fprintln(out, "benchmark  metric  baseline  candidate  delta  limit")

	for _, gate := range cfg.Gates {
		ratio := gate.Ratio
		if ratio == 0 {
			ratio = cfg.DefaultRatio
		}
		for _, metric := range gate.Metrics {
			if len(baseline[gate.Benchmark][metric]) == 0 {
				failures = append(failures, fmt.Sprintf("%s %s: no baseline samples", gate.Benchmark, metric))
				continue
			}
			if len(candidate[gate.Benchmark][metric]) == 0 {
				failures = append(failures, fmt.Sprintf("%s %s: no candidate samples", gate.Benchmark, metric))
				continue
			}
			base := median(baseline[gate.Benchmark][metric])
			cand := median(candidate[gate.Benchmark][metric])

			// allocs/op medians of zero are legitimate: the delta of a
			// zero-allocation path is defined as the raw difference.
			var delta float64
			if base > 0 {
				delta = (cand - base) / base
			} else if cand > 0 {
				delta = 1
			}

			fmt.Fprintf(out, "%s  %s  %.2f  %.2f  %+.2f%%  %+.2f%%\n",
				gate.Benchmark, metric, base, cand, delta*100, ratio*100)
			if delta > ratio {
				failures = append(failures, fmt.Sprintf("%s %s regressed %+.2f%% (limit %+.2f%%)",
					gate.Benchmark, metric, delta*100, ratio*100))
			}
		}
	}
	return failures
}

// readSamples collects every (benchmark, unit) sample for the gated set.
// Lines that are not benchmark results, and benchmarks outside the gate,
// are skipped without complaint so full `go test` logs can be fed directly.
func readSamples(path string, gated map[string]bool) (benchSamples, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	samples := benchSamples{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || !strings.HasPrefix(fields[0], "Benchmark") {
			continue
		}

		name := stripProcSuffix(fields[0])
		if !gated[name] {
			continue
		}
		if samples[name] == nil {
			samples[name] = map[string][]float64{}
		}

		// Result lines alternate value and unit after the iteration count:
		// BenchmarkValidateFast-8  500000  2100 ns/op  0 allocs/op
		for i := 2; i+1 < len(fields); i += 2 {
			value, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

// stripProcSuffix removes the -N GOMAXPROCS suffix the bench runner appends.
func stripProcSuffix(raw string) string {
	idx := strings.LastIndexByte(raw, '-')
	if idx <= 0 {
		return raw
	}
	if _, err := strconv.Atoi(raw[idx+1:]); err != nil {
		return raw
	}
	return raw[:idx]
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
