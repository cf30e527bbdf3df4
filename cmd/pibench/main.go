// Command pibench estimates pi with a Monte Carlo
// reduction over a virtual cluster and reports, for each
// configuration in the run grid, the in-circle count, the
// estimate, and the virtual time spent. Rows that share
// (n, seed) must report identical counts no matter how
// many processes and threads they use; that determinism is
// the point of the exercise.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/parclust/reduce-sys/cluster"
	"github.com/parclust/reduce-sys/mp"
	"github.com/parclust/reduce-sys/parallel"
	"github.com/parclust/reduce-sys/prng"
	"github.com/parclust/reduce-sys/reduce"
	"github.com/parclust/reduce-sys/simulator"
)

// A RunInfo describes one cluster configuration.
type RunInfo struct {
	Procs   int     `yaml:"procs"`
	Threads int     `yaml:"threads"`
	N       int64   `yaml:"n"`
	Seed    uint64  `yaml:"seed"`
	Latency float64 `yaml:"latency"`
	Rate    float64 `yaml:"rate"`
}

// A Config is the benchmark's run grid.
type Config struct {
	MetricsAddr string    `yaml:"metrics_addr"`
	Runs        []RunInfo `yaml:"runs"`
}

// DefaultConfig is the grid used when no config file is
// given.
func DefaultConfig() Config {
	grid := []struct{ procs, threads int }{
		{1, 1}, {1, 4}, {2, 4}, {4, 8},
	}
	cfg := Config{}
	for _, g := range grid {
		cfg.Runs = append(cfg.Runs, RunInfo{
			Procs:   g.procs,
			Threads: g.threads,
			N:       1000000,
			Seed:    42,
			Latency: 1e-3,
			Rate:    1e6,
		})
	}
	return cfg
}

// LoadConfig reads a yaml run grid from path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Run builds a virtual cluster and executes the pi job on
// every process, returning the root's count and the
// virtual time the whole run took.
func (r RunInfo) Run(log zerolog.Logger) (int64, float64, error) {
	loop := simulator.NewEventLoop()
	nodes := make([]*simulator.Node, r.Procs)
	for i := range nodes {
		nodes[i] = simulator.NewNode()
	}
	network := simulator.NewLinkNetwork(r.Rate, r.Latency)

	job := parallel.Job[int64]{
		N:            r.N,
		Seed:         r.Seed,
		Threads:      r.Threads,
		DrawsPerItem: 2,
		Op:           reduce.SumInt64,
		Codec:        mp.Int64Codec,
		Body: func(i int64, g *prng.LCG) (int64, error) {
			x := g.Float64()
			y := g.Float64()
			if x*x+y*y <= 1.0 {
				return 1, nil
			}
			return 0, nil
		},
	}

	exec := parallel.NewExecutor[int64](log)
	var count int64
	errs := make([]error, r.Procs)
	cluster.SpawnCluster(loop, network, nodes, func(c *cluster.Comms) {
		res, err := exec.Run(c, job)
		errs[c.Rank()] = err
		if c.Root() {
			count = res.Value
		}
	})
	if err := loop.Run(); err != nil {
		return 0, 0, err
	}
	for rank, err := range errs {
		if rank != 0 && err != nil {
			log.Error().Err(err).Int("rank", rank).Msg("rank failed")
		}
	}
	return count, loop.Time(), errs[0]
}

func main() {
	configPath := flag.String("config", "", "yaml run grid (empty for built-in defaults)")
	verbose := flag.Bool("v", false, "log executor phase transitions")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()
	if !*verbose {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg := DefaultConfig()
	if *configPath != "" {
		var err error
		cfg, err = LoadConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("load config")
		}
	}

	if cfg.MetricsAddr != "" {
		if err := cluster.RegisterMetrics(prometheus.DefaultRegisterer); err != nil {
			log.Fatal().Err(err).Msg("register metrics")
		}
		go func() {
			http.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.MetricsAddr, nil); err != nil {
				log.Error().Err(err).Msg("metrics server")
			}
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("serving /metrics")
	}

	fmt.Println("| Procs | Threads | N | Seed | In-circle | Estimate | Virtual time |")
	fmt.Println("|:--|:--|:--|:--|:--|:--|:--|")
	for _, run := range cfg.Runs {
		count, virtualTime, err := run.Run(log)
		if err != nil {
			log.Error().Err(err).
				Int("procs", run.Procs).
				Int("threads", run.Threads).
				Msg("run failed")
			continue
		}
		estimate := 4.0 * float64(count) / float64(run.N)
		fmt.Printf("| %d | %d | %d | %d | %d | %s | %s |\n",
			run.Procs, run.Threads, run.N, run.Seed, count,
			strconv.FormatFloat(estimate, 'f', 6, 64),
			strconv.FormatFloat(virtualTime, 'f', -1, 64))
	}
}
