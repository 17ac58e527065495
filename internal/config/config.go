// Package config loads TournamentConfig from CLI flags, an optional
// .env file, and an optional YAML override file, the way
// _examples/r3e-network-service_layer/internal/config layers env-driven
// configuration with typed defaults and a final Validate pass.
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envOverrides carries the subset of settings an operator may prefer to
// pin via the environment rather than retype on every invocation (CI
// runners, cron-scheduled tournaments). Values present here are applied
// as flag defaults before argv is parsed, so an explicit flag always
// wins.
type envOverrides struct {
	LogLevel    string `env:"GOMOCUP_LOG_LEVEL"`
	LogFormat   string `env:"GOMOCUP_LOG_FORMAT"`
	MetricsAddr string `env:"GOMOCUP_METRICS_ADDR"`
	Debug       bool   `env:"GOMOCUP_DEBUG"`
}

func loadEnvOverrides() envOverrides {
	var e envOverrides
	if err := envdecode.Decode(&e); err != nil {
		// envdecode errors when none of the tagged fields are set in the
		// environment; treat that as "no overrides" rather than a failure.
		_ = err
	}
	return e
}

// EngineSpec is one engine's immutable configuration, per spec.md §3.
type EngineSpec struct {
	Path          string            `json:"path" yaml:"path"`
	DisplayName   string            `json:"display_name" yaml:"displayName"`
	TimeoutTurnMS int64             `json:"timeout_turn_ms" yaml:"timeoutTurnMs"`
	TimeoutMatchMS int64            `json:"timeout_match_ms" yaml:"timeoutMatchMs"`
	IncrementMS   int64             `json:"increment_ms" yaml:"incrementMs"`
	NodeLimit     int64             `json:"node_limit" yaml:"nodeLimit"`
	DepthLimit    int               `json:"depth_limit" yaml:"depthLimit"`
	Threads       int               `json:"threads" yaml:"threads"`
	MemoryCapByte int64             `json:"memory_cap_bytes" yaml:"memoryCapBytes"`
	ToleranceMS   int64             `json:"tolerance_ms" yaml:"toleranceMs"`
	ExtraOptions  map[string]string `json:"extra_options" yaml:"extraOptions"`
}

// SPRTParams holds the SPRT hypothesis/error-rate parameters, absent
// (nil on *TournamentConfig) when SPRT is not configured.
type SPRTParams struct {
	Elo0  float64 `json:"elo0" yaml:"elo0"`
	Elo1  float64 `json:"elo1" yaml:"elo1"`
	Alpha float64 `json:"alpha" yaml:"alpha"`
	Beta  float64 `json:"beta" yaml:"beta"`
}

// Adjudication mirrors game.Adjudication for the config layer, kept
// separate so internal/game has no dependency on internal/config.
type Adjudication struct {
	ResignCount    int `json:"resign_count" yaml:"resignCount"`
	ResignScore    int `json:"resign_score" yaml:"resignScore"`
	DrawCount      int `json:"draw_count" yaml:"drawCount"`
	DrawScore      int `json:"draw_score" yaml:"drawScore"`
	ForceDrawAfter int `json:"force_draw_after" yaml:"forceDrawAfter"`
}

// SampleConfig controls the optional sample-file recorder.
type SampleConfig struct {
	File     string `json:"file" yaml:"file"`
	Format   string `json:"format" yaml:"format"`
	Compress bool   `json:"compress" yaml:"compress"`
}

// TournamentConfig is the fully-resolved configuration for one
// tournament run, per spec.md §3.
type TournamentConfig struct {
	Engines     []EngineSpec `json:"engines" yaml:"engines"`
	Rounds      int          `json:"rounds" yaml:"rounds"`
	Games       int          `json:"games" yaml:"games"`
	Concurrency int          `json:"concurrency" yaml:"concurrency"`
	Gauntlet    bool         `json:"gauntlet" yaml:"gauntlet"`

	OpeningsFile string `json:"openings_file" yaml:"openingsFile"`
	Repeat       bool   `json:"repeat" yaml:"repeat"`
	Random       bool   `json:"random" yaml:"random"`
	Seed         int64  `json:"seed" yaml:"seed"`

	BoardSize int    `json:"board_size" yaml:"boardSize"`
	Rule      string `json:"rule" yaml:"rule"`

	Adj Adjudication `json:"adjudication" yaml:"adjudication"`

	SPRT *SPRTParams `json:"sprt,omitempty" yaml:"sprt,omitempty"`

	PGNFile    string       `json:"pgn_file" yaml:"pgnFile"`
	SGFFile    string       `json:"sgf_file" yaml:"sgfFile"`
	MsgFile    string       `json:"msg_file" yaml:"msgFile"`
	Sample     SampleConfig `json:"sample" yaml:"sample"`

	Debug      bool   `json:"debug" yaml:"debug"`
	LogLevel   string `json:"log_level" yaml:"logLevel"`
	LogFormat  string `json:"log_format" yaml:"logFormat"`
	FatalError bool   `json:"fatal_error" yaml:"fatalError"`

	MetricsAddr string `json:"metrics_addr" yaml:"metricsAddr"`
}

// Validate checks the cross-field invariants spec.md §3/§8 require.
func (c *TournamentConfig) Validate() error {
	if len(c.Engines) < 2 {
		return fmt.Errorf("need at least 2 -engine entries, got %d", len(c.Engines))
	}
	if c.Rounds < 1 {
		return fmt.Errorf("-rounds must be >= 1")
	}
	if c.Games < 1 {
		return fmt.Errorf("-games must be >= 1")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("-concurrency must be >= 1")
	}
	if c.BoardSize < 5 {
		return fmt.Errorf("-boardsize must be >= 5")
	}
	switch c.Rule {
	case "freestyle", "standard", "renju":
	default:
		return fmt.Errorf("-rule must be one of freestyle|standard|renju, got %q", c.Rule)
	}
	if c.SPRT != nil {
		if c.SPRT.Alpha <= 0 || c.SPRT.Alpha >= 1 || c.SPRT.Beta <= 0 || c.SPRT.Beta >= 1 {
			return fmt.Errorf("-sprt alpha/beta must be in (0,1)")
		}
	}
	return nil
}

// stringList is a flag.Value collecting repeated -engine occurrences.
type stringList struct {
	values *[]string
}

func (s stringList) String() string {
	if s.values == nil {
		return ""
	}
	return strings.Join(*s.values, ",")
}

func (s stringList) Set(v string) error {
	*s.values = append(*s.values, v)
	return nil
}

// Load builds a TournamentConfig from argv, optionally layering an
// env file (-envfile) beneath the flags, the way the teacher's
// internal/config.Load layers an environment-specific .env file beneath
// typed env-var defaults. A YAML file (-config) is applied after the
// flags and replaces every field it sets, including explicitly given
// flags.
func Load(args []string) (*TournamentConfig, error) {
	fs := flag.NewFlagSet("gomocup-cli", flag.ContinueOnError)

	envOv := loadEnvOverrides()
	defaultLogLevel := "info"
	if envOv.LogLevel != "" {
		defaultLogLevel = envOv.LogLevel
	}
	defaultLogFormat := "text"
	if envOv.LogFormat != "" {
		defaultLogFormat = envOv.LogFormat
	}

	var engineSpecs []string
	fs.Var(stringList{&engineSpecs}, "engine", "engine spec, repeatable: path=...,name=...,tc=...,tm=...,inc=...")
	eachSpec := fs.String("each", "", "default engine spec applied before -engine overrides")
	games := fs.Int("games", 1, "games per encounter")
	rounds := fs.Int("rounds", 1, "number of rounds")
	concurrency := fs.Int("concurrency", 1, "number of concurrent workers")
	gauntlet := fs.Bool("gauntlet", false, "gauntlet mode: engine 0 vs every other engine")
	openings := fs.String("openings", "", "path to an opening book file")
	repeat := fs.Bool("repeat", false, "share one opening across each pair of games")
	random := fs.Bool("random", false, "shuffle the opening order")
	srand := fs.Int64("srand", 0, "seed for -random")
	boardSize := fs.Int("boardsize", 15, "board size")
	rule := fs.String("rule", "freestyle", "freestyle|standard|renju")

	resignCount := fs.Int("resigncount", 0, "resign adjudication: consecutive plies")
	resignScore := fs.Int("resignscore", 0, "resign adjudication: score threshold")
	drawCount := fs.Int("drawcount", 0, "draw adjudication: consecutive plies")
	drawScore := fs.Int("drawscore", 0, "draw adjudication: score threshold")
	forceDraw := fs.Int("forcedraw", 0, "force a draw after this many plies")

	sprtElo0 := fs.Float64("sprt-elo0", 0, "SPRT null hypothesis elo")
	sprtElo1 := fs.Float64("sprt-elo1", 0, "SPRT alternative hypothesis elo")
	sprtAlpha := fs.Float64("sprt-alpha", 0, "SPRT type-I error rate")
	sprtBeta := fs.Float64("sprt-beta", 0, "SPRT type-II error rate")
	sprtEnabled := fs.Bool("sprt", false, "enable SPRT early stopping")

	pgn := fs.String("pgn", "", "PGN output path")
	sgf := fs.String("sgf", "", "SGF output path")
	msg := fs.String("msg", "", "message log output path")
	sampleFile := fs.String("sample-file", "", "sample recorder output path")
	sampleFormat := fs.String("sample-format", "csv", "sample recorder format")
	sampleCompress := fs.Bool("sample-compress", false, "compress the sample recorder stream")

	debug := fs.Bool("debug", envOv.Debug, "verbose engine chatter logging")
	logLevel := fs.String("log", defaultLogLevel, "log level")
	logFormat := fs.String("log-format", defaultLogFormat, "log format: text|json")
	fatalErr := fs.Bool("fatalerror", false, "promote engine-level errors to fatal")
	metricsAddr := fs.String("metrics-addr", envOv.MetricsAddr, "address to serve /metrics on, empty disables")

	envFile := fs.String("envfile", "", "optional .env file to load before flags")
	configFile := fs.String("config", "", "optional YAML config file, applied over the flags")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil {
			return nil, fmt.Errorf("loading envfile: %w", err)
		}
		envOv = loadEnvOverrides()
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		if envOv.LogLevel != "" && !set["log"] {
			*logLevel = envOv.LogLevel
		}
		if envOv.LogFormat != "" && !set["log-format"] {
			*logFormat = envOv.LogFormat
		}
		if envOv.MetricsAddr != "" && !set["metrics-addr"] {
			*metricsAddr = envOv.MetricsAddr
		}
		if envOv.Debug && !set["debug"] {
			*debug = true
		}
	}

	cfg := &TournamentConfig{
		Rounds:       *rounds,
		Games:        *games,
		Concurrency:  *concurrency,
		Gauntlet:     *gauntlet,
		OpeningsFile: *openings,
		Repeat:       *repeat,
		Random:       *random,
		Seed:         *srand,
		BoardSize:    *boardSize,
		Rule:         strings.ToLower(*rule),
		Adj: Adjudication{
			ResignCount:    *resignCount,
			ResignScore:    *resignScore,
			DrawCount:      *drawCount,
			DrawScore:      *drawScore,
			ForceDrawAfter: *forceDraw,
		},
		PGNFile: *pgn,
		SGFFile: *sgf,
		MsgFile: *msg,
		Sample: SampleConfig{
			File:     *sampleFile,
			Format:   *sampleFormat,
			Compress: *sampleCompress,
		},
		Debug:       *debug,
		LogLevel:    *logLevel,
		LogFormat:   *logFormat,
		FatalError:  *fatalErr,
		MetricsAddr: *metricsAddr,
	}

	if *sprtEnabled {
		cfg.SPRT = &SPRTParams{Elo0: *sprtElo0, Elo1: *sprtElo1, Alpha: *sprtAlpha, Beta: *sprtBeta}
	}

	if *configFile != "" {
		if err := mergeYAMLFile(*configFile, cfg); err != nil {
			return nil, fmt.Errorf("loading -config: %w", err)
		}
	}

	base, err := parseEngineSpec(*eachSpec)
	if err != nil {
		return nil, fmt.Errorf("-each: %w", err)
	}
	for _, raw := range engineSpecs {
		spec, err := parseEngineSpec(raw)
		if err != nil {
			return nil, fmt.Errorf("-engine: %w", err)
		}
		merged := mergeEngineSpec(base, spec)
		cfg.Engines = append(cfg.Engines, merged)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeYAMLFile decodes the YAML file over whatever cfg already
// carries from the flags: every field present in the YAML replaces the
// flag value, explicitly set or not; fields absent from it are kept.
func mergeYAMLFile(path string, cfg *TournamentConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// parseEngineSpec parses a comma-separated key=value engine spec, e.g.
// "path=./engine,name=Foo,tc=5000,tm=180000,inc=0,mem=268435456,tol=100".
func parseEngineSpec(raw string) (EngineSpec, error) {
	spec := EngineSpec{ExtraOptions: map[string]string{}}
	if raw == "" {
		return spec, nil
	}
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		if len(kv) != 2 {
			return spec, fmt.Errorf("malformed token %q", tok)
		}
		key, val := kv[0], kv[1]
		switch key {
		case "path":
			spec.Path = val
		case "name":
			spec.DisplayName = val
		case "tc", "timeout_turn":
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return spec, err
			}
			spec.TimeoutTurnMS = v
		case "tm", "timeout_match":
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return spec, err
			}
			spec.TimeoutMatchMS = v
		case "inc":
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return spec, err
			}
			spec.IncrementMS = v
		case "depth":
			v, err := strconv.Atoi(val)
			if err != nil {
				return spec, err
			}
			spec.DepthLimit = v
		case "nodes":
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return spec, err
			}
			spec.NodeLimit = v
		case "threads":
			v, err := strconv.Atoi(val)
			if err != nil {
				return spec, err
			}
			spec.Threads = v
		case "mem":
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return spec, err
			}
			spec.MemoryCapByte = v
		case "tol":
			v, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return spec, err
			}
			spec.ToleranceMS = v
		default:
			spec.ExtraOptions[key] = val
		}
	}
	return spec, nil
}

func mergeEngineSpec(base, override EngineSpec) EngineSpec {
	merged := base
	if override.Path != "" {
		merged.Path = override.Path
	}
	if override.DisplayName != "" {
		merged.DisplayName = override.DisplayName
	}
	if override.TimeoutTurnMS != 0 {
		merged.TimeoutTurnMS = override.TimeoutTurnMS
	}
	if override.TimeoutMatchMS != 0 {
		merged.TimeoutMatchMS = override.TimeoutMatchMS
	}
	if override.IncrementMS != 0 {
		merged.IncrementMS = override.IncrementMS
	}
	if override.DepthLimit != 0 {
		merged.DepthLimit = override.DepthLimit
	}
	if override.NodeLimit != 0 {
		merged.NodeLimit = override.NodeLimit
	}
	if override.Threads != 0 {
		merged.Threads = override.Threads
	}
	if override.MemoryCapByte != 0 {
		merged.MemoryCapByte = override.MemoryCapByte
	}
	if override.ToleranceMS != 0 {
		merged.ToleranceMS = override.ToleranceMS
	}
	if merged.ExtraOptions == nil {
		merged.ExtraOptions = map[string]string{}
	}
	for k, v := range override.ExtraOptions {
		merged.ExtraOptions[k] = v
	}
	return merged
}

// ToJSON and FromJSON support the config round-trip testable property
// from spec.md §8.
func (c *TournamentConfig) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

func FromJSON(data []byte) (*TournamentConfig, error) {
	var c TournamentConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
