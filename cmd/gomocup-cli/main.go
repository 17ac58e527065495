// Command gomocup-cli runs a tournament between two or more Gomoku/Renju
// engines that speak the Gomocup text protocol, per spec.md.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/r3e-network/gomocup-cli/internal/config"
	"github.com/r3e-network/gomocup-cli/internal/jobqueue"
	"github.com/r3e-network/gomocup-cli/internal/obslog"
	"github.com/r3e-network/gomocup-cli/internal/opening"
	"github.com/r3e-network/gomocup-cli/internal/supervisor"
	"github.com/r3e-network/gomocup-cli/internal/worker"
	"github.com/r3e-network/gomocup-cli/internal/writer"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	log := obslog.New(cfg.LogLevel, cfg.LogFormat)

	openings, err := loadOpenings(cfg)
	if err != nil {
		log.WithError(err).Error("failed to load opening source")
		return 1
	}

	queue, err := jobqueue.New(jobqueue.Params{
		NumEngines: len(cfg.Engines),
		Rounds:     cfg.Rounds,
		Games:      cfg.Games,
		Gauntlet:   cfg.Gauntlet,
	})
	if err != nil {
		log.WithError(err).Error("failed to build job queue")
		return 1
	}

	engines := make([]worker.EngineConfig, len(cfg.Engines))
	for i, e := range cfg.Engines {
		engines[i] = worker.EngineConfig{
			Index:          i,
			Path:           e.Path,
			DisplayName:    e.DisplayName,
			ToleranceMS:    e.ToleranceMS,
			TimeoutTurnMS:  e.TimeoutTurnMS,
			TimeoutMatchMS: e.TimeoutMatchMS,
			IncrementMS:    e.IncrementMS,
			MemoryCapBytes: e.MemoryCapByte,
			ExtraOptions:   e.ExtraOptions,
			Debug:          cfg.Debug,
		}
	}

	writers, closers, err := buildWriters(cfg)
	if err != nil {
		log.WithError(err).Error("failed to open output writers")
		return 1
	}

	sup := supervisor.New(supervisor.Options{
		Cfg:      cfg,
		Queue:    queue,
		Openings: openings,
		Engines:  engines,
		Writers:  writers,
		Closers:  closers,
		Log:      log,
	})

	return sup.Run(context.Background())
}

func loadOpenings(cfg *config.TournamentConfig) (opening.Source, error) {
	if cfg.OpeningsFile == "" {
		return opening.NewEmpty(), nil
	}
	return opening.NewFromFile(cfg.OpeningsFile, cfg.Repeat)
}

func buildWriters(cfg *config.TournamentConfig) ([]writer.TranscriptWriter, []supervisor.Closer, error) {
	var writers []writer.TranscriptWriter
	var closers []supervisor.Closer

	if cfg.PGNFile != "" {
		f, err := os.Create(cfg.PGNFile)
		if err != nil {
			return nil, nil, err
		}
		w := writer.NewPGNWriter(f)
		writers = append(writers, w)
		closers = append(closers, w)
	}
	if cfg.SGFFile != "" {
		f, err := os.Create(cfg.SGFFile)
		if err != nil {
			return nil, nil, err
		}
		w := writer.NewSGFWriter(f)
		writers = append(writers, w)
		closers = append(closers, w)
	}
	if cfg.MsgFile != "" {
		f, err := os.Create(cfg.MsgFile)
		if err != nil {
			return nil, nil, err
		}
		w := writer.NewMessageLogWriter(f)
		writers = append(writers, w)
		closers = append(closers, w)
	}
	if cfg.Sample.File != "" {
		f, err := os.Create(cfg.Sample.File)
		if err != nil {
			return nil, nil, err
		}
		w := writer.NewSampleWriter(f, cfg.Sample.Format, cfg.Sample.Compress)
		writers = append(writers, w)
		closers = append(closers, w)
	}
	return writers, closers, nil
}
