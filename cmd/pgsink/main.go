package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pgsink/batch"
	"pgsink/config"
	"pgsink/internal/metrics"
	"pgsink/internal/metrics/datadog"
	"pgsink/internal/metrics/prompush"
	"pgsink/pkg/event"
	"pgsink/sink"
)

// main is the entry point for the pgsink binary: it reads JSON log lines from
// stdin and ships them to Postgres through the batching front-end. One line,
// one event:
//
//	{"ts":"2026-06-01T12:00:00Z","level":"warn","msg":"disk {Disk} full","props":{"Disk":"/dev/sda1"},"error":"ENOSPC"}
func main() {
	var (
		cfgPath  string
		validate bool
	)
	flag.StringVar(&cfgPath, "config", "pgsink.yaml", "sink config YAML path")
	flag.BoolVar(&validate, "validate", false, "validate the configuration and exit")
	verbose := flag.Bool("v", false, "enable verbose logs")
	flag.Parse()

	logger, err := buildLogger(*verbose)
	if err != nil {
		fatalf("logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatalf("config: %v", err)
	}
	if validate {
		logger.Info("configuration is valid", zap.String("path", cfgPath))
		return
	}

	setupMetrics(cfg.Metrics, logger)
	defer func() {
		if err := metrics.Flush(); err != nil {
			logger.Warn("metrics flush", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.SinkOptions(logger)
	if err != nil {
		fatalf("config: %v", err)
	}
	s, err := sink.New(ctx, opts)
	if err != nil {
		fatalf("sink: %v", err)
	}
	defer s.Close()

	emitter := batch.New(s.Emit, cfg.BatchOptions(logger))

	start := time.Now()
	lines, bad := readLoop(ctx, emitter, logger)

	if err := emitter.Close(); err != nil {
		logger.Error("final flush", zap.Error(err))
	}
	logger.Info("done",
		zap.Int("lines", lines),
		zap.Int("malformed", bad),
		zap.Duration("elapsed", time.Since(start).Truncate(time.Millisecond)))
}

// inputLine is the stdin wire format.
type inputLine struct {
	TS    string         `json:"ts"`
	Level string         `json:"level"`
	Msg   string         `json:"msg"`
	Props map[string]any `json:"props"`
	Error string         `json:"error"`
}

// readLoop consumes stdin until EOF or signal, enqueueing one event per
// well-formed line. Malformed lines are counted and skipped, not fatal.
func readLoop(ctx context.Context, emitter *batch.Emitter, logger *zap.Logger) (lines, bad int) {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		lines++
		ev, err := parseLine(scanner.Bytes())
		if err != nil {
			bad++
			logger.Debug("skipping malformed line", zap.Int("line", lines), zap.Error(err))
			continue
		}
		if err := emitter.Enqueue(ev); err != nil {
			logger.Warn("event dropped", zap.Int("line", lines), zap.Error(err))
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("stdin read", zap.Error(err))
	}
	return
}

func parseLine(raw []byte) (*event.LogEvent, error) {
	var in inputLine
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	if in.TS != "" {
		parsed, err := time.Parse(time.RFC3339Nano, in.TS)
		if err != nil {
			return nil, fmt.Errorf("ts: %w", err)
		}
		ts = parsed
	}

	lvl := event.InfoLevel
	if in.Level != "" {
		parsed, err := event.ParseLevel(in.Level)
		if err != nil {
			return nil, err
		}
		lvl = parsed
	}

	ev := &event.LogEvent{
		Timestamp:       ts,
		Level:           lvl,
		MessageTemplate: in.Msg,
		Properties:      in.Props,
	}
	if in.Error != "" {
		ev.Err = fmt.Errorf("%s", in.Error)
	}
	return ev, nil
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// setupMetrics installs the configured metrics backend; the nop backend
// remains in place when kind is "none" or setup fails.
func setupMetrics(spec config.MetricsSpec, logger *zap.Logger) {
	switch spec.Kind {
	case "pushgateway":
		b, err := prompush.NewBackend(spec.Job, spec.GatewayURL)
		if err != nil {
			logger.Warn("metrics disabled", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{Addr: spec.Addr, Namespace: spec.Namespace})
		if err != nil {
			logger.Warn("metrics disabled", zap.Error(err))
			return
		}
		metrics.SetBackend(b)
	case "", "none":
		// metrics disabled; nop backend remains
	default:
		logger.Warn("unknown metrics backend; metrics disabled", zap.String("kind", spec.Kind))
	}
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
