// Command kernsim runs the kernel simulator.
//
//	kernsim -config kernsim.yaml -ticks 200 -trace spans.json
//	kernsim -watch
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/viant/kernsim"
	"github.com/viant/kernsim/internal/console"
	"github.com/viant/kernsim/service/event"
	"github.com/viant/kernsim/service/kernel"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "kernsim: %v\n", err)
		if errors.Is(err, kernel.ErrProtocolViolation) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("kernsim", flag.ContinueOnError)
	configURL := flags.String("config", "", "YAML configuration URL (any afs scheme)")
	ticks := flags.Int("ticks", -1, "stop after n ticks, 0 for unbounded (overrides kernel.maxTicks)")
	traceOutput := flags.String("trace", "", "write OpenTelemetry spans to file, '-' for stdout")
	watch := flags.Bool("watch", false, "step the kernel interactively")
	events := flags.Bool("events", false, "stream kernel events to stderr as JSON lines")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := kernsim.DefaultConfig()
	if *configURL != "" {
		var err error
		if cfg, err = kernsim.LoadConfig(ctx, *configURL); err != nil {
			return err
		}
	}
	if *ticks >= 0 {
		cfg.Kernel.MaxTicks = *ticks
	}
	if *traceOutput != "" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Output = *traceOutput
		if *traceOutput == "-" {
			cfg.Tracing.Output = ""
		}
	}

	var options []kernsim.Option
	if *watch {
		// log lines would tear the interactive view
		logger := logrus.New()
		logger.SetLevel(logrus.ErrorLevel)
		logger.SetOutput(os.Stderr)
		options = append(options, kernsim.WithLogger(logger), kernsim.WithOutput(io.Discard))
	}
	srv, err := kernsim.New(append([]kernsim.Option{kernsim.WithConfig(cfg)}, options...)...)
	if err != nil {
		return err
	}
	rt := srv.Runtime()
	if err = rt.Bootstrap(); err != nil {
		return err
	}

	if *watch {
		model := console.NewModel(ctx, rt, cfg.Kernel.MaxTicks)
		if _, err = tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
			return err
		}
		return model.Err()
	}

	if *events {
		encoder := json.NewEncoder(os.Stderr)
		handler := func(e *event.Event[kernel.Trace]) { _ = encoder.Encode(e) }
		listener, err := rt.Listen(ctx, handler)
		if err != nil {
			return err
		}
		defer func() {
			listener.Stop()
			for _, e := range rt.Events() {
				handler(&e)
			}
		}()
	}

	err = rt.Run(ctx)
	fmt.Fprintln(os.Stderr, console.Summary(rt.Kernel().Snapshot(), rt.Progress()))
	return err
}
