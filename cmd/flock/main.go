// Command flock runs vision-based flocking simulations.
//
// # Usage
//
// The flock command has two subcommands:
//
//	flock run [config_file]
//	flock replay [--listen addr] recording.h5 [config_file]
//
// The optional config file is the path to a TOML config file.
// If no config file is specified, the default parameters are used.
// Without a subcommand, flock behaves like flock run.
//
// # Modes
//
// When output is set in the config file, the whole run is recorded
// to that HDF5 file and tick_count must be positive.
// Otherwise, when listen is set, every tick is streamed to websocket
// viewers connecting to ws://<listen>/ws, one tick per interval.
// Otherwise the simulation runs headless and only logs its polarization.
//
// The replay subcommand streams a recording to viewers instead of simulating.
// Runs stop after tick_count ticks, or on interrupt when tick_count is 0.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/PrincetonUniversity/flock"
	"github.com/PrincetonUniversity/flock/hdf5"
	"github.com/PrincetonUniversity/flock/stream"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/urfave/cli"
)

// replayAddr serves replays when neither the flag nor the config sets listen.
const replayAddr = ":8080"

func main() {
	if err := makeApp().Run(os.Args); err != nil {
		Fatal(err)
	}
}

func makeApp() *cli.App {
	app := cli.NewApp()
	app.Name = "flock"
	app.Usage = "vision-based flocking simulations"
	app.ArgsUsage = "[config_file]"
	app.Action = runAction

	app.Commands = []cli.Command{
		{
			Name:      "run",
			Aliases:   []string{"r"},
			Usage:     "Record, stream or run headless depending on the config",
			ArgsUsage: "[config_file]",
			Action:    runAction,
		},
		{
			Name:      "replay",
			Usage:     "Stream an HDF5 recording to websocket viewers",
			ArgsUsage: "recording.h5 [config_file]",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "listen", Value: "", Usage: "address serving the stream, overrides the config"},
			},
			Action: replayAction,
		},
	}
	return app
}

// Fatal logs an error and exits with a non-zero status.
func Fatal(err error) {
	log.Fatal("flock failed", "error", err)
}

// loadConfig returns the default parameters, or those of the single config file given.
func loadConfig(args []string) (*Config, error) {
	switch len(args) {
	case 0:
		return DefaultConf(), nil
	case 1:
		return ParseConfig(args[0])
	default:
		return nil, fmt.Errorf("%d config files provided (at most 1)", len(args))
	}
}

func runAction(c *cli.Context) error {
	conf, err := loadConfig(c.Args())
	if err != nil {
		return err
	}
	return execute(conf, func(ctx context.Context, logger *log.Logger, runID string) error {
		return Simulate(ctx, conf, logger, runID)
	})
}

func replayAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return errors.New("replay needs the path of a recording")
	}
	conf, err := loadConfig(c.Args().Tail())
	if err != nil {
		return err
	}
	if addr := c.String("listen"); addr != "" {
		conf.Listen = addr
	}
	path := c.Args().First()
	return execute(conf, func(ctx context.Context, logger *log.Logger, runID string) error {
		return Replay(ctx, conf, logger, runID, path)
	})
}

// execute sets up logging and interrupts, then calls run with a fresh run id.
// Interrupting the run is not an error.
func execute(conf *Config, run func(ctx context.Context, logger *log.Logger, runID string) error) error {
	level, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := uuid.NewString()
	logger := log.With("run", runID)
	err = run(ctx, logger, runID)
	if errors.Is(err, context.Canceled) {
		logger.Info("interrupted")
		return nil
	}
	return err
}

// Simulate sets up a simulation and runs it in the mode selected by the config.
func Simulate(ctx context.Context, conf *Config, logger *log.Logger, runID string) error {
	s, err := flock.New(conf.Config)
	if err != nil {
		return err
	}
	logger.Info("simulation ready",
		"agents", len(s.Swarm),
		"obstacles", len(s.Obstacles),
		"vision", conf.Vision,
		"seed", conf.Seed,
	)

	switch {
	case conf.Output != "":
		return record(ctx, conf, logger, runID, s)
	case conf.Listen != "":
		hub := stream.NewHub(runID, log.Default())
		return serve(ctx, conf.Listen, hub, logger, func(ctx context.Context) error {
			observe, stop := paced(ctx, conf.Interval, func(snap flock.Snapshot) {
				hub.Broadcast(snap)
				report(conf, logger, snap.Tick, s)
			})
			defer stop()
			return s.Run(ctx, conf.TickCount, observe)
		})
	default:
		return s.Run(ctx, conf.TickCount, func(snap flock.Snapshot) error {
			report(conf, logger, snap.Tick, s)
			return nil
		})
	}
}

func record(ctx context.Context, conf *Config, logger *log.Logger, runID string, s *flock.Simulation) error {
	start := time.Now()
	err := hdf5.Record(ctx, s, &hdf5.Config{
		Output: conf.Output,
		Steps:  conf.TickCount,
		RunID:  runID,
		Params: conf.Config,
		Progress: func(tick int) {
			if conf.ReportEvery > 0 && tick%conf.ReportEvery == 0 {
				logger.Debug("recorded", "tick", tick, "total", conf.TickCount)
			}
		},
	})
	if err != nil {
		return errors.Wrapf(err, "recording %s", conf.Output)
	}
	logger.Info("recording saved", "output", conf.Output, "ticks", conf.TickCount, "elapsed", time.Since(start))
	return nil
}

func report(conf *Config, logger *log.Logger, tick int, s *flock.Simulation) {
	if conf.ReportEvery > 0 && tick%conf.ReportEvery == 0 {
		logger.Info("tick", "tick", tick, "polarization", fmt.Sprintf("%.3f", s.Polarization()))
	}
}

// paced returns an observer that calls f then waits for the interval to elapse,
// and a function releasing its ticker.
func paced(ctx context.Context, interval time.Duration, f func(flock.Snapshot)) (func(flock.Snapshot) error, func()) {
	if interval <= 0 {
		return func(snap flock.Snapshot) error {
			f(snap)
			return nil
		}, func() {}
	}
	ticker := time.NewTicker(interval)
	return func(snap flock.Snapshot) error {
		f(snap)
		select {
		case <-ticker.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}, ticker.Stop
}

// Replay streams a recording to websocket viewers, then keeps serving
// its last tick until interrupted.
func Replay(ctx context.Context, conf *Config, logger *log.Logger, runID, path string) error {
	l, err := hdf5.NewLoader(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer l.Close()

	addr := conf.Listen
	if addr == "" {
		addr = replayAddr
	}
	hub := stream.NewHub(runID, log.Default())
	logger.Info("replaying", "recording", path, "ticks", l.Len())

	return serve(ctx, addr, hub, logger, func(ctx context.Context) error {
		show, stop := paced(ctx, conf.Interval, hub.Broadcast)
		defer stop()
		for {
			snap, err := l.Next()
			if err == io.EOF {
				<-ctx.Done()
				return ctx.Err()
			}
			if err != nil {
				return err
			}
			if err := show(snap); err != nil {
				return err
			}
		}
	})
}

// serve exposes the hub at /ws while run is going on.
func serve(ctx context.Context, addr string, hub *stream.Hub, logger *log.Logger, run func(context.Context) error) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	failed := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			failed <- err
		}
	}()
	logger.Info("streaming", "url", "ws://"+addr+"/ws")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	var err error
	select {
	case err = <-done:
	case err = <-failed:
		cancel()
		<-done
		err = errors.Wrapf(err, "serving %s", addr)
	}

	shutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if serr := srv.Shutdown(shutdown); serr != nil && err == nil {
		err = serr
	}
	return err
}
