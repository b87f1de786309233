package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"hls-recorder/internal/platform/config"
	"hls-recorder/internal/platform/httpclient"
	"hls-recorder/internal/platform/logger"
	"hls-recorder/internal/platform/metrics"
	"hls-recorder/internal/recorder"
	"hls-recorder/internal/status"
)

const shutdownTimeout = 10 * time.Second

type cliFlags struct {
	rooms         []string
	output        string
	monitor       bool
	resolution    int
	fps           int
	cookies       string
	userAgent     string
	maxDuration   int
	maxFilesize   int
	checkInterval int
	configPath    string
	envFile       string
	statusAddr    string
	quiet         bool
	debug         bool
}

func newRootCmd(ctx context.Context, f *cliFlags, exitCode *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "hls-recorder",
		Short:         "Record live HLS room streams to .ts files",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*exitCode = run(ctx, cmd, f)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&f.rooms, "room", "r", nil, "Room to record; repeat or comma-separate for several")
	flags.StringVarP(&f.output, "output", "o", "", "Output directory for recordings")
	flags.BoolVarP(&f.monitor, "monitor", "m", false, "Wait for rooms to come online and record them automatically")
	flags.IntVar(&f.resolution, "resolution", 0, "Target video height (e.g. 1080, 720, 480)")
	flags.IntVar(&f.fps, "fps", 0, "Target framerate (30 or 60)")
	flags.StringVar(&f.cookies, "cookies", "", "Cookie header for private streams (also CB_COOKIES)")
	flags.StringVar(&f.userAgent, "user-agent", "", "Custom User-Agent string")
	flags.IntVar(&f.maxDuration, "max-duration", 0, "Split files after this many minutes (0 = unlimited)")
	flags.IntVar(&f.maxFilesize, "max-filesize", 0, "Split files after this many MB (0 = unlimited)")
	flags.IntVar(&f.checkInterval, "check-interval", 0, "Seconds between liveness checks in monitor mode")
	flags.StringVarP(&f.configPath, "config", "c", "config.yaml", "Path to YAML config file")
	flags.StringVar(&f.envFile, "env-file", ".env", "Path to .env file")
	flags.StringVar(&f.statusAddr, "status-addr", "", "Serve room status and metrics on this address (e.g. :8080)")
	flags.BoolVarP(&f.quiet, "quiet", "q", false, "Only log errors")
	flags.BoolVar(&f.debug, "debug", false, "Enable debug logging")

	return cmd
}

// mergeInto applies flags the user set over the loaded configuration.
func (f *cliFlags) mergeInto(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if len(f.rooms) > 0 {
		cfg.Monitor.Rooms = f.rooms
	}
	if changed("output") {
		cfg.Recording.OutputDirectory = f.output
	}
	if changed("resolution") {
		cfg.Recording.Resolution = f.resolution
	}
	if changed("fps") {
		cfg.Recording.Framerate = f.fps
	}
	if changed("cookies") {
		cfg.Network.Cookies = f.cookies
	}
	if changed("user-agent") {
		cfg.Network.UserAgent = f.userAgent
	}
	if changed("max-duration") {
		cfg.Recording.MaxDurationMinutes = f.maxDuration
	}
	if changed("max-filesize") {
		cfg.Recording.MaxFilesizeMB = f.maxFilesize
	}
	if changed("check-interval") {
		cfg.Monitor.CheckIntervalSeconds = f.checkInterval
	}
	if changed("status-addr") {
		cfg.Status.Address = f.statusAddr
	}
	switch {
	case f.quiet:
		cfg.Logging.Level = "quiet"
	case f.debug:
		cfg.Logging.Level = "debug"
	}
}

func optionsFromConfig(cfg *config.Config, monitor bool) recorder.Options {
	opts := recorder.DefaultOptions()
	opts.Domain = cfg.DomainWithSlash()
	opts.OutputDirectory = cfg.Recording.OutputDirectory
	opts.FilenamePattern = cfg.Recording.FilenamePattern
	opts.MaxDuration = cfg.MaxDuration()
	opts.MaxFileBytes = cfg.MaxFileBytes()
	opts.Resolution = cfg.Recording.Resolution
	opts.Framerate = cfg.Recording.Framerate
	opts.PollInterval = cfg.Recording.PollInterval
	opts.Monitor = monitor
	opts.CheckInterval = cfg.CheckInterval()
	opts.RequestsPerSecond = cfg.Network.RequestsPerSecond
	return opts
}

// loadEnv applies the env file at path. A missing file is skipped silently;
// any other failure is reported to w and startup continues.
func loadEnv(path string, w io.Writer) {
	if err := config.LoadEnv(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(w, "warning: load env file:", err)
	}
}

func run(ctx context.Context, cmd *cobra.Command, f *cliFlags) int {
	loadEnv(f.envFile, os.Stderr)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return recorder.ExitConfig
	}
	f.mergeInto(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return recorder.ExitConfig
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	client := httpclient.New(httpclient.Options{
		UserAgent: cfg.Network.UserAgent,
		Cookies:   cfg.Network.Cookies,
		Timeout:   cfg.Network.Timeout,
	})

	met := metrics.New()
	repo := status.NewInMemoryRepository()
	for _, room := range cfg.Monitor.Rooms {
		repo.Register(room)
	}
	svc := status.NewService(repo)
	events := recorder.Fanout{recorder.NewLogSink(log), recorder.NewMetricsSink(met), svc}

	var srv *http.Server
	if cfg.Status.Address != "" {
		srv = &http.Server{
			Addr:              cfg.Status.Address,
			Handler:           newStatusRouter(status.NewHandler(svc, log), log, met),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("status server error", "error", err)
			}
		}()
		log.Info("status server starting", "address", cfg.Status.Address)
	}

	log.Info("recorder starting",
		"rooms", cfg.Monitor.Rooms,
		"monitor", f.monitor,
		"output_directory", cfg.Recording.OutputDirectory,
		"resolution", cfg.Recording.Resolution,
		"framerate", cfg.Recording.Framerate,
	)

	sup := recorder.NewSupervisor(cfg.Monitor.Rooms, client, optionsFromConfig(cfg, f.monitor), events, log)
	summary := sup.Run(ctx)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("status server shutdown error", "error", err)
		}
	}

	for _, res := range summary.Failed() {
		log.Error("room failed", slog.String("room", res.Room), slog.Any("error", res.Err))
	}
	return summary.ExitCode()
}

func newStatusRouter(h *status.Handler, log *slog.Logger, met *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", met.Handler(nil).ServeHTTP)
	r.Get("/rooms", h.ListRooms)
	r.Get("/rooms/{room}", h.GetRoom)
	return r
}

func execute(ctx context.Context, args []string) int {
	exitCode := recorder.ExitOK
	cmd := newRootCmd(ctx, &cliFlags{}, &exitCode)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return recorder.ExitConfig
	}
	return exitCode
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
