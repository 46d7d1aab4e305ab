package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/bingo_bridge/internal/api"
	"github.com/dgnsrekt/bingo_bridge/internal/appstate"
	"github.com/dgnsrekt/bingo_bridge/internal/bot"
	"github.com/dgnsrekt/bingo_bridge/internal/camera"
	"github.com/dgnsrekt/bingo_bridge/internal/compress"
	"github.com/dgnsrekt/bingo_bridge/internal/config"
	"github.com/dgnsrekt/bingo_bridge/internal/controller"
	"github.com/dgnsrekt/bingo_bridge/internal/credential"
	"github.com/dgnsrekt/bingo_bridge/internal/imagestore"
	"github.com/dgnsrekt/bingo_bridge/internal/intake"
	"github.com/dgnsrekt/bingo_bridge/internal/netutil"
	"github.com/dgnsrekt/bingo_bridge/internal/relay"
	"github.com/dgnsrekt/bingo_bridge/internal/settings"
	"github.com/dgnsrekt/bingo_bridge/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load bridge config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("bridge config loaded",
		"bind_addr", cfg.BindAddr,
		"bind_fallbacks", cfg.BindFallbacks,
		"store_driver", cfg.StoreDriver,
		"camera_driver", cfg.CameraDriver,
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, err := storage.NewProvider(ctx, storage.Config{
		Driver: cfg.StoreDriver,
		Limit:  cfg.StoreLimit,
		Redis: storage.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		},
	})
	if err != nil {
		slog.Error("failed to open credential store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			slog.Debug("credential store close failed", "error", err)
		}
	}()

	images, err := imagestore.NewStore(filepath.Join(cfg.DataDir, "images"))
	if err != nil {
		slog.Error("failed to create image store", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	audit, err := storage.NewJSONLWriter(cfg.DataDir, "uploads.jsonl", 256, cfg.AuditMaxSizeMB)
	if err != nil {
		slog.Error("failed to open upload audit log", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	slog.Info("upload audit log opened", "path", audit.Path())
	defer func() {
		if err := audit.Close(); err != nil {
			slog.Debug("audit log close failed", "error", err)
		}
	}()

	broker := relay.NewBroker()
	state := appstate.NewStore(appstate.State{History: true})
	go relay.PumpState(ctx, state, broker)

	deps := intake.Deps{
		Compressor: compress.New(compress.Options{
			MaxBytes: cfg.CompressMaxBytes,
			MaxEdge:  cfg.CompressMaxEdge,
			Quality:  cfg.CompressQuality,
		}),
		JPEGQuality: cfg.CaptureQuality,
	}
	var feed *camera.FeedDevice
	switch cfg.CameraDriver {
	case "feed":
		feed = camera.NewFeedDevice(cfg.CameraOpenTimeout)
		deps.Device = feed
	case "tab":
		tab, release := camera.NewTabDevice(cfg.CDPURL(), cfg.CaptureQuality)
		defer release()
		deps.Device = tab
	}

	session := bot.NewSession(images, audit)
	deps.Uploader = session
	panels := intake.NewRegistry(deps, cfg.PanelIdleTTL, cfg.PanelSweep, relay.PanelObserver(broker))
	defer panels.Close()

	codec := credential.NewCodec(nil)
	settingsSvc := settings.NewService(codec, state, relay.NewNavigator(broker), cfg.ReloadDelay)
	svc := controller.NewService(codec, settingsSvc, panels, session)

	opts := api.Options{
		Stores:         stores,
		Events:         relay.SSEHandler(broker, 15*time.Second),
		MaxUploadBytes: cfg.CompressMaxBytes,
	}
	if feed != nil {
		opts.CameraFeed = feed
	}
	h := api.NewServer(svc, opts)

	go pruneImages(ctx, images, cfg.ImageRetention)

	ln, err := netutil.Listen(cfg.BindAddr, cfg.BindFallbacks, cfg.AutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}
	addr := ln.Addr().String()
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		// Event streams end with the process context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		slog.Info("bridge listening", "addr", addr, "docs", "http://"+addr+"/docs")
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("bridge server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("bridge shutdown failed", "error", err)
	}
}

// pruneImages removes stored images older than retention every hour.
func pruneImages(ctx context.Context, images *imagestore.Store, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := images.Prune(time.Now().Add(-retention))
			if err != nil {
				slog.Warn("image prune failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("pruned stored images", "count", n)
			}
		}
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
