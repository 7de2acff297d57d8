package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"locshare-relay/cluster"
	"locshare-relay/config"
	"locshare-relay/hub"
	"locshare-relay/logging"
	"locshare-relay/protocol"
	"locshare-relay/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logCloser := logging.Setup(cfg.Log)
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := hub.New()
	var opts []protocol.Option

	if cfg.ClusterEnabled() {
		bridge, err := cluster.Connect(ctx, cfg.Redis.URL, cfg.Redis.Channel, registry)
		if err != nil {
			slog.Error("cluster error", "error", err)
			os.Exit(1)
		}
		defer bridge.Close()
		opts = append(opts, protocol.WithFanout(bridge))

		go func() {
			if err := bridge.Run(ctx); err != nil {
				slog.Error("cluster bridge stopped", "error", err)
			}
		}()
	}

	handler := protocol.NewHandler(registry, opts...)
	srv := server.New(cfg, registry, handler)

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}
