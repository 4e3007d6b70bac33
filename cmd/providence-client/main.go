package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"providence/internal/config"
	"providence/internal/gamerunner"
	"providence/internal/hostclient"
	"providence/internal/logging"
	"providence/internal/session"
	"providence/internal/store"
	httptransport "providence/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var archive *store.Store
	if cfg.Client.ArchivePostgresDSN != "" {
		archive, err = store.New(cfg.Client.ArchivePostgresDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("archive init failed")
		}
		defer archive.Close()
		if err := archive.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("archive ping failed")
		}
		if err := archive.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("archive migrate failed")
		}
		archive.StartJanitor(ctx, time.Hour, cfg.Client.ArchiveRetention)
	}

	hostCfg := hostclient.ConfigFrom(cfg.Client.HostURL, cfg.Client.ClientID, cfg.Client.AuthToken, cfg.HostClient)
	factory := func() session.HostConn { return hostclient.New(hostCfg) }

	runner := gamerunner.New(gamerunner.ProcessLauncher{Binary: cfg.Client.GameBinary, Args: cfg.Client.GameArgs})
	sess := session.New(cfg.Session, cfg.Client.ClientID, factory, runner, time.Now())
	runner.Start(ctx, sess)

	if archive != nil {
		go store.NewRecorder(archive).Run(ctx, sess.Events())
	}

	log.Info().
		Str("client_id", cfg.Client.ClientID).
		Str("host_url", cfg.Client.HostURL).
		Dur("tick", cfg.Client.TickInterval).
		Msg("client session starting")

	var server *http.Server
	if cfg.Client.ControlEnabled() {
		var reports httptransport.ReportArchive
		if archive != nil {
			reports = archive
		}
		r := httptransport.NewRouter(sess, reports)
		httptransport.LogRoutes(r)
		server = &http.Server{
			Addr:              cfg.Client.ControlAddr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		go func() {
			log.Info().Str("addr", cfg.Client.ControlAddr).Msg("control api listening")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("control api stopped")
			}
		}()
	}

	sess.Run(ctx, cfg.Client.TickInterval)

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
}
