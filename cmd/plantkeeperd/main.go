// Command plantkeeperd serves the plantkeeper HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	httpapi "plantkeeper/internal/api/http"
	"plantkeeper/internal/auth"
	"plantkeeper/internal/blob"
	"plantkeeper/internal/config"
	"plantkeeper/internal/core"
	"plantkeeper/internal/imaging"
	"plantkeeper/internal/logging"
)

// openPersistentStore is swapped in tests.
var openPersistentStore = core.OpenPersistentStore

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := logging.New(cfg.Env)
	if cfg.Env == logging.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("plantkeeperd stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	engine := core.NewDefaultRulesEngine()
	store, err := openPersistentStore(ctx, cfg.CoreStorage(), engine)
	if err != nil {
		return err
	}
	// Replaced by svc.Close once the service owns the store.
	closeStore := store.Close
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("close store", slog.Any("error", err))
		}
	}()

	blobs, err := blob.Open(ctx, cfg.BlobStore())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promMetrics, err := core.NewPrometheusMetricsRecorder(reg, "")
	if err != nil {
		return err
	}

	svc := core.NewService(store,
		core.WithLogger(log),
		core.WithAuditRecorder(core.NewLoggerAuditRecorder(log)),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{promMetrics, core.NewExpvarMetricsRecorder("plantkeeper_service")}),
		core.WithImageArchive(imaging.NewArchive(blobs)),
		core.WithStrictFriendship(cfg.Social.StrictFriendship),
	)
	closeStore = svc.Close

	local, err := auth.OpenLocalProvider(ctx, blobs)
	if err != nil {
		return err
	}
	verifiers := []auth.Verifier{local}
	if fbCfg, ok := cfg.FirebaseAuth(); ok {
		fb, err := auth.NewFirebaseVerifier(ctx, fbCfg)
		if err != nil {
			return err
		}
		verifiers = append(verifiers, fb)
		log.Info("firebase token verification enabled", slog.String("project_id", fbCfg.ProjectID))
	}

	router := httpapi.SetupRouter(httpapi.Deps{
		Service:      svc,
		Provider:     local,
		Verifier:     auth.ChainVerifiers(verifiers...),
		Gatherer:     reg,
		AllowOrigins: cfg.HTTP.AllowOrigins,
		Logger:       log,
	})

	srv := &http.Server{Addr: cfg.HTTP.Address, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting application",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("storage", cfg.Storage.Driver),
			slog.String("blob", cfg.Blob.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
