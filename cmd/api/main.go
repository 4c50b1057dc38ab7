package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-election/internal/audit"
	"github.com/ovaphlow/pitchfork/service-election/internal/election"
	"github.com/ovaphlow/pitchfork/service-election/internal/region"
	regionrepo "github.com/ovaphlow/pitchfork/service-election/internal/region/repo"
	"github.com/ovaphlow/pitchfork/service-election/internal/router"
	"github.com/ovaphlow/pitchfork/service-election/internal/session"
	"github.com/ovaphlow/pitchfork/service-election/internal/user"
	"github.com/ovaphlow/pitchfork/service-election/internal/web"
	"github.com/ovaphlow/pitchfork/service-election/pkg/database"
	"github.com/ovaphlow/pitchfork/service-election/pkg/utilities"
)

func main() {
	// load .env file if present so os.Getenv picks values from it
	// this is best-effort: if no .env exists, continue (use defaults or real env)
	_ = godotenv.Load()

	// init logger
	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting service-election")

	// init db
	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(cfg)
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()

	version, err := database.Migrate(sqlDB)
	if err != nil {
		sugar.Fatalf("db migrate: %v", err)
	}
	sugar.Infow("schema ready", "version", version)

	// wrap with sqlx for convenience in repos/services
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	sessions, err := session.NewManager(sqlxDB, nil, session.ConfigFromEnv(), sugar)
	if err != nil {
		sugar.Fatalf("session manager: %v", err)
	}
	view, err := web.NewRenderer(sugar)
	if err != nil {
		sugar.Fatalf("templates: %v", err)
	}

	recorder := audit.NewRecorder(sqlxDB, nil, sugar)
	regions := regionrepo.NewRegionRepo(sqlxDB)

	userSvc := user.NewUserService(sqlxDB, nil, nil)
	sugar.Infow("voter provisioning", "placeholder_region_id", userSvc.DefaultRegionID)
	voteSvc := election.NewVoteService(sqlxDB, nil, recorder, sugar)
	adminSvc := election.NewAdminService(sqlxDB, nil, sugar)

	handler := router.RegisterRoutes(sugar, router.Handlers{
		Sessions: sessions,
		Users:    user.NewHandler(userSvc, sessions, recorder, regions, view, sugar),
		Voter:    election.NewVoterHandler(voteSvc, recorder, view, sugar),
		Admin:    election.NewAdminHandler(adminSvc, regions, recorder, view, sugar),
		Audit:    audit.NewHandler(sqlxDB, nil, view, sugar),
		Regions:  region.NewHandler(sqlxDB, regions, view, sugar),
	})

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = "127.0.0.1:5000"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// run server in background
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()
	sugar.Infow("service is running; press Ctrl+C to stop", "addr", addr)

	<-ctx.Done()

	sugar.Info("shutting down")

	// give a short grace period for in-flight requests
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}

	sugar.Info("goodbye")
}
