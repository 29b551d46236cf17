package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/airadcr/airadcr-desktop/internal/auth"
	"github.com/airadcr/airadcr-desktop/internal/config"
	"github.com/airadcr/airadcr-desktop/internal/coordinator"
	"github.com/airadcr/airadcr-desktop/internal/events"
	"github.com/airadcr/airadcr-desktop/internal/hub"
	"github.com/airadcr/airadcr-desktop/internal/ingest"
	"github.com/airadcr/airadcr-desktop/internal/logging"
	"github.com/airadcr/airadcr-desktop/internal/maintenance"
	"github.com/airadcr/airadcr-desktop/internal/secrets"
	"github.com/airadcr/airadcr-desktop/internal/store"
)

// version and commit are set at build time via ldflags, following the
// teacher's own build-info convention.
var version = "dev"
var commit = "unknown"

func versionString() string {
	if commit != "" && commit != "unknown" {
		return version + " (" + commit + ")"
	}
	return version
}

func main() {
	openTID := flag.String("open-tid", "", "navigate the running instance to this technical_id and exit")
	flag.Parse()

	dataDir, err := localDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve local data directory: %v\n", err)
		os.Exit(1)
	}
	configPath, err := configFilePath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve config path: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	prod := isProductionEnv()
	log, closeLog, err := logging.NewWithFile(prod, filepath.Join(dataDir, "logs"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	fmt.Println("airadcr-desktop " + versionString())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	nav := events.NewNavigationBus()
	lockPath := filepath.Join(dataDir, "airadcr-desktop.lock")
	argv := os.Args[1:]
	release, acquired, err := coordinator.AcquireSingleInstance(ctx, lockPath, argv, nav, log.Logger)
	if err != nil {
		log.Error("single-instance lock failed", "error", err)
		os.Exit(1)
	}
	if !acquired {
		log.Info("another instance is already running; argv forwarded")
		return
	}
	defer release()

	vault, err := secrets.Open()
	if err != nil {
		log.Error("failed to open secret vault", "error", err)
		os.Exit(1)
	}

	dbKey, err := vault.DBKey()
	if err != nil {
		log.Error("failed to resolve database key", "error", err)
		os.Exit(1)
	}

	dbPath := filepath.Join(dataDir, "pending_reports.db")
	st, err := store.Open(dbPath, dbKey)
	if err != nil {
		log.Error("failed to open encrypted store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := seedFirstAPIKey(st, log.Logger); err != nil {
		log.Error("failed to seed first-run API key", "error", err)
		os.Exit(1)
	}

	if cfg.TeoHub.Enabled {
		token, terr := vault.HubToken()
		if terr != nil {
			log.Warn("hub token unavailable, disabling hub client", "error", terr)
			cfg.SetHubEnabled(false)
		} else {
			cfg.TeoHub.APIToken = token
		}
	}
	hubClient := hub.New(cfg.TeoHub)

	acts := events.NewActionBus()
	coord := coordinator.New(coordinator.Options{
		Log:  log.With("component", "coordinator"),
		Nav:  nav,
		Acts: acts,
	})

	ingestSrv := ingest.NewServer(ingest.Dependencies{
		Store:  st,
		Hub:    hubClient,
		Config: cfg,
		Nav:    nav,
		View:   coord,
		Log:    log.With("component", "ingest"),
	})
	go func() {
		if err := ingestSrv.ListenAndServe(cfg.HTTPPort); err != nil {
			log.Error("ingestion server stopped", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		ingestSrv.Shutdown(shutCtx)
	}()

	backupDir := filepath.Join(dataDir, "backups")
	metricsPath := filepath.Join(dataDir, "metrics.prom")
	sched := maintenance.New(st, backupDir, cfg.BackupRetention(), metricsPath, log.With("component", "maintenance"))
	if cfg.BackupEnabled {
		if err := sched.Start(cfg.LogRetention()); err != nil {
			log.Error("failed to start maintenance scheduler", "error", err)
			os.Exit(1)
		}
		defer sched.Stop()
	}

	if *openTID != "" {
		coord.NavigateTo(*openTID)
	}
	for _, arg := range argv {
		if tid, ok := coordinator.ExtractTechnicalID(arg); ok {
			coord.NavigateTo(tid)
			break
		}
	}

	coord.Run(ctx)
	log.Info("shutting down")
}

// seedFirstAPIKey implements the first-run credential seed: if no API key
// exists yet, either adopt AIRADCR_PROD_API_KEY verbatim (hashed and
// prefixed the same way a generated key would be) or mint a random one
// and log its prefix so an operator can find it in the access log later.
func seedFirstAPIKey(st *store.Store, log interface {
	Info(string, ...any)
	Warn(string, ...any)
}) error {
	existing, err := st.ListAPIKeys()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	if raw := os.Getenv("AIRADCR_PROD_API_KEY"); raw != "" {
		return seedFromEnv(st, raw)
	}

	plaintext, rec, err := st.CreateAPIKey("default")
	if err != nil {
		return err
	}
	log.Warn("no AIRADCR_PROD_API_KEY set; generated a random first-run API key",
		"prefix", rec.KeyPrefix)
	_ = plaintext // surfaced only via the prefix above; never logged in full
	return nil
}

func seedFromEnv(st *store.Store, raw string) error {
	rec := store.APIKey{
		KeyPrefix: auth.Prefix(raw),
		KeyHash:   auth.HashKey(raw),
		Name:      "env-seeded",
		IsActive:  true,
	}
	return st.SeedAPIKey(rec)
}

func isProductionEnv() bool {
	env := strings.ToLower(os.Getenv("AIRADCR_ENV"))
	return env == "prod" || env == "production"
}

func localDataDir() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "AIRADCR")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func configFilePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "airadcr-desktop", "config.toml"), nil
}
