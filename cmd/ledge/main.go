package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledge/internal/audit"
	"ledge/internal/ledge"

	"github.com/charmbracelet/log"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"
)

// EnvConfig is the environment-supplied configuration. Credentials are read
// once at startup and handed to the server; they are never logged.
type EnvConfig struct {
	Account         string `env:"LEDGE_ACCOUNT_ID" env-default:""`
	Bucket          string `env:"LEDGE_BUCKET" env-default:""`
	AccessKeyID     string `env:"LEDGE_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"LEDGE_SECRET_ACCESS_KEY" env-default:""`
	StorageDomain   string `env:"LEDGE_STORAGE_DOMAIN" env-default:"r2.cloudflarestorage.com"`
	Expiry          string `env:"LEDGE_URL_EXPIRY" env-default:""`
	UseSSL          bool   `env:"LEDGE_S3_SSL" env-default:"true"`
}

func Run(ctx context.Context) error {

	listenPort := flag.String("listen", "8080", "HTTP listen port")
	auditPath := flag.String("audit-db", "./ledge-audit.sqlite", "path of the SQLite download log")

	flag.Parse()

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	var env EnvConfig
	if err := cleanenv.ReadEnv(&env); err != nil {
		return fmt.Errorf("failed to read environment configuration: %w", err)
	}

	if env.Bucket == "" {
		return errors.New("LEDGE_BUCKET must be set")
	}

	endpoint := fmt.Sprintf("%s.%s", env.Account, env.StorageDomain)
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(env.AccessKeyID, env.SecretAccessKey, ""),
		Secure: env.UseSSL,
		Region: "auto",
	})
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	auditLog, err := audit.Open(ctx, *auditPath)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer auditLog.Close()

	server, err := ledge.NewServer(ledge.Config{
		Account:         env.Account,
		Bucket:          env.Bucket,
		AccessKeyID:     env.AccessKeyID,
		SecretAccessKey: env.SecretAccessKey,
		StorageDomain:   env.StorageDomain,
		Expiry:          env.Expiry,
		Store:           ledge.NewBucketStore(client, env.Bucket),
		Audit:           auditLog,
	})
	if err != nil {
		return fmt.Errorf("failed to create ledge server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%s", *listenPort),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		return httpServer.Shutdown(ctx)
	})

	eg.Go(func() error {
		slog.Info("Starting Ledge HTTP server", "port", *listenPort, "bucket", env.Bucket, "domain", env.StorageDomain)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("Ledge started")
	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("Ledge exited with error", "error", err)
	}
}
