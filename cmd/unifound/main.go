package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/crypto/bcrypt"

	"github.com/unifound/unifound/internal/api"
	"github.com/unifound/unifound/internal/config"
	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/gateway/dynamostore"
	"github.com/unifound/unifound/internal/gateway/sqlitestore"
	"github.com/unifound/unifound/internal/session"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
// Returns a cleanup function that closes the log file (if opened).
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	ctx := context.Background()

	gw, jwtSecret, closeGW, err := openGateway(ctx, cfg)
	if err != nil {
		slog.Error("failed to open backend", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer closeGW()

	// First-run admin bootstrap: both backends go through the same gateway
	// surface, so either gets an admin account on an empty store.
	if err := bootstrapAdmin(ctx, gw, cfg.AdminEmail); err != nil {
		slog.Error("failed to bootstrap admin account", "error", err)
		os.Exit(1)
	}

	sessions := session.NewProvider(jwtSecret)
	handler := api.LoggingMiddleware(api.NewRouter(gw, sessions))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// No write timeout: the watch endpoint holds its response open.
		IdleTimeout: 120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Addr, "backend", cfg.Backend)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// openGateway builds the configured backend and resolves the JWT signing
// secret. The returned closer releases backend resources.
func openGateway(ctx context.Context, cfg config.Config) (gateway.Gateway, string, func(), error) {
	switch cfg.Backend {
	case config.BackendSQLite:
		database, err := sqlitestore.Open(cfg.DBPath)
		if err != nil {
			return nil, "", nil, fmt.Errorf("opening database: %w", err)
		}
		if err := sqlitestore.EnsureSchema(database); err != nil {
			database.Close()
			return nil, "", nil, fmt.Errorf("ensuring schema: %w", err)
		}
		store := sqlitestore.New(database)
		slog.Info("database ready", "path", cfg.DBPath)

		secret := cfg.JWTSecret
		if secret == "" {
			// Auto-generated and persisted in the settings table on first run.
			secret, err = store.JWTSecret(ctx)
			if err != nil {
				database.Close()
				return nil, "", nil, fmt.Errorf("loading jwt secret: %w", err)
			}
		}
		return store, secret, func() { database.Close() }, nil

	case config.BackendDynamo:
		awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, "", nil, fmt.Errorf("loading aws config: %w", err)
		}
		store := dynamostore.New(
			dynamodb.NewFromConfig(awsConf),
			s3.NewFromConfig(awsConf),
			dynamostore.Options{
				Table:        cfg.DynamoTable,
				Bucket:       cfg.S3Bucket,
				AssetTTL:     cfg.AssetTTL,
				PollInterval: cfg.PollInterval,
			},
		)
		slog.Info("dynamo backend ready", "table", cfg.DynamoTable, "bucket", cfg.S3Bucket)
		return store, cfg.JWTSecret, func() {}, nil
	}
	return nil, "", nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// bootstrapAdmin creates the admin account on first run and prints its
// generated password once.
func bootstrapAdmin(ctx context.Context, gw gateway.Gateway, email string) error {
	existing, err := gw.AccountByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("checking admin account: %w", err)
	}
	if existing != nil {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	if _, err := gw.CreateAccount(ctx, email, string(hash), true); err != nil {
		return fmt.Errorf("creating admin account: %w", err)
	}

	fmt.Println("Admin account created:")
	fmt.Printf("  Email:    %s\n", email)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password — it cannot be recovered.")
	return nil
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
