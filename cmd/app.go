package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/face-gate/internal/auth"
	"github.com/kozaktomas/face-gate/internal/camera"
	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/constants"
	"github.com/kozaktomas/face-gate/internal/facematch"
	"github.com/kozaktomas/face-gate/internal/facerec"
	"github.com/kozaktomas/face-gate/internal/logger"
	"github.com/kozaktomas/face-gate/internal/metrics"
	"github.com/kozaktomas/face-gate/internal/store"
	"github.com/kozaktomas/face-gate/internal/store/postgres"
)

// app holds what every command needs: configuration, logger, store and metrics.
// Operator messages go to out.
type app struct {
	cfg     *config.Config
	log     *slog.Logger
	store   store.Store
	metrics *metrics.Metrics
	out     io.Writer
}

// newApp loads configuration and opens the store. Storage initialization
// problems are only logged so the operator still gets a working menu.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	log := logger.Initialize(cfg.Log.Level, cfg.Log.JSON)

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		log.Warn("failed to initialize storage", "error", err)
	}

	return &app{cfg: cfg, log: log, store: st, metrics: metrics.New(), out: os.Stdout}, nil
}

// openStore uses PostgreSQL when DATABASE_URL is set and the data directory otherwise.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Store, error) {
	if cfg.Database.URL == "" {
		log.Debug("using file store", "dir", cfg.Storage.DataDir)
		return store.NewFileStore(cfg.Storage.DataDir, log), nil
	}

	pool, err := postgres.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	if err := pool.Migrate(ctx, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Debug("using PostgreSQL store")
	return postgres.NewStore(pool), nil
}

func (a *app) close() {
	if err := a.metrics.Flush(a.cfg.Metrics.Textfile); err != nil {
		a.log.Warn("failed to write metrics", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", "error", err)
	}
}

func (a *app) devices() *camera.Devices {
	return &camera.Devices{Device: a.cfg.Camera.Device, Overlay: a.cfg.Overlay, Log: a.log}
}

func (a *app) recognizer() *facerec.Client {
	return facerec.NewClient(a.cfg.Recognizer.URL, a.cfg.Recognizer.Timeout)
}

func (a *app) enroller() *auth.Enroller {
	return &auth.Enroller{
		Store:      a.store,
		Devices:    a.devices(),
		Recognizer: a.recognizer(),
		Countdown:  auth.NewCountdown(a.cfg.Camera.Countdown, os.Stdout),
		Title:      a.cfg.Overlay.Windows.Register,
		Out:        os.Stdout,
		Log:        a.log,
		Metrics:    a.metrics,
	}
}

func (a *app) authenticator() *auth.Authenticator {
	return &auth.Authenticator{
		Store:        a.store,
		Devices:      a.devices(),
		Recognizer:   a.recognizer(),
		Matcher:      facematch.NewMatcher(),
		Countdown:    auth.NewCountdown(a.cfg.Camera.Countdown, os.Stdout),
		Title:        a.cfg.Overlay.Windows.Login,
		ConfirmDelay: constants.ConfirmationDelay,
		ScanTimeout:  a.cfg.Camera.ScanTimeout,
		Log:          a.log,
		Metrics:      a.metrics,
	}
}

func (a *app) banner() *auth.Banner {
	return &auth.Banner{Store: a.store, Log: a.log, Metrics: a.metrics}
}

// register runs one enrollment and prints the outcome.
func (a *app) register(ctx context.Context, username string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(a.out, "Press '%s' to capture your face, '%s' to cancel.\n", a.cfg.Overlay.CaptureKey, a.cfg.Overlay.QuitKey)
	res, err := a.enroller().Enroll(ctx, username)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %s registered successfully!\n", res.Record.Username)
	return nil
}

// login runs one login scan and prints the outcome.
func (a *app) login(ctx context.Context) (auth.LoginResult, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(a.out, "Look at the camera. Press '%s' to cancel.\n", a.cfg.Overlay.QuitKey)
	res, err := a.authenticator().Authenticate(ctx)
	if err != nil {
		return res, err
	}

	switch res.State {
	case auth.LoginAuthenticated:
		fmt.Fprintf(a.out, "Welcome back, %s! Access granted.\n", res.Username)
	case auth.LoginBanned:
		fmt.Fprintln(a.out, "ACCESS DENIED: this face is banned.")
	case auth.LoginNoMatch:
		fmt.Fprintln(a.out, "No matching face found.")
	case auth.LoginAborted:
		fmt.Fprintln(a.out, "Login cancelled.")
		a.log.Debug("login aborted", "reason", res.Reason)
	}
	return res, nil
}

// report prints err for the operator.
func (a *app) report(err error) {
	switch {
	case errors.Is(err, auth.ErrValidation):
		fmt.Fprintf(a.out, "Registration failed: %v\n", err)
	case errors.Is(err, auth.ErrSelection):
		fmt.Fprintf(a.out, "Invalid selection: %v\n", err)
	case errors.Is(err, auth.ErrAborted):
		fmt.Fprintln(a.out, "Cancelled.")
	case errors.Is(err, store.ErrEncoding):
		fmt.Fprintf(a.out, "Could not read your face, please try again: %v\n", err)
	default:
		fmt.Fprintf(a.out, "An error occurred: %v\n", err)
	}
}
