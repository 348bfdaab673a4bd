// Package server wires configuration, storage, token issuance and both API
// transports into a runnable application with graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/jwtauth/internal/logging"
	"github.com/dmitrijs2005/jwtauth/internal/server/auth"
	"github.com/dmitrijs2005/jwtauth/internal/server/config"
	"github.com/dmitrijs2005/jwtauth/internal/server/events"
	"github.com/dmitrijs2005/jwtauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/jwtauth/internal/server/rest"
	"github.com/dmitrijs2005/jwtauth/internal/server/services"

	gs "github.com/dmitrijs2005/jwtauth/internal/server/grpc"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	publisher   events.Publisher
	userService *services.UserService
	verifier    *auth.Verifier
}

// NewApp validates c and builds every dependency. The returned App owns the
// repository manager and the publisher and releases them when Run returns.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	repos, err := repomanager.New(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	if err := repos.RunMigrations(ctx); err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	hasher, err := auth.NewArgon2Hasher(auth.DefaultArgon2Params)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}
	signer, err := auth.NewSigner(c.TokenConfig(), nil)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}
	verifier, err := auth.NewVerifier(c.TokenConfig(), nil)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}
	refresh, err := auth.NewRefreshTokenManager(c.RefreshTokenValidityDuration)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}

	var publisher events.Publisher = events.NopPublisher{}
	if c.AMQPURL != "" {
		publisher = events.NewAMQPPublisher(c.AMQPURL, c.AMQPQueue, events.WithAMQPLogger(logger))
	}

	us := services.NewUserService(repos.Users(), hasher, signer, refresh,
		services.WithLogger(logger),
		services.WithPublisher(publisher),
	)

	return &App{
		config:      c,
		logger:      logger,
		repos:       repos,
		publisher:   publisher,
		userService: us,
		verifier:    verifier,
	}, nil
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case <-sigs:
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.userService, app.verifier)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "grpc server failed", "error", err)
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewHTTPServer(app.config.EndpointAddrHTTP, app.logger, app.userService, app.verifier)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or a server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(ctx, cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.logger.Info(context.Background(), "Stopping app...")
	return errors.Join(app.publisher.Close(), app.repos.Close())
}
