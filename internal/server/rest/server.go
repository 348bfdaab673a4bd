// Package rest exposes the user service as a JSON HTTP API built on echo.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/logging"
	"github.com/dmitrijs2005/jwtauth/internal/server/auth"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
	"github.com/labstack/echo/v4"
)

// RoleAdmin is the role allowed on the admin-only route.
const RoleAdmin = "Admin"

const shutdownTimeout = 5 * time.Second

type userSvc interface {
	Register(ctx context.Context, userName, password string) (*models.User, error)
	Login(ctx context.Context, userName, password string) (*models.TokenPair, error)
	RefreshToken(ctx context.Context, userID, refreshToken string) (*models.TokenPair, error)
}

type tokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

type HTTPServer struct {
	address string
	users   userSvc
	logger  logging.Logger
	echo    *echo.Echo
}

func NewHTTPServer(a string, l logging.Logger, us userSvc, v tokenVerifier) *HTTPServer {
	s := &HTTPServer{
		address: a,
		users:   us,
		logger:  l.With("module", "http_server"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.requestLogger)

	e.GET("/healthz", s.health)

	g := e.Group("/api/auth")
	g.POST("/register", s.register)
	g.POST("/login", s.login)
	g.POST("/refresh-token", s.refreshToken)
	g.GET("", s.authenticatedOnly, JWTAuth(v))
	g.GET("/admin-only", s.adminOnly, JWTAuth(v), RequireRole(RoleAdmin))

	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Run serves HTTP until ctx is done, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- s.echo.Start(s.address)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *HTTPServer) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		if err != nil {
			c.Error(err)
		}
		s.logger.Debug(c.Request().Context(), "http request",
			"method", c.Request().Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"duration", time.Since(start),
		)
		return nil
	}
}
