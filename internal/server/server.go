// Package server exposes the review engine as a JSON API for the web app
// and the browser extension.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/example/codecycle/internal/auth"
	"github.com/example/codecycle/internal/catalog"
	"github.com/example/codecycle/internal/leetcode"
	"github.com/example/codecycle/internal/logger"
	"github.com/example/codecycle/internal/review"
	"github.com/example/codecycle/pkg/models"
)

const (
	sessionCookie = "session"
	userKey       = "user"

	// Login attempts per client address
	loginRPS   = 1
	loginBurst = 5
)

// ProfileFetcher reads a LeetCode profile
type ProfileFetcher interface {
	FetchUserProfile(ctx context.Context, username string, creds leetcode.Credentials) (*leetcode.Profile, error)
}

// HistoryReader lists a user's submitted reviews
type HistoryReader interface {
	ListReviewLogs(ctx context.Context, userID string) ([]*models.ReviewLog, error)
}

// Services are the collaborators behind the API
type Services struct {
	Reviews  *review.Service
	Auth     *auth.Service
	Syncer   *catalog.Syncer
	Profiles ProfileFetcher
	History  HistoryReader
}

// Options configures the HTTP layer
type Options struct {
	CORSOrigins   []string
	SecureCookies bool // Set the Secure flag on the session cookie
}

// Server is the HTTP API
type Server struct {
	echo     *echo.Echo
	reviews  *review.Service
	auth     *auth.Service
	syncer   *catalog.Syncer
	profiles ProfileFetcher
	history  HistoryReader
	opts     Options
	log      *logger.Logger
}

// New creates the API server and registers its routes
func New(svc Services, opts Options, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		echo:     echo.New(),
		reviews:  svc.Reviews,
		auth:     svc.Auth,
		syncer:   svc.Syncer,
		profiles: svc.Profiles,
		history:  svc.History,
		opts:     opts,
		log:      log.Component("http"),
	}
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Use(middleware.Recover())
	s.echo.Use(s.requestLogger())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.echo.GET("/healthz", s.handleHealth)

	api := s.echo.Group("/api")
	loginLimiter := middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: rate.Limit(loginRPS), Burst: loginBurst, ExpiresIn: 3 * time.Minute},
	))
	api.POST("/auth/login", s.handleLogin, loginLimiter)
	api.POST("/auth/logout", s.handleLogout)

	authed := api.Group("", s.requireUser)
	authed.GET("/review/today", s.handleToday)
	authed.POST("/review/submit", s.handleSubmit)
	authed.GET("/review/settings", s.handleGetSettings)
	authed.PUT("/review/settings", s.handleUpdateSettings)
	authed.GET("/review/stats", s.handleStats)
	authed.GET("/review/export", s.handleExport)
	authed.GET("/leetcode/solved", s.handleSync)
	authed.GET("/leetcode/profile", s.handleProfile)
	authed.GET("/problems", s.handleProblems)
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on addr until Shutdown is called; it then returns http.ErrServerClosed
func (s *Server) Start(addr string) error {
	s.log.Info("http server listening", "addr", addr)
	return s.echo.Start(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug("request",
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency.Round(time.Microsecond),
			)
			return nil
		},
	})
}

// requireUser resolves the session from the cookie or a bearer token
func (s *Server) requireUser(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := s.auth.ResolveCurrentUser(c.Request().Context(), sessionToken(c))
		if err != nil {
			return err
		}
		c.Set(userKey, user)
		return next(c)
	}
}

func sessionToken(c echo.Context) string {
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func currentUser(c echo.Context) *models.User {
	user, _ := c.Get(userKey).(*models.User)
	return user
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
