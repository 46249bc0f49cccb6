package echoweb

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/dig"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/query"
	apisvc "github.com/trezcool/masomo-portal/services/api"
	metricsvc "github.com/trezcool/masomo-portal/services/metrics"
)

type (
	Options struct {
		dig.In

		Conf      *core.Config
		Logger    core.Logger
		API       *apisvc.Client
		Cache     *query.Cache
		Validator *core.Validator
		Sessions  sessions.Store
		Metrics   *metricsvc.Metrics `optional:"true"`

		DisableReqLogs bool `name:"disableReqLogs" optional:"true"`
	}

	Server struct {
		opts     Options
		app      *echo.Echo
		views    *renderer
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(opts Options) *Server {
	s := &Server{
		opts:     opts,
		app:      echo.New(),
		views:    newRenderer(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.setup()
	return s
}

func (s *Server) setup() {
	debug := s.opts.Conf.Debug

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if s.opts.Metrics != nil {
		s.app.Use(s.opts.Metrics.Middleware)
	}
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.opts.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:" + csrfField,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		Skipper: func(ctx echo.Context) bool {
			return ctx.Path() == "/metrics" || ctx.Path() == "/health"
		},
	}))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Sessions, s.views, s.signalShutdown)
	s.app.Debug = debug

	s.app.GET("/health", s.health)
	if s.opts.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics.Handler()))
	}

	s.app.GET("/login", s.loginPage)
	s.app.POST("/login", s.login)
	s.app.GET("/signup", s.signupPage)
	s.app.POST("/signup", s.signup)

	g := s.app.Group("", s.authenticate, allowedMiddleware)
	g.POST("/logout", s.logout)
	s.registerPages(g)
}

func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	if err := s.app.Start(s.opts.Conf.Web.Addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Errors receives the error that stopped the listener.
func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.opts.Conf.Build})
}
