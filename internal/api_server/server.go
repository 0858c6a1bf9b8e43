package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/dunelink/dunelink/internal/config"
	"github.com/dunelink/dunelink/internal/handlers"
	"github.com/dunelink/dunelink/pkg/metrics"
	"github.com/dunelink/dunelink/pkg/middleware"
)

const (
	gracefulShutdownTimeout = 5 * time.Second
	readHeaderTimeout       = 10 * time.Second

	duneRoute = "/dune"
	mcpRoute  = "/mcp"
)

type Server struct {
	cfg      *config.Config
	svc      handlers.QueryService
	tools    http.Handler
	listener net.Listener
}

// New returns a new instance of the dunelink API server. tools may be nil, in which
// case the tool endpoint is not mounted.
func New(
	cfg *config.Config,
	svc handlers.QueryService,
	tools http.Handler,
	listener net.Listener,
) *Server {
	return &Server{
		cfg:      cfg,
		svc:      svc,
		tools:    tools,
		listener: listener,
	}
}

func (s *Server) Router() (http.Handler, error) {
	router := chi.NewRouter()

	metricMiddleware := metrics.NewMiddleware("api_server")
	if err := metricMiddleware.Register(prometheusRegisterer); err != nil {
		return nil, err
	}

	router.Use(
		metricMiddleware.Handler,
		cors.Handler(cors.Options{
			AllowedOrigins: s.cfg.Service.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"*"},
			ExposedHeaders: []string{"X-Request-Id", "Mcp-Session-Id"},
			MaxAge:         300,
		}),
		middleware.RequestID,
		middleware.Logger(),
		chiMiddleware.Recoverer,
	)

	router.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, duneRoute+"/", http.StatusFound)
	})
	router.Mount(duneRoute, handlers.NewDuneHandler(s.svc, s.cfg.Service.LegacyStatus).Routes())
	if s.tools != nil {
		router.Handle(mcpRoute, s.tools)
	}

	return router, nil
}

func (s *Server) Run(ctx context.Context) error {
	zap.S().Named("api_server").Info("Initializing API server")

	router, err := s.Router()
	if err != nil {
		return err
	}

	srv := http.Server{
		Addr:              s.cfg.Service.Address,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		zap.S().Named("api_server").Infof("Shutdown signal received: %s", ctx.Err())
		ctxTimeout, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
		defer cancel()

		srv.SetKeepAlivesEnabled(false)
		_ = srv.Shutdown(ctxTimeout)
		zap.S().Named("api_server").Info("api server terminated")
	}()

	zap.S().Named("api_server").Infof("Listening on %s...", s.listener.Addr().String())
	if err := srv.Serve(s.listener); err != nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
