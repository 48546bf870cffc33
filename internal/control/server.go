package control

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cortexvms/vms-core/internal/app"
	"github.com/cortexvms/vms-core/internal/config"
	"github.com/cortexvms/vms-core/internal/control/ws"
	"github.com/cortexvms/vms-core/internal/logging"
	"github.com/cortexvms/vms-core/internal/security"
)

// Server is the Control Surface: an http.Server wrapping a chi router
// whose handlers are thin translations onto an *app.Application.
type Server struct {
	app       *app.Application
	cfg       config.ServerConfig
	secCfg    config.SecurityConfig
	jwt       *security.JWTHandler
	perms     *security.PermissionChecker
	validator *security.InputValidator
	hub       *ws.Hub
	logger    *logging.Logger

	httpServer *http.Server
}

// New builds a Server. jwtSecret is resolved by the caller (typically from
// the environment variable named by cfg.Security.JWTSecretEnv) so this
// package never reads the environment directly.
func New(application *app.Application, cfg config.ServerConfig, secCfg config.SecurityConfig, jwtSecret string, logger *logging.Logger) (*Server, error) {
	jwtHandler, err := security.NewJWTHandler(jwtSecret, logger)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:       application,
		cfg:       cfg,
		secCfg:    secCfg,
		jwt:       jwtHandler,
		perms:     security.NewPermissionChecker(secCfg.MutatingRoleSet()),
		validator: security.NewInputValidator(logger),
		hub:       ws.NewHub(application.Bus(), logger),
		logger:    logger,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(httprate.Limit(
		s.requestLimitPerWindow(),
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", s.hub.ServeHTTP)

	r.Group(func(r chi.Router) {
		if s.secCfg.RequireAuth {
			r.Use(security.RequireAuth(s.jwt, s.logger))
		}

		r.Get("/cameras", s.listCameras)
		r.Get("/cameras/{id}", s.getCamera)
		r.Get("/cameras/{id}/hls-playlist.m3u8", s.hlsPlaylist)
		r.Get("/cameras/{id}/hls/{segment}", s.hlsSegment)
		r.Get("/recordings", s.listRecordings)
		r.Get("/anpr/events", s.listANPREvents)
		r.Get("/system/stats", s.systemStats)

		r.Group(func(r chi.Router) {
			if s.secCfg.RequireAuth {
				r.Use(security.RequireMutatingRole(s.perms, s.logger))
			}

			r.Post("/cameras", s.createCamera)
			r.Put("/cameras/{id}", s.updateCamera)
			r.Delete("/cameras/{id}", s.deleteCamera)
			r.Post("/cameras/{id}/start-record", s.startRecording)
			r.Post("/cameras/{id}/stop-record", s.stopRecording)
			r.Post("/cameras/{id}/snapshot", s.takeSnapshot)
			r.Post("/anpr/process", s.processANPR)
		})
	})

	return r
}

func (s *Server) requestLimitPerWindow() int {
	if s.cfg.RateLimitRequests <= 0 {
		return 100
	}
	return s.cfg.RateLimitRequests
}

// Run starts the HTTP listener and the WebSocket hub's broadcast loop,
// blocking until ctx is cancelled or ListenAndServe returns a non-shutdown
// error.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port),
		Handler:      s.routes(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeout) * time.Second,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

