// Package server exposes the dispatch service over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/CloudNativeWorks/elchi-decompiler/internal/dispatch"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

const (
	defaultMaxUploadBytes = 256 << 20
	// multipartMemory is how much of an upload is held in memory before the
	// multipart reader spills to disk.
	multipartMemory = 32 << 20
)

type Options struct {
	MaxUploadBytes int64
	RateLimit      float64
	RateBurst      int
	MaxConcurrent  int
}

type Server struct {
	svc     *dispatch.Service
	opts    Options
	limiter *rate.Limiter
	slots   chan struct{}
	logger  *logger.Logger
	now     func() time.Time
}

func New(svc *dispatch.Service, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}
	s := &Server{
		svc:     svc,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.RateBurst),
		logger:  logger.NewLogger("server"),
		now:     time.Now,
	}
	if opts.MaxConcurrent > 0 {
		s.slots = make(chan struct{}, opts.MaxConcurrent)
	}
	return s
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/modes", s.handleModes)

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Use(s.concurrencyLimit)
		r.Post("/decompile/class", s.handleDecompileClass)
		r.Post("/decompile/jar", s.handleDecompileJar)
	})
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/archives/{requestID}", s.handleListArchives)
		r.Get("/archives/{requestID}/{name}", s.handleFetchArchive)
	})
	return r
}
