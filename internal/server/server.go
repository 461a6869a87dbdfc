// Package server exposes the contract layer over HTTP and websockets.
package server

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"iris-service/internal/common"
	"iris-service/internal/contract"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Routes
const (
	PathRoot     = "/"
	PathHealth   = "/health"
	PathContract = "/contract"
	PathPredict  = "/predict"
	PathMetrics  = "/metrics"
	PathStream   = "/ws/predict"
)

// StreamObserver is told when prediction streams open and close.
type StreamObserver interface {
	StreamOpened()
	StreamClosed()
}

// Options configures the HTTP server. Zero values fall back to defaults.
type Options struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string

	// Gatherer backs /metrics. nil serves the default registry.
	Gatherer prometheus.Gatherer
	// Requests and Streams may be nil.
	Requests RequestObserver
	Streams  StreamObserver
}

// Server serves the inference API.
type Server struct {
	svc      *contract.Service
	opts     Options
	server   *http.Server
	upgrader websocket.Upgrader

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]struct{}
	closing   bool // set by Shutdown; guarded by clientsMu
}

// New creates a server over svc. svc is shared by all requests and must be
// fully constructed before New is called.
func New(svc *contract.Service, opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = ":" + strconv.Itoa(common.DefaultPort)
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = common.DefaultReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = common.DefaultWriteTimeout
	}
	if opts.MaxBodyBytes == 0 {
		opts.MaxBodyBytes = common.DefaultMaxBodyBytes
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		svc:     svc,
		opts:    opts,
		clients: make(map[*websocket.Conn]struct{}),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(opts.AllowedOrigins, origin)
		},
	}

	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: opts.ReadTimeout,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Handler builds the routed handler with its middleware stack.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc(PathRoot, s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc(PathHealth, s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc(PathContract, s.handleContract).Methods(http.MethodGet)
	r.HandleFunc(PathPredict, s.handlePredict).Methods(http.MethodPost)
	r.HandleFunc(PathStream, s.handleStream).Methods(http.MethodGet)
	r.Handle(PathMetrics, s.metricsHandler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(handleNotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handleMethodNotAllowed)

	if s.opts.Requests != nil {
		r.Use(Instrument(s.opts.Requests))
	}

	return Chain(
		RequestID,
		AccessLog,
		Recovery,
		CORS(s.opts.AllowedOrigins),
	)(r)
}

func (s *Server) metricsHandler() http.Handler {
	if s.opts.Gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start begins serving HTTP requests. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("starting inference server")
	return s.server.ListenAndServe()
}

// Serve accepts connections on l.
func (s *Server) Serve(l net.Listener) error {
	log.Info().Str("addr", l.Addr().String()).Msg("starting inference server")
	return s.server.Serve(l)
}

// Shutdown stops accepting requests, closes open prediction streams and
// waits for in-flight requests until ctx expires.
// Streams upgraded after this point are closed by handleStream.
func (s *Server) Shutdown(ctx context.Context) error {
	s.clientsMu.Lock()
	s.closing = true
	for conn := range s.clients {
		closeGoingAway(conn)
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()

	return s.server.Shutdown(ctx)
}

func closeGoingAway(conn *websocket.Conn) {
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
		time.Now().Add(time.Second))
	conn.Close()
}
