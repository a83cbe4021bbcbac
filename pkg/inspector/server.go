package inspector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vango-dev/statelift/pkg/middleware"
	"github.com/vango-dev/statelift/pkg/store"
)

// Message is one frame sent to websocket clients.
type Message struct {
	// Type is "hello" for the first frame and "event" afterwards.
	Type   string       `json:"type"`
	Client string       `json:"client,omitempty"`
	Event  *store.Event `json:"event,omitempty"`

	// Dropped counts events discarded for this client since the previous
	// frame because its buffer was full.
	Dropped uint64 `json:"dropped,omitempty"`
}

// Server exposes stores over HTTP.
type Server struct {
	cfg      Config
	stores   map[string]*store.Store
	names    []string
	router   chi.Router
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[uuid.UUID]*client
	httpSrv *http.Server

	stop     chan struct{}
	stopOnce sync.Once
}

type client struct {
	id      uuid.UUID
	send    chan *store.Event
	dropped atomic.Uint64
}

// New creates an inspector over stores. Stores are addressed by name.
func New(stores []*store.Store, opts ...Option) *Server {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = 256
	}

	s := &Server{
		cfg:     cfg,
		stores:  make(map[string]*store.Store, len(stores)),
		clients: make(map[uuid.UUID]*client),
		stop:    make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, st := range stores {
		s.stores[st.Name()] = st
		s.names = append(s.names, st.Name())
	}
	sort.Strings(s.names)

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.OpenTelemetry(middleware.WithTracer(cfg.Tracer)))
	if cfg.Registry != nil {
		r.Use(middleware.Prometheus(middleware.WithRegistry(cfg.Registry)))
	}
	r.Get("/stats", s.handleStats)
	r.Get("/stats/{store}", s.handleStoreStats)
	r.Get("/events", s.handleEvents)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

// Handler returns the inspector's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and blocks until Shutdown.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()

	s.cfg.Logger.Info("inspector listening", "addr", s.cfg.Addr, "stores", s.names)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every websocket client and stops the HTTP server started
// by Start.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Clients returns the number of connected websocket clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := make([]store.Stats, 0, len(s.names))
	for _, name := range s.names {
		stats = append(stats, s.stores[name].Stats())
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStoreStats(w http.ResponseWriter, r *http.Request) {
	st, ok := s.stores[chi.URLParam(r, "store")]
	if !ok {
		http.Error(w, "unknown store", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, st.Stats())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	targets := s.names
	if name := r.URL.Query().Get("store"); name != "" {
		if _, ok := s.stores[name]; !ok {
			http.Error(w, "unknown store", http.StatusNotFound)
			return
		}
		targets = []string{name}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.cfg.Logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{id: uuid.New(), send: make(chan *store.Event, s.cfg.ClientBuffer)}
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, c.id)
		s.mu.Unlock()
	}()

	for _, name := range targets {
		unsubscribe := s.stores[name].Observe(func(ev store.Event) {
			select {
			case c.send <- &ev:
			default:
				c.dropped.Add(1)
			}
		})
		defer unsubscribe()
	}

	log := s.cfg.Logger.With("client", c.id.String())
	log.Debug("inspector client connected", "stores", targets)
	defer log.Debug("inspector client disconnected")

	pongWait := 2 * s.cfg.PingInterval
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Reading is required to notice the client going away.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	if err := s.write(conn, Message{Type: "hello", Client: c.id.String()}); err != nil {
		return
	}

	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.send:
			msg := Message{Type: "event", Event: ev, Dropped: c.dropped.Swap(0)}
			if err := s.write(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-s.stop:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (s *Server) write(conn *websocket.Conn, msg Message) error {
	conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return conn.WriteJSON(msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
