// Package viewer serves computed schedules to the dashboard renderer. It
// holds the current entity snapshot, memoises the computed payloads by
// snapshot hash and pushes recomputed payloads to websocket clients.
package viewer

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"lukechampine.com/blake3"

	"github.com/joshharrison/pertloom/internal/dates"
	"github.com/joshharrison/pertloom/internal/entity"
	"github.com/joshharrison/pertloom/internal/gantt"
	"github.com/joshharrison/pertloom/internal/reporter"
	"github.com/joshharrison/pertloom/internal/schedule"
	"github.com/joshharrison/pertloom/internal/store"
)

// maxBody caps POST /entities payloads.
const maxBody = 16 << 20

// Views served by the feed.
const (
	ViewActions = "pert:actions"
	ViewJalons  = "pert:jalons"
	ViewGantt   = "gantt"
)

// Options configures the computations behind every view. A zero Today
// means the current day at request time.
type Options struct {
	Schedule schedule.Options
	Gantt    gantt.Config
	Logger   *log.Logger
}

// SnapshotInfo identifies the snapshot the payloads were computed from.
type SnapshotInfo struct {
	ID         string    `json:"id"`
	Hash       string    `json:"hash"`
	Actions    int       `json:"actions"`
	Milestones int       `json:"jalons"`
	LoadedAt   time.Time `json:"loaded_at"`
}

// Update is the message pushed to websocket clients.
type Update struct {
	Type     string                     `json:"type"` // "update" or "empty"
	Snapshot *SnapshotInfo              `json:"snapshot,omitempty"`
	Views    map[string]json.RawMessage `json:"views,omitempty"`
}

// Server is the dashboard feed.
type Server struct {
	opts     Options
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	snap     *store.Snapshot
	info     *SnapshotInfo
	cache    map[string][]byte // view|day -> payload, for info.Hash
	computes int

	clientsMu sync.Mutex
	clients   map[*websocket.Conn]bool
}

// New creates a Server with no snapshot loaded.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the renderer is served from another origin
			},
		},
		cache:   make(map[string][]byte),
		clients: make(map[*websocket.Conn]bool),
	}
}

// Hash returns the hex blake3 digest of a snapshot's canonical JSON.
func Hash(snap *store.Snapshot) (string, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SetSnapshot replaces the current snapshot and pushes the recomputed views
// to connected clients. Setting an identical snapshot keeps the cache.
func (s *Server) SetSnapshot(snap *store.Snapshot) (*SnapshotInfo, error) {
	hash, err := Hash(snap)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.info != nil && s.info.Hash == hash {
		info := *s.info
		s.mu.Unlock()
		s.logger.Debug("snapshot unchanged", "hash", hash[:12])
		return &info, nil
	}
	info := &SnapshotInfo{
		ID:         uuid.New().String(),
		Hash:       hash,
		Actions:    len(snap.Actions),
		Milestones: len(snap.Milestones),
		LoadedAt:   time.Now().UTC(),
	}
	s.snap = snap
	s.info = info
	s.cache = make(map[string][]byte)
	s.mu.Unlock()

	s.logger.Info("snapshot loaded", "id", info.ID, "hash", hash[:12], "actions", info.Actions, "jalons", info.Milestones)
	s.broadcast()

	out := *info
	return &out, nil
}

func (s *Server) today() time.Time {
	if !s.opts.Schedule.Today.IsZero() {
		return dates.Day(s.opts.Schedule.Today)
	}
	return dates.Day(time.Now())
}

// View returns the payload for view, computing it on a cache miss. It
// returns nil when no snapshot is loaded.
func (s *Server) View(view string) ([]byte, error) {
	today := s.today()
	key := view + "|" + dates.Format(today)

	s.mu.RLock()
	snap, info := s.snap, s.info
	cached, ok := s.cache[key]
	s.mu.RUnlock()

	if snap == nil {
		return nil, nil
	}
	if ok {
		return cached, nil
	}

	payload, err := s.compute(view, snap, today)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", view, err)
	}

	s.mu.Lock()
	s.computes++
	if s.info != nil && s.info.Hash == info.Hash {
		s.cache[key] = data
	}
	s.mu.Unlock()

	s.logger.Debug("view computed", "view", view, "hash", info.Hash[:12], "bytes", len(data))
	return data, nil
}

func (s *Server) compute(view string, snap *store.Snapshot, today time.Time) (any, error) {
	opts := s.opts.Schedule
	opts.Today = today

	switch view {
	case ViewActions:
		return pertPayload(s.logger, "actions", snap.Actions, opts), nil
	case ViewJalons:
		return pertPayload(s.logger, "jalons", snap.Milestones, opts), nil
	case ViewGantt:
		cfg := s.opts.Gantt
		cfg.Today = today
		return reporter.BuildGantt(snap.Milestones, snap.Actions, cfg), nil
	default:
		return nil, fmt.Errorf("unknown view %q", view)
	}
}

func pertPayload[E entity.Described](logger *log.Logger, kind string, entities []E, opts schedule.Options) any {
	sch, err := schedule.Solve(entities, opts)
	return pertOrFallback(logger, kind, entities, sch, err)
}

// pertOrFallback degrades a failed solve to the flat due-date list. The
// renderer gets a 200 either way.
func pertOrFallback[E entity.Described](logger *log.Logger, kind string, entities []E, sch *schedule.Schedule[E], err error) any {
	if err == nil {
		return reporter.BuildPERT(kind, sch)
	}
	logger.Warn("scheduling failed, serving flat list", "kind", kind, "err", err)
	return &reporter.Fallback{
		Kind:     kind,
		Error:    err.Error(),
		Fallback: reporter.BuildFlat(entities),
	}
}

// --- HTTP handlers ---

func (s *Server) serveView(w http.ResponseWriter, view string) {
	data, err := s.View(view)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if data == nil {
		http.Error(w, "no entities loaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handlePERT(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	switch kind := r.URL.Query().Get("kind"); kind {
	case "", "actions":
		s.serveView(w, ViewActions)
	case "jalons":
		s.serveView(w, ViewJalons)
	default:
		http.Error(w, fmt.Sprintf("unknown kind %q", kind), http.StatusBadRequest)
	}
}

func (s *Server) handleGantt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.serveView(w, ViewGantt)
}

func (s *Server) handlePostEntities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := store.ParseSnapshot(body, s.logger)
	if err != nil {
		http.Error(w, "invalid entities: "+err.Error(), http.StatusBadRequest)
		return
	}

	info, err := s.SetSnapshot(snap)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(info)
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()

	if info == nil {
		http.Error(w, "no entities loaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

// --- websocket push ---

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	msg := s.update()
	s.clientsMu.Lock()
	s.clients[conn] = true
	err = s.send(conn, msg)
	s.clientsMu.Unlock()
	if err != nil {
		s.drop(conn)
		return
	}
	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)

	// Clients only listen; reading detects the close.
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) update() []byte {
	s.mu.RLock()
	info := s.info
	s.mu.RUnlock()

	u := Update{Type: "empty"}
	if info != nil {
		u.Type = "update"
		u.Snapshot = info
		u.Views = make(map[string]json.RawMessage)
		for _, view := range []string{ViewActions, ViewJalons, ViewGantt} {
			data, err := s.View(view)
			if err != nil || data == nil {
				s.logger.Warn("view unavailable for push", "view", view, "err", err)
				continue
			}
			u.Views[view] = data
		}
	}
	data, _ := json.Marshal(u)
	return data
}

// send writes one message; callers hold clientsMu.
func (s *Server) send(conn *websocket.Conn, msg []byte) error {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (s *Server) broadcast() {
	s.clientsMu.Lock()
	n := len(s.clients)
	s.clientsMu.Unlock()
	if n == 0 {
		return
	}

	msg := s.update()

	s.clientsMu.Lock()
	var failed []*websocket.Conn
	for conn := range s.clients {
		if err := s.send(conn, msg); err != nil {
			failed = append(failed, conn)
		}
	}
	s.clientsMu.Unlock()

	for _, conn := range failed {
		s.drop(conn)
	}
	s.logger.Debug("pushed update", "clients", n-len(failed))
}

func (s *Server) drop(conn *websocket.Conn) {
	s.clientsMu.Lock()
	delete(s.clients, conn)
	s.clientsMu.Unlock()
	conn.Close()
}

// Handler returns the feed's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/pert", s.handlePERT)
	mux.HandleFunc("/gantt", s.handleGantt)
	mux.HandleFunc("/entities", s.handlePostEntities)
	mux.HandleFunc("/snapshot", s.handleGetSnapshot)
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("pertloom feed: GET /pert?kind=actions|jalons, GET /gantt, POST /entities, GET /snapshot, GET /ws\n"))
	})
	return logRequests(s.logger, mux)
}

func logRequests(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request", "method", r.Method, "path", r.URL.RequestURI(), "took", time.Since(start))
	})
}

// Serve listens on port and blocks until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, port int) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", port, err)
	}

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	s.logger.Info("feed listening", "addr", fmt.Sprintf("http://localhost:%d", port))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.clientsMu.Lock()
	for conn := range s.clients {
		conn.Close()
	}
	s.clientsMu.Unlock()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// PostEntities sends a snapshot to a running feed.
func PostEntities(addr string, snap *store.Snapshot) (*SnapshotInfo, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}

	resp, err := http.Post(addr+"/entities", "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("POST /entities: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("POST /entities returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var info SnapshotInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode snapshot info: %w", err)
	}
	return &info, nil
}

// IsPortOpen checks if something is listening on the given address.
func IsPortOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
