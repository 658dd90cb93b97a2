package stubtable

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
)

//go:embed static/index.html
var indexHTML []byte

// Options configures a Server.
type Options struct {
	// PushDelay holds every state push back by this long, to exercise
	// extended waits. Zero pushes immediately.
	PushDelay time.Duration

	Logger *slog.Logger
}

// Server serves the stub application.
type Server struct {
	table  *Table
	hub    *hub
	log    *slog.Logger
	delay  time.Duration
	router chi.Router

	upgrader websocket.Upgrader
}

// New creates a server with an empty table.
func New(opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		hub:   newHub(log),
		log:   log,
		delay: opts.PushDelay,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.table = NewTable(s.push)
	s.router = s.routes()
	return s
}

// Table exposes the state behind the server.
func (s *Server) Table() *Table {
	return s.table
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close disconnects every page.
func (s *Server) Close() {
	s.hub.close()
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully. ready, if non-nil, receives the bound address.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s, ReadHeaderTimeout: 5 * time.Second}
	if ready != nil {
		ready(ln.Addr())
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	page := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexHTML)
	}
	r.Get("/", page)
	r.Get("/join/{id}", page)
	r.Get("/session/{id}", page)
	r.Get("/session/{id}/player", page)

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Get("/ws", s.watchSession)
			r.Post("/players", s.joinSession)
			r.Post("/players/{pid}/fate-points", s.adjustFatePoints)
			r.Post("/aspects", s.addAspect)
			r.Delete("/aspects/{aid}", s.removeAspect)
		})
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
		)
	})
}

// push forwards a snapshot to the session's pages, after PushDelay.
func (s *Server) push(sess Session) {
	if s.delay <= 0 {
		s.hub.broadcast(sess)
		return
	}
	time.AfterFunc(s.delay, func() { s.hub.broadcast(sess) })
}

type titleRequest struct {
	Title string `json:"title"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type deltaRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if !decode(w, r, &req) {
		return
	}
	sess, err := s.table.CreateSession(req.Title)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("session created", "session", sess.ID, "title", sess.Title)
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.table.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) watchSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.table.Get(id); err != nil {
		writeError(w, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "session", id, "error", err)
		return
	}
	if err := s.hub.attach(id, conn, func() (Session, error) { return s.table.Get(id) }); err != nil {
		s.log.Debug("websocket refused", "session", id, "error", err)
		conn.Close()
	}
}

func (s *Server) joinSession(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	p, err := s.table.Join(id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info("player joined", "session", id, "player", p.Name)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) adjustFatePoints(w http.ResponseWriter, r *http.Request) {
	var req deltaRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := s.table.AdjustFatePoints(chi.URLParam(r, "id"), chi.URLParam(r, "pid"), req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) addAspect(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := s.table.AddAspect(chi.URLParam(r, "id"), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) removeAspect(w http.ResponseWriter, r *http.Request) {
	if err := s.table.RemoveAspect(chi.URLParam(r, "id"), chi.URLParam(r, "aid")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrPlayerNotFound), errors.Is(err, ErrAspectNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNoFatePoints):
		status = http.StatusConflict
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
