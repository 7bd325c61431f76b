package widget

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chat-widget/internal/usecase"
)

//go:embed static
var staticFS embed.FS

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 20 * time.Second
	maxFrameSize = 64 << 10
)

// ControllerFactory builds the controller for one page session. It receives
// the presenter that writes to the session's websocket.
type ControllerFactory func(view usecase.Presenter, logger *slog.Logger) (*usecase.Controller, error)

// Server serves the widget page and one websocket per page session. Each
// session owns its own transcript and controller; nothing is shared between
// sessions and nothing outlives the connection.
type Server struct {
	addr     string
	srv      *http.Server
	factory  ControllerFactory
	logger   *slog.Logger
	upgrader websocket.Upgrader
	running  atomic.Bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewServer(addr string, factory ControllerFactory, logger *slog.Logger) (*Server, error) {
	if factory == nil {
		return nil, errors.New("widget: controller factory must not be nil")
	}
	if addr == "" {
		addr = "127.0.0.1:8080"
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:    addr,
		factory: factory,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
		},
		baseCtx: ctx,
		cancel:  cancel,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the HTTP routes: the page, a health check and the socket.
func (s *Server) Handler() http.Handler {
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		// The embed directive guarantees the directory exists.
		panic(err)
	}
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(static)))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		s.logger.Info("widget server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("widget server stopped with error", "err", err)
		} else {
			s.logger.Info("widget server stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.WithoutCancel(ctx))
	}()
	return nil
}

// Stop shuts the listener down and closes every open page session.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeoutCause(ctx, 5*time.Second, errors.New("widget server shutdown timeout"))
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown.
	s.cancel()
	err := s.srv.Shutdown(shutdownCtx)
	if err != nil {
		s.logger.Warn("graceful shutdown error", "err", err)
		err = s.srv.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		s.logger.Warn("page sessions still open after shutdown timeout")
		err = errors.Join(err, context.Cause(shutdownCtx))
	}
	return err
}

func (s *Server) Addr() string { return s.addr }

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.baseCtx.Err() != nil {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()

	sessionID := uuid.NewString()
	logger := s.logger.With("session_id", sessionID, "remote", r.RemoteAddr)
	s.serveSession(conn, logger)
}

// serveSession owns conn until the peer leaves or the server stops. Frames
// are handled one at a time, so a page session never has two cycles open.
func (s *Server) serveSession(conn *websocket.Conn, logger *slog.Logger) {
	ctx, cancel := context.WithCancel(s.baseCtx)
	mu := &sync.Mutex{}
	view := &wsPresenter{conn: conn, mu: mu, logger: logger}

	closeConn := sync.OnceFunc(func() {
		mu.Lock()
		defer mu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	})
	defer func() {
		closeConn()
		cancel()
		logger.Info("page session closed")
	}()

	ctrl, err := s.factory(view, logger)
	if err != nil {
		logger.Error("failed to create controller", "err", err)
		view.showError("the assistant is unavailable")
		return
	}
	logger.Info("page session opened")

	for _, t := range ctrl.Transcript() {
		view.Render(t)
	}
	view.SetInputEnabled(true)

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go s.keepalive(ctx, conn, mu)
	go func() {
		// Closing the socket ends a blocked ReadJSON when the server stops.
		<-ctx.Done()
		closeConn()
	}()

	for ctx.Err() == nil {
		var in inboundFrame
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
				logger.Debug("websocket read failed", "err", err)
			}
			return
		}
		if strings.TrimSpace(in.Type) != frameSubmit {
			view.showError("unsupported frame type")
			continue
		}

		out, err := ctrl.Submit(ctx, in.Text)
		switch {
		case errors.Is(err, usecase.ErrBusy):
			view.showError("a reply is still pending")
		case err != nil:
			logger.Error("turn failed", "err", err)
			view.showError("the assistant is unavailable")
		case out.Failure != nil:
			logger.Info("turn completed with failure", "code", out.Failure.Code)
		}
	}
}

func (s *Server) keepalive(ctx context.Context, conn *websocket.Conn, mu *sync.Mutex) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			mu.Unlock()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
