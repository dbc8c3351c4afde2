package echoserver

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

const (
	DefaultWelcome = "Welcome to Eaze WebSocket Server!"
	EchoPrefix     = "Echo: "
)

// Stats is a point-in-time view of server counters.
type Stats struct {
	Accepted       int64     `json:"accepted"`
	Active         int64     `json:"active"`
	TextMessages   int64     `json:"text_messages"`
	BinaryMessages int64     `json:"binary_messages"`
	Sessions       []string  `json:"sessions"`
	StartedAt      time.Time `json:"started_at"`
}

// Server greets each peer, answers text with "Echo: <text>" and echoes binary frames.
type Server struct {
	welcome string
	logger  *zap.Logger

	writeTimeout time.Duration
	readLimit    int64

	accepted atomic.Int64
	texts    atomic.Int64
	binaries atomic.Int64

	sessions map[string]*websocket.Conn
	sessM    sync.RWMutex

	startedAt time.Time
}

type Option func(*Server)

func WithWelcome(msg string) Option {
	return func(s *Server) { s.welcome = msg }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithReadLimit(n int64) Option {
	return func(s *Server) { s.readLimit = n }
}

func New(opts ...Option) *Server {
	s := &Server{
		welcome:      DefaultWelcome,
		writeTimeout: 5 * time.Second,
		sessions:     make(map[string]*websocket.Conn),
		startedAt:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("ws_accept_failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	if s.readLimit > 0 {
		conn.SetReadLimit(s.readLimit)
	}

	id := uuid.NewString()
	s.accepted.Add(1)
	s.track(id, conn)
	defer s.untrack(id)

	logger := s.logger.With(zap.String("session", id), zap.String("remote", r.RemoteAddr))
	logger.Debug("ws_session_open")

	ctx := r.Context()
	if s.welcome != "" {
		if err := s.write(ctx, conn, websocket.MessageText, []byte(s.welcome)); err != nil {
			logger.Warn("ws_welcome_failed", zap.Error(err))
			_ = conn.Close(websocket.StatusInternalError, "welcome failed")
			return
		}
	}

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == -1 && !errors.Is(err, context.Canceled) {
				logger.Warn("ws_session_read_failed", zap.Error(err))
			}
			logger.Debug("ws_session_closed", zap.Int("code", int(status)))
			return
		}
		switch typ {
		case websocket.MessageText:
			s.texts.Add(1)
			err = s.write(ctx, conn, websocket.MessageText, append([]byte(EchoPrefix), data...))
		case websocket.MessageBinary:
			s.binaries.Add(1)
			err = s.write(ctx, conn, websocket.MessageBinary, data)
		}
		if err != nil {
			logger.Warn("ws_echo_failed", zap.Error(err))
			return
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, typ websocket.MessageType, data []byte) error {
	wctx, cancel := context.WithTimeout(ctx, s.writeTimeout)
	defer cancel()
	return conn.Write(wctx, typ, data)
}

func (s *Server) track(id string, conn *websocket.Conn) {
	s.sessM.Lock()
	s.sessions[id] = conn
	s.sessM.Unlock()
}

func (s *Server) untrack(id string) {
	s.sessM.Lock()
	delete(s.sessions, id)
	s.sessM.Unlock()
}

func (s *Server) Stats() Stats {
	s.sessM.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.sessM.RUnlock()
	return Stats{
		Accepted:       s.accepted.Load(),
		Active:         int64(len(ids)),
		TextMessages:   s.texts.Load(),
		BinaryMessages: s.binaries.Load(),
		Sessions:       ids,
		StartedAt:      s.startedAt,
	}
}

// Shutdown sends a going-away close to every open session.
func (s *Server) Shutdown() {
	s.sessM.RLock()
	conns := make([]*websocket.Conn, 0, len(s.sessions))
	for _, c := range s.sessions {
		conns = append(conns, c)
	}
	s.sessM.RUnlock()

	var wg sync.WaitGroup
	for _, c := range conns {
		wg.Add(1)
		go func(c *websocket.Conn) {
			defer wg.Done()
			_ = c.Close(websocket.StatusGoingAway, "server shutdown")
		}(c)
	}
	wg.Wait()
}
