package statusapi

import (
	"encoding/json"
	"net"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/eazews/internal/echoserver"
)

// StatsSource is implemented by *echoserver.Server.
type StatsSource interface {
	Stats() echoserver.Stats
}

type Health struct {
	Status string `json:"status"`
}

// Server serves GET /healthz and GET /stats over fasthttp.
type Server struct {
	src    StatsSource
	logger *zap.Logger
	srv    *fasthttp.Server
}

func NewServer(src StatsSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{src: src, logger: logger}
	s.srv = &fasthttp.Server{
		Handler: s.Handle,
		Name:    "eazews-status",
	}
	return s
}

func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	if !ctx.IsGet() {
		ctx.Error("method not allowed", fasthttp.StatusMethodNotAllowed)
		return
	}
	switch string(ctx.Path()) {
	case "/healthz":
		s.writeJSON(ctx, Health{Status: "ok"})
	case "/stats":
		s.writeJSON(ctx, s.src.Stats())
	default:
		ctx.Error("not found", fasthttp.StatusNotFound)
	}
}

func (s *Server) writeJSON(ctx *fasthttp.RequestCtx, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("status_encode_failed", zap.Error(err))
		ctx.Error("internal error", fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(raw)
}

func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("status_listen", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

func (s *Server) Serve(ln net.Listener) error { return s.srv.Serve(ln) }

func (s *Server) Shutdown() error { return s.srv.Shutdown() }
