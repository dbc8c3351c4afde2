package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/park285/eazews/internal/config"
	"github.com/park285/eazews/internal/obslog"
	"github.com/park285/eazews/internal/statusapi"
	"github.com/park285/eazews/internal/transcript"
	"github.com/park285/eazews/internal/wsclient"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run returns the process exit code so deferred cleanup always happens before exit.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wscheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	window := fs.Duration("window", 10*time.Second, "how long to wait for messages after stdin is exhausted")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	if err := cfg.ValidateClient(); err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	if err := obslog.InitFromEnv(); err != nil {
		fmt.Fprintf(stderr, "logger init error: %v\n", err)
		return 1
	}
	logger := obslog.L()
	defer logger.Sync()

	if cfg.StatusURL != "" {
		probeStatus(cfg.StatusURL, logger)
	}

	c := wsclient.New(cfg.Endpoint,
		wsclient.WithDialer(newDialer(cfg)),
		wsclient.WithLogger(logger),
		wsclient.WithCloseOnReconnect(cfg.CloseOnReconnect),
	)

	opened := make(chan struct{})
	done := make(chan struct{})
	cb := transcript.Callbacks{
		OnOpen: func() { close(opened) },
		OnMessage: func(p wsclient.Payload) {
			if p.IsText() {
				fmt.Fprintf(stdout, "< %s\n", p.String())
			} else {
				fmt.Fprintf(stdout, "< [binary %d bytes]\n", len(p.Data))
			}
		},
		OnClose: func(code int, reason string) {
			fmt.Fprintf(stdout, "closed code=%d reason=%q\n", code, reason)
			close(done)
		},
		OnError: func(err error) { fmt.Fprintf(stderr, "error: %v\n", err) },
	}

	send := func(p wsclient.Payload) error { return c.Send(p) }
	store, err := transcript.Open(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(stderr, "transcript init error: %v\n", err)
		return 1
	}
	if store != nil {
		defer store.Close()
		rec := transcript.NewRecorder(store, logger)
		rec.Attach(c, cb)
		send = func(p wsclient.Payload) error { return rec.Send(c, p) }
		logger.Info("transcript_session", zap.String("session", rec.SessionID()), zap.String("backend", cfg.TranscriptBackend))
	} else {
		c.OnOpen(cb.OnOpen)
		c.OnMessage(cb.OnMessage)
		c.OnClose(cb.OnClose)
		c.OnError(cb.OnError)
	}

	c.Connect()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-opened:
	case <-done:
		return 1
	case <-sigCh:
		_ = c.Close()
		<-closedOrTimeout(done)
		return 0
	case <-time.After(cfg.DialTimeout + time.Second):
		fmt.Fprintln(stderr, "timed out waiting for open")
		_ = c.Close()
		<-closedOrTimeout(done)
		return 1
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				waitAndClose(c, done, sigCh, *window)
				return 0
			}
			if err := send(wsclient.Text(line)); err != nil {
				fmt.Fprintf(stderr, "send: %v\n", err)
			}
		case <-done:
			return 0
		case <-sigCh:
			_ = c.Close()
			<-closedOrTimeout(done)
			return 0
		}
	}
}

func waitAndClose(c *wsclient.Client, done <-chan struct{}, sigCh <-chan os.Signal, window time.Duration) {
	t := time.NewTimer(window)
	defer t.Stop()
	select {
	case <-done:
		return
	case <-sigCh:
	case <-t.C:
	}
	_ = c.Close()
	<-closedOrTimeout(done)
}

func closedOrTimeout(done <-chan struct{}) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		select {
		case <-done:
		case <-time.After(5 * time.Second):
		}
	}()
	return out
}

func newDialer(cfg *config.AppConfig) wsclient.Dialer {
	dc := wsclient.DialConfig{
		Subprotocols: cfg.Subprotocols,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
		ReadLimit:    cfg.ReadLimit,
	}
	if len(cfg.Headers) > 0 {
		headers := cfg.Headers
		dc.HeaderProvider = func() map[string]string { return headers }
	}
	if cfg.Driver == config.DriverGorilla {
		return &wsclient.GorillaDialer{DialConfig: dc}
	}
	return &wsclient.NhooyrDialer{DialConfig: dc}
}

func probeStatus(url string, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sc := statusapi.NewClient(url, statusapi.WithTimeout(3*time.Second))
	st, err := sc.Stats(ctx)
	if err != nil {
		logger.Warn("status_probe_failed", zap.String("url", url), zap.Error(err))
		return
	}
	logger.Info("status_probe_ok",
		zap.Int64("accepted", st.Accepted),
		zap.Int64("active", st.Active),
		zap.Int64("text_messages", st.TextMessages))
}
