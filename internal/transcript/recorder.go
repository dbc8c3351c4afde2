package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/eazews/internal/wsclient"
)

// Callbacks are the caller's handlers, invoked after the event is recorded.
type Callbacks struct {
	OnOpen    wsclient.OpenCallback
	OnMessage wsclient.MessageCallback
	OnClose   wsclient.CloseCallback
	OnError   wsclient.ErrorCallback
}

// Recorder writes every event of one client into a Store under a fresh session id.
type Recorder struct {
	store     Store
	sessionID string
	logger    *zap.Logger
	timeout   time.Duration

	seq int64
	mu  sync.Mutex

	now func() time.Time
}

func NewRecorder(store Store, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		store:     store,
		sessionID: uuid.NewString(),
		logger:    logger,
		timeout:   3 * time.Second,
		now:       time.Now,
	}
}

func (r *Recorder) SessionID() string { return r.sessionID }

// Record stamps e with the session id, next sequence number and time, then stores it.
// Store failures are logged, not returned.
func (r *Recorder) Record(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordLocked(e)
}

func (r *Recorder) recordLocked(e Entry) {
	r.seq++
	e.SessionID = r.sessionID
	e.Seq = r.seq
	e.At = r.now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.store.Append(ctx, &e); err != nil {
		r.logger.Warn("transcript_append_failed",
			zap.String("session", r.sessionID),
			zap.Int64("seq", e.Seq),
			zap.String("kind", string(e.Kind)),
			zap.Error(err))
	}
}

// Attach registers all four callback slots on c. It replaces whatever was registered before.
func (r *Recorder) Attach(c *wsclient.Client, cb Callbacks) {
	c.OnOpen(func() {
		r.Record(Entry{Kind: KindOpen, Direction: DirectionLocal})
		if cb.OnOpen != nil {
			cb.OnOpen()
		}
	})
	c.OnMessage(func(p wsclient.Payload) {
		r.Record(payloadEntry(DirectionIn, p))
		if cb.OnMessage != nil {
			cb.OnMessage(p)
		}
	})
	c.OnClose(func(code int, reason string) {
		r.Record(Entry{Kind: KindClose, Direction: DirectionIn, Code: code, Reason: reason})
		if cb.OnClose != nil {
			cb.OnClose(code, reason)
		}
	})
	c.OnError(func(err error) {
		r.Record(Entry{Kind: KindError, Direction: DirectionLocal, Reason: err.Error()})
		if cb.OnError != nil {
			cb.OnError(err)
		}
	})
}

// Send sends p through c and records it once the transport accepted it. The recorder
// stays locked for the whole call, so a reply can never be sequenced before its request.
func (r *Recorder) Send(c *wsclient.Client, p wsclient.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := c.Send(p); err != nil {
		return err
	}
	r.recordLocked(payloadEntry(DirectionOut, p))
	return nil
}

func payloadEntry(dir Direction, p wsclient.Payload) Entry {
	data := make([]byte, len(p.Data))
	copy(data, p.Data)
	return Entry{Kind: KindMessage, Direction: dir, PayloadType: p.Type.String(), Data: data}
}
