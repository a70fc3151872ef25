package connectivity

import (
	"context"
	"time"

	"github.com/coder/websocket"
)

// WSSource holds a websocket open to the backend. While the socket is up the
// app is online; when it drops the app is offline until a redial succeeds.
type WSSource struct {
	url     string
	backoff time.Duration
}

// NewWSSource creates a source for url. backoff is the redial delay.
func NewWSSource(url string, backoff time.Duration) *WSSource {
	if backoff <= 0 {
		backoff = 5 * time.Second
	}
	return &WSSource{url: url, backoff: backoff}
}

func (s *WSSource) Name() string { return "websocket" }

// Run dials, reads until the connection fails, and redials until ctx is done.
func (s *WSSource) Run(ctx context.Context, emit func(Event)) error {
	for {
		conn, _, err := websocket.Dial(ctx, s.url, nil)
		if err == nil {
			emit(Event{Signal: SignalOnline})
			s.drain(ctx, conn)
			if ctx.Err() != nil {
				return nil
			}
		}
		emit(Event{Signal: SignalOffline})

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.backoff):
		}
	}
}

func (s *WSSource) drain(ctx context.Context, conn *websocket.Conn) {
	defer conn.CloseNow()
	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}
