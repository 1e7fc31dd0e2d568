package handler

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/batch"
	"github.com/matthewbaird/adbatch/internal/event"
	"github.com/matthewbaird/adbatch/internal/eventbus"
)

// feedBuffer is the number of events queued per connection before new
// events are dropped for that connection.
const feedBuffer = 64

// FeedMessage is the envelope of every server-to-client feed message.
type FeedMessage struct {
	Type  string             `json:"type"` // "snapshot" or "event"
	Batch *batch.Batch       `json:"batch,omitempty"`
	Event *event.DomainEvent `json:"event,omitempty"`
}

// Feed streams batch events over a WebSocket. Each connection first gets a
// snapshot of the batch, then every event published after it subscribed.
type Feed struct {
	bus    *eventbus.Bus
	store  *batch.Store
	logger logrus.FieldLogger
}

func NewFeed(bus *eventbus.Bus, store *batch.Store, logger logrus.FieldLogger) *Feed {
	return &Feed{bus: bus, store: store, logger: logger.WithField("component", "feed")}
}

// ServeHTTP upgrades to WebSocket and forwards events until the client
// disconnects.
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		f.logger.WithError(err).Warn("websocket accept")
		return
	}
	defer conn.CloseNow()

	events := make(chan event.DomainEvent, feedBuffer)
	unsubscribe := f.bus.Subscribe("feed:"+r.RemoteAddr, eventbus.HandlerFunc(
		func(_ context.Context, evt event.DomainEvent) error {
			select {
			case events <- evt:
			default:
				f.logger.WithField("event_type", evt.EventType).Warn("feed client too slow, dropping event")
			}
			return nil
		}))
	defer unsubscribe()

	// The feed is one-way; CloseRead handles control frames and cancels ctx
	// when the client goes away.
	ctx := conn.CloseRead(r.Context())

	snap := f.store.Snapshot()
	if !f.send(ctx, conn, FeedMessage{Type: "snapshot", Batch: &snap}) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			f.logger.Debug("feed closed")
			return
		case evt := <-events:
			if !f.send(ctx, conn, FeedMessage{Type: "event", Event: &evt}) {
				return
			}
		}
	}
}

func (f *Feed) send(ctx context.Context, conn *websocket.Conn, msg FeedMessage) bool {
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		f.logger.WithError(err).Debug("feed write error")
		return false
	}
	return true
}
