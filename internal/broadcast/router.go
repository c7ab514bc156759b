package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Router maintains the topic subscription registry and delivers events to
// current subscribers. It is safe for concurrent use: subscribes and
// unsubscribes may race with publishes, which iterate over a snapshot of the
// membership taken under the read lock.
type Router struct {
	mu     sync.RWMutex
	topics map[Topic]map[Conn]struct{}

	published metric.Int64Counter
	dropped   metric.Int64Counter
	subs      metric.Int64UpDownCounter
}

// NewRouter creates an empty Router reporting through the given meter.
func NewRouter(meter metric.Meter) (*Router, error) {
	published, err := meter.Int64Counter("broadcast.events_published")
	if err != nil {
		return nil, errors.Wrap(err, "events_published counter")
	}
	dropped, err := meter.Int64Counter("broadcast.events_dropped")
	if err != nil {
		return nil, errors.Wrap(err, "events_dropped counter")
	}
	subs, err := meter.Int64UpDownCounter("broadcast.subscribers")
	if err != nil {
		return nil, errors.Wrap(err, "subscribers counter")
	}

	return &Router{
		topics:    make(map[Topic]map[Conn]struct{}),
		published: published,
		dropped:   dropped,
		subs:      subs,
	}, nil
}

// Subscribe adds conn to topic. Subscribing the same connection twice is a
// no-op.
func (r *Router) Subscribe(ctx context.Context, conn Conn, topic Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.topics[topic]
	if !ok {
		conns = make(map[Conn]struct{})
		r.topics[topic] = conns
	}
	if _, ok := conns[conn]; ok {
		return
	}
	conns[conn] = struct{}{}
	r.subs.Add(ctx, 1)
}

// Unsubscribe removes conn from topic. Unknown pairs are ignored.
func (r *Router) Unsubscribe(ctx context.Context, conn Conn, topic Topic) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(ctx, conn, topic)
}

// remove must be called with the write lock held.
func (r *Router) remove(ctx context.Context, conn Conn, topic Topic) {
	conns, ok := r.topics[topic]
	if !ok {
		return
	}
	if _, ok := conns[conn]; !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(r.topics, topic)
	}
	r.subs.Add(ctx, -1)
}

// Publish encodes the event once and sends the frame to every current
// subscriber of the topic. Connections that refuse the frame are dropped from
// the topic and closed. Having no subscribers is not an error; a disconnected
// client simply misses the event.
func (r *Router) Publish(ctx context.Context, topic Topic, event string, payload any) error {
	frame, err := Event{
		Name:    event,
		Topic:   topic,
		Payload: payload,
		At:      time.Now(),
	}.Encode()
	if err != nil {
		return errors.Wrapf(err, "encode %s", event)
	}

	r.mu.RLock()
	conns := make([]Conn, 0, len(r.topics[topic]))
	for c := range r.topics[topic] {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	var stale []Conn
	for _, c := range conns {
		if err := c.Send(frame); err != nil {
			zctx.From(ctx).Warn("Dropping slow subscriber",
				zap.String("topic", string(topic)),
				zap.String("event", event),
				zap.Error(err),
			)
			stale = append(stale, c)
		}
	}

	r.published.Add(ctx, 1)
	if len(stale) > 0 {
		r.dropped.Add(ctx, int64(len(stale)))
		r.mu.Lock()
		for _, c := range stale {
			r.remove(ctx, c, topic)
		}
		r.mu.Unlock()
		for _, c := range stale {
			_ = c.Close()
		}
	}
	return nil
}

// DropConn removes conn from every topic it is subscribed to. Called by the
// transport when a client disconnects.
func (r *Router) DropConn(ctx context.Context, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for topic := range r.topics {
		r.remove(ctx, conn, topic)
	}
}
