// Package sse implements an owner-scoped Server-Sent Events broker that
// tells connected clients which notes changed.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/starford/notely/internal/identity"
)

const (
	defaultTagsThrottle = 2 * time.Second
	defaultHeartbeat    = 25 * time.Second
	clientBuffer        = 64
	// retryMillis is the reconnect delay suggested to EventSource clients.
	retryMillis = 3000
)

// Event is one change notification for the subscribers of Owner.
type Event struct {
	Owner string `json:"-"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

// Option configures a Broker.
type Option func(*Broker)

// WithTagsThrottle sets the minimum interval between two tags.updated
// events of the same owner.
func WithTagsThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.tagsThrottle = d
		}
	}
}

// WithHeartbeat sets how often idle streams get a keep-alive comment.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

type subscription struct {
	owner string
	ch    chan []byte
}

// hub is the broker state. Only the run goroutine touches it.
type hub struct {
	clients      map[chan []byte]string
	lastTags     map[string]time.Time
	seq          uint64
	tagsThrottle time.Duration
}

// deliver frames ev with the next sequence number and hands it to every
// subscriber of ev.Owner. Subscribers with a full buffer miss the event.
func (h *hub) deliver(ev Event) {
	h.seq++
	frame, err := encode(h.seq, ev)
	if err != nil {
		return
	}
	for ch, owner := range h.clients {
		if owner != ev.Owner {
			continue
		}
		select {
		case ch <- frame:
		default:
		}
	}
}

// publish delivers ev. A note event is followed by tags.updated unless the
// owner got one within the throttle interval.
func (h *hub) publish(ev Event, now time.Time) {
	h.deliver(ev)
	if !strings.HasPrefix(ev.Type, "note.") {
		return
	}
	if last, ok := h.lastTags[ev.Owner]; ok && now.Sub(last) < h.tagsThrottle {
		return
	}
	h.lastTags[ev.Owner] = now
	h.deliver(Event{Owner: ev.Owner, Type: "tags.updated", Data: struct{}{}})
}

func (h *hub) count(owner string) int {
	if owner == "" {
		return len(h.clients)
	}
	n := 0
	for _, o := range h.clients {
		if o == owner {
			n++
		}
	}
	return n
}

func encode(id uint64, ev Event) ([]byte, error) {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return nil, err
	}
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", id, ev.Type, payload), nil
}

type countReq struct {
	owner string
	resp  chan int
}

// Broker fans note events out to SSE clients. A single goroutine owns the
// subscriber set; public methods reach it through channels.
type Broker struct {
	tagsThrottle time.Duration
	heartbeat    time.Duration

	subscribeCh   chan subscription
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	countCh       chan countReq

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker starts a broker.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		tagsThrottle:  defaultTagsThrottle,
		heartbeat:     defaultHeartbeat,
		subscribeCh:   make(chan subscription),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		countCh:       make(chan countReq),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{
		clients:      make(map[chan []byte]string),
		lastTags:     make(map[string]time.Time),
		tagsThrottle: b.tagsThrottle,
	}
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return
		case sub := <-b.subscribeCh:
			h.clients[sub.ch] = sub.owner
		case ch := <-b.unsubscribeCh:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		case ev := <-b.publishCh:
			h.publish(ev, time.Now())
		case req := <-b.countCh:
			req.resp <- h.count(req.owner)
		}
	}
}

// Close stops the broker and closes every subscriber channel. It is safe
// to call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe registers a client of owner. The returned channel yields
// encoded SSE frames and is closed by Unsubscribe or Close.
func (b *Broker) Subscribe(owner string) chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.subscribeCh <- subscription{owner: owner, ch: ch}:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients of all owners.
func (b *Broker) ClientCount() int { return b.OwnerClientCount("") }

// OwnerClientCount returns the number of connected clients of owner.
func (b *Broker) OwnerClientCount(owner string) int {
	if b.closed.Load() {
		return 0
	}
	req := countReq{owner: owner, resp: make(chan int, 1)}
	select {
	case b.countCh <- req:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-req.resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish queues ev for the subscribers of ev.Owner.
func (b *Broker) Publish(ev Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- ev:
	case <-b.stopped:
	}
}

// PublishNoteEvent publishes note.<kind> carrying the note id.
func (b *Broker) PublishNoteEvent(owner, kind, id string) {
	b.Publish(Event{Owner: owner, Type: "note." + kind, Data: map[string]string{"id": id}})
}

// ServeHTTP streams the caller's events (GET /api/events). It must run
// behind the auth middleware, which supplies the owner. Idle streams get a
// comment line every heartbeat interval so proxies keep them open.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	owner := identity.OwnerFrom(r.Context())
	if owner == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := b.Subscribe(owner)
	defer b.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("retry: " + strconv.Itoa(retryMillis) + "\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
