package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// streamBacklog is how many recent events are kept for Last-Event-ID replay.
	streamBacklog = 1000

	// streamKeepalive is the interval between keepalive comments on idle streams.
	streamKeepalive = 15 * time.Second

	// subscriberBuffer is the per-connection queue; events beyond it are dropped.
	subscriberBuffer = 64
)

// streamEvent is one entry on the event stream.
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// topicFilter selects events by NATS-style topic patterns. An empty filter
// selects everything.
type topicFilter []string

func parseTopicFilter(q string) topicFilter {
	var f topicFilter
	for _, p := range strings.Split(q, ",") {
		if p = strings.TrimSpace(p); p != "" {
			f = append(f, p)
		}
	}
	return f
}

func (f topicFilter) match(topic string) bool {
	if len(f) == 0 {
		return true
	}
	for _, pattern := range f {
		if topicMatches(pattern, topic) {
			return true
		}
	}
	return false
}

// topicMatches reports whether topic matches pattern. "*" matches exactly one
// segment, a trailing ">" matches one or more.
func topicMatches(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	segs := strings.Split(topic, ".")
	for len(pat) > 0 {
		switch {
		case pat[0] == ">":
			return len(segs) > 0
		case len(segs) == 0:
			return false
		case pat[0] != "*" && pat[0] != segs[0]:
			return false
		}
		pat, segs = pat[1:], segs[1:]
	}
	return len(segs) == 0
}

// subscription is one connected stream reader.
type subscription struct {
	filter topicFilter
	ch     chan streamEvent
}

// eventStream assigns ids to configuration events, keeps a bounded backlog and
// fans events out to subscriptions. Ids, backlog and delivery share one lock
// so a reader never sees an id out of order.
type eventStream struct {
	mu      sync.Mutex
	seq     uint64
	backlog []streamEvent
	limit   int
	subs    map[*subscription]struct{}
}

func newEventStream(limit int) *eventStream {
	return &eventStream{
		limit: limit,
		subs:  make(map[*subscription]struct{}),
	}
}

// publish appends an event and delivers it to matching subscriptions. Full
// subscriber queues drop the event.
func (es *eventStream) publish(topic string, data []byte) uint64 {
	es.mu.Lock()
	defer es.mu.Unlock()

	es.seq++
	evt := streamEvent{ID: es.seq, Topic: topic, Data: data}
	if len(es.backlog) == es.limit {
		copy(es.backlog, es.backlog[1:])
		es.backlog = es.backlog[:es.limit-1]
	}
	es.backlog = append(es.backlog, evt)

	for sub := range es.subs {
		if !sub.filter.match(topic) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
	return evt.ID
}

// subscribe registers a subscription. When resume is set it also returns the
// backlog events after lastID that match filter; replay and live delivery
// are gapless.
func (es *eventStream) subscribe(filter topicFilter, lastID uint64, resume bool) (*subscription, []streamEvent) {
	sub := &subscription{filter: filter, ch: make(chan streamEvent, subscriberBuffer)}

	es.mu.Lock()
	defer es.mu.Unlock()

	var replay []streamEvent
	if resume {
		for _, evt := range es.backlog {
			if evt.ID > lastID && filter.match(evt.Topic) {
				replay = append(replay, evt)
			}
		}
	}
	es.subs[sub] = struct{}{}
	sseClients.Inc()
	return sub, replay
}

func (es *eventStream) unsubscribe(sub *subscription) {
	es.mu.Lock()
	defer es.mu.Unlock()
	if _, ok := es.subs[sub]; ok {
		delete(es.subs, sub)
		sseClients.Dec()
	}
}

// handleEventStream handles GET /api/v1/events/stream.
func (s *ConfigServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming not supported")
		return
	}

	var lastID uint64
	resume := false
	if v := r.Header.Get("Last-Event-ID"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidInput, "Last-Event-ID must be a number")
			return
		}
		lastID, resume = id, true
	}

	sub, replay := s.stream.subscribe(parseTopicFilter(r.URL.Query().Get("topics")), lastID, resume)
	defer s.stream.unsubscribe(sub)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	for _, evt := range replay {
		writeStreamEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(streamKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-sub.ch:
			writeStreamEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			io.WriteString(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeStreamEvent(w io.Writer, evt streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}
