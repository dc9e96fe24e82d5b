package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"vce/pkg/metrics"
	"vce/pkg/model"
	"vce/pkg/resolver"
)

const writeWait = 5 * time.Second

// WatchHub streams parameter maps to websocket observers. Each connection
// gets its own ticker and only receives a message when its map changed.
type WatchHub struct {
	upgrader websocket.Upgrader
	res      *resolver.Resolver
	interval time.Duration
	now      func() time.Time

	mu     sync.Mutex
	subs   map[*websocket.Conn]string // conn -> source
	closed bool
}

func NewWatchHub(res *resolver.Resolver, interval time.Duration, now func() time.Time) *WatchHub {
	return &WatchHub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		res:      res,
		interval: interval,
		now:      now,
		subs:     map[*websocket.Conn]string{},
	}
}

// Serve upgrades the request and pushes src's parameters until the peer
// goes away or the hub is closed.
func (h *WatchHub) Serve(w http.ResponseWriter, r *http.Request, src string) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("ws upgrade failed src=%s err=%v", src, err)
		return
	}
	if !h.add(c, src) {
		_ = c.Close()
		return
	}
	log.Infof("watcher connected src=%s remote=%s", src, r.RemoteAddr)

	ctx, cancel := context.WithCancel(context.Background())
	go h.readLoop(c, cancel)
	h.pushLoop(ctx, c, src)
	h.remove(c)
	log.Infof("watcher disconnected src=%s", src)
}

func (h *WatchHub) add(c *websocket.Conn, src string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subs[c] = src
	metrics.WatchSubscribers.Inc()
	return true
}

func (h *WatchHub) remove(c *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.subs[c]; ok {
		delete(h.subs, c)
		metrics.WatchSubscribers.Dec()
	}
	h.mu.Unlock()
	_ = c.Close()
}

// readLoop drains control frames; a read error means the peer is gone.
func (h *WatchHub) readLoop(c *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := c.NextReader(); err != nil {
			return
		}
	}
}

func (h *WatchHub) pushLoop(ctx context.Context, c *websocket.Conn, src string) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last model.ParameterMap
	first := true
	for {
		now := h.now()
		params, err := h.res.Resolve(ctx, src, now)
		switch {
		case errors.Is(err, resolver.ErrUnknownSource):
			// no position yet at this simulated instant
		case err != nil:
			log.Warnf("watch resolve src=%s: %v", src, err)
		case first || !params.Equal(last):
			msg := model.ParamUpdate{Source: src, Simulated: h.res.SimulatedTime(now), Params: params}
			_ = c.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.WriteJSON(msg); err != nil {
				return
			}
			last, first = params, false
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Close disconnects every watcher and refuses new ones.
func (h *WatchHub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.subs))
	for c := range h.subs {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		_ = c.Close()
	}
}

// Subscribers returns the number of open watchers.
func (h *WatchHub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
