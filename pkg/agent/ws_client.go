package agent

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"vce/pkg/model"
)

const watchRetry = 5 * time.Second

// WatchURL turns the server base URL into the websocket endpoint for src.
func WatchURL(base, src string) (string, error) {
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, base)
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	u.Scheme = scheme
	u.Path = "/api/v1/ws/net"
	q := u.Query()
	q.Set("src", src)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Watch streams src's parameter updates to fn, reconnecting until ctx ends.
func Watch(ctx context.Context, base, src, token string, fn func(model.ParamUpdate)) error {
	endpoint, err := WatchURL(base, src)
	if err != nil {
		return err
	}
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	for {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
		if err != nil {
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			if status == http.StatusNotFound {
				return fmt.Errorf("%w: %s", ErrNotFound, src)
			}
			log.Warnf("ws dial failed: %v (url=%s status=%d)", err, endpoint, status)
		} else {
			log.Infof("ws connected url=%s", endpoint)
			readUpdates(ctx, conn, fn)
			log.Infof("ws disconnected, retrying in %s", watchRetry)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(watchRetry):
		}
	}
}

func readUpdates(ctx context.Context, conn *websocket.Conn, fn func(model.ParamUpdate)) {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()
	defer conn.Close()
	for {
		var msg model.ParamUpdate
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		fn(msg)
	}
}
