package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"vce/pkg/model"
)

var (
	// ErrNotFound means the server does not know this source right now.
	ErrNotFound = errors.New("source not known to server")
	// ErrInvalidURL is fatal: the server address cannot form a request.
	ErrInvalidURL = errors.New("invalid server URL")
)

// Source yields the current parameter map of a host.
type Source interface {
	Fetch(ctx context.Context, host string) (model.ParameterMap, error)
}

// HTTPSource queries GET /net/src/{host} on the parameter server.
type HTTPSource struct {
	base   *url.URL
	client *http.Client
	token  string
}

// ServerURL builds the base URL from a config hostname and port. A server
// value that already carries a scheme is used as is.
func ServerURL(server string, port int, secure bool) string {
	if strings.Contains(server, "://") {
		return server
	}
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return scheme + "://" + server + ":" + strconv.Itoa(port)
}

func NewHTTPSource(base, token string, client *http.Client) (*HTTPSource, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidURL, base)
	}
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPSource{base: u, client: client, token: token}, nil
}

func (s *HTTPSource) Fetch(ctx context.Context, host string) (model.ParameterMap, error) {
	u := s.base.JoinPath("net", "src", host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", s.base.Host, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out model.ParameterMap
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode parameters: %w", err)
	}
	if out == nil {
		out = model.ParameterMap{}
	}
	return out, nil
}
