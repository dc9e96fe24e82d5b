package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vce/pkg/auth"
	"vce/pkg/clock"
	"vce/pkg/model"
	"vce/pkg/resolver"
	"vce/pkg/store"
)

var (
	orbitStart = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	serverUp   = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
)

type brokenStore struct{ store.PositionStore }

func (brokenStore) LatestBefore(context.Context, time.Time) (map[string]model.PositionSample, error) {
	return nil, errors.New("disk on fire")
}

func testResolver(t *testing.T, st store.PositionStore) *resolver.Resolver {
	t.Helper()
	clk, err := clock.New(orbitStart, orbitStart.Add(time.Hour), serverUp)
	if err != nil {
		t.Fatal(err)
	}
	if st == nil {
		mem := store.NewMemoryStore()
		err = mem.WriteSamples(context.Background(), []model.PositionSample{
			{Host: "sat0", Time: orbitStart, Lat: 0, Lon: 0, Alt: 550000},
			{Host: "sat1", Time: orbitStart, Lat: 0, Lon: 20, Alt: 550000},
			{Host: "sat2", Time: orbitStart, Lat: 0, Lon: 180, Alt: 550000},
		})
		if err != nil {
			t.Fatal(err)
		}
		st = mem
	}
	return resolver.New(clk, st, []string{"sat0", "sat1", "sat2"})
}

func newTestServer(t *testing.T, opts Options) http.Handler {
	t.Helper()
	opts.Now = func() time.Time { return serverUp.Add(time.Minute) }
	return NewServer(testResolver(t, nil), opts).Router()
}

func do(h http.Handler, method, target, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestParams(t *testing.T) {
	h := newTestServer(t, Options{})
	rec := do(h, http.MethodGet, "/net/src/sat0", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Error("missing request id header")
	}
	var got model.ParameterMap
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got["sat2"].Equal(model.Blocked()) {
		t.Errorf("sat2 = %v, want loss 100", got["sat2"])
	}
	if _, ok := got["sat1"][model.ParamDelay]; !ok {
		t.Errorf("sat1 = %v, want a delay", got["sat1"])
	}
}

func TestParams_Errors(t *testing.T) {
	h := newTestServer(t, Options{})
	if rec := do(h, http.MethodGet, "/net/src/nobody", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown source status = %d, want 404", rec.Code)
	}

	broken := NewServer(testResolver(t, brokenStore{}), Options{}).Router()
	if rec := do(broken, http.MethodGet, "/net/src/sat0", "", ""); rec.Code != http.StatusInternalServerError {
		t.Errorf("store failure status = %d, want 500", rec.Code)
	}
}

func TestAuth(t *testing.T) {
	hash, err := auth.HashPassword("pw")
	if err != nil {
		t.Fatal(err)
	}
	iss := auth.NewIssuer("secret", time.Hour)
	h := newTestServer(t, Options{Issuer: iss, PasswordHash: hash})
	agentTok, _ := iss.Generate("sat0", auth.RoleAgent)

	tests := []struct {
		name   string
		target string
		token  string
		want   int
	}{
		{"no token", "/net/src/sat0", "", http.StatusUnauthorized},
		{"bad token", "/net/src/sat0", "junk", http.StatusUnauthorized},
		{"own source", "/net/src/sat0", agentTok, http.StatusOK},
		{"other source", "/net/src/sat1", agentTok, http.StatusForbidden},
		{"health is open", "/healthz", "", http.StatusOK},
		{"clock is open", "/api/v1/clock", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h, http.MethodGet, tt.target, tt.token, ""); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	if rec := do(h, http.MethodPost, "/api/v1/auth/login", "", `{"password":"nope"}`); rec.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d", rec.Code)
	}
	rec := do(h, http.MethodPost, "/api/v1/auth/login", "", `{"password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d", rec.Code)
	}
	var resp map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if rec := do(h, http.MethodGet, "/net/src/sat1", resp["token"], ""); rec.Code != http.StatusOK {
		t.Errorf("operator token status = %d", rec.Code)
	}
}

func TestNodes(t *testing.T) {
	h := newTestServer(t, Options{Nodes: []model.Node{
		{Hostname: "sat0", Kind: model.KindSatellite},
		{Hostname: "gst0", Kind: model.KindStation},
	}})
	rec := do(h, http.MethodGet, "/api/v1/nodes", "", "")
	var got []model.Node
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Kind != model.KindStation {
		t.Errorf("nodes = %+v", got)
	}
}

func TestPositions(t *testing.T) {
	mem := store.NewMemoryStore()
	_ = mem.WriteSamples(context.Background(), []model.PositionSample{
		{Host: "sat0", Time: orbitStart, Alt: 550000},
		{Host: "sat0", Time: orbitStart.Add(time.Minute), Alt: 551000},
	})
	h := NewServer(testResolver(t, mem), Options{Store: mem}).Router()

	rec := do(h, http.MethodGet, "/api/v1/positions/sat0", "", "")
	var got []model.PositionSample
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[1].Alt != 551000 {
		t.Errorf("positions = %+v", got)
	}
	if rec := do(h, http.MethodGet, "/api/v1/positions/nobody", "", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown host status = %d", rec.Code)
	}
}

func TestClock(t *testing.T) {
	h := newTestServer(t, Options{})
	rec := do(h, http.MethodGet, "/api/v1/clock", "", "")
	var got clockResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.Simulated.Equal(orbitStart.Add(time.Minute)) {
		t.Errorf("simulated = %v", got.Simulated)
	}
	if !got.End.Equal(orbitStart.Add(time.Hour)) {
		t.Errorf("end = %v", got.End)
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, Options{RateLimit: 0.001, RateBurst: 1})
	if rec := do(h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := do(h, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
}

func TestWatch(t *testing.T) {
	srv := NewServer(testResolver(t, nil), Options{
		WatchInterval: 10 * time.Millisecond,
		Now:           func() time.Time { return serverUp },
	})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	defer srv.Hub().Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/net?src=sat0"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()
	_ = c.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg model.ParamUpdate
	if err := c.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Source != "sat0" || !msg.Simulated.Equal(orbitStart) {
		t.Errorf("update = %+v", msg)
	}
	if !msg.Params["sat2"].Equal(model.Blocked()) {
		t.Errorf("params = %v", msg.Params)
	}

	rec := do(srv.Router(), http.MethodGet, "/api/v1/ws/net?src=nobody", "", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown watch source status = %d", rec.Code)
	}
}
