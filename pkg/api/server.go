package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"vce/pkg/auth"
	"vce/pkg/metrics"
	"vce/pkg/model"
	"vce/pkg/resolver"
	"vce/pkg/store"
)

// Options tune the HTTP surface; the zero value serves without auth or
// rate limiting.
type Options struct {
	Issuer        *auth.Issuer
	PasswordHash  string
	RateLimit     float64 // requests per second, 0 disables
	RateBurst     int
	WatchInterval time.Duration
	Nodes         []model.Node
	Store         store.PositionStore // serves /api/v1/positions when set
	Now           func() time.Time
}

// Server answers parameter queries for the node agents.
type Server struct {
	res          *resolver.Resolver
	issuer       *auth.Issuer
	passwordHash string
	limiter      *rate.Limiter
	hub          *WatchHub
	nodes        []model.Node
	store        store.PositionStore
	now          func() time.Time
}

func NewServer(res *resolver.Resolver, opts Options) *Server {
	s := &Server{
		res:          res,
		issuer:       opts.Issuer,
		passwordHash: opts.PasswordHash,
		nodes:        opts.Nodes,
		store:        opts.Store,
		now:          opts.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	interval := opts.WatchInterval
	if interval <= 0 {
		interval = time.Second
	}
	s.hub = NewWatchHub(res, interval, s.now)
	return s
}

// Hub exposes the websocket hub so the caller can close it on shutdown.
func (s *Server) Hub() *WatchHub { return s.hub }

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(s.rateLimit)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/net/src/{src}", s.handleParams)
		r.Get("/api/v1/ws/net", s.handleWatch)
		r.Get("/api/v1/nodes", s.handleNodes)
		r.Get("/api/v1/positions/{host}", s.handlePositions)
	})

	r.Get("/api/v1/clock", s.handleClock)
	r.Post("/api/v1/auth/login", s.handleLogin)
	return r
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	src := chi.URLParam(r, "src")
	if !s.allowedSource(r, src) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	params, err := s.res.Resolve(r.Context(), src, s.now())
	switch {
	case errors.Is(err, resolver.ErrUnknownSource):
		metrics.Resolutions.WithLabelValues("unknown_source").Inc()
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		metrics.Resolutions.WithLabelValues("error").Inc()
		log.Errorf("resolve %s: %v", src, err)
		http.Error(w, "failed to resolve parameters", http.StatusInternalServerError)
		return
	}
	metrics.Resolutions.WithLabelValues("ok").Inc()
	writeJSON(w, http.StatusOK, params)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	src := r.URL.Query().Get("src")
	if src == "" {
		http.Error(w, "src required", http.StatusBadRequest)
		return
	}
	if !s.allowedSource(r, src) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if !s.res.Known(src) {
		http.Error(w, "unknown source: "+src, http.StatusNotFound)
		return
	}
	s.hub.Serve(w, r, src)
}

func (s *Server) handleNodes(w http.ResponseWriter, _ *http.Request) {
	nodes := s.nodes
	if nodes == nil {
		nodes = []model.Node{}
	}
	writeJSON(w, http.StatusOK, nodes)
}

// handlePositions returns the stored track of one node.
func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	host := chi.URLParam(r, "host")
	if s.store == nil || !s.res.Known(host) {
		http.Error(w, "unknown host: "+host, http.StatusNotFound)
		return
	}
	series, err := s.store.SeriesFor(r.Context(), host)
	if err != nil {
		log.Errorf("positions of %s: %v", host, err)
		http.Error(w, "failed to read positions", http.StatusInternalServerError)
		return
	}
	if series == nil {
		series = []model.PositionSample{}
	}
	writeJSON(w, http.StatusOK, series)
}

type clockResponse struct {
	Simulated time.Time `json:"simulated"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
}

func (s *Server) handleClock(w http.ResponseWriter, _ *http.Request) {
	start, end := s.res.Window()
	writeJSON(w, http.StatusOK, clockResponse{
		Simulated: s.res.SimulatedTime(s.now()),
		Start:     start,
		End:       end,
	})
}

type loginRequest struct {
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.issuer.Enabled() {
		http.Error(w, "auth disabled", http.StatusNotFound)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := auth.CheckPassword(s.passwordHash, req.Password); err != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	token, err := s.issuer.Generate("operator", auth.RoleOperator)
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// allowedSource restricts agent tokens to their own source; operators and
// unauthenticated servers may query any node.
func (s *Server) allowedSource(r *http.Request, src string) bool {
	c := claimsFrom(r.Context())
	if c == nil || c.Role != auth.RoleAgent {
		return true
	}
	return c.Subject == src
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("failed to write response: %v", err)
	}
}
