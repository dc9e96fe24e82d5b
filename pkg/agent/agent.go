// Package agent runs on every constellation node: it polls the parameter
// server and turns changed parameter maps into tcset invocations.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"vce/pkg/metrics"
	"vce/pkg/model"
)

// State is the agent's position in its control loop.
type State int

const (
	StateResolvingIdentity State = iota
	StatePolling
	StateApplying
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateResolvingIdentity:
		return "resolving-identity"
	case StatePolling:
		return "polling"
	case StateApplying:
		return "applying"
	case StateSleeping:
		return "sleeping"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Options wires an Agent. Lookup and Interfaces default to DNS and gopsutil.
type Options struct {
	Host       string
	Interval   time.Duration
	Source     Source
	Shaper     Shaper
	Aliases    Aliases
	Lookup     AddrLookup
	Interfaces InterfaceLister
}

// DestResult is the outcome of shaping towards one destination.
type DestResult struct {
	Dst  string
	Addr string
	Err  error
}

// BatchResult collects the per-destination outcomes of one apply.
type BatchResult []DestResult

// Failed returns the results that carry an error.
func (b BatchResult) Failed() []DestResult {
	var out []DestResult
	for _, r := range b {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// CycleResult describes one poll-and-apply round.
type CycleResult struct {
	Polled  bool        // a parameter map was received
	Changed bool        // it differed from the last applied one
	Batch   BatchResult // per-destination outcomes when Changed
	Err     error       // poll failure, if any
}

// Agent is a single sequential control loop; it is not safe for concurrent use.
type Agent struct {
	opts        Options
	id          Identity
	resolved    bool
	state       State
	lastApplied model.ParameterMap
}

func New(opts Options) *Agent {
	if opts.Lookup == nil {
		opts.Lookup = LookupIPv4
	}
	if opts.Interfaces == nil {
		opts.Interfaces = SystemInterfaces
	}
	if opts.Aliases == nil {
		opts.Aliases = Aliases{}
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	return &Agent{opts: opts, state: StateResolvingIdentity, lastApplied: model.ParameterMap{}}
}

func (a *Agent) State() State                    { return a.state }
func (a *Agent) Identity() Identity              { return a.id }
func (a *Agent) LastApplied() model.ParameterMap { return a.lastApplied }

// Init resolves the agent's own address and interface. Its error is fatal.
func (a *Agent) Init(ctx context.Context) error {
	if a.resolved {
		return nil
	}
	a.state = StateResolvingIdentity
	id, err := ResolveIdentity(ctx, a.opts.Host, a.opts.Aliases, a.opts.Lookup, a.opts.Interfaces)
	if err != nil {
		return err
	}
	a.id, a.resolved = id, true
	a.state = StatePolling
	log.Infof("agent %s: address %s on %s", id.Host, id.Addr, id.Iface)
	return nil
}

// Run resolves identity then loops until ctx is cancelled or a fatal
// error occurs.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.Init(ctx); err != nil {
		return err
	}
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		res := a.Cycle(ctx)
		if errors.Is(res.Err, ErrInvalidURL) {
			return res.Err
		}
		a.state = StateSleeping
		timer.Reset(a.opts.Interval)
	}
}

// Cycle performs exactly one poll and, when the map changed, one apply.
func (a *Agent) Cycle(ctx context.Context) CycleResult {
	if err := a.Init(ctx); err != nil {
		return CycleResult{Err: err}
	}
	a.state = StatePolling
	params, err := a.opts.Source.Fetch(ctx, a.id.Host)
	switch {
	case errors.Is(err, ErrNotFound):
		metrics.AgentPolls.WithLabelValues("not_found").Inc()
		log.Warnf("server has no parameters for %s this cycle", a.id.Host)
		return CycleResult{Err: err}
	case err != nil:
		metrics.AgentPolls.WithLabelValues("error").Inc()
		log.Errorf("poll: %v", err)
		return CycleResult{Err: err}
	}
	metrics.AgentPolls.WithLabelValues("ok").Inc()
	log.Debugf("received parameters for %s: %v", a.id.Host, params)

	res := CycleResult{Polled: true}
	if params.Equal(a.lastApplied) {
		return res
	}
	a.state = StateApplying
	res.Changed = true
	res.Batch = a.apply(ctx, params)
	a.lastApplied = params
	metrics.AgentApplies.Inc()
	return res
}

// apply shapes every destination of params; failures are isolated.
func (a *Agent) apply(ctx context.Context, params model.ParameterMap) BatchResult {
	batch := make(BatchResult, 0, len(params))
	for _, dst := range params.Destinations() {
		r := DestResult{Dst: dst}
		r.Addr, r.Err = a.opts.Lookup(ctx, a.opts.Aliases.Resolve(dst))
		if r.Err != nil {
			r.Err = fmt.Errorf("cannot resolve hostname %s: %w", dst, r.Err)
		} else {
			r.Err = a.opts.Shaper.Replace(ctx, a.id.Iface, a.id.Addr, r.Addr, params[dst])
		}
		if r.Err != nil {
			metrics.AgentShapingFailures.Inc()
			log.Errorf("shape %s -> %s: %v", a.id.Host, dst, r.Err)
		}
		batch = append(batch, r)
	}
	log.Infof("applied %d destination(s), %d failed", len(batch), len(batch.Failed()))
	return batch
}
