// Package resolver turns the position history into per-source link
// parameters at the current simulated time.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vce/pkg/clock"
	"vce/pkg/geo"
	"vce/pkg/model"
	"vce/pkg/store"
)

// ErrUnknownSource is returned for a source that is not part of the
// constellation or has no position at the simulated instant.
var ErrUnknownSource = errors.New("unknown source")

// Resolver is built once at server start and shared by all requests.
type Resolver struct {
	clock *clock.Clock
	store store.PositionStore
	hosts map[string]struct{}
}

func New(clk *clock.Clock, st store.PositionStore, hostnames []string) *Resolver {
	hosts := make(map[string]struct{}, len(hostnames))
	for _, h := range hostnames {
		hosts[h] = struct{}{}
	}
	return &Resolver{clock: clk, store: st, hosts: hosts}
}

// SimulatedTime maps wall-clock now onto the orbit window.
func (r *Resolver) SimulatedTime(now time.Time) time.Time {
	return r.clock.At(now)
}

// Window returns the orbit window bounds.
func (r *Resolver) Window() (time.Time, time.Time) {
	return r.clock.Window()
}

// Known reports whether src belongs to the constellation.
func (r *Resolver) Known(src string) bool {
	_, ok := r.hosts[src]
	return ok
}

// Resolve computes the parameter map for src. Destinations with line of
// sight and no measurable delay are omitted; blocked ones get full loss.
func (r *Resolver) Resolve(ctx context.Context, src string, now time.Time) (model.ParameterMap, error) {
	if !r.Known(src) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, src)
	}
	t := r.clock.At(now)
	positions, err := r.store.LatestBefore(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("positions at %s: %w", t.Format(time.RFC3339), err)
	}
	self, ok := positions[src]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no position at %s", ErrUnknownSource, src, t.Format(time.RFC3339))
	}
	p1 := geo.ToCartesian(self.Lat, self.Lon, self.Alt)

	out := make(model.ParameterMap, len(positions))
	for dst, pos := range positions {
		if dst == src {
			continue
		}
		o := geo.LineOfSight(p1, geo.ToCartesian(pos.Lat, pos.Lon, pos.Alt))
		switch {
		case o.Blocked:
			out[dst] = model.Blocked()
		case o.DelayMs > 0:
			out[dst] = model.Delayed(o.DelayMs)
		}
	}
	return out, nil
}
