// Package orbits fills the position store: SGP4 propagation of every
// satellite over the orbit window plus one fixed sample per ground station.
package orbits

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/panjf2000/ants/v2"
	log "github.com/sirupsen/logrus"

	"vce/pkg/config"
	"vce/pkg/model"
	"vce/pkg/store"
)

// Stations returns one sample per ground station at the orbit start.
func Stations(cfg config.Config) []model.PositionSample {
	start := cfg.System.Orbits.Start
	out := make([]model.PositionSample, 0, len(cfg.Stations))
	for _, s := range cfg.Stations {
		out = append(out, model.PositionSample{Host: s.Hostname, Time: start, Lat: s.Lat, Lon: s.Lon, Alt: s.Alt})
	}
	return out
}

// Times lists start, start+step, ... up to and including end.
func Times(start, end time.Time, step time.Duration) []time.Time {
	if step <= 0 {
		return []time.Time{start}
	}
	var out []time.Time
	for t := start; !t.After(end); t = t.Add(step) {
		out = append(out, t)
	}
	return out
}

// Propagate computes every satellite's samples over the orbit window. Each
// satellite is one task on an ants pool of the given size (0 means GOMAXPROCS).
// The result is ordered by host then time.
func Propagate(ctx context.Context, cfg config.Config, workers int) ([]model.PositionSample, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	times := Times(cfg.System.Orbits.Start, cfg.OrbitsEnd(), cfg.OrbitsStep())

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create propagation pool: %w", err)
	}
	defer pool.Release()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		series = make(map[string][]model.PositionSample, len(cfg.Satellites))
		errs   []error
	)
	for _, sat := range cfg.Satellites {
		if err := ctx.Err(); err != nil {
			break
		}
		sat := sat
		wg.Add(1)
		task := func() {
			defer wg.Done()
			samples, err := propagateOne(ctx, sat, times)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			series[sat.Hostname] = samples
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			return nil, fmt.Errorf("submit %s: %w", sat.Hostname, err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	hosts := make([]string, 0, len(series))
	for h := range series {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)
	out := make([]model.PositionSample, 0, len(hosts)*len(times))
	for _, h := range hosts {
		out = append(out, series[h]...)
	}
	return out, nil
}

func propagateOne(ctx context.Context, sat model.Satellite, times []time.Time) ([]model.PositionSample, error) {
	if err := ValidateTLE(sat.TLE1, sat.TLE2); err != nil {
		return nil, fmt.Errorf("satellite %s: %w", sat.Hostname, err)
	}
	s := satellite.TLEToSat(strings.TrimSpace(sat.TLE1), strings.TrimSpace(sat.TLE2), satellite.GravityWGS84)
	if s.Error != 0 {
		return nil, fmt.Errorf("satellite %s: sgp4 init failed: code=%d %s", sat.Hostname, s.Error, s.ErrorStr)
	}
	out := make([]model.PositionSample, 0, len(times))
	for _, t := range times {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := subpoint(s, t.UTC())
		if err != nil {
			return nil, fmt.Errorf("satellite %s at %s: %w", sat.Hostname, t.Format(time.RFC3339), err)
		}
		p.Host, p.Time = sat.Hostname, t
		out = append(out, p)
	}
	return out, nil
}

// subpoint propagates to t and converts the ECI position to geodetic
// latitude/longitude in degrees and altitude in metres.
func subpoint(s satellite.Satellite, t time.Time) (model.PositionSample, error) {
	y, mo, d := t.Date()
	h, mi, sec := t.Clock()
	pos, _ := satellite.Propagate(s, y, int(mo), d, h, mi, sec)
	if math.IsNaN(pos.X) || math.IsNaN(pos.Y) || math.IsNaN(pos.Z) ||
		math.IsInf(pos.X, 0) || math.IsInf(pos.Y, 0) || math.IsInf(pos.Z, 0) {
		return model.PositionSample{}, errors.New("sgp4 output is NaN/Inf")
	}
	gmst := satellite.GSTimeFromDate(y, int(mo), d, h, mi, sec)
	altKm, _, ll := satellite.ECIToLLA(pos, gmst)
	return model.PositionSample{
		Lat: ll.Latitude * 180 / math.Pi,
		Lon: normalizeLon(ll.Longitude * 180 / math.Pi),
		Alt: altKm * 1000,
	}, nil
}

// normalizeLon maps degrees into [-180, 180).
func normalizeLon(deg float64) float64 {
	deg = math.Mod(deg+180, 360)
	if deg < 0 {
		deg += 360
	}
	return deg - 180
}

// ValidateTLE checks the two-line format before the lines reach the SGP4
// library, which exits the process on malformed input.
func ValidateTLE(line1, line2 string) error {
	line1 = strings.TrimSpace(line1)
	line2 = strings.TrimSpace(line2)

	if len(line1) != 69 {
		return fmt.Errorf("line1 length %d, expected 69", len(line1))
	}
	if len(line2) != 69 {
		return fmt.Errorf("line2 length %d, expected 69", len(line2))
	}
	if line1[0] != '1' {
		return fmt.Errorf("line1 must start with '1', got '%c'", line1[0])
	}
	if line2[0] != '2' {
		return fmt.Errorf("line2 must start with '2', got '%c'", line2[0])
	}
	return nil
}

// Compute propagates the constellation and writes stations and satellites
// to st.
func Compute(ctx context.Context, cfg config.Config, st store.PositionStore) (int, error) {
	began := time.Now()
	sats, err := Propagate(ctx, cfg, cfg.System.Orbits.Workers)
	if err != nil {
		return 0, err
	}
	samples := append(Stations(cfg), sats...)
	if err := st.WriteSamples(ctx, samples); err != nil {
		return 0, fmt.Errorf("write positions: %w", err)
	}
	log.Infof("orbits: %d satellites, %d stations, %d samples in %s",
		len(cfg.Satellites), len(cfg.Stations), len(samples), time.Since(began).Round(time.Millisecond))
	return len(samples), nil
}
