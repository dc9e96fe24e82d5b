package orbits

import (
	"context"
	"strings"
	"testing"
	"time"

	"vce/pkg/config"
	"vce/pkg/model"
	"vce/pkg/store"
)

const (
	issLine1 = "1 25544U 98067A   24100.50000000  .00016717  00000-0  10270-3 0  9005"
	issLine2 = "2 25544  51.6400 100.0000 0001000   0.0000   0.0000 15.50000000    09"
)

var epoch = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.System.Orbits.Start = epoch
	cfg.System.Orbits.Step = 1
	cfg.System.Orbits.Duration = 10
	cfg.Satellites = []model.Satellite{
		{Hostname: "sat0", TLE1: issLine1, TLE2: issLine2},
		{Hostname: "sat1", TLE1: issLine1, TLE2: issLine2},
	}
	cfg.Stations = []model.Station{{Hostname: "gst0", Lat: 47.37, Lon: 8.54, Alt: 408}}
	return cfg
}

func TestTimes(t *testing.T) {
	tests := []struct {
		name string
		dur  time.Duration
		step time.Duration
		want int
	}{
		{"inclusive end", 10 * time.Minute, time.Minute, 11},
		{"uneven", 10 * time.Minute, 3 * time.Minute, 4},
		{"zero duration", 0, time.Minute, 1},
		{"zero step", time.Hour, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Times(epoch, epoch.Add(tt.dur), tt.step)
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
			if !got[0].Equal(epoch) {
				t.Errorf("first = %v", got[0])
			}
		})
	}
}

func TestPropagate(t *testing.T) {
	samples, err := Propagate(context.Background(), testConfig(), 2)
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(samples) != 22 {
		t.Fatalf("got %d samples, want 22", len(samples))
	}
	for i, s := range samples {
		if s.Alt < 300e3 || s.Alt > 600e3 {
			t.Errorf("sample %d altitude %.0f m outside LEO range", i, s.Alt)
		}
		if s.Lat < -52 || s.Lat > 52 {
			t.Errorf("sample %d latitude %.2f beyond inclination", i, s.Lat)
		}
		if s.Lon < -180 || s.Lon >= 180 {
			t.Errorf("sample %d longitude %.2f not normalized", i, s.Lon)
		}
	}
	if samples[0].Host != "sat0" || samples[11].Host != "sat1" {
		t.Errorf("not grouped by host: %s, %s", samples[0].Host, samples[11].Host)
	}
	// same TLE, same instants
	if samples[3].Lat != samples[14].Lat || samples[3].Lon != samples[14].Lon {
		t.Error("identical TLEs produced different positions")
	}
	// ~7.6 km/s ground track: one minute moves the subpoint noticeably
	if samples[0].Lat == samples[1].Lat && samples[0].Lon == samples[1].Lon {
		t.Error("subpoint did not move between steps")
	}
}

func TestPropagate_BadTLE(t *testing.T) {
	cfg := testConfig()
	cfg.Satellites[1].TLE2 = "2 25544 garbage"
	_, err := Propagate(context.Background(), cfg, 1)
	if err == nil || !strings.Contains(err.Error(), "sat1") {
		t.Fatalf("err = %v, want error naming sat1", err)
	}
}

func TestPropagate_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Propagate(ctx, testConfig(), 1); err == nil {
		t.Fatal("expected context error")
	}
}

func TestValidateTLE(t *testing.T) {
	tests := []struct {
		name   string
		l1, l2 string
		ok     bool
	}{
		{"iss", issLine1, issLine2, true},
		{"padded", "  " + issLine1 + "\n", issLine2 + " ", true},
		{"short", issLine1[:60], issLine2, false},
		{"swapped", issLine2, issLine1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateTLE(tt.l1, tt.l2); (err == nil) != tt.ok {
				t.Errorf("err = %v, ok = %v", err, tt.ok)
			}
		})
	}
}

func TestCompute(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()
	n, err := Compute(ctx, testConfig(), st)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if n != 23 {
		t.Errorf("wrote %d samples, want 23", n)
	}
	latest, err := st.LatestBefore(ctx, epoch.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(latest) != 3 {
		t.Fatalf("latest has %d hosts, want 3", len(latest))
	}
	if g := latest["gst0"]; !g.Time.Equal(epoch) || g.Alt != 408 {
		t.Errorf("station sample = %+v", g)
	}
	if s := latest["sat0"]; !s.Time.Equal(epoch.Add(10 * time.Minute)) {
		t.Errorf("sat0 latest at %v", s.Time)
	}
}

func TestNormalizeLon(t *testing.T) {
	tests := []struct{ in, want float64 }{
		{0, 0}, {190, -170}, {-190, 170}, {540, -180}, {179.5, 179.5},
	}
	for _, tt := range tests {
		if got := normalizeLon(tt.in); got != tt.want {
			t.Errorf("normalizeLon(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
