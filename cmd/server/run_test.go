package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vce/pkg/config"
	"vce/pkg/model"
	"vce/pkg/store"
)

func stationConfig() config.Config {
	cfg := config.DefaultConfig()
	cfg.System.Orbits.Start = time.Date(2024, 4, 9, 12, 0, 0, 0, time.UTC)
	cfg.Stations = []model.Station{{Hostname: "gst0", Lat: 47.37, Lon: 8.54, Alt: 408}}
	return cfg
}

func TestEnsurePositions(t *testing.T) {
	ctx := context.Background()
	cfg := stationConfig()
	path := filepath.Join(t.TempDir(), "pos.db")

	st, err := store.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	computed, err := ensurePositions(ctx, cfg, st)
	if err != nil || !computed {
		t.Fatalf("empty store: computed = %v, err = %v", computed, err)
	}
	_ = st.Close()

	// A restart on the same file must reuse what is there.
	st, err = store.OpenSQLite(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	computed, err = ensurePositions(ctx, cfg, st)
	if err != nil {
		t.Fatalf("filled store: %v", err)
	}
	if computed {
		t.Fatal("filled store was recomputed")
	}
	series, err := st.SeriesFor(ctx, "gst0")
	if err != nil || len(series) != 1 {
		t.Fatalf("gst0 series = %v, %v", series, err)
	}
}
