//go:build consul

package consul

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	consulapi "github.com/hashicorp/consul/api"

	"vce/pkg/model"
)

// Store keeps position samples in the Consul KV under
// <prefix><host>/<zero-padded unix nanos>, so a prefix listing of one host
// comes back in time order.
type Store struct {
	cli    *consulapi.Client
	prefix string
}

type sampleValue struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

func NewStore(addr, prefix string) (*Store, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	cli, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	if prefix == "" {
		prefix = "vce/pos/"
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{cli: cli, prefix: prefix}, nil
}

func (s *Store) key(host string, t time.Time) string {
	return fmt.Sprintf("%s%s/%020d", s.prefix, host, t.UnixNano())
}

// parseKey splits a KV key back into host and time.
func (s *Store) parseKey(key string) (string, time.Time, bool) {
	rest := strings.TrimPrefix(key, s.prefix)
	i := strings.LastIndexByte(rest, '/')
	if i <= 0 {
		return "", time.Time{}, false
	}
	ns, err := strconv.ParseInt(rest[i+1:], 10, 64)
	if err != nil {
		return "", time.Time{}, false
	}
	return rest[:i], time.Unix(0, ns).UTC(), true
}

// WriteSamples puts samples in transactions of at most 64 operations, the
// Consul limit for one txn.
func (s *Store) WriteSamples(ctx context.Context, samples []model.PositionSample) error {
	const batch = 64
	opts := (&consulapi.QueryOptions{}).WithContext(ctx)
	for i := 0; i < len(samples); i += batch {
		end := min(i+batch, len(samples))
		var ops consulapi.TxnOps
		for _, p := range samples[i:end] {
			b, err := json.Marshal(sampleValue{Lat: p.Lat, Lon: p.Lon, Alt: p.Alt})
			if err != nil {
				return err
			}
			ops = append(ops, &consulapi.TxnOp{KV: &consulapi.KVTxnOp{
				Verb:  consulapi.KVSet,
				Key:   s.key(p.Host, p.Time),
				Value: b,
			}})
		}
		ok, resp, _, err := s.cli.Txn().Txn(ops, opts)
		if err != nil {
			return err
		}
		if !ok {
			var msgs []string
			for _, e := range resp.Errors {
				msgs = append(msgs, e.What)
			}
			return fmt.Errorf("consul txn rejected: %s", strings.Join(msgs, "; "))
		}
	}
	return nil
}

func (s *Store) list(ctx context.Context, prefix string) ([]model.PositionSample, error) {
	pairs, _, err := s.cli.KV().List(prefix, (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return nil, err
	}
	out := make([]model.PositionSample, 0, len(pairs))
	for _, kv := range pairs {
		host, ts, ok := s.parseKey(kv.Key)
		if !ok {
			continue
		}
		var v sampleValue
		if err := json.Unmarshal(kv.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kv.Key, err)
		}
		out = append(out, model.PositionSample{Host: host, Time: ts, Lat: v.Lat, Lon: v.Lon, Alt: v.Alt})
	}
	return out, nil
}

func (s *Store) LatestBefore(ctx context.Context, t time.Time) (map[string]model.PositionSample, error) {
	all, err := s.list(ctx, s.prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.PositionSample)
	for _, p := range all {
		if p.Time.After(t) {
			continue
		}
		if cur, ok := out[p.Host]; !ok || p.Time.After(cur.Time) {
			out[p.Host] = p
		}
	}
	return out, nil
}

func (s *Store) SeriesFor(ctx context.Context, host string) ([]model.PositionSample, error) {
	return s.list(ctx, s.prefix+host+"/")
}

// HasSamples lists keys only, without fetching values.
func (s *Store) HasSamples(ctx context.Context) (bool, error) {
	keys, _, err := s.cli.KV().Keys(s.prefix, "", (&consulapi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return false, err
	}
	return len(keys) > 0, nil
}

func (s *Store) Close() error { return nil }
