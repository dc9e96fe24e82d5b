//go:build consul

package store

import (
	"vce/pkg/consul"
)

// NewConsulStore creates a Consul-backed store (requires build tag consul).
func NewConsulStore(addr, prefix string) (PositionStore, error) {
	s, err := consul.NewStore(addr, prefix)
	if err != nil {
		return nil, err
	}
	return s, nil
}
