//go:build !consul

package store

import (
	log "github.com/sirupsen/logrus"
)

// NewConsulStore returns a memory store when the consul build tag is not enabled.
func NewConsulStore(addr, prefix string) (PositionStore, error) {
	log.Warnf("consul store requested (addr=%s prefix=%s) but consul build tag not enabled; using memory store", addr, prefix)
	return NewMemoryStore(), nil
}
