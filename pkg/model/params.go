package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrUnknownParam is returned when a shaping parameter name is not one of the
// closed set below.
var ErrUnknownParam = errors.New("unknown shaping parameter")

// Param names a single traffic-shaping impairment.
type Param string

const (
	ParamDelay   Param = "delay"   // milliseconds
	ParamRate    Param = "rate"    // kbps
	ParamLoss    Param = "loss"    // percent
	ParamCorrupt Param = "corrupt" // percent
)

// Params lists every shaping parameter in the order they are applied.
var Params = []Param{ParamDelay, ParamRate, ParamLoss, ParamCorrupt}

// ParseParam validates a parameter name.
func ParseParam(s string) (Param, error) {
	switch p := Param(s); p {
	case ParamDelay, ParamRate, ParamLoss, ParamCorrupt:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownParam, s)
}

// LinkParams are the impairments for one (src, dst) pair.
// An absent pair means the link is left unimpaired.
type LinkParams map[Param]float64

// Blocked is a link without line of sight: every packet is dropped.
func Blocked() LinkParams {
	return LinkParams{ParamLoss: 100}
}

// Delayed is a clear link with the given one-way delay in milliseconds.
func Delayed(ms float64) LinkParams {
	return LinkParams{ParamDelay: ms}
}

// Equal reports whether both parameter sets carry the same values.
func (p LinkParams) Equal(o LinkParams) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// UnmarshalJSON rejects parameter names outside the closed set.
func (p *LinkParams) UnmarshalJSON(b []byte) error {
	var raw map[string]float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(LinkParams, len(raw))
	for k, v := range raw {
		param, err := ParseParam(k)
		if err != nil {
			return err
		}
		out[param] = v
	}
	*p = out
	return nil
}

// ParameterMap maps destination hostnames to the impairments a source must
// apply towards them at one simulated instant.
type ParameterMap map[string]LinkParams

// Equal is full structural equality.
func (m ParameterMap) Equal(o ParameterMap) bool {
	if len(m) != len(o) {
		return false
	}
	for dst, p := range m {
		op, ok := o[dst]
		if !ok || !p.Equal(op) {
			return false
		}
	}
	return true
}

// Destinations returns the destination hostnames in sorted order.
func (m ParameterMap) Destinations() []string {
	out := make([]string, 0, len(m))
	for dst := range m {
		out = append(out, dst)
	}
	sort.Strings(out)
	return out
}

// ParamUpdate is one websocket push of a source's parameter map.
type ParamUpdate struct {
	Source    string       `json:"source"`
	Simulated time.Time    `json:"simulated"`
	Params    ParameterMap `json:"params"`
}
