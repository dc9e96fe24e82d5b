package model

// Kind distinguishes orbiting nodes from fixed ground nodes.
type Kind string

const (
	KindSatellite Kind = "satellite"
	KindStation   Kind = "station"
)

// Node is a constellation member, identified by hostname.
type Node struct {
	Hostname string `json:"hostname"`
	Kind     Kind   `json:"kind"`
}

// Satellite carries the two-line element set its positions are derived from.
type Satellite struct {
	Hostname string `toml:"hostname" json:"hostname"`
	TLE1     string `toml:"tle1" json:"tle1"`
	TLE2     string `toml:"tle2" json:"tle2"`
}

// Station is a ground node at a fixed geodetic position (degrees, meters).
type Station struct {
	Hostname string  `toml:"hostname" json:"hostname"`
	Lat      float64 `toml:"lat" json:"lat"`
	Lon      float64 `toml:"lon" json:"lon"`
	Alt      float64 `toml:"alt" json:"alt"`
}
