package model

import "time"

// PositionSample is one geodetic fix of a node at a simulated instant.
// Samples are write-once; per host, timestamps only grow.
type PositionSample struct {
	Host string    `json:"host"`
	Time time.Time `json:"time"`
	Lat  float64   `json:"lat"` // degrees
	Lon  float64   `json:"lon"` // degrees
	Alt  float64   `json:"alt"` // meters
}
