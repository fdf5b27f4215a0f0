package models

import (
	"fmt"
	"time"
)

// Coordinates is a WGS84 latitude/longitude pair.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Clone returns a copy of c, or nil.
func (c *Coordinates) Clone() *Coordinates {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func (c Coordinates) String() string {
	return fmt.Sprintf("%.5f,%.5f", c.Latitude, c.Longitude)
}

// Valid reports whether the pair is within WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Permission is the platform location permission as last observed.
type Permission string

const (
	PermissionUnknown Permission = "unknown"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// LocationStatus is the geolocator request state.
type LocationStatus string

const (
	LocationStatusIdle       LocationStatus = "idle"
	LocationStatusRequesting LocationStatus = "requesting"
	LocationStatusReady      LocationStatus = "ready"
	LocationStatusFailed     LocationStatus = "failed"
)

// FailureReason classifies why the last location request failed.
type FailureReason string

const (
	FailureNone             FailureReason = ""
	FailurePermissionDenied FailureReason = "permission_denied"
	FailureTimeout          FailureReason = "timeout"
	FailureUnavailable      FailureReason = "unavailable"
)

// LocationState is the process-wide geolocation snapshot.
type LocationState struct {
	Coordinates *Coordinates   `json:"coordinates,omitempty"`
	Permission  Permission     `json:"permission"`
	Status      LocationStatus `json:"status"`
	LastError   string         `json:"last_error,omitempty"`
	Reason      FailureReason  `json:"reason,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy.
func (l LocationState) Clone() LocationState {
	out := l
	out.Coordinates = l.Coordinates.Clone()
	return out
}
