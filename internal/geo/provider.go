package geo

import (
	"context"
	"errors"
	"time"

	"github.com/joescharf/sos/internal/models"
)

// Failure kinds. Providers should wrap one of these so the geolocator can
// tell a permission refusal from a transient failure.
var (
	ErrPermissionDenied = errors.New("location permission denied")
	ErrTimeout          = errors.New("location request timed out")
	ErrUnavailable      = errors.New("location unavailable")
)

// Provider is the platform location API.
type Provider interface {
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (models.Coordinates, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	return f(ctx)
}

// PermissionProber reports the platform permission without requesting a
// fix.
type PermissionProber interface {
	Permission(ctx context.Context) (models.Permission, error)
}

// StaticProvider returns fixed coordinates, optionally after a delay.
type StaticProvider struct {
	Coordinates models.Coordinates
	Delay       time.Duration
}

func (p StaticProvider) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if p.Delay > 0 {
		t := time.NewTimer(p.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return models.Coordinates{}, ctx.Err()
		}
	}
	if !p.Coordinates.Valid() {
		return models.Coordinates{}, ErrUnavailable
	}
	return p.Coordinates, nil
}

// Permission always reports Granted.
func (p StaticProvider) Permission(context.Context) (models.Permission, error) {
	return models.PermissionGranted, nil
}

// DeniedProvider simulates a user who refused location access.
type DeniedProvider struct{}

func (DeniedProvider) CurrentPosition(context.Context) (models.Coordinates, error) {
	return models.Coordinates{}, ErrPermissionDenied
}

func (DeniedProvider) Permission(context.Context) (models.Permission, error) {
	return models.PermissionDenied, nil
}

// UnsupportedProvider is used where no location API exists.
type UnsupportedProvider struct{}

func (UnsupportedProvider) CurrentPosition(context.Context) (models.Coordinates, error) {
	return models.Coordinates{}, errors.Join(ErrUnavailable, errors.New("geolocation is not supported on this platform"))
}

// NewProvider builds a provider by name: "static", "denied" or "none".
func NewProvider(name string, coords models.Coordinates) (Provider, error) {
	switch name {
	case "static", "":
		return StaticProvider{Coordinates: coords}, nil
	case "denied":
		return DeniedProvider{}, nil
	case "none", "unsupported":
		return UnsupportedProvider{}, nil
	}
	return nil, errors.New("unknown location provider: " + name)
}
