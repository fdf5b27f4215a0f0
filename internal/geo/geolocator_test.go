package geo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/sos/internal/models"
)

var here = models.Coordinates{Latitude: 52.52, Longitude: 13.405}

// gatedProvider blocks each call until release is closed, then returns
// the configured result. It counts platform calls.
type gatedProvider struct {
	release chan struct{}
	coords  models.Coordinates
	err     error
	calls   atomic.Int32
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{release: make(chan struct{}), coords: here}
}

func (p *gatedProvider) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	p.calls.Add(1)
	select {
	case <-p.release:
		return p.coords, p.err
	case <-ctx.Done():
		return models.Coordinates{}, ctx.Err()
	}
}

func TestGeolocator_InitialState(t *testing.T) {
	g := New(StaticProvider{Coordinates: here}, Config{})
	s := g.Snapshot()

	assert.Nil(t, s.Coordinates)
	assert.Equal(t, models.PermissionUnknown, s.Permission)
	assert.Equal(t, models.LocationStatusIdle, s.Status)
	assert.Empty(t, s.LastError)
}

func TestGeolocator_Success(t *testing.T) {
	g := New(StaticProvider{Coordinates: here}, Config{})

	res := g.Await(context.Background())
	require.NoError(t, res.Err)
	require.NotNil(t, res.Coordinates)
	assert.Equal(t, here, *res.Coordinates)

	g.Wait()
	s := g.Snapshot()
	assert.Equal(t, models.LocationStatusReady, s.Status)
	assert.Equal(t, models.PermissionGranted, s.Permission)
	require.NotNil(t, s.Coordinates)
	assert.Equal(t, here, *s.Coordinates)
}

func TestGeolocator_PermissionDenied(t *testing.T) {
	g := New(DeniedProvider{}, Config{})

	res := g.Await(context.Background())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrPermissionDenied)

	g.Wait()
	s := g.Snapshot()
	assert.Equal(t, models.LocationStatusFailed, s.Status)
	assert.Equal(t, models.PermissionDenied, s.Permission)
	assert.Equal(t, models.FailurePermissionDenied, s.Reason)
	assert.Contains(t, s.LastError, "settings")
}

func TestGeolocator_Unavailable(t *testing.T) {
	g := New(UnsupportedProvider{}, Config{})

	res := g.Await(context.Background())
	assert.ErrorIs(t, res.Err, ErrUnavailable)

	g.Wait()
	s := g.Snapshot()
	assert.Equal(t, models.LocationStatusFailed, s.Status)
	assert.Equal(t, models.PermissionUnknown, s.Permission)
	assert.Equal(t, models.FailureUnavailable, s.Reason)
}

func TestGeolocator_UnknownErrorWrapsUnavailable(t *testing.T) {
	g := New(ProviderFunc(func(context.Context) (models.Coordinates, error) {
		return models.Coordinates{}, errors.New("gps chip on fire")
	}), Config{})

	res := g.Await(context.Background())
	assert.ErrorIs(t, res.Err, ErrUnavailable)
	assert.Contains(t, res.Err.Error(), "gps chip on fire")
}

func TestGeolocator_TimeoutKeepsPermission(t *testing.T) {
	var block atomic.Bool
	provider := ProviderFunc(func(ctx context.Context) (models.Coordinates, error) {
		if block.Load() {
			<-ctx.Done()
			return models.Coordinates{}, ctx.Err()
		}
		return here, nil
	})
	g := New(provider, Config{Timeout: 20 * time.Millisecond})

	// First fix grants permission.
	require.NoError(t, g.Await(context.Background()).Err)
	g.Wait()
	require.Equal(t, models.PermissionGranted, g.Snapshot().Permission)

	block.Store(true)
	res := g.Await(context.Background())
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.NotErrorIs(t, res.Err, ErrPermissionDenied)

	g.Wait()
	s := g.Snapshot()
	assert.Equal(t, models.LocationStatusFailed, s.Status)
	assert.Equal(t, models.FailureTimeout, s.Reason)
	assert.Equal(t, models.PermissionGranted, s.Permission, "timeout must not downgrade permission")
	require.NotNil(t, s.Coordinates, "last known fix is kept")
	assert.Contains(t, s.LastError, "Try again")
}

func TestGeolocator_TimeoutWithUnresponsiveProvider(t *testing.T) {
	stuck := make(chan struct{})
	defer close(stuck)
	g := New(ProviderFunc(func(context.Context) (models.Coordinates, error) {
		<-stuck
		return here, nil
	}), Config{Timeout: 20 * time.Millisecond})

	res := g.Await(context.Background())
	assert.ErrorIs(t, res.Err, ErrTimeout)
	g.Wait()
	assert.Equal(t, models.PermissionUnknown, g.Snapshot().Permission)
}

func TestGeolocator_Coalesces(t *testing.T) {
	p := newGatedProvider()
	g := New(p, Config{Timeout: time.Second})
	ctx := context.Background()

	chans := make([]<-chan Result, 5)
	for i := range chans {
		chans[i] = g.RequestLocation(ctx)
	}
	assert.Equal(t, models.LocationStatusRequesting, g.Snapshot().Status)

	close(p.release)
	for _, ch := range chans {
		res := <-ch
		require.NoError(t, res.Err)
		assert.Equal(t, here, *res.Coordinates)
	}
	g.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, 1, g.Calls())
}

func TestGeolocator_ConcurrentCallersCoalesce(t *testing.T) {
	p := newGatedProvider()
	g := New(p, Config{Timeout: time.Second})

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.RequestLocation(context.Background())
		}()
	}
	wg.Wait()
	close(p.release)
	g.Wait()

	assert.Equal(t, int32(1), p.calls.Load())
}

func TestGeolocator_RetryAfterFailure(t *testing.T) {
	var deny atomic.Bool
	deny.Store(true)
	g := New(ProviderFunc(func(context.Context) (models.Coordinates, error) {
		if deny.Load() {
			return models.Coordinates{}, ErrPermissionDenied
		}
		return here, nil
	}), Config{})

	require.Error(t, g.Await(context.Background()).Err)
	g.Wait()
	s := g.Snapshot()
	assert.Equal(t, models.PermissionDenied, s.Permission)
	assert.NotEmpty(t, s.LastError)

	deny.Store(false)
	require.NoError(t, g.Await(context.Background()).Err)
	g.Wait()
	s = g.Snapshot()
	assert.Equal(t, models.LocationStatusReady, s.Status)
	assert.Equal(t, models.PermissionGranted, s.Permission)
	assert.Empty(t, s.LastError, "diagnostic cleared on success")
	assert.Equal(t, 2, g.Calls())
}

func TestGeolocator_Subscribe(t *testing.T) {
	p := newGatedProvider()
	g := New(p, Config{Timeout: time.Second})

	ch, cancel := g.Subscribe()
	defer cancel()
	assert.Equal(t, models.LocationStatusIdle, (<-ch).Status)

	g.RequestLocation(context.Background())
	assert.Equal(t, models.LocationStatusRequesting, (<-ch).Status)

	close(p.release)
	ready := <-ch
	assert.Equal(t, models.LocationStatusReady, ready.Status)
	require.NotNil(t, ready.Coordinates)

	// Snapshots are copies.
	ready.Coordinates.Latitude = 0
	assert.Equal(t, here.Latitude, g.Snapshot().Coordinates.Latitude)
}

func TestGeolocator_InitWithGrantedPermission(t *testing.T) {
	p := StaticProvider{Coordinates: here}
	g := New(p, Config{Prober: p})

	g.Init(context.Background())
	g.Wait()

	s := g.Snapshot()
	assert.Equal(t, models.LocationStatusReady, s.Status)
	assert.Equal(t, 1, g.Calls())
}

func TestGeolocator_InitWithDeniedPermission(t *testing.T) {
	g := New(DeniedProvider{}, Config{Prober: DeniedProvider{}})

	g.Init(context.Background())
	g.Wait()

	s := g.Snapshot()
	assert.Equal(t, models.PermissionDenied, s.Permission)
	assert.Equal(t, models.LocationStatusIdle, s.Status)
	assert.Equal(t, 0, g.Calls())
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("static", here)
	require.NoError(t, err)
	assert.IsType(t, StaticProvider{}, p)

	p, err = NewProvider("denied", here)
	require.NoError(t, err)
	assert.IsType(t, DeniedProvider{}, p)

	p, err = NewProvider("none", here)
	require.NoError(t, err)
	assert.IsType(t, UnsupportedProvider{}, p)

	_, err = NewProvider("satellite", here)
	assert.Error(t, err)
}

func TestStaticProvider_InvalidCoordinates(t *testing.T) {
	_, err := StaticProvider{Coordinates: models.Coordinates{Latitude: 200}}.CurrentPosition(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
