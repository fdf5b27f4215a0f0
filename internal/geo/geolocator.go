// Package geo owns the process-wide location state.
//
// A Geolocator runs at most one platform request at a time. Calls to
// RequestLocation made while a request is in flight join that request
// instead of starting another. Each request is bounded by a timeout; a
// timeout never changes the recorded permission.
package geo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/joescharf/sos/internal/models"
	"github.com/joescharf/sos/internal/stream"
)

// DefaultTimeout bounds a single location request.
const DefaultTimeout = 15 * time.Second

// Result is the outcome of one location request.
type Result struct {
	Coordinates *models.Coordinates
	Err         error
}

// Config configures a Geolocator.
type Config struct {
	Timeout time.Duration
	Prober  PermissionProber
	Logger  *zap.Logger
	Now     func() time.Time
}

type request struct {
	waiters []chan Result
}

// Geolocator tracks LocationState and drives the Provider.
type Geolocator struct {
	provider Provider
	timeout  time.Duration
	prober   PermissionProber
	logger   *zap.Logger
	now      func() time.Time

	mu       sync.Mutex
	state    models.LocationState
	inflight *request
	calls    int
	wg       sync.WaitGroup
	hub      *stream.Hub[models.LocationState]
}

// New creates a Geolocator in the Idle state with Unknown permission.
func New(provider Provider, cfg Config) *Geolocator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	g := &Geolocator{
		provider: provider,
		timeout:  cfg.Timeout,
		prober:   cfg.Prober,
		logger:   cfg.Logger.Named("geo"),
		now:      cfg.Now,
	}
	g.state = models.LocationState{
		Permission: models.PermissionUnknown,
		Status:     models.LocationStatusIdle,
		UpdatedAt:  g.now().UTC(),
	}
	g.hub = stream.NewHub(g.state, models.LocationState.Clone)
	return g
}

// Init probes the platform permission, if a prober is configured, and
// starts a request when permission was already granted.
func (g *Geolocator) Init(ctx context.Context) {
	if g.prober == nil {
		return
	}
	perm, err := g.prober.Permission(ctx)
	if err != nil {
		g.logger.Debug("permission probe failed", zap.Error(err))
		return
	}

	g.mu.Lock()
	g.state.Permission = perm
	g.state.UpdatedAt = g.now().UTC()
	g.hub.Publish(g.state)
	g.mu.Unlock()

	if perm == models.PermissionGranted {
		g.RequestLocation(ctx)
	}
}

// Snapshot returns a copy of the current location state.
func (g *Geolocator) Snapshot() models.LocationState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Clone()
}

// Subscribe streams location snapshots, starting with the current one.
func (g *Geolocator) Subscribe() (<-chan models.LocationState, func()) {
	return g.hub.Subscribe()
}

// Calls returns how many platform requests have been issued.
func (g *Geolocator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// RequestLocation starts a location request, or joins the one in flight.
// The returned channel receives exactly one Result; callers may ignore it.
// ctx only contributes values; the request is bounded by the configured
// timeout, not by the caller's cancellation, because other callers may
// share it.
func (g *Geolocator) RequestLocation(ctx context.Context) <-chan Result {
	ch := make(chan Result, 1)

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.inflight != nil {
		g.inflight.waiters = append(g.inflight.waiters, ch)
		g.logger.Debug("location request coalesced", zap.Int("waiters", len(g.inflight.waiters)))
		return ch
	}

	req := &request{waiters: []chan Result{ch}}
	g.inflight = req
	g.calls++
	g.state.Status = models.LocationStatusRequesting
	g.state.UpdatedAt = g.now().UTC()
	g.hub.Publish(g.state)

	g.wg.Add(1)
	go g.run(context.WithoutCancel(ctx), req)
	return ch
}

// Await requests a location and waits for the result or ctx.
func (g *Geolocator) Await(ctx context.Context) Result {
	select {
	case r := <-g.RequestLocation(ctx):
		return r
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

// Wait blocks until no request is in flight. Used on shutdown and in tests.
func (g *Geolocator) Wait() {
	g.wg.Wait()
}

// Close stops snapshot delivery after any in-flight request completes.
func (g *Geolocator) Close() {
	g.wg.Wait()
	g.hub.Close()
}

func (g *Geolocator) run(ctx context.Context, req *request) {
	defer g.wg.Done()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type fix struct {
		coords models.Coordinates
		err    error
	}
	done := make(chan fix, 1)
	go func() {
		c, err := g.provider.CurrentPosition(ctx)
		done <- fix{coords: c, err: err}
	}()

	var res fix
	select {
	case res = <-done:
	case <-ctx.Done():
		res = fix{err: ctx.Err()}
	}

	g.complete(req, res.coords, res.err)
}

func (g *Geolocator) complete(req *request, coords models.Coordinates, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := Result{}
	g.state.UpdatedAt = g.now().UTC()

	if err == nil {
		c := coords
		g.state.Coordinates = &c
		g.state.Permission = models.PermissionGranted
		g.state.Status = models.LocationStatusReady
		g.state.LastError = ""
		g.state.Reason = models.FailureNone
		result.Coordinates = c.Clone()
		g.logger.Debug("location fix acquired", zap.Stringer("coordinates", c))
	} else {
		reason, wrapped := classifyError(err)
		g.state.Status = models.LocationStatusFailed
		g.state.Reason = reason
		g.state.LastError = diagnostic(reason, err)
		if reason == models.FailurePermissionDenied {
			g.state.Permission = models.PermissionDenied
		}
		result.Err = wrapped
		g.logger.Warn("location request failed",
			zap.String("reason", string(reason)),
			zap.Error(err))
	}

	g.inflight = nil
	g.hub.Publish(g.state)

	for _, w := range req.waiters {
		w <- result
	}
}

// classifyError maps a provider error to a failure reason and an error
// that wraps the matching sentinel.
func classifyError(err error) (models.FailureReason, error) {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return models.FailurePermissionDenied, err
	case errors.Is(err, ErrTimeout):
		return models.FailureTimeout, err
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureTimeout, fmt.Errorf("%w: %v", ErrTimeout, err)
	case errors.Is(err, ErrUnavailable):
		return models.FailureUnavailable, err
	default:
		return models.FailureUnavailable, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func diagnostic(reason models.FailureReason, err error) string {
	switch reason {
	case models.FailurePermissionDenied:
		return "Location permission denied. Enable location services in settings."
	case models.FailureTimeout:
		return "Timed out waiting for a location fix. Try again."
	case models.FailureUnavailable, models.FailureNone:
		return "Unable to retrieve your location: " + err.Error()
	}
	return err.Error()
}
