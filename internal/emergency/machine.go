// Package emergency implements the emergency session state machine.
//
// A Machine owns exactly one EmergencySession. Every mutation runs on a
// single goroutine: Start, Update and End are queued in call order and
// applied one at a time, and location fixes from the geolocator are fed
// through the same loop. Readers only ever see copies.
package emergency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/joescharf/sos/internal/classify"
	"github.com/joescharf/sos/internal/geo"
	"github.com/joescharf/sos/internal/guidance"
	"github.com/joescharf/sos/internal/models"
	"github.com/joescharf/sos/internal/stream"
	"github.com/joescharf/sos/internal/voice"
)

var (
	// ErrInvalidInput means neither a usable description nor a category
	// hint was supplied.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidState means the operation is not valid in the current
	// lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("emergency machine closed")
)

// Locator is the read side of the geolocator the machine depends on.
type Locator interface {
	Snapshot() models.LocationState
	Subscribe() (<-chan models.LocationState, func())
	RequestLocation(ctx context.Context) <-chan geo.Result
}

// Archiver receives each resolved incident for post-incident review.
type Archiver interface {
	ArchiveIncident(ctx context.Context, inc *models.Incident) error
}

// Config wires a Machine to its collaborators. Only Classifier is
// required.
type Config struct {
	Classifier  classify.Classifier
	Locator     Locator
	Transcriber voice.Transcriber
	Archiver    Archiver

	// AutoRequestLocation asks the locator for a fresh fix on Start
	// unless permission has been denied.
	AutoRequestLocation bool

	Logger *zap.Logger
	Now    func() time.Time
}

type command struct {
	ctx   context.Context
	apply func(ctx context.Context) (models.EmergencySession, error)
	reply chan reply
}

type reply struct {
	session models.EmergencySession
	err     error
}

// Machine is the emergency session state machine.
type Machine struct {
	classifier  classify.Classifier
	locator     Locator
	transcriber voice.Transcriber
	archiver    Archiver
	autoLocate  bool
	logger      *zap.Logger
	now         func() time.Time

	cmds   chan command
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	hub    *stream.Hub[models.EmergencySession]

	// Owned by the loop goroutine.
	session     models.EmergencySession
	awaitingFix bool
}

// New creates a Machine in the Idle state and starts its loop.
func New(cfg Config) *Machine {
	if cfg.Classifier == nil {
		cfg.Classifier = classify.NewDefault()
	}
	if cfg.Transcriber == nil {
		cfg.Transcriber = voice.Unavailable{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Machine{
		classifier:  cfg.Classifier,
		locator:     cfg.Locator,
		transcriber: cfg.Transcriber,
		archiver:    cfg.Archiver,
		autoLocate:  cfg.AutoRequestLocation,
		logger:      cfg.Logger.Named("emergency"),
		now:         cfg.Now,
		cmds:        make(chan command),
		done:        make(chan struct{}),
		session: models.EmergencySession{
			Status:  models.SessionStatusIdle,
			History: []models.HistoryEntry{},
		},
	}
	m.hub = stream.NewHub(m.session, models.EmergencySession.Clone)

	var locCh <-chan models.LocationState
	stopLoc := func() {}
	if m.locator != nil {
		locCh, stopLoc = m.locator.Subscribe()
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.loop(ctx, locCh, stopLoc)
	return m
}

// Close stops the loop and waits for pending archive writes.
func (m *Machine) Close() {
	m.cancel()
	<-m.done
	m.wg.Wait()
	m.hub.Close()
}

// CurrentSession returns a snapshot of the session. It never blocks on
// the loop and is safe to call from any goroutine.
func (m *Machine) CurrentSession() models.EmergencySession {
	return m.hub.Current()
}

// Subscribe streams session snapshots, starting with the current one.
func (m *Machine) Subscribe() (<-chan models.EmergencySession, func()) {
	return m.hub.Subscribe()
}

// Start activates a new session. hint is the category picked in the UI,
// or "" when none was picked. With no hint, description must not be
// blank. Starting while a session is already active returns that session
// unchanged.
func (m *Machine) Start(ctx context.Context, hint models.Category, description string) (models.EmergencySession, error) {
	return m.do(ctx, func(ctx context.Context) (models.EmergencySession, error) {
		return m.start(ctx, hint, description)
	})
}

// Update adds a description to the active session and re-runs
// classification over the whole report.
func (m *Machine) Update(ctx context.Context, description string) (models.EmergencySession, error) {
	return m.do(ctx, func(ctx context.Context) (models.EmergencySession, error) {
		return m.update(ctx, description)
	})
}

// End resolves the active session. It is a no-op when nothing is active.
func (m *Machine) End(ctx context.Context) (models.EmergencySession, error) {
	return m.do(ctx, func(ctx context.Context) (models.EmergencySession, error) {
		return m.end(ctx)
	})
}

// StartVoice transcribes audio and starts a session with the transcript.
// A failed transcription counts as an empty description.
func (m *Machine) StartVoice(ctx context.Context, hint models.Category, audio []byte) (models.EmergencySession, error) {
	return m.Start(ctx, hint, m.transcribe(ctx, audio))
}

// UpdateVoice transcribes audio and updates the active session.
func (m *Machine) UpdateVoice(ctx context.Context, audio []byte) (models.EmergencySession, error) {
	return m.Update(ctx, m.transcribe(ctx, audio))
}

func (m *Machine) transcribe(ctx context.Context, audio []byte) string {
	text, err := m.transcriber.Transcribe(ctx, audio)
	if err != nil {
		m.logger.Info("transcription unavailable, treating as empty input", zap.Error(err))
		return ""
	}
	return text
}

func (m *Machine) do(ctx context.Context, apply func(context.Context) (models.EmergencySession, error)) (models.EmergencySession, error) {
	cmd := command{ctx: ctx, apply: apply, reply: make(chan reply, 1)}

	select {
	case m.cmds <- cmd:
	case <-m.done:
		return models.EmergencySession{}, ErrClosed
	case <-ctx.Done():
		return models.EmergencySession{}, ctx.Err()
	}

	select {
	case r := <-cmd.reply:
		return r.session, r.err
	case <-ctx.Done():
		return models.EmergencySession{}, ctx.Err()
	}
}

func (m *Machine) loop(ctx context.Context, locCh <-chan models.LocationState, stopLoc func()) {
	defer close(m.done)
	defer stopLoc()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-m.cmds:
			s, err := cmd.apply(cmd.ctx)
			cmd.reply <- reply{session: s, err: err}
		case loc, ok := <-locCh:
			if !ok {
				locCh = nil
				continue
			}
			m.onLocation(loc)
		}
	}
}

// publish copies the session into the hub and returns the copy.
func (m *Machine) publish() models.EmergencySession {
	m.hub.Publish(m.session)
	return m.session.Clone()
}

func (m *Machine) start(ctx context.Context, hint models.Category, description string) (models.EmergencySession, error) {
	if m.session.Status == models.SessionStatusActive {
		m.logger.Debug("start ignored, session already active", zap.String("session_id", m.session.ID))
		return m.session.Clone(), nil
	}

	description = strings.TrimSpace(description)
	if hint != "" && !hint.Valid() {
		return models.EmergencySession{}, fmt.Errorf("%w: unknown category %q", ErrInvalidInput, hint)
	}
	if hint == "" && description == "" {
		return models.EmergencySession{}, fmt.Errorf("%w: a description or category is required", ErrInvalidInput)
	}

	prev := m.session
	m.session.Status = models.SessionStatusPending
	m.publish()

	category := hint
	if category == "" {
		category = m.classifier.Classify(ctx, description)
	}

	now := m.now().UTC()
	loc := m.locate(ctx)

	id := newULID(now)
	m.session = models.EmergencySession{
		ID:            id,
		Status:        models.SessionStatusActive,
		Category:      category,
		Description:   description,
		Location:      loc,
		Guidance:      guidance.For(category),
		CreatedAt:     now,
		LastUpdatedAt: now,
		History: append(prev.History, models.HistoryEntry{
			SessionID:   id,
			Kind:        models.HistoryStarted,
			Category:    category,
			Description: description,
			Location:    loc.Clone(),
			Timestamp:   now,
		}),
	}

	m.logger.Info("emergency started",
		zap.String("session_id", id),
		zap.Stringer("category", category),
		zap.Bool("has_location", loc != nil))
	return m.publish(), nil
}

func (m *Machine) update(ctx context.Context, description string) (models.EmergencySession, error) {
	if m.session.Status != models.SessionStatusActive {
		return models.EmergencySession{}, fmt.Errorf("%w: no active emergency (status %s)", ErrInvalidState, m.session.Status)
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return models.EmergencySession{}, fmt.Errorf("%w: description is required", ErrInvalidInput)
	}

	combined := description
	if m.session.Description != "" {
		combined = m.session.Description + "\n" + description
	}

	// Only the new report is triaged so an escalation is never masked by
	// a higher-priority keyword from earlier text.
	previous := m.session.Category
	inferred := m.classifier.Classify(ctx, description)

	now := m.now().UTC()
	if loc := m.currentFix(); loc != nil {
		m.session.Location = loc
	}

	entry := models.HistoryEntry{
		SessionID:   m.session.ID,
		Kind:        models.HistoryUpdated,
		Category:    inferred,
		Description: description,
		Location:    m.session.Location.Clone(),
		Timestamp:   now,
	}
	if inferred != previous {
		entry.Kind = models.HistoryReclassified
		entry.PreviousCategory = previous
		m.logger.Info("emergency reclassified",
			zap.String("session_id", m.session.ID),
			zap.Stringer("from", previous),
			zap.Stringer("to", inferred))
	}

	m.session.Category = inferred
	m.session.Description = combined
	m.session.Guidance = guidance.For(inferred)
	m.session.LastUpdatedAt = now
	m.session.History = append(m.session.History, entry)
	return m.publish(), nil
}

func (m *Machine) end(ctx context.Context) (models.EmergencySession, error) {
	if m.session.Status != models.SessionStatusActive {
		return m.session.Clone(), nil
	}

	now := m.now().UTC()
	final := m.session.Category
	m.session.History = append(m.session.History, models.HistoryEntry{
		SessionID: m.session.ID,
		Kind:      models.HistoryResolved,
		Category:  final,
		Location:  m.session.Location.Clone(),
		Timestamp: now,
	})
	m.session.Status = models.SessionStatusResolved
	m.session.Category = ""
	m.session.Description = ""
	m.session.Guidance = nil
	m.session.LastUpdatedAt = now

	m.logger.Info("emergency resolved",
		zap.String("session_id", m.session.ID),
		zap.Stringer("category", final))

	m.archive(ctx, final)
	return m.publish(), nil
}

// archive hands the resolved incident to the archiver in the background.
func (m *Machine) archive(ctx context.Context, final models.Category) {
	if m.archiver == nil {
		return
	}
	inc := &models.Incident{
		ID:         m.session.ID,
		Category:   final,
		Location:   m.session.Location.Clone(),
		StartedAt:  m.session.CreatedAt,
		ResolvedAt: m.session.LastUpdatedAt,
		Events:     m.session.Clone().Entries(m.session.ID),
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := m.archiver.ArchiveIncident(actx, inc); err != nil {
			m.logger.Error("archive incident failed", zap.String("session_id", inc.ID), zap.Error(err))
		}
	}()
}

// locate returns the best fix available now, and asks the locator for a
// fresh one when configured to. It never waits for the platform.
func (m *Machine) locate(ctx context.Context) *models.Coordinates {
	if m.locator == nil {
		return nil
	}
	snap := m.locator.Snapshot()
	// A session that already holds a fix is not waiting for one, even if
	// a refresh is requested below.
	m.awaitingFix = snap.Coordinates == nil && snap.Status == models.LocationStatusRequesting
	if m.autoLocate && snap.Permission != models.PermissionDenied {
		m.locator.RequestLocation(ctx)
		m.awaitingFix = snap.Coordinates == nil
	}
	return snap.Coordinates.Clone()
}

func (m *Machine) currentFix() *models.Coordinates {
	if m.locator == nil {
		return nil
	}
	return m.locator.Snapshot().Coordinates.Clone()
}

// onLocation applies a geolocator snapshot. A fix attaches to an active
// session. A fix the session was waiting for that arrives after
// resolution is recorded in history and never reactivates the session.
func (m *Machine) onLocation(loc models.LocationState) {
	switch loc.Status {
	case models.LocationStatusRequesting:
		if m.session.Status == models.SessionStatusActive && m.session.Location == nil {
			m.awaitingFix = true
		}
		return
	case models.LocationStatusFailed:
		m.awaitingFix = false
		return
	case models.LocationStatusReady:
	default:
		return
	}
	if loc.Coordinates == nil {
		return
	}

	switch m.session.Status {
	case models.SessionStatusActive:
		m.awaitingFix = false
		if m.session.Location != nil && *m.session.Location == *loc.Coordinates {
			return
		}
		m.session.Location = loc.Coordinates.Clone()
		m.session.LastUpdatedAt = m.now().UTC()
		m.logger.Debug("location attached", zap.String("session_id", m.session.ID), zap.Stringer("coordinates", *loc.Coordinates))
		m.publish()

	case models.SessionStatusResolved:
		if !m.awaitingFix {
			return
		}
		m.awaitingFix = false
		m.session.History = append(m.session.History, models.HistoryEntry{
			SessionID: m.session.ID,
			Kind:      models.HistoryLateLocation,
			Location:  loc.Coordinates.Clone(),
			Timestamp: m.now().UTC(),
		})
		m.logger.Info("late location fix recorded", zap.String("session_id", m.session.ID))
		m.publish()

	case models.SessionStatusIdle, models.SessionStatusPending:
	}
}

// newULID generates a new ULID string. IDs minted within the same
// millisecond stay unique and ordered.
func newULID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), ulid.DefaultEntropy()).String()
}
