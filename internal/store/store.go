package store

import (
	"context"
	"errors"

	"github.com/joescharf/sos/internal/models"
)

// ErrNotFound is returned when an incident does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the persistence interface for the incident archive.
type Store interface {
	// ArchiveIncident writes a resolved incident and its events. Archiving
	// the same incident again replaces the earlier record.
	ArchiveIncident(ctx context.Context, inc *models.Incident) error
	GetIncident(ctx context.Context, id string) (*models.Incident, error)
	// ListIncidents returns incidents newest first, without events.
	// limit <= 0 means no limit.
	ListIncidents(ctx context.Context, limit int) ([]*models.Incident, error)
	CountIncidents(ctx context.Context) (int, error)
	DeleteIncident(ctx context.Context, id string) error

	Close() error
}
