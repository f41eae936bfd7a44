package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/truecosmic/calbook-api/internal/models"
)

const hostColumns = `id, slug, display_name, email, timezone, calendar_credential, availability, active, created_at, updated_at`

// HostRepository persists bookable hosts.
type HostRepository struct {
	db *sqlx.DB
}

// NewHostRepository constructs the repository.
func NewHostRepository(db *sqlx.DB) *HostRepository {
	return &HostRepository{db: db}
}

// Create inserts a new host row.
func (r *HostRepository) Create(ctx context.Context, host *models.Host) error {
	if host.ID == "" {
		host.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	host.CreatedAt = now
	host.UpdatedAt = now
	const query = `INSERT INTO hosts
	(id, slug, display_name, email, timezone, calendar_credential, availability, active, created_at, updated_at)
	VALUES (:id, :slug, :display_name, :email, :timezone, :calendar_credential, :availability, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, host); err != nil {
		return fmt.Errorf("create host: %w", err)
	}
	return nil
}

// GetBySlug fetches an active host by public slug.
func (r *HostRepository) GetBySlug(ctx context.Context, slug string) (*models.Host, error) {
	const query = `SELECT ` + hostColumns + ` FROM hosts WHERE slug = $1 AND active = TRUE`
	var host models.Host
	if err := r.db.GetContext(ctx, &host, query, slug); err != nil {
		return nil, err
	}
	return &host, nil
}

// GetByID fetches a host by identifier regardless of active flag.
func (r *HostRepository) GetByID(ctx context.Context, id string) (*models.Host, error) {
	const query = `SELECT ` + hostColumns + ` FROM hosts WHERE id = $1`
	var host models.Host
	if err := r.db.GetContext(ctx, &host, query, id); err != nil {
		return nil, err
	}
	return &host, nil
}

// List returns all active hosts ordered by display name.
func (r *HostRepository) List(ctx context.Context) ([]models.Host, error) {
	const query = `SELECT ` + hostColumns + ` FROM hosts WHERE active = TRUE ORDER BY display_name ASC`
	var hosts []models.Host
	if err := r.db.SelectContext(ctx, &hosts, query); err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	return hosts, nil
}

// UpdatePolicy replaces the host's availability policy.
func (r *HostRepository) UpdatePolicy(ctx context.Context, hostID string, policy models.AvailabilityPolicy) error {
	const query = `UPDATE hosts SET availability = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, policy, time.Now().UTC(), hostID)
	if err != nil {
		return fmt.Errorf("update host policy: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check host policy update rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("update host policy: host %s not found", hostID)
	}
	return nil
}

// UpdateCredential stores the opaque calendar credential blob.
func (r *HostRepository) UpdateCredential(ctx context.Context, hostID string, credential string) error {
	const query = `UPDATE hosts SET calendar_credential = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, credential, time.Now().UTC(), hostID); err != nil {
		return fmt.Errorf("update host credential: %w", err)
	}
	return nil
}
