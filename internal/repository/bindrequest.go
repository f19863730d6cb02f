package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mustafamilyas/expense-tracker/internal/domain"
)

// BindRequestRepository handles database operations for chat bind requests.
type BindRequestRepository struct {
	db *pgxpool.Pool
}

// NewBindRequestRepository creates a new BindRequestRepository.
func NewBindRequestRepository(db *pgxpool.Pool) *BindRequestRepository {
	return &BindRequestRepository{db: db}
}

// Create inserts a bind request. Only the nonce hash is stored.
func (r *BindRequestRepository) Create(ctx context.Context, req *domain.ChatBindRequest) error {
	query := `
		INSERT INTO chat_bind_requests (id, platform, chat_id, nonce_hash, user_uid, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.Exec(ctx, query,
		req.ID, string(req.Platform), req.ChatID, req.NonceHash,
		req.UserID, req.ExpiresAt, req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create bind request: %w", err)
	}
	return nil
}

// Get returns a bind request by ID, or nil when absent.
func (r *BindRequestRepository) Get(ctx context.Context, id uuid.UUID) (*domain.ChatBindRequest, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, platform, chat_id, nonce_hash, user_uid, expires_at, created_at
		FROM chat_bind_requests WHERE id = $1
	`, id)

	var req domain.ChatBindRequest
	var platform string
	err := row.Scan(&req.ID, &platform, &req.ChatID, &req.NonceHash, &req.UserID, &req.ExpiresAt, &req.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bind request: %w", err)
	}
	req.Platform = domain.Platform(platform)
	return &req, nil
}

// ClaimUser sets the identified user only if it is currently unset. The
// conditional WHERE makes this a compare-and-set executed by the database:
// of two racing claims exactly one sees a row affected.
func (r *BindRequestRepository) ClaimUser(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE chat_bind_requests SET user_uid = $2
		WHERE id = $1 AND user_uid IS NULL
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to claim bind request: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes a bind request.
func (r *BindRequestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chat_bind_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bind request: %w", err)
	}
	return nil
}

// DeleteExpired reclaims storage from requests past their TTL. Correctness
// does not depend on this; expiry is checked at claim and verify time.
func (r *BindRequestRepository) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM chat_bind_requests WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired bind requests: %w", err)
	}
	return tag.RowsAffected(), nil
}
