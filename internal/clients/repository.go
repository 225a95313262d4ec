package clients

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository reads clients from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectClient = `SELECT id, user_id, name, document_id, created_at FROM clients`

// FindByDocumentID looks a client up by national document number.
func (r *Repository) FindByDocumentID(ctx context.Context, documentID string) (Client, error) {
	if r == nil {
		return Client{}, errors.New("clients repository not initialised")
	}
	return r.scanOne(ctx, selectClient+` WHERE document_id = $1`, documentID)
}

// FindByUserID looks a client up by the owning user account.
func (r *Repository) FindByUserID(ctx context.Context, userID int64) (Client, error) {
	if r == nil {
		return Client{}, errors.New("clients repository not initialised")
	}
	return r.scanOne(ctx, selectClient+` WHERE user_id = $1`, userID)
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (Client, error) {
	var c Client
	err := r.pool.QueryRow(ctx, query, arg).Scan(&c.ID, &c.UserID, &c.Name, &c.DocumentID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("clients: query: %w", err)
	}
	return c, nil
}
