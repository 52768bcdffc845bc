package store

import (
	"context"
	"fmt"

	"github.com/newsloom/newsloom/internal/model"
)

const userColumns = "id, username, created_at, updated_at, deleted_at"

// UserStore persists users keyed by their natural key, the username.
type UserStore struct {
	db DB
}

// NewUserStore wires a UserStore to the given pool.
func NewUserStore(db DB) *UserStore {
	return &UserStore{db: db}
}

// Upsert inserts every username that does not exist yet and returns the
// full set of rows for the requested usernames, pre-existing and new
// alike. The insert is a single atomic ON CONFLICT statement, so two
// concurrent batches racing on the same new username both succeed.
func (s *UserStore) Upsert(ctx context.Context, usernames []string) ([]model.User, error) {
	if len(usernames) == 0 {
		return nil, nil
	}

	insert := `
INSERT INTO users (username)
SELECT unnest($1::text[])
ON CONFLICT (username) DO NOTHING`
	if _, err := s.db.Exec(ctx, insert, usernames); err != nil {
		return nil, fmt.Errorf("upsert users: %w", err)
	}

	query := fmt.Sprintf(`
SELECT %s FROM users
WHERE username = ANY($1) AND deleted_at IS NULL`, userColumns)
	rows, err := s.db.Query(ctx, query, usernames)
	if err != nil {
		return nil, fmt.Errorf("select users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
