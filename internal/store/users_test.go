package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"
)

func TestUserStoreUpsertReturnsExistingAndNew(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	usernames := []string{"bob", "carol"}

	mock.ExpectExec("INSERT INTO users").
		WithArgs(usernames).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT id, username").
		WithArgs(usernames).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "username", "created_at", "updated_at", "deleted_at"}).
			AddRow(int64(1), "bob", now, now, nil).
			AddRow(int64(2), "carol", now, now, nil))

	users, err := NewUserStore(mock).Upsert(context.Background(), usernames)
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "bob", users[0].Username)
	require.Equal(t, int64(2), users[1].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStoreUpsertEmptyInputIsNoOp(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	users, err := NewUserStore(mock).Upsert(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, users)
	require.NoError(t, mock.ExpectationsWereMet())
}
