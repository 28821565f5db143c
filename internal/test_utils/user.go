package test_utils

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
)

// InsertUser creates a user row so foreign keys of the rows under test resolve.
func InsertUser(t *testing.T, ctx context.Context, db *pgxpool.Pool, username string) int {
	t.Helper()
	var id int
	err := db.QueryRow(ctx, `INSERT INTO users (uid, username, display_name, email) VALUES ($1, $2, $2, '') RETURNING id`,
		uuid.NewString(), username).Scan(&id)
	require.NoError(t, err)
	return id
}
