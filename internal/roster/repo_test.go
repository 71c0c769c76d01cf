package roster

import (
	"context"
	"database/sql"
	"os"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	_, err = db.ExecContext(ctx, Schema)
	require.NoError(t, err)

	repo := NewRepository(db)
	job, err := repo.Insert(ctx, Job{SessionID: "s1", CourseID: 7, Filename: "roster.csv", Content: []byte("a,b\n")})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.False(t, job.CreatedAt.IsZero())

	got, err := repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "a,b\n", string(got.Content))

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, StatusDone, ""))
	got, err = repo.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDone, got.Status)
	assert.Empty(t, got.Content)

	_, err = repo.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrJobNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, "00000000-0000-0000-0000-000000000000", StatusDone, ""), ErrJobNotFound)
}
