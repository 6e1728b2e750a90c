package postgres

import (
	"context"
	"os"
	"testing"

	"goelda/domain/core"
	"goelda/domain/dilution"
	"goelda/internal/migration"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestDB connects to GOELDA_TEST_DATABASE_URL and migrates it; the test
// is skipped when the variable is unset.
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	url := os.Getenv("GOELDA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("GOELDA_TEST_DATABASE_URL not set")
	}
	db, err := sqlx.Connect("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migration.NewRunner().Run(context.Background(), db))
	return db
}

func TestAnalysisRepository_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewAnalysisRepository(db)
	ctx := context.Background()

	bundle := &dilution.Bundle{
		RunID:       core.NewRunID(),
		Fingerprint: core.NewFingerprint([]byte(t.Name())),
		Options:     dilution.DefaultOptions(),
		Groups:      []string{"A", "B"},
		Estimates:   []dilution.FrequencyEstimate{{Group: "A", Estimate: 12.5, Lower: 8, Upper: 20}},
		CreatedAt:   core.Now(),
	}
	require.NoError(t, repo.Save(ctx, bundle))
	require.NoError(t, repo.Save(ctx, bundle))

	got, err := repo.Get(ctx, bundle.RunID)
	require.NoError(t, err)
	assert.Equal(t, bundle.Estimates, got.Estimates)
	assert.Equal(t, bundle.Groups, got.Groups)

	byFP, err := repo.FindByFingerprint(ctx, bundle.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, bundle.RunID, byFP.RunID)

	listed, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	_, err = repo.Get(ctx, core.NewRunID())
	assert.True(t, core.IsNotFoundError(err))
}
