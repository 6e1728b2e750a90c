package memory

import (
	"context"
	"testing"

	"goelda/domain/core"
	"goelda/domain/dilution"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bundle(fp string) *dilution.Bundle {
	return &dilution.Bundle{
		RunID:       core.NewRunID(),
		Fingerprint: core.Fingerprint(fp),
		Groups:      []string{"A"},
		CreatedAt:   core.Now(),
	}
}

func TestAnalysisRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository()
	b := bundle("f1")

	require.NoError(t, repo.Save(ctx, b))
	got, err := repo.Get(ctx, b.RunID)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	got.Groups = nil
	again, err := repo.Get(ctx, b.RunID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, again.Groups)
}

func TestAnalysisRepository_NotFound(t *testing.T) {
	repo := NewAnalysisRepository()

	_, err := repo.Get(context.Background(), core.NewRunID())
	assert.True(t, core.IsNotFoundError(err))

	_, err = repo.FindByFingerprint(context.Background(), "missing")
	assert.True(t, core.IsNotFoundError(err))
}

func TestAnalysisRepository_FingerprintAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewAnalysisRepository()
	first, second, other := bundle("same"), bundle("same"), bundle("other")
	for _, b := range []*dilution.Bundle{first, second, other} {
		require.NoError(t, repo.Save(ctx, b))
	}
	require.NoError(t, repo.Save(ctx, first))

	found, err := repo.FindByFingerprint(ctx, "same")
	require.NoError(t, err)
	assert.Equal(t, second.RunID, found.RunID)

	all, err := repo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.RunID, all[0].RunID)
	assert.Equal(t, first.RunID, all[2].RunID)

	limited, err := repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestAnalysisRepository_SaveHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, NewAnalysisRepository().Save(ctx, bundle("x")), context.Canceled)
}
