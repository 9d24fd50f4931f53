package db_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/coopsim/internal/db"
	"github.com/udisondev/coopsim/internal/model"
	"github.com/udisondev/coopsim/internal/testutil"
)

func TestProfileRepository(t *testing.T) {
	pool := testutil.SetupTestDB(t)
	repo := db.NewProfileRepository(pool)
	ctx := testutil.ContextWithTimeout(t, 30*time.Second)

	t.Run("missing profile", func(t *testing.T) {
		p, err := repo.Load(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("save and load", func(t *testing.T) {
		at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		want := model.Profile{
			Username:  "alice",
			Instance:  "tavern_inside",
			Position:  model.V(50, 500),
			Health:    75,
			MaxHealth: 100,
			Items:     map[string]int{"arrow": 3, "fruit": 1, "axe": 1},
			Equipment: map[string]string{"main_hand": "axe"},
			UpdatedAt: at,
		}
		require.NoError(t, repo.Save(ctx, want))

		got, err := repo.Load(ctx, "Alice")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want.Instance, got.Instance)
		assert.Equal(t, want.Position, got.Position)
		assert.Equal(t, want.Health, got.Health)
		assert.Equal(t, want.Items, got.Items)
		assert.Equal(t, want.Equipment, got.Equipment)
		assert.True(t, at.Equal(got.UpdatedAt))
	})

	t.Run("stale save is ignored", func(t *testing.T) {
		fresh := model.Profile{Username: "bob", Instance: "tavern_outside", Position: model.V(10, 10), Health: 100, MaxHealth: 100, UpdatedAt: time.Unix(2000, 0)}
		stale := fresh
		stale.Position = model.V(99, 99)
		stale.UpdatedAt = time.Unix(1000, 0)

		require.NoError(t, repo.Save(ctx, fresh))
		require.NoError(t, repo.Save(ctx, stale))

		got, err := repo.Load(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, model.V(10, 10), got.Position)
		assert.Empty(t, got.Items)
		assert.NotNil(t, got.Equipment)
		assert.Empty(t, got.Equipment)
	})

	t.Run("count by instance", func(t *testing.T) {
		counts, err := repo.CountByInstance(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, counts["tavern_inside"])
		assert.Equal(t, 1, counts["tavern_outside"])
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, "alice"))
		require.NoError(t, repo.Delete(ctx, "alice"))
		got, err := repo.Load(ctx, "alice")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
