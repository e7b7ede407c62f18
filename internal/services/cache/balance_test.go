package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/resumeforge/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCachePassesThrough(t *testing.T) {
	var c *BalanceCache

	want := &models.UserCredit{UserID: "user_1", Balance: 5}
	got, err := c.Get(context.Background(), "user_1", func(ctx context.Context) (*models.UserCredit, error) {
		return want, nil
	})
	require.NoError(t, err)
	assert.Same(t, want, got)

	loadErr := errors.New("db down")
	_, err = c.Get(context.Background(), "user_1", func(ctx context.Context) (*models.UserCredit, error) {
		return nil, loadErr
	})
	assert.ErrorIs(t, err, loadErr)

	// Must not panic.
	c.Invalidate(context.Background(), "user_1")
}

func TestUnconnectedCachePassesThrough(t *testing.T) {
	c := NewBalanceCache(nil, 0)

	want := &models.UserCredit{UserID: "user_1", Balance: 5}
	got, err := c.Get(context.Background(), "user_1", func(ctx context.Context) (*models.UserCredit, error) {
		return want, nil
	})
	require.NoError(t, err)
	assert.Same(t, want, got)
}
