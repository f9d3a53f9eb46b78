package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/marzetti/salon-assistant/internal/store"
	"github.com/marzetti/salon-assistant/internal/store/sqlite"
)

type brokenMeta struct{}

func (brokenMeta) Put(context.Context, string, string) error { return errors.New("down") }
func (brokenMeta) Get(context.Context, string) (string, error) {
	return "", errors.New("down")
}

type brokenStore struct{ store.Store }

func (brokenStore) Meta() store.Meta { return brokenMeta{} }

func TestStoreHealthChecker(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, sqlite.EnsureSchema(context.Background(), db))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hc := store.NewStoreHealthChecker(sqlite.NewWithDB(db), zerolog.Nop(), time.Second)
	require.False(t, hc.IsHealthy())
	go hc.Start(ctx, 10*time.Millisecond)
	require.Eventually(t, hc.IsHealthy, time.Second, 10*time.Millisecond)

	bad := store.NewStoreHealthChecker(brokenStore{}, zerolog.Nop(), time.Second)
	go bad.Start(ctx, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.False(t, bad.IsHealthy())
}
