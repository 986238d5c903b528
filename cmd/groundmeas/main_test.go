package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ce1ectric/groundmeas/pkg/config"
	"github.com/Ce1ectric/groundmeas/pkg/store"
)

func TestOpenStoreDefaultsToMemory(t *testing.T) {
	cfg := config.DefaultConfig()
	require.Empty(t, cfg.DatabaseURL)

	db, closeStore, err := openStore(context.Background(), cfg)
	require.NoError(t, err)
	defer closeStore()

	_, ok := db.(*store.Memory)
	assert.True(t, ok, "empty database URL must select the in-memory store")
	assert.NoError(t, closeStore())
}
