package cmd

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/folio/pkg/identity"
	"github.com/dukex/folio/pkg/persistence/file"
	"github.com/dukex/folio/pkg/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"file:///var/lib/folio":            "file",
		"./data":                           "file",
		"postgres://u:p@localhost/folio":   "postgres",
		"postgresql://u:p@localhost/folio": "postgresql",
		"mysql://u:p@localhost/folio":      "file",
		"postgres":                         "file",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence_File(t *testing.T) {
	dir := t.TempDir()

	p, err := NewPersistence(t.Context(), slog.New(slog.NewTextHandler(io.Discard, nil)), "file://"+dir)
	require.NoError(t, err)

	_, ok := p.(*file.Persistence)
	assert.True(t, ok)
	require.NoError(t, p.HealthCheck(t.Context()))
}

func TestNewRoleCache(t *testing.T) {
	cache, err := NewRoleCache("", time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &identity.MemoryCache{}, cache)

	server := miniredis.RunT(t)

	cache, err = NewRoleCache("redis://"+server.Addr(), time.Minute)
	require.NoError(t, err)
	assert.IsType(t, &identity.RedisCache{}, cache)

	_, err = NewRoleCache("redis://:bad port", time.Minute)
	assert.Error(t, err)
}

func TestNewEventBus_RejectsUnknownProvider(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	bus, err := NewEventBus("gochannel", "", "folio-test", logger)
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("rabbitmq", "", "folio-test", logger)
	assert.Error(t, err)

	_, err = NewEventBus("kafka", "", "folio-test", logger)
	assert.Error(t, err)
}

func TestNewSettingsProvider(t *testing.T) {
	p := file.NewPersistence(t.TempDir())

	assert.IsType(t, &settings.FileProvider{}, NewSettingsProvider(p, "/etc/folio/deadlines.json"))
	assert.IsType(t, &settings.RepositoryProvider{}, NewSettingsProvider(p, ""))
}
