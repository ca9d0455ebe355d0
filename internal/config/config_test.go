package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresPostgresVars(t *testing.T) {
	t.Setenv("POSTGRES_USER", "")
	t.Setenv("POSTGRES_PASSWORD", "")
	t.Setenv("POSTGRES_DB", "")

	_, err := New()
	assert.Error(t, err)
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("POSTGRES_USER", "starbook")
	t.Setenv("POSTGRES_PASSWORD", "starbook")
	t.Setenv("POSTGRES_DB", "starbook")
	t.Setenv("SERVER_PORT", "")
	t.Setenv("BOOKING_MAX_UNITS", "")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 10, cfg.Booking.MaxUnitsPerBooking)
	assert.Equal(t, "disable", cfg.Postgres.SSLMode)
	assert.Contains(t, cfg.Postgres.DSN(), "postgres://starbook:starbook@")
}

func TestNewRejectsBadPort(t *testing.T) {
	t.Setenv("POSTGRES_USER", "starbook")
	t.Setenv("POSTGRES_PASSWORD", "starbook")
	t.Setenv("POSTGRES_DB", "starbook")
	t.Setenv("SERVER_PORT", "not-a-port")

	_, err := New()
	assert.Error(t, err)
}
