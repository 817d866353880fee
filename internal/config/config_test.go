package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocation_ResolvesConfiguredZone(t *testing.T) {
	cfg := &Config{}
	cfg.Scheduler.ReferenceTimezone = "Asia/Bangkok"

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Bangkok", loc.String())
}

func TestLocation_InvalidZoneFails(t *testing.T) {
	cfg := &Config{}
	cfg.Scheduler.ReferenceTimezone = "Mars/Olympus_Mons"

	loc, err := cfg.Location()
	require.Error(t, err)
	assert.Nil(t, loc)
	assert.Contains(t, err.Error(), "REFERENCE_TIMEZONE")
}
