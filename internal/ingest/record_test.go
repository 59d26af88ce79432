package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRow(t *testing.T) {
	entry := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

	t.Run("active session", func(t *testing.T) {
		session, err := parseRow([]string{" ab-123 ", "suv", "2024-03-01T08:00:00", ""})
		require.NoError(t, err)
		assert.Equal(t, "AB-123", session.LicensePlate)
		assert.Equal(t, "SUV", session.VehicleClass)
		assert.True(t, session.EntryTime.Equal(entry))
		assert.Nil(t, session.ExitTime)
	})

	t.Run("completed session with fractional seconds", func(t *testing.T) {
		session, err := parseRow([]string{"AB-123", "SEDAN", "2024-03-01T08:00:00", "2024-03-01T09:30:00.250"})
		require.NoError(t, err)
		require.NotNil(t, session.ExitTime)
		assert.Equal(t, 90*time.Minute+250*time.Millisecond, session.ExitTime.Sub(session.EntryTime))
	})

	tests := []struct {
		name   string
		fields []string
	}{
		{name: "date only entry", fields: []string{"AB-123", "SEDAN", "2024-03-01", ""}},
		{name: "garbage exit", fields: []string{"AB-123", "SEDAN", "2024-03-01T08:00:00", "soon"}},
		{name: "exit before entry", fields: []string{"AB-123", "SEDAN", "2024-03-01T08:00:00", "2024-03-01T07:59:59"}},
		{name: "unknown class", fields: []string{"AB-123", "BUS", "2024-03-01T08:00:00", ""}},
		{name: "empty plate", fields: []string{"  ", "SEDAN", "2024-03-01T08:00:00", ""}},
		{name: "missing column", fields: []string{"AB-123", "SEDAN", "2024-03-01T08:00:00"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRow(tt.fields)
			assert.ErrorIs(t, err, ErrMalformedRow)
		})
	}
}
