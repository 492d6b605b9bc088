package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWindow(t *testing.T) {
	now := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

	win, err := parseWindow("", "", now)
	require.NoError(t, err)
	assert.Nil(t, win)

	win, err = parseWindow("2026-10-01", "", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), win.Since)
	assert.Equal(t, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), win.Until)

	win, err = parseWindow("2026-10-01", "2026-10-01", now)
	require.NoError(t, err)
	assert.Equal(t, win.Since, win.Until)

	for _, tc := range [][2]string{
		{"", "2026-10-01"},
		{"10/01/2026", ""},
		{"2026-10-01", "tomorrow"},
		{"2026-10-05", "2026-10-01"},
	} {
		_, err := parseWindow(tc[0], tc[1], now)
		assert.Error(t, err, tc)
	}
}
