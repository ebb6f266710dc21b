package weekstamp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCurrentFormatsISOYearWeek(t *testing.T) {
	require.Equal(t, "2026-W11", Current(time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)))
	// January 1st 2027 falls in the last ISO week of 2026.
	require.Equal(t, "2026-W53", Current(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestWeekOf(t *testing.T) {
	require.Equal(t, 2, WeekOf(time.Date(2026, 1, 7, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, 28, WeekOf(time.Date(2026, 7, 8, 0, 0, 0, 0, time.UTC)))
}
