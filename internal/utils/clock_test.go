package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayRange(t *testing.T) {
	// given
	from := time.Date(2025, 3, 1, 15, 30, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)

	// when
	start, end := DayRange(from, to)

	// then
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestToday(t *testing.T) {
	clock := &MockClock{}
	clock.SetNow(time.Date(2025, 12, 31, 22, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), Today(clock))
}
