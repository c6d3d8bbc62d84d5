package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayKey(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*3600)
	at := time.Date(2026, 1, 2, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-01-02", DayKey(at, time.UTC))
	assert.Equal(t, "2026-01-03", DayKey(at, jakarta))
	assert.Equal(t, "2026-01-02", DayKey(at, nil))
}

func TestLoadLocationFallback(t *testing.T) {
	assert.Equal(t, time.UTC, LoadLocation(""))
	assert.Equal(t, time.UTC, LoadLocation("Not/AZone"))
}
