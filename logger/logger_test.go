package logger

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewFallsBackOnInvalidLevel(t *testing.T) {
	log := New(Config{Level: "not-a-level"})
	assert.Equal(t, DefaultLevel, log.GetLevel())
}

func TestNewParsesLevel(t *testing.T) {
	log := New(Config{Level: "debug"})
	assert.Equal(t, zerolog.DebugLevel, log.GetLevel())
}
