package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stackhpc/perftest-operator/pkg/config"
)

func TestNew_ValidLevel(t *testing.T) {
	log, err := New(config.LoggingSettings{Level: "debug", Encoding: "json", Production: true})
	assert.NoError(t, err)
	assert.True(t, log.Enabled())
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(config.LoggingSettings{Level: "not-a-level"})
	assert.Error(t, err)
}

func TestNew_DefaultsToInfo(t *testing.T) {
	log, err := New(config.LoggingSettings{})
	assert.NoError(t, err)
	assert.True(t, log.Enabled())
}
