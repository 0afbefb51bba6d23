package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	log, err := New("debug", "json")
	require.NoError(t, err)
	assert.NotNil(t, log)

	log, err = New("", "")
	require.NoError(t, err)
	assert.NotNil(t, log)

	log, err = New("WARN", "text")
	require.NoError(t, err)
	assert.NotNil(t, log)
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("verbose", "json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log level")
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	_, err := New("info", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported log format")
}
