package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"development", DevelopmentConfig(), false},
		{"no outputs", Config{Level: "warn"}, false},
		{"bad level", Config{Level: "loud"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger.Logger)
		})
	}
}

func TestSetLevel(t *testing.T) {
	logger, err := New(Config{Level: "info"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, logger.Level())

	require.NoError(t, logger.SetLevel("debug"))
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))

	assert.Error(t, logger.SetLevel("nope"))
	assert.Equal(t, zapcore.DebugLevel, logger.Level())
}

func TestNop(t *testing.T) {
	logger := NewNop()
	logger.Info("discarded")
	assert.NotNil(t, logger.Component("bridge"))
	assert.NoError(t, logger.SetLevel("error"))
}
