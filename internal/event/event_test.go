package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"critical", LevelCritical},
		{"ERROR", LevelError},
		{"warn", LevelWarning},
		{"info", LevelInfo},
		{"", LevelInfo},
		{"debug", LevelVerbose},
		{"verbose", LevelVerbose},
		{"transfer", LevelTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLevelSevere(t *testing.T) {
	assert.True(t, LevelError.Severe(LevelWarning))
	assert.True(t, LevelWarning.Severe(LevelWarning))
	assert.False(t, LevelVerbose.Severe(LevelInfo))
	assert.True(t, LevelStart.Severe(LevelInfo))
	assert.False(t, LevelStop.Severe(LevelWarning))
}

func TestLevelShortIsFixedWidth(t *testing.T) {
	for l := range levelNames {
		assert.Len(t, l.Short(), 4, l.String())
	}
}

func TestFields(t *testing.T) {
	fs := Fields{
		F(KeyPosition, "1.2"),
		F("k", 1),
		F("k", 2),
		F(KeyEvent, "hello"),
	}

	v, ok := fs.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	assert.Equal(t, "hello", fs.String(KeyEvent))
	assert.Equal(t, "1", fs.String("k"))
	assert.Equal(t, "", fs.String("missing"))

	assert.Equal(t, map[string]any{KeyPosition: "1.2", "k": 1, KeyEvent: "hello"}, fs.Map())
	assert.Equal(t, Fields{F("k", 1), F("k", 2)}, fs.Without(KeyPosition, KeyEvent))
}

func TestDataKey(t *testing.T) {
	assert.Equal(t, "data.0", DataKey(0))
	assert.Equal(t, "data.12", DataKey(12))
}
