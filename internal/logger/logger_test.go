package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLevels(t *testing.T) {
	cases := map[string]bool{"debug": true, "info": false, "warn": false, "": false, "bogus": false}
	for level, debug := range cases {
		l, err := New(level, "json")
		require.NoError(t, err)
		assert.Equal(t, debug, l.Core().Enabled(zap.DebugLevel), level)
		assert.True(t, l.Core().Enabled(zap.ErrorLevel), level)
	}
}

func TestInitReplacesGlobal(t *testing.T) {
	prev := zap.L()
	t.Cleanup(func() { zap.ReplaceGlobals(prev) })

	l := Init("warn", "console")
	assert.Same(t, l, zap.L())
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))
}
