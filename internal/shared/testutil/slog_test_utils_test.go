package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferedSlogHandler(t *testing.T) {
	t.Run("captures log records", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("test message", slog.String("key", "value"))
		logger.Error("error message", slog.Int("code", 500))

		assert.Len(t, handler.GetRecords(), 2)
		assert.True(t, handler.ContainsMessage("test message"))
		assert.True(t, handler.ContainsAttr("key", "value"))
	})

	t.Run("filters by level", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Debug("debug msg")
		logger.Info("info msg")
		logger.Warn("warn msg")
		logger.Error("error msg")

		assert.Len(t, handler.GetRecordsByLevel(slog.LevelInfo), 1)
		assert.Len(t, handler.GetRecordsByLevel(slog.LevelError), 1)
		assert.Equal(t, 4, handler.Count())
	})

	t.Run("with attrs share the buffer", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.With(slog.String("component", "sources")).Info("loaded")

		require.Equal(t, 1, handler.Count())
		assert.True(t, handler.ContainsAttr("component", "sources"))
		AssertLogContains(t, handler, slog.LevelInfo, "loaded")
	})

	t.Run("clear", func(t *testing.T) {
		logger, handler := NewTestLogger(t)

		logger.Info("message 1")
		logger.Info("message 2")
		handler.Clear()

		assert.Zero(t, handler.Count())
		AssertNoErrors(t, handler)
	})
}

func TestFixtures(t *testing.T) {
	tbl := NewsTable()
	assert.Equal(t, len(NewsRecords), tbl.Len())
	assert.True(t, tbl.HasColumn("Event"))

	path := WriteFile(t, t.TempDir(), "sub/news.csv", NewsCSV())
	assert.FileExists(t, path)
}
