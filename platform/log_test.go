package platform

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHookSwitchesFileWhenDateChanges(t *testing.T) {
	dir := t.TempDir()
	hook := &Hook{logPath: dir, fileName: "app"}

	logger := logrus.New()
	logger.SetFormatter(&LogFormatter{})
	logger.SetOutput(io.Discard)
	logger.AddHook(hook)

	logger.Info("first")
	today := time.Now().Format("2006-01-02")
	assert.Equal(t, today, hook.fileDate)

	// Pretend the hook was opened on an earlier day.
	hook.fileDate = "2000-01-01"
	logger.Info("second")
	assert.Equal(t, today, hook.fileDate)

	data, err := os.ReadFile(filepath.Join(dir, today+"-app.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestInitAppLoggerWritesDailyFile(t *testing.T) {
	dir := t.TempDir()
	hooks := Logger.Hooks
	out := Logger.Out
	t.Cleanup(func() {
		Logger.ReplaceHooks(hooks)
		Logger.SetOutput(out)
	})
	Logger.ReplaceHooks(make(logrus.LevelHooks))
	Logger.SetOutput(io.Discard)

	InitAppLogger(dir, "souschef")
	Logger.Warn("disk almost full")

	data, err := os.ReadFile(filepath.Join(dir, time.Now().Format("2006-01-02")+"-souschef.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[warning] disk almost full")
}
