package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func restoreLogrus(t *testing.T) {
	t.Helper()
	level := logrus.GetLevel()
	out := logrus.StandardLogger().Out
	formatter := logrus.StandardLogger().Formatter
	t.Cleanup(func() {
		logrus.SetLevel(level)
		logrus.SetOutput(out)
		logrus.SetFormatter(formatter)
	})
}

func TestInitWritesConsoleAndFile(t *testing.T) {
	restoreLogrus(t)
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "gateway.log")

	closer, err := initWith(Config{Level: "debug", File: path, MaxSizeMB: 1}, &console)
	require.NoError(t, err)

	logrus.WithField("event", "order_placed").Debug("placed")
	require.NoError(t, closer.Close())

	require.Contains(t, console.String(), "level=debug")
	require.Contains(t, console.String(), "event=order_placed")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "event=order_placed")
}

func TestInitAppliesLevel(t *testing.T) {
	restoreLogrus(t)
	var console bytes.Buffer
	closer, err := initWith(Config{Level: "warn"}, &console)
	require.NoError(t, err)
	defer closer.Close()

	logrus.Info("hidden")
	logrus.WithField("event", "order_replace_failed").Warn("shown")
	require.NotContains(t, console.String(), "hidden")
	require.Contains(t, console.String(), "level=warning")
}

func TestInitRejectsUnknownLevel(t *testing.T) {
	restoreLogrus(t)
	_, err := Init(Config{Level: "loud"})
	require.ErrorContains(t, err, "log level")
}
