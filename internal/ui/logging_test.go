package ui_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/brogergvhs/sushidl/internal/ui"
	"github.com/stretchr/testify/assert"
)

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(ui.NewConsoleHandler(&buf, false))

	log.Debug("hidden")
	log.Info("CBZ created", "chapter", "Tome 1", "size", "12 kB")
	log.With("domain", "fr").WithGroup("http").Error("probe failed", "status", 403, "error", errors.New("boom"))

	assert.Equal(t,
		"[INFO] CBZ created chapter=\"Tome 1\" size=\"12 kB\"\n"+
			"[ERROR] probe failed domain=fr http.status=403 http.error=boom\n",
		buf.String())
}

func TestConsoleHandler_Debug(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(ui.NewConsoleHandler(&buf, true))

	log.Debug("image saved", "path", "")

	assert.Equal(t, "[DEBUG] image saved path=\"\"\n", buf.String())
}
