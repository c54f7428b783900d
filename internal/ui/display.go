package ui

import (
	"log/slog"
	"os"

	"visors/internal/config"
)

// ApplyDisplayBackend steers the windowing backend before the first window
// is created. It only touches the environment of this process.
func ApplyDisplayBackend(backend config.DisplayBackend, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	switch backend {
	case config.DisplayX11:
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			logger.Info("forcing X11 display backend")
		}
		os.Unsetenv("WAYLAND_DISPLAY")
	case config.DisplayWayland:
		if os.Getenv("WAYLAND_DISPLAY") == "" {
			logger.Warn("wayland backend requested but WAYLAND_DISPLAY is not set")
		}
	}
}
