package capture

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"visors/internal/config"
)

// NewSource opens the source described by kind: the configured camera, or the
// video file at path.
func NewSource(kind Kind, cfg *config.Config, path string) (Source, error) {
	switch kind {
	case KindCamera:
		cam, err := OpenCamera(cfg.Camera.DeviceID)
		if err != nil {
			return nil, err
		}
		return cam, nil
	case KindFile:
		if !IsVideoFile(path) {
			return nil, fmt.Errorf("unsupported video file: %q", path)
		}
		vs, err := OpenFile(path)
		if err != nil {
			return nil, err
		}
		return vs, nil
	default:
		return nil, fmt.Errorf("unknown source: %s", kind)
	}
}

// IsVideoFile reports whether path has one of the accepted container extensions.
func IsVideoFile(path string) bool {
	if path == "" {
		return false
	}
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(config.VideoExtensions[:], ext)
}
