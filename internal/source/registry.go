package source

import (
	"fmt"

	"github.com/ivlev/scrubber/internal/config"
)

// New creates a loader for the configured asset kind.
func New(cfg config.AssetsConfig) (Loader, error) {
	switch cfg.Kind {
	case "dir", "":
		return NewDirLoader(cfg.Root)
	case "http":
		return NewHTTPLoader(cfg.BaseURL, cfg.Timeout), nil
	case "pdf":
		return NewPDFLoader(cfg.Root, cfg.PDFDPI)
	default:
		return nil, fmt.Errorf("unknown asset kind: %s", cfg.Kind)
	}
}
