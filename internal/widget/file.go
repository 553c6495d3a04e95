package widget

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"days/internal/storage"
)

const (
	HTMLFile = "widget.html"
	JSONFile = "widget.json"
	PNGFile  = "widget.png"
)

// FileRenderer drops widget.html and widget.json into Dir for a platform
// host to pick up. Each file is replaced atomically.
type FileRenderer struct {
	Dir  string
	Tile Tile
}

func (r FileRenderer) Render(ctx context.Context, p Props) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("widget: create output dir: %w", err)
	}

	html, err := r.Tile.HTML(p)
	if err != nil {
		return fmt.Errorf("widget: render html: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("widget: encode props: %w", err)
	}

	if err := storage.WriteFileAtomic(filepath.Join(r.Dir, HTMLFile), html, 0o644); err != nil {
		return fmt.Errorf("widget: write %s: %w", HTMLFile, err)
	}
	if err := storage.WriteFileAtomic(filepath.Join(r.Dir, JSONFile), data, 0o644); err != nil {
		return fmt.Errorf("widget: write %s: %w", JSONFile, err)
	}
	return nil
}
