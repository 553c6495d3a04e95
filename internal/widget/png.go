package widget

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"

	appLog "days/internal/log"
	"days/internal/storage"
)

const DefaultCaptureTimeout = 30 * time.Second

// PNGRenderer screenshots the HTML tile with headless Chromium and writes
// widget.png into Dir.
type PNGRenderer struct {
	Dir     string
	Tile    Tile
	Timeout time.Duration
}

// Render writes the tile to a temp file, loads it over file://, waits for
// `[data-ready="true"]` and captures the viewport.
func (r PNGRenderer) Render(parentCtx context.Context, p Props) error {
	if r.Dir == "" {
		return fmt.Errorf("widget: PNG output dir is required")
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("widget: create output dir: %w", err)
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultCaptureTimeout
	}
	width, height := r.Tile.size()

	html, err := r.Tile.HTML(p)
	if err != nil {
		return fmt.Errorf("widget: render html: %w", err)
	}
	tmp, err := os.CreateTemp("", "days-widget-*.html")
	if err != nil {
		return fmt.Errorf("widget: temp html: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(html); err != nil {
		tmp.Close()
		return fmt.Errorf("widget: temp html: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("widget: temp html: %w", err)
	}
	page := url.URL{Scheme: "file", Path: filepath.ToSlash(tmp.Name())}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(page.String()),
		chromedp.WaitVisible(`[data-ready="true"]`, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("widget: chromedp run failed: %w", err)
	}

	out := filepath.Join(r.Dir, PNGFile)
	if err := storage.WriteFileAtomic(out, png, 0o644); err != nil {
		return fmt.Errorf("widget: write %s: %w", PNGFile, err)
	}
	appLog.Debug("widget png captured", "path", out, "bytes", len(png))
	return nil
}
