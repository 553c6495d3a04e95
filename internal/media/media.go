// Package media supplies image URIs for events. The core treats the result
// as an opaque string stored in EventRecord.ImageURL.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

type Picker interface {
	PickImage(ctx context.Context) (string, error)
}

// ErrCanceled means the user picked nothing.
var ErrCanceled = errors.New("media: no image picked")

// FilePicker turns a local image file into a file:// URI after checking
// that its content really is an image.
type FilePicker struct {
	Path string
}

func (p FilePicker) PickImage(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Path) == "" {
		return "", ErrCanceled
	}

	abs, err := filepath.Abs(p.Path)
	if err != nil {
		return "", fmt.Errorf("media: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("media: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("media: %s is not a regular file", abs)
	}

	mt, err := mimetype.DetectFile(abs)
	if err != nil {
		return "", fmt.Errorf("media: detect type of %s: %w", abs, err)
	}
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("media: %s is %s, not an image", abs, mt.String())
	}

	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String(), nil
}

// URIPicker passes an already-hosted image URI through after a syntax
// check.
type URIPicker struct {
	URI string
}

func (p URIPicker) PickImage(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw := strings.TrimSpace(p.URI)
	if raw == "" {
		return "", ErrCanceled
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("media: %w", err)
	}
	if u.Scheme == "" {
		return "", fmt.Errorf("media: %q has no scheme", raw)
	}
	return u.String(), nil
}

// For picks FilePicker for local paths and URIPicker for anything with a
// scheme.
func For(source string) Picker {
	if u, err := url.Parse(source); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		return URIPicker{URI: source}
	}
	return FilePicker{Path: source}
}
