package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG header plus IHDR chunk; enough for content sniffing.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func TestFilePicker(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	img := filepath.Join(dir, "cover.png")
	require.NoError(t, os.WriteFile(img, pngBytes, 0o600))
	uri, err := For(img).PickImage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(img), uri)

	txt := filepath.Join(dir, "notes.png")
	require.NoError(t, os.WriteFile(txt, []byte("plain text pretending"), 0o600))
	_, err = FilePicker{Path: txt}.PickImage(ctx)
	assert.ErrorContains(t, err, "not an image")

	_, err = FilePicker{Path: filepath.Join(dir, "missing.jpg")}.PickImage(ctx)
	assert.Error(t, err)

	_, err = FilePicker{}.PickImage(ctx)
	assert.ErrorIs(t, err, ErrCanceled)
}

func TestURIPicker(t *testing.T) {
	ctx := context.Background()

	uri, err := For("https://img.example.com/a.jpg").PickImage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://img.example.com/a.jpg", uri)

	_, err = URIPicker{URI: "   "}.PickImage(ctx)
	assert.ErrorIs(t, err, ErrCanceled)

	_, err = URIPicker{URI: "no-scheme.jpg"}.PickImage(ctx)
	assert.Error(t, err)
}
