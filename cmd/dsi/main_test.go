package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/dsi/cmd/dsi/console"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	console.SetOutput(&out, &errOut)
	t.Cleanup(func() { console.SetOutput(os.Stdout, os.Stderr) })
	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"dsi", "--simulate"}, args...))
	return out.String(), err
}

func TestInfo(t *testing.T) {
	out, err := runApp(t, "info")
	require.NoError(t, err)
	var info imagerInfo
	require.NoError(t, yaml.Unmarshal([]byte(out), &info))
	assert.Equal(t, "10.1.1.1", info.Version)
	assert.Equal(t, "HIGH", info.USBSpeed)
	assert.Equal(t, "ICX404AK", info.Chip)
	assert.Equal(t, "simulator", info.Name)
	assert.Equal(t, 64, info.EepromLength)
	assert.True(t, info.TestPattern)
	assert.Nil(t, info.Geometry)
}

func TestExposeTestPattern(t *testing.T) {
	dir := t.TempDir()
	pngPath := filepath.Join(dir, "frame.png")
	rawPath := filepath.Join(dir, "frame.raw")
	_, err := runApp(t, "expose", "--test-pattern", "--out", pngPath, "--raw", rawPath)
	require.NoError(t, err)

	f, err := os.Open(pngPath)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 540, img.Bounds().Dx())
	assert.Equal(t, 505, img.Bounds().Dy())

	raw, err := os.ReadFile(rawPath)
	require.NoError(t, err)
	assert.Len(t, raw, 540*505*2)
}

func TestExposeWithGeometry(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "dsi.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
geometry:
  read_width: 32
  even_rows: 4
  odd_rows: 4
  bpp: 2
  image_width: 30
  image_height: 8
`), 0o600))
	pngPath := filepath.Join(dir, "frame.png")
	out, err := runApp(t, "--config", cfg, "expose", "--time", "50ms", "--out", pngPath)
	require.NoError(t, err)
	assert.Contains(t, out, "30x8 image")
}
