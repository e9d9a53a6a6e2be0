package cmd

import (
	"bytes"
	"image"
	"image/png"
	"os"
	"testing"

	"github.com/AnyUserName/pixconv/internal/config"
	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/pipeline"
	"github.com/AnyUserName/pixconv/internal/preset"
	"github.com/AnyUserName/pixconv/internal/shrink"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand(t *testing.T, name string, args ...string) (*cobra.Command, *string, *float64, *int) {
	t.Helper()
	t.Chdir(t.TempDir())

	var err error
	cfg, err = config.Load(viper.New(), "")
	require.NoError(t, err)
	presets = preset.Builtin()
	presetName = name
	t.Cleanup(func() { presetName = "" })

	var to string
	var factor float64
	var quality int
	c := &cobra.Command{Use: "test"}
	addConvertFlags(c, &to, &factor, &quality)
	require.NoError(t, c.ParseFlags(args))
	return c, &to, &factor, &quality
}

func TestResolveSettingsDefaults(t *testing.T) {
	c, to, factor, quality := testCommand(t, "")
	s, err := resolveSettings(c, *to, *factor, *quality)
	require.NoError(t, err)
	assert.Equal(t, "image/webp", s.target)
	assert.Equal(t, shrink.Value(shrink.DefaultFactor), s.factor)
	assert.Zero(t, s.quality)
}

func TestResolveSettingsPreset(t *testing.T) {
	c, to, factor, quality := testCommand(t, "photo")
	s, err := resolveSettings(c, *to, *factor, *quality)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", s.target)
	assert.Equal(t, "0.50", s.factor.String())
	assert.Equal(t, 85, s.quality)
	assert.Equal(t, "photo", s.preset)
}

func TestResolveSettingsFlagsOverridePreset(t *testing.T) {
	c, to, factor, quality := testCommand(t, "photo", "--to", "image/png", "--factor", "1", "--quality", "40")
	s, err := resolveSettings(c, *to, *factor, *quality)
	require.NoError(t, err)
	assert.Equal(t, "image/png", s.target)
	assert.True(t, s.factor.IsSkip())
	assert.Equal(t, 40, s.quality)
}

func TestResolveSettingsErrors(t *testing.T) {
	c, to, factor, quality := testCommand(t, "nope")
	_, err := resolveSettings(c, *to, *factor, *quality)
	assert.ErrorContains(t, err, "unknown preset")

	c, to, factor, quality = testCommand(t, "", "--factor", "1.5")
	_, err = resolveSettings(c, *to, *factor, *quality)
	assert.Error(t, err)
}

func TestDefaultOutputPath(t *testing.T) {
	res := &pipeline.Result{Format: format.WebP, SourceFormat: format.PNG}
	assert.Equal(t, "dir/photo.webp", defaultOutputPath("dir/photo.png", false, res))
	assert.Equal(t, "cat.webp", defaultOutputPath("https://example.com/img/cat.jpg?w=1", true, res))

	res.FellBack = true
	assert.Equal(t, "dir/photo.png", defaultOutputPath("dir/photo.png", false, res))
}

func TestConvertURLRejectsMemoryStore(t *testing.T) {
	c, _, _, _ := testCommand(t, "")
	convertURL = true
	t.Cleanup(func() { convertURL = false })

	require.Equal(t, "memory", cfg.Blob.Backend)
	err := runConvert(c, []string{"pic.png"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persistent blob backend")
}

func TestConvertURLWithLocalStore(t *testing.T) {
	c, _, _, _ := testCommand(t, "", "--to", "image/png")
	c.SetContext(t.Context())
	convertURL = true
	t.Cleanup(func() { convertURL = false })
	cfg.Blob.Backend = "local"
	cfg.Blob.Dir = t.TempDir()

	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile("pic.png", buf.Bytes(), 0o644))

	require.NoError(t, runConvert(c, []string{"pic.png"}))
	entries, err := os.ReadDir(cfg.Blob.Dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
