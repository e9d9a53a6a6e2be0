package pipeline

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/AnyUserName/pixconv/internal/acquire"
	"github.com/AnyUserName/pixconv/internal/blob"
	"github.com/AnyUserName/pixconv/internal/codec"
	"github.com/AnyUserName/pixconv/internal/format"
	"github.com/AnyUserName/pixconv/internal/manifest"
	"github.com/AnyUserName/pixconv/internal/normalize"
	"github.com/AnyUserName/pixconv/internal/progress"
	"github.com/AnyUserName/pixconv/internal/shrink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noisePNG encodes an opaque random image; PNG cannot compress it, so
// lossy targets come out smaller.
func noisePNG(t *testing.T, w, h int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestGuard(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		enc := make([]byte, rng.Intn(64))
		orig := make([]byte, rng.Intn(64))

		out, fellBack := Guard(enc, orig)
		assert.LessOrEqual(t, len(out), len(orig))
		assert.Equal(t, len(enc) > len(orig), fellBack)
		if fellBack {
			assert.Equal(t, orig, out)
		} else {
			assert.Equal(t, enc, out)
		}
	}

	out, fellBack := Guard([]byte("abc"), []byte("xyz"))
	assert.False(t, fellBack, "equal sizes keep the encoded bytes")
	assert.Equal(t, []byte("abc"), out)
}

func TestConvertPNGToJPEG(t *testing.T) {
	c := NewConverter(nil)
	src := noisePNG(t, 512, 512, 1)

	res, err := c.Convert(t.Context(), Request{
		Input:      acquire.FromBytes(src),
		SourceType: "image/png",
		TargetType: "image/jpeg",
		Factor:     shrink.ParseFactor(nil),
	})
	require.NoError(t, err)

	assert.False(t, res.FellBack)
	assert.Equal(t, format.JPEG, res.Format)
	assert.Equal(t, "image/jpeg", res.MIMEType)
	assert.Equal(t, format.PNG, res.SourceFormat)
	assert.Equal(t, len(src), res.InputSize)
	assert.Less(t, len(res.Data), len(src))

	img, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 512, 512), img.Bounds())
}

func TestConvertInvalidBytes(t *testing.T) {
	c := NewConverter(nil)
	_, err := c.Convert(t.Context(), Request{
		Input:      acquire.FromBytes([]byte{0xde, 0xad, 0xbe, 0xef}),
		SourceType: "image/png",
		TargetType: "image/webp",
	})
	var unknown *codec.UnknownFormatError
	assert.ErrorAs(t, err, &unknown)
}

func TestConvertURLWithoutNetwork(t *testing.T) {
	c := NewConverter(nil)
	_, err := c.Convert(t.Context(), Request{
		Input:      acquire.FromURL("https://example.com/cat.png"),
		TargetType: "image/png",
	})
	var acqErr *acquire.Error
	require.ErrorAs(t, err, &acqErr)
	assert.ErrorIs(t, err, acquire.ErrNoNetwork)
}

func TestConvertInvalidInput(t *testing.T) {
	_, err := NewConverter(nil).Convert(t.Context(), Request{TargetType: "image/png"})
	var invalid *acquire.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestConvertFromURL(t *testing.T) {
	src := noisePNG(t, 64, 64, 2)
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits++
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(src)
	}))
	defer srv.Close()

	c := NewConverter(acquire.NewHTTPFetcher(srv.Client(), 0))
	res, err := c.Convert(t.Context(), Request{
		Input:      acquire.FromURL(srv.URL + "/a.png"),
		TargetType: "image/bmp",
		Factor:     shrink.Skip(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
	assert.Equal(t, format.BMP, res.Format)
	assert.Equal(t, 64, res.Width)
}

func TestConvertCancelledFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(noisePNG(t, 4, 4, 3))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := NewConverter(acquire.NewHTTPFetcher(srv.Client(), 0)).Convert(ctx, Request{
		Input:      acquire.FromURL(srv.URL),
		TargetType: "image/png",
	})
	var acqErr *acquire.Error
	require.ErrorAs(t, err, &acqErr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSkipFactorMatchesUncompressedPipeline(t *testing.T) {
	src := noisePNG(t, 80, 60, 4)
	c := NewConverter(nil)

	factor := 1.0
	res, err := c.Convert(t.Context(), Request{
		Input:      acquire.FromBytes(src),
		SourceType: "image/png",
		TargetType: "image/tiff",
		Factor:     shrink.ParseFactor(&factor),
	})
	require.NoError(t, err)

	img, srcFormat, err := c.Registry().Decode(src, format.PNG, true)
	require.NoError(t, err)
	want, err := c.Registry().Encode(normalize.Normalize(img, srcFormat, true, format.TIFF), format.TIFF, 0)
	require.NoError(t, err)
	want, _ = Guard(want, src)

	assert.Equal(t, want, res.Data)
}

func TestUnknownTargetDefaultsToWebP(t *testing.T) {
	res, err := NewConverter(nil).Convert(t.Context(), Request{
		Input:      acquire.FromBytes(noisePNG(t, 128, 128, 5)),
		TargetType: "image/does-not-exist",
	})
	require.NoError(t, err)
	assert.Equal(t, format.WebP, res.Format)
	assert.Equal(t, "image/webp", res.MIMEType)
	assert.False(t, res.FellBack)
	assert.Equal(t, []byte("RIFF"), res.Data[:4])
}

func TestConvertEveryFormatPair(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 24, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 24; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 10), G: uint8(y * 15), B: 90, A: uint8(255 - x*4)})
		}
	}

	reg := codec.NewRegistry()
	fixtures := make(map[format.Format][]byte)
	for _, f := range format.All() {
		data, err := reg.Encode(src, f, 0)
		require.NoError(t, err, f.String())
		fixtures[f] = data
	}

	c := NewConverter(nil)
	factors := []shrink.Factor{shrink.Skip(), shrink.Value(0.5)}
	for _, from := range format.All() {
		for _, to := range format.All() {
			for _, factor := range factors {
				t.Run(from.String()+"_to_"+to.String()+"_"+factor.String(), func(t *testing.T) {
					input := fixtures[from]
					var (
						res *Result
						err error
					)
					require.NotPanics(t, func() {
						res, err = c.Convert(t.Context(), Request{
							Input:      acquire.FromBytes(input),
							SourceType: from.ContentType(),
							TargetType: to.ContentType(),
							Factor:     factor,
						})
					})
					require.NoError(t, err)
					assert.Equal(t, from, res.SourceFormat)
					assert.LessOrEqual(t, len(res.Data), len(input))
				})
			}
		}
	}
}

func TestConvertToICO(t *testing.T) {
	c := NewConverter(nil)
	res, err := c.Convert(t.Context(), Request{
		Input:      acquire.FromBytes(noisePNG(t, 400, 400, 6)),
		TargetType: "image/x-icon",
		Factor:     shrink.Skip(),
	})
	require.NoError(t, err)
	require.False(t, res.FellBack)

	img, f, err := c.Registry().Decode(res.Data, format.ICO, true)
	require.NoError(t, err)
	assert.Equal(t, format.ICO, f)
	assert.Equal(t, image.Rect(0, 0, 256, 256), img.Bounds())
}

func TestConvertToJPEGKeepsColorsAfterShrink(t *testing.T) {
	// Half-transparent red must come out red, not darkened by alpha.
	rng := rand.New(rand.NewSource(14))
	img := image.NewNRGBA(image.Rect(0, 0, 256, 256))
	rng.Read(img.Pix)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 255, 128
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	res, err := NewConverter(nil).Convert(t.Context(), Request{
		Input:      acquire.FromBytes(buf.Bytes()),
		TargetType: "image/jpeg",
		Factor:     shrink.Value(0.5),
	})
	require.NoError(t, err)
	require.False(t, res.FellBack)

	out, err := jpeg.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	var sum uint64
	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := out.At(x, y).RGBA()
			sum += uint64(r >> 8)
		}
	}
	assert.Greater(t, sum/uint64(b.Dx()*b.Dy()), uint64(200))
}

type bloatEncoder struct{}

func (bloatEncoder) Format() format.Format { return format.GIF }

func (bloatEncoder) Encode(image.Image, int) ([]byte, error) { return make([]byte, 1<<20), nil }

func TestConvertFallsBackToSource(t *testing.T) {
	src := noisePNG(t, 8, 8, 7)
	c := NewConverter(nil)
	c.Registry().Register(bloatEncoder{})

	res, err := c.Convert(t.Context(), Request{
		Input:      acquire.FromBytes(src),
		TargetType: "image/gif",
	})
	require.NoError(t, err)
	assert.True(t, res.FellBack)
	assert.Equal(t, src, res.Data)
	assert.Equal(t, "image/gif", res.MIMEType, "reported type stays the requested target")
}

type failingEncoder struct{}

func (failingEncoder) Format() format.Format { return format.PNG }

func (failingEncoder) Encode(image.Image, int) ([]byte, error) { return nil, errors.New("nope") }

func TestConvertEncodingError(t *testing.T) {
	c := NewConverter(nil)
	c.Registry().Register(failingEncoder{})

	_, err := c.Convert(t.Context(), Request{
		Input:      acquire.FromBytes(noisePNG(t, 4, 4, 8)),
		TargetType: "image/png",
	})
	var encErr *codec.EncodingError
	require.ErrorAs(t, err, &encErr)
	assert.Equal(t, format.PNG, encErr.Format)
}

func TestConvertReportsMilestones(t *testing.T) {
	var got []progress.Milestone
	r := progress.ReporterFunc(func(p int, msg string) error {
		got = append(got, progress.Milestone{Percent: p, Message: msg})
		return errors.New("listener gone")
	})

	_, err := NewConverter(nil).Convert(t.Context(), Request{
		Input:      acquire.FromBytes(noisePNG(t, 16, 16, 9)),
		TargetType: "image/png",
	}, WithReporter(r))
	require.NoError(t, err, "reporter errors must not fail the conversion")
	assert.Equal(t, progress.Milestones(), got)
}

func TestConvertReportsStartOnFailure(t *testing.T) {
	var got []int
	r := progress.ReporterFunc(func(p int, _ string) error {
		got = append(got, p)
		return nil
	})
	_, err := NewConverter(nil).Convert(t.Context(), Request{
		Input: acquire.FromBytes([]byte("junk")),
	}, WithReporter(r))
	require.Error(t, err)
	assert.Equal(t, []int{10, 35}, got)
}

func TestConvertToURL(t *testing.T) {
	store := blob.NewMemoryStore("http://localhost", 0)
	c := NewConverter(nil)

	u, err := c.ConvertToURL(t.Context(), Request{
		Input:      acquire.FromBytes(noisePNG(t, 32, 32, 10)),
		TargetType: "image/png",
		Factor:     shrink.Skip(),
	}, store)
	require.NoError(t, err)

	id, ok := store.ID(u)
	require.True(t, ok)
	data, mime, err := store.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}

func TestConvertToURLPropagatesErrors(t *testing.T) {
	_, err := NewConverter(nil).ConvertToURL(t.Context(), Request{}, blob.NewMemoryStore("x", 0))
	var invalid *acquire.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

func TestConverterIsSafeForConcurrentUse(t *testing.T) {
	c := NewConverter(nil)
	src := noisePNG(t, 70, 70, 11)

	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := c.Convert(t.Context(), Request{
				Input:      acquire.FromBytes(src),
				TargetType: "image/qoi",
			})
			errs <- err
		}()
	}
	for i := 0; i < 8; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestScanImages(t *testing.T) {
	dir := t.TempDir()
	write := func(rel string) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	write("a.png")
	write("sub/b.JPG")
	write("sub/c.tga")
	write("notes.txt")
	write(".hidden/d.png")
	write(manifest.FileName)

	sources, err := ScanImages(dir)
	require.NoError(t, err)

	keys := map[string]format.Format{}
	for _, s := range sources {
		keys[s.Key] = s.Format
	}
	assert.Equal(t, map[string]format.Format{
		"a":     format.PNG,
		"sub/b": format.JPEG,
		"sub/c": format.TGA,
	}, keys)
}

func TestBatchRun(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(in, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(in, "one.png"), noisePNG(t, 96, 64, 12), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "nested", "two.png"), noisePNG(t, 40, 40, 13), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "broken.png"), []byte("not a png"), 0o644))

	p := New(Config{
		InputDir:   in,
		OutputDir:  out,
		TargetType: "image/webp",
		Factor:     shrink.Value(0.5),
		Workers:    2,
	}, NewConverter(nil))

	m, err := p.Run(t.Context())
	require.NoError(t, err)
	assert.Len(t, m.Assets, 2)
	assert.Equal(t, 1, m.Stats.Failed)
	assert.Equal(t, "0.50", m.Factor)

	two := m.Assets["nested/two"]
	assert.Equal(t, 40, two.Original.Width)
	assert.Equal(t, "png", two.Original.Format)
	assert.Regexp(t, `^nested/two\.[0-9a-f]{8}\.(webp|png)$`, two.Output.Path)

	require.NoError(t, manifest.WriteJSON(m, filepath.Join(out, manifest.FileName)))
	assert.Empty(t, manifest.Validate(m, out))
}

func TestBatchRunAllFailed(t *testing.T) {
	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "bad.gif"), []byte("nope"), 0o644))

	_, err := New(Config{InputDir: in, OutputDir: t.TempDir()}, NewConverter(nil)).Run(t.Context())
	assert.ErrorContains(t, err, "all 1 images failed")
}

func TestBatchRunEmptyDir(t *testing.T) {
	_, err := New(Config{InputDir: t.TempDir()}, NewConverter(nil)).Run(t.Context())
	assert.ErrorContains(t, err, "no images found")
}

func TestIsOpaque(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	assert.True(t, isOpaque(img))
	img.SetNRGBA(1, 1, color.NRGBA{A: 10})
	assert.False(t, isOpaque(img))
}
