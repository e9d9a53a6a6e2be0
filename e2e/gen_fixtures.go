//go:build ignore

// gen_fixtures writes one small image per input format for smoke-testing
// `pixconv batch` and `pixconv watch`.
// Usage: go run gen_fixtures.go <output_dir>
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/AnyUserName/pixconv/internal/codec"
	"github.com/AnyUserName/pixconv/internal/format"
)

type fixture struct {
	path   string
	format format.Format
	img    image.Image
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gen_fixtures <output_dir>")
		os.Exit(1)
	}
	dir := os.Args[1]

	fixtures := []fixture{
		{"banner.jpg", format.JPEG, gradient(400, 225)},
		{"logo.png", format.PNG, alphaGradient(100, 100)},
		{"flat.qoi", format.QOI, solidWithBorder(320, 200, 90)},
		{"sprite.tga", format.TGA, solidWithBorder(64, 64, 30)},
		{"scan.tiff", format.TIFF, gradient(300, 300)},
		{"icon.bmp", format.BMP, alphaGradient(48, 48)},
		{"sky.hdr", format.HDR, gradient(128, 64)},
		{"raw.ff", format.Farbfeld, gradient(96, 96)},
		{"plain.ppm", format.PNM, gradient(80, 40)},
		{"anim.gif", format.GIF, solidWithBorder(120, 90, 150)},
	}
	for i := 1; i <= 3; i++ {
		fixtures = append(fixtures, fixture{
			fmt.Sprintf("cards/card-%d.webp", i), format.WebP, solidWithBorder(200, 150, uint8(i*60)),
		})
	}

	reg := codec.NewRegistry()
	for _, fx := range fixtures {
		data, err := reg.Encode(fx.img, fx.format, 85)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[gen_fixtures] %s: %v\n", fx.path, err)
			os.Exit(1)
		}
		path := filepath.Join(dir, fx.path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			panic(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			panic(err)
		}
	}

	fmt.Fprintf(os.Stderr, "[gen_fixtures] created %d fixtures in %s\n", len(fixtures), dir)
}

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(x * 255 / w),
				G: uint8(y * 255 / h),
				B: 128,
				A: 255,
			})
		}
	}
	return img
}

// solidWithBorder is mostly one flat color, which the shrink stage
// collapses hardest.
func solidWithBorder(w, h int, base uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBA{R: base, G: base + 40, B: base + 80, A: 255}
			if x < 4 || x >= w-4 || y < 4 || y >= h-4 {
				c = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func alphaGradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: 220, G: 60, B: 30,
				A: uint8(x * 255 / w),
			})
		}
	}
	return img
}
