package imagesource

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	mimeJPEG         = "image/jpeg"
	editedFilePrefix = "pick-"
)

// Editor applies the picker's crop and quality settings and writes the result to disk.
type Editor struct {
	dir string
}

// NewEditor writes edited images below dir; an empty dir means os.TempDir().
func NewEditor(dir string) *Editor {
	return &Editor{dir: dir}
}

// Decode reads any format registered with the image package.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// CropToAspect returns the largest centered region of img with the given aspect.
func CropToAspect(img image.Image, aspect Aspect) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if !aspect.valid() || width == 0 || height == 0 {
		return img
	}

	cropWidth, cropHeight := width, height
	if width*aspect.Height > height*aspect.Width {
		cropWidth = max(1, height*aspect.Width/aspect.Height)
	} else {
		cropHeight = max(1, width*aspect.Height/aspect.Width)
	}
	if cropWidth == width && cropHeight == height {
		return img
	}

	x0 := bounds.Min.X + (width-cropWidth)/2
	y0 := bounds.Min.Y + (height-cropHeight)/2

	cropped := image.NewRGBA(image.Rect(0, 0, cropWidth, cropHeight))
	draw.Draw(cropped, cropped.Bounds(), img, image.Pt(x0, y0), draw.Src)
	return cropped
}

// JPEGQuality maps a (0, 1] fidelity to the 1..100 JPEG scale.
func JPEGQuality(quality float64) int {
	q := int(math.Round(quality * 100))
	if q < 1 {
		return 1
	}
	if q > 100 {
		return 100
	}
	return q
}

// Apply crops img when editing is enabled, encodes it as JPEG and returns the asset
// pointing at the written file.
func (e *Editor) Apply(img image.Image, opts Options, name string) (*Asset, error) {
	if opts.AllowsEditing {
		img = CropToAspect(img, opts.Aspect)
	}

	file, err := os.CreateTemp(e.dir, editedFilePrefix+"*.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create edited image file: %w", err)
	}
	defer file.Close()

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: JPEGQuality(opts.Quality)}); err != nil {
		_ = os.Remove(file.Name())
		return nil, fmt.Errorf("failed to encode edited image: %w", err)
	}

	path, err := filepath.Abs(file.Name())
	if err != nil {
		path = file.Name()
	}

	bounds := img.Bounds()
	return &Asset{
		URI:      path,
		Name:     name,
		MIMEType: mimeJPEG,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// Release deletes the file behind an asset this editor wrote. Assets that live
// elsewhere are left alone, and a file that is already gone is not an error.
func (e *Editor) Release(asset *Asset) error {
	if asset == nil || asset.URI == "" || !e.owns(asset.URI) {
		return nil
	}
	if err := os.Remove(asset.URI); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove edited image %s: %w", asset.URI, err)
	}
	return nil
}

func (e *Editor) owns(path string) bool {
	dir := e.dir
	if dir == "" {
		dir = os.TempDir()
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return false
	}
	return filepath.Dir(path) == dir && strings.HasPrefix(filepath.Base(path), editedFilePrefix)
}
