package imagesource

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func solidImage(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
}

func TestCropToAspect(t *testing.T) {
	tests := []struct {
		name                  string
		width, height         int
		wantWidth, wantHeight int
	}{
		{name: "wide", width: 800, height: 400, wantWidth: 533, wantHeight: 400},
		{name: "tall", width: 300, height: 600, wantWidth: 300, wantHeight: 225},
		{name: "exact", width: 400, height: 300, wantWidth: 400, wantHeight: 300},
		{name: "square", width: 100, height: 100, wantWidth: 100, wantHeight: 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CropToAspect(solidImage(tt.width, tt.height, color.White), Aspect{Width: 4, Height: 3})
			if got.Bounds().Dx() != tt.wantWidth || got.Bounds().Dy() != tt.wantHeight {
				t.Fatalf("expected %dx%d, got %dx%d", tt.wantWidth, tt.wantHeight, got.Bounds().Dx(), got.Bounds().Dy())
			}
		})
	}
}

func TestCropToAspectKeepsCenter(t *testing.T) {
	// left and right thirds red, middle blue: a square crop of 900x300 keeps only blue
	img := solidImage(900, 300, color.RGBA{R: 255, A: 255})
	for y := 0; y < 300; y++ {
		for x := 300; x < 600; x++ {
			img.Set(x, y, color.RGBA{B: 255, A: 255})
		}
	}

	cropped := CropToAspect(img, Aspect{Width: 1, Height: 1})
	if cropped.Bounds().Dx() != 300 {
		t.Fatalf("expected width 300, got %d", cropped.Bounds().Dx())
	}
	r, _, b, _ := cropped.At(0, 0).RGBA()
	if r != 0 || b == 0 {
		t.Fatalf("expected blue at the crop origin, got r=%d b=%d", r, b)
	}
}

func TestCropToAspectIgnoresInvalidAspect(t *testing.T) {
	img := solidImage(10, 20, color.Black)
	if got := CropToAspect(img, Aspect{}); got != image.Image(img) {
		t.Fatal("expected the original image for a zero aspect")
	}
}

func TestJPEGQuality(t *testing.T) {
	tests := map[float64]int{1: 100, 0.5: 50, 0: 1, -2: 1, 3: 100, 0.854: 85}
	for in, want := range tests {
		if got := JPEGQuality(in); got != want {
			t.Errorf("JPEGQuality(%v) = %d, want %d", in, got, want)
		}
	}
}

func TestEditorApplyWritesCroppedJPEG(t *testing.T) {
	dir := t.TempDir()
	editor := NewEditor(dir)

	asset, err := editor.Apply(solidImage(640, 640, color.White), DefaultOptions(), "square.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.MIMEType != "image/jpeg" || asset.Name != "square.png" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if filepath.Dir(asset.URI) != dir {
		t.Fatalf("expected asset in %s, got %s", dir, asset.URI)
	}

	f, err := os.Open(asset.URI)
	if err != nil {
		t.Fatalf("failed to open asset: %v", err)
	}
	defer f.Close()
	cfg, err := jpeg.DecodeConfig(f)
	if err != nil {
		t.Fatalf("asset is not a jpeg: %v", err)
	}
	if cfg.Width != 640 || cfg.Height != 480 {
		t.Fatalf("expected 640x480, got %dx%d", cfg.Width, cfg.Height)
	}
	if asset.Width != 640 || asset.Height != 480 {
		t.Fatalf("asset dimensions not updated: %+v", asset)
	}
}

func TestEditorApplyWithoutEditingKeepsDimensions(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowsEditing = false

	asset, err := NewEditor(t.TempDir()).Apply(solidImage(50, 70, color.White), opts, "tall.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.Width != 50 || asset.Height != 70 {
		t.Fatalf("expected 50x70, got %dx%d", asset.Width, asset.Height)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	f := filepath.Join(t.TempDir(), "garbage.jpg")
	if err := os.WriteFile(f, []byte("not an image"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	r, err := os.Open(f)
	if err != nil {
		t.Fatalf("failed to open: %v", err)
	}
	defer r.Close()
	if _, _, err := Decode(r); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestEditorReleaseRemovesSupersededImages(t *testing.T) {
	dir := t.TempDir()
	editor := NewEditor(dir)

	var current *Asset
	for i := 0; i < 3; i++ {
		asset, err := editor.Apply(solidImage(40, 30, color.White), DefaultOptions(), "a.png")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := editor.Release(current); err != nil {
			t.Fatalf("release failed: %v", err)
		}
		current = asset
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	if len(entries) != 1 || filepath.Join(dir, entries[0].Name()) != current.URI {
		t.Fatalf("expected only the current image to remain, got %d entries", len(entries))
	}

	if err := editor.Release(current); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if err := editor.Release(current); err != nil {
		t.Fatalf("releasing a removed image should not fail: %v", err)
	}
	if _, err := os.Stat(current.URI); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed, stat err %v", current.URI, err)
	}
}

func TestEditorReleaseLeavesForeignFiles(t *testing.T) {
	dir := t.TempDir()
	editor := NewEditor(dir)

	outside := filepath.Join(t.TempDir(), "pick-original.jpg")
	original := filepath.Join(dir, "original.png")
	writePNG(t, outside, solidImage(4, 3, color.White))
	writePNG(t, original, solidImage(4, 3, color.White))

	for _, path := range []string{outside, original} {
		if err := editor.Release(&Asset{URI: path}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("%s should not be removed: %v", path, err)
		}
	}
	if err := editor.Release(nil); err != nil {
		t.Fatalf("nil asset: %v", err)
	}
}
