package imagesource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/example/image-compare/internal/logging"
)

var galleryExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// Chooser lets the user pick one of the gallery entries. An empty name means the user
// cancelled.
type Chooser interface {
	ChooseImage(ctx context.Context, names []string) (string, error)
}

// GalleryPicker serves a directory of images as the device gallery.
type GalleryPicker struct {
	dir     string
	chooser Chooser
	editor  *Editor
	logger  *zap.Logger
}

// NewGalleryPicker builds a picker over dir.
func NewGalleryPicker(dir string, chooser Chooser, editor *Editor, logger *zap.Logger) *GalleryPicker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GalleryPicker{
		dir:     dir,
		chooser: chooser,
		editor:  editor,
		logger:  logger.Named("gallery_picker"),
	}
}

// List returns the image file names in the gallery directory, sorted.
func (g *GalleryPicker) List() ([]string, error) {
	entries, err := os.ReadDir(g.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read gallery %s: %w", g.dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if galleryExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

// Launch lists the gallery, lets the chooser pick an entry and returns the edited copy.
func (g *GalleryPicker) Launch(ctx context.Context, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if opts.MediaType != "" && opts.MediaType != Images {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, opts.MediaType)
	}

	names, err := g.List()
	if err != nil {
		return Result{}, logging.NewOperationError("gallery.list", "", err)
	}
	if len(names) == 0 {
		return Result{}, logging.NewOperationError("gallery.list", "", fmt.Errorf("%w in %s", ErrNoImages, g.dir))
	}

	chosen, err := g.chooser.ChooseImage(ctx, names)
	if err != nil {
		return Result{}, logging.NewOperationError("gallery.choose", "", err)
	}
	if chosen == "" {
		g.logger.Debug("gallery pick cancelled")
		return Canceled(), nil
	}
	if !slices.Contains(names, chosen) {
		return Result{}, logging.NewOperationError("gallery.choose", "", fmt.Errorf("%q is not in the gallery", chosen))
	}

	asset, err := g.load(filepath.Join(g.dir, chosen), opts)
	if err != nil {
		return Result{}, logging.NewOperationError("gallery.load", "", err)
	}

	g.logger.Info("gallery image picked",
		zap.String("file", chosen),
		zap.String("uri", asset.URI),
		zap.Int("width", asset.Width),
		zap.Int("height", asset.Height))
	return Picked(asset), nil
}

func (g *GalleryPicker) load(path string, opts Options) (*Asset, error) {
	src, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer src.Close()

	img, _, err := Decode(src)
	if err != nil {
		return nil, err
	}
	return g.editor.Apply(img, opts, filepath.Base(path))
}
