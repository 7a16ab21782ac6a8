// Package imagesource defines the picker contract shared by the gallery and the camera,
// and the crop-and-encode step both apply to a picked image.
package imagesource

import (
	"context"
	"errors"
)

// MediaType restricts what a picker may return.
type MediaType string

const Images MediaType = "images"

// Aspect is a crop ratio such as 4:3.
type Aspect struct {
	Width  int
	Height int
}

func (a Aspect) valid() bool {
	return a.Width > 0 && a.Height > 0
}

// Options is the request half of the picker contract.
type Options struct {
	MediaType     MediaType
	AllowsEditing bool
	Aspect        Aspect
	// Quality is the encoding fidelity in (0, 1]; 1 is maximum.
	Quality float64
}

// DefaultOptions returns single-image, edit-enabled, 4:3, maximum quality.
func DefaultOptions() Options {
	return Options{
		MediaType:     Images,
		AllowsEditing: true,
		Aspect:        Aspect{Width: 4, Height: 3},
		Quality:       1,
	}
}

// Asset is a locally addressable picked image.
type Asset struct {
	URI      string
	Name     string
	MIMEType string
	Width    int
	Height   int
}

// Result is either a cancellation or exactly one asset.
type Result struct {
	Canceled bool
	Asset    *Asset
}

// Canceled is the result of a flow the user backed out of.
func Canceled() Result {
	return Result{Canceled: true}
}

// Picked wraps a single selected asset.
func Picked(asset *Asset) Result {
	return Result{Asset: asset}
}

// Picker launches an interactive image selection or capture flow.
type Picker interface {
	Launch(ctx context.Context, opts Options) (Result, error)
}

// Releaser frees whatever backs an asset once nothing shows it any more.
type Releaser interface {
	Release(asset *Asset) error
}

var (
	// ErrNoImages is returned by a gallery with nothing to pick from.
	ErrNoImages = errors.New("no images available")
	// ErrUnsupportedMediaType is returned for media types other than Images.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
)
