// Package webcam implements the camera side of the picker contract on top of a
// frame-grabbing capture device.
package webcam

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/example/image-compare/internal/imagesource"
	"github.com/example/image-compare/internal/logging"
)

// ErrNoFrame is returned when the device is open but delivers no usable frame.
var ErrNoFrame = errors.New("camera returned no frame")

// Device is an open capture device.
type Device interface {
	Read() (image.Image, error)
	Close() error
}

// CloseAll closes every closer, even after a failure, and joins the errors.
func CloseAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Opener opens the capture device with the given index.
type Opener func(deviceID int) (Device, error)

// Confirmer shows the captured frame's size and asks whether to keep it.
type Confirmer interface {
	ConfirmCapture(ctx context.Context, width, height int) (bool, error)
}

// Picker captures a single photo from a camera device.
type Picker struct {
	deviceID int
	open     Opener
	confirm  Confirmer
	editor   *imagesource.Editor
	logger   *zap.Logger
	// warmup frames are read and dropped so auto exposure can settle
	warmup int
	now    func() time.Time
}

// NewPicker builds a camera picker.
func NewPicker(deviceID int, open Opener, confirm Confirmer, editor *imagesource.Editor, logger *zap.Logger) *Picker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Picker{
		deviceID: deviceID,
		open:     open,
		confirm:  confirm,
		editor:   editor,
		logger:   logger.Named("camera_picker"),
		warmup:   3,
		now:      time.Now,
	}
}

// Launch opens the device, grabs a frame and hands it to the confirmer. Device
// failures are returned as errors; a rejected frame is a cancellation.
func (p *Picker) Launch(ctx context.Context, opts imagesource.Options) (imagesource.Result, error) {
	if err := ctx.Err(); err != nil {
		return imagesource.Result{}, err
	}
	if opts.MediaType != "" && opts.MediaType != imagesource.Images {
		return imagesource.Result{}, fmt.Errorf("%w: %s", imagesource.ErrUnsupportedMediaType, opts.MediaType)
	}

	frame, err := p.capture()
	if err != nil {
		p.logger.Error("camera capture failed", zap.Int("device", p.deviceID), zap.Error(err))
		return imagesource.Result{}, err
	}

	bounds := frame.Bounds()
	keep, err := p.confirm.ConfirmCapture(ctx, bounds.Dx(), bounds.Dy())
	if err != nil {
		return imagesource.Result{}, logging.NewOperationError("webcam.confirm", "", err)
	}
	if !keep {
		p.logger.Debug("camera capture discarded")
		return imagesource.Canceled(), nil
	}

	name := fmt.Sprintf("capture-%s.jpg", p.now().UTC().Format("20060102T150405"))
	asset, err := p.editor.Apply(frame, opts, name)
	if err != nil {
		return imagesource.Result{}, logging.NewOperationError("webcam.save", "", err)
	}

	p.logger.Info("camera image captured",
		zap.Int("device", p.deviceID),
		zap.String("uri", asset.URI),
		zap.Int("width", asset.Width),
		zap.Int("height", asset.Height))
	return imagesource.Picked(asset), nil
}

func (p *Picker) capture() (img image.Image, err error) {
	device, err := p.open(p.deviceID)
	if err != nil {
		return nil, logging.NewOperationError("webcam.open", "", fmt.Errorf("device %d: %w", p.deviceID, err))
	}
	defer func() {
		if cerr := device.Close(); cerr != nil && err == nil {
			err = logging.NewOperationError("webcam.close", "", cerr)
		}
	}()

	for i := 0; i <= p.warmup; i++ {
		img, err = device.Read()
		if err != nil {
			return nil, logging.NewOperationError("webcam.read", "", err)
		}
	}
	if img == nil || img.Bounds().Empty() {
		return nil, logging.NewOperationError("webcam.read", "", ErrNoFrame)
	}
	return img, nil
}
