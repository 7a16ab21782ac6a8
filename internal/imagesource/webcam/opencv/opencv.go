// Package opencv opens camera devices through OpenCV.
package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/example/image-compare/internal/imagesource/webcam"
)

type device struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
}

// Open is a webcam.Opener backed by gocv.VideoCapture.
func Open(deviceID int) (webcam.Device, error) {
	capture, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open video capture: %w", err)
	}
	if !capture.IsOpened() {
		_ = capture.Close()
		return nil, fmt.Errorf("video capture %d is not available", deviceID)
	}
	return &device{capture: capture, frame: gocv.NewMat()}, nil
}

func (d *device) Read() (image.Image, error) {
	if ok := d.capture.Read(&d.frame); !ok {
		return nil, webcam.ErrNoFrame
	}
	if d.frame.Empty() {
		return nil, webcam.ErrNoFrame
	}
	img, err := d.frame.ToImage()
	if err != nil {
		return nil, fmt.Errorf("failed to convert frame: %w", err)
	}
	return img, nil
}

func (d *device) Close() error {
	return webcam.CloseAll(&d.frame, d.capture)
}
