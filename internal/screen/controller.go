// Package screen holds the comparison screen's state and the three user actions that
// drive it: fill a slot from the gallery, fill a slot from the camera, and submit
// both slots for comparison.
package screen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/example/image-compare/internal/compare"
	"github.com/example/image-compare/internal/imagesource"
	"github.com/example/image-compare/internal/logging"
	"github.com/example/image-compare/internal/permission"
)

// Slot identifies one of the two image holders.
type Slot int

const (
	SlotImage1 Slot = iota
	SlotImage2
)

// Name is the slot's multipart field name.
func (s Slot) Name() string {
	switch s {
	case SlotImage1:
		return compare.FieldImage1
	case SlotImage2:
		return compare.FieldImage2
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

func (s Slot) String() string { return s.Name() }

func (s Slot) valid() bool { return s == SlotImage1 || s == SlotImage2 }

// Dependencies are the collaborators a Controller composes.
type Dependencies struct {
	Gallery     imagesource.Picker
	Camera      imagesource.Picker
	Permissions permission.Manager
	Client      compare.Client
	Notifier    Notifier
	Logger      *zap.Logger

	// Assets, if set, is told about every asset that drops out of a slot.
	Assets imagesource.Releaser
}

// Option customizes a Controller.
type Option func(*Controller)

// WithPickerOptions overrides the request sent to both pickers.
func WithPickerOptions(opts imagesource.Options) Option {
	return func(c *Controller) {
		c.pickerOpts = opts
	}
}

// Controller owns the screen state for one activation of the screen. A new screen
// activation gets a new Controller; nothing is shared between them.
type Controller struct {
	gallery     imagesource.Picker
	camera      imagesource.Picker
	permissions permission.Manager
	client      compare.Client
	notifier    Notifier
	logger      *zap.Logger
	assets      imagesource.Releaser
	pickerOpts  imagesource.Options

	mu                sync.Mutex
	slots             [2]*imagesource.Asset
	cameraPermission  permission.GrantState
	galleryPermission permission.GrantState
	loading           bool
	result            *string

	// superseded assets wait here while a submission may still be reading them.
	superseded []*imagesource.Asset
}

// New builds a controller with both slots empty and both permissions unknown.
func New(deps Dependencies, opts ...Option) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = NotifierFunc(func(Notice) {})
	}

	c := &Controller{
		gallery:     deps.Gallery,
		camera:      deps.Camera,
		permissions: deps.Permissions,
		client:      deps.Client,
		notifier:    notifier,
		logger:      logger.Named("comparison_screen"),
		assets:      deps.Assets,
		pickerOpts:  imagesource.DefaultOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RequestInitialPermissions requests every capability that is not granted yet and
// shows one advisory if either is still missing afterwards. The screen stays usable.
func (c *Controller) RequestInitialPermissions(ctx context.Context) {
	opLogger := logging.WithOperation(c.logger, "screen.request_initial_permissions", "")

	camera := c.resolvePermission(ctx, permission.Camera, opLogger)
	gallery := c.resolvePermission(ctx, permission.Gallery, opLogger)

	if camera != permission.Granted || gallery != permission.Granted {
		opLogger.Warn("permissions missing after initial request",
			zap.Stringer("camera", camera),
			zap.Stringer("gallery", gallery))
		c.notify(Notice{Kind: Advisory, Title: TitlePermissionsRequired, Message: MsgPermissionsRequired})
	}
}

func (c *Controller) resolvePermission(ctx context.Context, capability permission.Capability, opLogger *zap.Logger) permission.GrantState {
	state, err := c.permissions.Status(ctx, capability)
	if err != nil {
		opLogger.Warn("failed to read permission status", zap.String("capability", string(capability)), zap.Error(err))
		state = permission.Unknown
	}
	if state != permission.Granted {
		state, err = c.permissions.Request(ctx, capability)
		if err != nil {
			opLogger.Warn("permission request failed", zap.String("capability", string(capability)), zap.Error(err))
		}
	}
	c.setPermission(capability, state)
	return state
}

// SelectFromGallery fills slot from the gallery picker.
func (c *Controller) SelectFromGallery(ctx context.Context, slot Slot) {
	c.pick(ctx, slot, pickFlow{
		operation:  "screen.select_from_gallery",
		capability: permission.Gallery,
		picker:     c.gallery,
		denied:     MsgGalleryDenied,
		cancelled:  MsgGalleryCancelled,
		failed:     MsgGalleryFailed,
	})
}

// CaptureFromCamera fills slot from the camera.
func (c *Controller) CaptureFromCamera(ctx context.Context, slot Slot) {
	c.pick(ctx, slot, pickFlow{
		operation:  "screen.capture_from_camera",
		capability: permission.Camera,
		picker:     c.camera,
		denied:     MsgCameraDenied,
		cancelled:  MsgCameraCancelled,
		failed:     MsgCameraFailed,
	})
}

type pickFlow struct {
	operation  string
	capability permission.Capability
	picker     imagesource.Picker
	denied     string
	cancelled  string
	failed     string
}

func (c *Controller) pick(ctx context.Context, slot Slot, flow pickFlow) {
	opLogger := logging.WithOperation(c.logger, flow.operation, "").With(zap.Stringer("slot", slot))

	if !slot.valid() {
		opLogger.Error("unknown slot")
		c.notify(Notice{Kind: Error, Title: TitleError, Message: flow.failed})
		return
	}

	if !c.ensurePermission(ctx, flow.capability, opLogger) {
		c.notify(Notice{Kind: Advisory, Title: TitlePermissionDenied, Message: flow.denied})
		return
	}

	res, err := launch(ctx, flow.picker, c.pickerOpts)
	if err != nil {
		opLogger.Error("image source failed", zap.Error(err))
		c.notify(Notice{Kind: Error, Title: TitleError, Message: flow.failed})
		return
	}
	if res.Canceled {
		opLogger.Info("image source cancelled")
		c.notify(Notice{Kind: Info, Title: TitleCancelled, Message: flow.cancelled})
		return
	}
	if res.Asset == nil {
		opLogger.Error("image source returned neither an asset nor a cancellation")
		c.notify(Notice{Kind: Error, Title: TitleError, Message: flow.failed})
		return
	}

	c.mu.Lock()
	previous := c.slots[slot]
	c.slots[slot] = res.Asset
	var released []*imagesource.Asset
	if previous != nil {
		if c.loading {
			c.superseded = append(c.superseded, previous)
		} else {
			released = append(released, previous)
		}
	}
	c.mu.Unlock()

	opLogger.Info("slot filled", zap.String("uri", res.Asset.URI), zap.Bool("replaced", previous != nil))
	c.release(released, opLogger)
}

func (c *Controller) release(assets []*imagesource.Asset, opLogger *zap.Logger) {
	if c.assets == nil {
		return
	}
	for _, asset := range assets {
		if err := c.assets.Release(asset); err != nil {
			opLogger.Warn("failed to release replaced image", zap.String("uri", asset.URI), zap.Error(err))
		}
	}
}

func (c *Controller) ensurePermission(ctx context.Context, capability permission.Capability, opLogger *zap.Logger) bool {
	if c.permission(capability) == permission.Granted {
		return true
	}

	state, err := c.permissions.Request(ctx, capability)
	if err != nil {
		opLogger.Warn("permission request failed", zap.String("capability", string(capability)), zap.Error(err))
		state = permission.Denied
	}
	c.setPermission(capability, state)
	return state == permission.Granted
}

// launch runs the picker and turns a panic inside it into an error.
func launch(ctx context.Context, picker imagesource.Picker, opts imagesource.Options) (res imagesource.Result, err error) {
	if picker == nil {
		return imagesource.Result{}, errors.New("image source is not available")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image source panicked: %v", r)
		}
	}()
	return picker.Launch(ctx, opts)
}

// SubmitComparison sends both slots to the comparison endpoint. It is a no-op while a
// submission is already in flight. The loading flag is cleared on every exit path.
func (c *Controller) SubmitComparison(ctx context.Context) {
	opLogger := logging.WithOperation(c.logger, "screen.submit_comparison", "")

	c.mu.Lock()
	if c.loading {
		c.mu.Unlock()
		opLogger.Info("submission already in flight, ignoring")
		return
	}
	first, second := c.slots[SlotImage1], c.slots[SlotImage2]
	if first == nil || second == nil {
		c.mu.Unlock()
		c.notify(Notice{Kind: Advisory, Title: TitleError, Message: MsgSelectTwoImages})
		return
	}
	c.loading = true
	c.mu.Unlock()

	// submit recovers its own panics, so loading is always cleared here.
	notice := c.submit(ctx, first, second, opLogger)
	c.release(c.finishLoading(), opLogger)
	c.notify(notice)
}

// SubmitComparisonAsync runs SubmitComparison on its own goroutine. The returned
// channel is closed once the submission has settled.
func (c *Controller) SubmitComparisonAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.SubmitComparison(ctx)
	}()
	return done
}

func (c *Controller) submit(ctx context.Context, first, second *imagesource.Asset, opLogger *zap.Logger) (notice Notice) {
	defer func() {
		if r := recover(); r != nil {
			opLogger.Error("comparison panicked", zap.Any("panic", r))
			notice = Notice{Kind: Error, Title: TitleError, Message: MsgComparisonError}
		}
	}()

	req, err := compare.NewImagePairRequest(first, second)
	if err != nil {
		opLogger.Error("failed to build comparison request", zap.Error(err))
		return Notice{Kind: Error, Title: TitleError, Message: MsgComparisonError}
	}

	res, err := c.client.Compare(ctx, req)
	if err != nil {
		var statusErr *compare.StatusError
		if errors.As(err, &statusErr) {
			opLogger.Warn("comparison rejected", zap.Int("status", statusErr.StatusCode), zap.String("message", statusErr.Message))
			msg := statusErr.Message
			if msg == "" {
				msg = MsgComparisonFailed
			}
			return Notice{Kind: Error, Title: TitleError, Message: msg}
		}
		opLogger.Error("comparison request failed", zap.Error(err))
		return Notice{Kind: Error, Title: TitleError, Message: MsgComparisonError}
	}

	message := res.Message
	c.mu.Lock()
	c.result = &message
	c.mu.Unlock()

	opLogger.Info("comparison succeeded", zap.String("request_id", res.RequestID), zap.String("message", message))
	return Notice{Kind: Success, Title: TitleSuccess, Message: message}
}

// finishLoading clears the loading flag and hands back the assets that were replaced
// while the submission was reading them.
func (c *Controller) finishLoading() []*imagesource.Asset {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	superseded := c.superseded
	c.superseded = nil
	return superseded
}

func (c *Controller) notify(n Notice) {
	c.notifier.Notify(n)
}

func (c *Controller) permission(capability permission.Capability) permission.GrantState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if capability == permission.Camera {
		return c.cameraPermission
	}
	return c.galleryPermission
}

func (c *Controller) setPermission(capability permission.Capability, state permission.GrantState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if capability == permission.Camera {
		c.cameraPermission = state
	} else {
		c.galleryPermission = state
	}
}
