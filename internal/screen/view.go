package screen

import (
	"github.com/example/image-compare/internal/imagesource"
	"github.com/example/image-compare/internal/permission"
)

// View is a point-in-time snapshot of everything the presentation layer renders.
type View struct {
	Slots             [2]*imagesource.Asset
	CameraPermission  permission.GrantState
	GalleryPermission permission.GrantState

	// CompareVisible is true iff both slots are populated.
	CompareVisible bool
	LoaderVisible  bool
	// ResultVisible is false while loading even if a previous result exists, and
	// false for an empty result.
	ResultVisible bool
	ResultText    string
	Hint          string
}

// Slot returns the asset in s, or nil.
func (v View) Slot(s Slot) *imagesource.Asset {
	if !s.valid() {
		return nil
	}
	return v.Slots[s]
}

// View captures the current state. Assets are copied so the snapshot is immutable.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		CameraPermission:  c.cameraPermission,
		GalleryPermission: c.galleryPermission,
		LoaderVisible:     c.loading,
	}
	for i, asset := range c.slots {
		if asset != nil {
			cp := *asset
			v.Slots[i] = &cp
		}
	}
	v.CompareVisible = v.Slots[SlotImage1] != nil && v.Slots[SlotImage2] != nil
	if v.CompareVisible {
		v.Hint = MsgBothImagesShown
	}
	if c.result != nil && *c.result != "" && !c.loading {
		v.ResultVisible = true
		v.ResultText = *c.result
	}
	return v
}
