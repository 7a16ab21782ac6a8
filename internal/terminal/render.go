package terminal

import (
	"fmt"
	"strings"

	"github.com/example/image-compare/internal/screen"
)

func (s *Session) render(v screen.View) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprint(s.out, Render(v))
}

// Render formats a view snapshot as text.
func Render(v screen.View) string {
	var b strings.Builder

	b.WriteString("\n== Compare Images ==\n")
	for _, slot := range []screen.Slot{screen.SlotImage1, screen.SlotImage2} {
		asset := v.Slot(slot)
		if asset == nil {
			fmt.Fprintf(&b, "%s: (empty)\n", slot)
			continue
		}
		fmt.Fprintf(&b, "%s: %s (%dx%d) %s\n", slot, asset.Name, asset.Width, asset.Height, asset.URI)
	}
	fmt.Fprintf(&b, "permissions: camera=%s gallery=%s\n", v.CameraPermission, v.GalleryPermission)

	if v.Hint != "" {
		b.WriteString(v.Hint + "\n")
	}
	if v.LoaderVisible {
		b.WriteString(loaderLine + "\n")
	}
	if v.ResultVisible {
		fmt.Fprintf(&b, "Result: %s\n", v.ResultText)
	}

	b.WriteString("[1] gallery  [2] camera")
	if v.CompareVisible && !v.LoaderVisible {
		b.WriteString("  [c] compare")
	}
	b.WriteString("  [h] help  [q] quit\n")
	return b.String()
}
