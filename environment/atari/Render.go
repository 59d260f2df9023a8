package atari

import (
	"fmt"

	"github.com/fogleman/gg"
)

// RenderTo writes the current frame to a PNG file at path, upscaled by
// scale
func (a *Atari) RenderTo(path string, scale float64) error {
	if scale <= 0 {
		scale = 1
	}
	frame := a.emu.ScreenRGB()
	b := frame.Bounds()

	dc := gg.NewContext(int(float64(b.Dx())*scale), int(float64(b.Dy())*scale))
	dc.Scale(scale, scale)
	dc.DrawImage(frame, 0, 0)

	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("renderTo: %w", err)
	}
	return nil
}
