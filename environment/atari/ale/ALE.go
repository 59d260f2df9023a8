//go:build cgo && ale

// Package ale binds the native Arcade Learning Environment through its C
// interface. Build with the ale tag and with ale_c.h and libale_c on the
// include and library paths.
package ale

// #cgo LDFLAGS: -lale_c -lstdc++
// #include <stdlib.h>
// #include <stdbool.h>
// #include <ale_c.h>
import "C"

import (
	"fmt"
	"image"
	"sync"
	"unsafe"

	"github.com/samuelfneumann/rllaunch/environment/atari"
)

// ALE is an atari.Emulator backed by the native emulator
type ALE struct {
	mu  sync.Mutex
	ale *C.ALEInterface
}

// New returns a new native emulator
func New() (atari.Emulator, error) {
	ptr := C.ALE_new()
	if ptr == nil {
		return nil, fmt.Errorf("new: could not create emulator")
	}
	return &ALE{ale: ptr}, nil
}

func (a *ALE) LoadROM(path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))
	C.loadROM(a.ale, cPath)

	if C.getMinimalActionSize(a.ale) == 0 {
		return fmt.Errorf("loadROM: could not load %v", path)
	}
	return nil
}

func (a *ALE) SetInt(key string, value int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	cKey := C.CString(key)
	defer C.free(unsafe.Pointer(cKey))
	C.setInt(a.ale, cKey, C.int(value))
}

func (a *ALE) MinimalActionSet() []int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := int(C.getMinimalActionSize(a.ale))
	if n == 0 {
		return nil
	}
	buf := make([]C.int, n)
	C.getMinimalActionSet(a.ale, &buf[0])

	actions := make([]int, n)
	for i, act := range buf {
		actions[i] = int(act)
	}
	return actions
}

func (a *ALE) Act(action int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(C.act(a.ale, C.int(action)))
}

func (a *ALE) GameOver() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return bool(C.game_over(a.ale))
}

func (a *ALE) ResetGame() {
	a.mu.Lock()
	defer a.mu.Unlock()
	C.reset_game(a.ale)
}

func (a *ALE) Lives() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return int(C.lives(a.ale))
}

func (a *ALE) RAM() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()

	ram := make([]byte, int(C.getRAMSize(a.ale)))
	if len(ram) > 0 {
		C.getRAM(a.ale, (*C.uchar)(unsafe.Pointer(&ram[0])))
	}
	return ram
}

// ScreenRGB returns the current frame. The native buffer is packed RGB,
// which is expanded to RGBA.
func (a *ALE) ScreenRGB() *image.RGBA {
	a.mu.Lock()
	defer a.mu.Unlock()

	w := int(C.getScreenWidth(a.ale))
	h := int(C.getScreenHeight(a.ale))
	rgb := make([]byte, w*h*3)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if len(rgb) == 0 {
		return img
	}
	C.getScreenRGB(a.ale, (*C.uchar)(unsafe.Pointer(&rgb[0])))

	for i := 0; i < w*h; i++ {
		copy(img.Pix[i*4:i*4+3], rgb[i*3:i*3+3])
		img.Pix[i*4+3] = 255
	}
	return img
}

func (a *ALE) CloneState() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	state := C.cloneState(a.ale)
	if state == nil {
		return nil, fmt.Errorf("cloneState: could not clone state")
	}
	defer C.deleteState(state)

	n := int(C.encodeStateLen(state))
	buf := make([]byte, n)
	if n > 0 {
		C.encodeState(state, (*C.char)(unsafe.Pointer(&buf[0])), C.int(n))
	}
	return buf, nil
}

func (a *ALE) RestoreState(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("restoreState: empty state")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	state := C.decodeState((*C.char)(unsafe.Pointer(&b[0])), C.int(len(b)))
	if state == nil {
		return fmt.Errorf("restoreState: could not decode state")
	}
	defer C.deleteState(state)
	C.restoreState(a.ale, state)
	return nil
}

func (a *ALE) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.ale != nil {
		C.ALE_del(a.ale)
		a.ale = nil
	}
	return nil
}
