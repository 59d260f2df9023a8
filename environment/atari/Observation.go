package atari

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Luminance weights for converting RGB frames to grayscale
var (
	rec601 = [3]float64{0.299, 0.587, 0.114}
	rec709 = [3]float64{0.2126, 0.7152, 0.0722}
)

// normalize scales a byte in [0, 255] to [-1, 1]
func normalize(b uint8) float64 {
	return float64(b)/255.0*2.0 - 1.0
}

// NormalizeRAM scales console RAM from the byte range to [-1, 1]
func NormalizeRAM(ram []byte) []float64 {
	obs := make([]float64, len(ram))
	for i, b := range ram {
		obs[i] = normalize(b)
	}
	return obs
}

// Grayscale crops the first and last rows from an RGB frame and converts
// it to grayscale. Rec.601 luminance weights are used unless
// correctLuminance is set, in which case Rec.709 weights are used.
func Grayscale(frame *image.RGBA, correctLuminance bool) *image.Gray {
	weights := rec601
	if correctLuminance {
		weights = rec709
	}

	b := frame.Bounds()
	cropped := image.Rect(b.Min.X, b.Min.Y+1, b.Max.X, b.Max.Y-1)
	if cropped.Empty() {
		cropped = b
	}

	gray := image.NewGray(image.Rect(0, 0, cropped.Dx(), cropped.Dy()))
	for y := cropped.Min.Y; y < cropped.Max.Y; y++ {
		for x := cropped.Min.X; x < cropped.Max.X; x++ {
			i := frame.PixOffset(x, y)
			r := float64(frame.Pix[i])
			g := float64(frame.Pix[i+1])
			bl := float64(frame.Pix[i+2])
			lum := weights[0]*r + weights[1]*g + weights[2]*bl
			gray.Pix[gray.PixOffset(x-cropped.Min.X, y-cropped.Min.Y)] =
				uint8(math.Min(math.Round(lum), 255))
		}
	}
	return gray
}

// Resize scales a grayscale frame to width x height
func Resize(src *image.Gray, width, height int) *image.Gray {
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// NormalizeImage flattens a grayscale image in row-major order, scaling
// each pixel to [-1, 1]
func NormalizeImage(img *image.Gray) []float64 {
	b := img.Bounds()
	obs := make([]float64, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			obs = append(obs, normalize(img.GrayAt(x, y).Y))
		}
	}
	return obs
}

// PreprocessImage runs the full image pipeline on an RGB frame:
// crop, grayscale, resize and normalize
func PreprocessImage(frame *image.RGBA, width, height int,
	correctLuminance bool) []float64 {
	gray := Grayscale(frame, correctLuminance)
	return NormalizeImage(Resize(gray, width, height))
}

// frameHistory keeps the most recent frames of an observation stream.
// Frames are returned oldest first.
type frameHistory struct {
	frames    [][]float64
	frameSize int
	next      int
}

func newFrameHistory(n, frameSize int) *frameHistory {
	h := &frameHistory{frames: make([][]float64, n), frameSize: frameSize}
	for i := range h.frames {
		h.frames[i] = make([]float64, frameSize)
	}
	h.clear()
	return h
}

// clear fills the history with blank frames
func (h *frameHistory) clear() {
	for _, f := range h.frames {
		for i := range f {
			f[i] = -1.0
		}
	}
	h.next = 0
}

func (h *frameHistory) push(frame []float64) {
	copy(h.frames[h.next], frame)
	h.next = (h.next + 1) % len(h.frames)
}

// appendTo appends the frames, oldest first, to dst
func (h *frameHistory) appendTo(dst []float64) []float64 {
	for i := 0; i < len(h.frames); i++ {
		dst = append(dst, h.frames[(h.next+i)%len(h.frames)]...)
	}
	return dst
}
