package atari

import (
	"fmt"

	"github.com/samuelfneumann/rllaunch/environment"
)

// ObsType determines what an Atari environment observes
type ObsType string

const (
	RAM      ObsType = "ram"
	Image    ObsType = "image"
	RAMImage ObsType = "ram+image"
)

// Default configuration values
const (
	DefaultFrameSkip int     = 4
	DefaultImgWidth  int     = 40
	DefaultImgHeight int     = 52
	DefaultDiscount  float64 = 0.99
)

// Config configures an Atari environment. Field names follow the
// keyword arguments of the training framework so that a Config can be
// serialized and handed to it unchanged.
type Config struct {
	Game    string  `json:"game"`
	ObsType ObsType `json:"obs_type"`
	Seed    uint64  `json:"seed"`

	// FrameSkip is the number of emulator frames each action is
	// repeated for
	FrameSkip int `json:"frame_skip"`

	ImgWidth     int `json:"img_width"`
	ImgHeight    int `json:"img_height"`
	NLastScreens int `json:"n_last_screens"`
	NLastRAMs    int `json:"n_last_rams"`

	DeathEndsEpisode bool    `json:"death_ends_episode"`
	DeathPenalty     float64 `json:"death_penalty"`
	AvoidLifeLost    bool    `json:"avoid_life_lost"`
	MaxStartNullops  int     `json:"max_start_nullops"`
	CorrectLuminance bool    `json:"correct_luminance"`

	RecordRAM           bool `json:"record_ram"`
	RecordImage         bool `json:"record_image"`
	RecordRGBImage      bool `json:"record_rgb_image"`
	RecordInternalState bool `json:"record_internal_state"`

	Discount float64 `json:"-"`
	ROMDir   string  `json:"-"`
}

// NewConfig returns a Config for game with the default settings
func NewConfig(game string, obsType ObsType) Config {
	return Config{Game: game, ObsType: obsType}.withDefaults()
}

// withDefaults fills zero-valued settings with their defaults
func (c Config) withDefaults() Config {
	if c.ObsType == "" {
		c.ObsType = RAM
	}
	if c.FrameSkip == 0 {
		c.FrameSkip = DefaultFrameSkip
	}
	if c.ImgWidth == 0 {
		c.ImgWidth = DefaultImgWidth
	}
	if c.ImgHeight == 0 {
		c.ImgHeight = DefaultImgHeight
	}
	if c.NLastScreens == 0 {
		c.NLastScreens = 1
	}
	if c.NLastRAMs == 0 {
		c.NLastRAMs = 1
	}
	if c.Discount == 0 {
		c.Discount = DefaultDiscount
	}
	return c
}

// Validate returns an error describing why the Config is invalid, or
// nil if the Config is valid
func (c Config) Validate() error {
	switch c.ObsType {
	case RAM, Image, RAMImage:
	default:
		return fmt.Errorf("validate: %w: observation type %q",
			environment.ErrNotImplemented, c.ObsType)
	}
	if c.FrameSkip < 1 {
		return fmt.Errorf("validate: frame skip must be positive, got %v",
			c.FrameSkip)
	}
	if c.ImgWidth < 1 || c.ImgHeight < 1 {
		return fmt.Errorf("validate: image size must be positive, got "+
			"%vx%v", c.ImgWidth, c.ImgHeight)
	}
	if c.NLastScreens < 1 || c.NLastRAMs < 1 {
		return fmt.Errorf("validate: frame history must be positive")
	}
	if c.MaxStartNullops < 0 {
		return fmt.Errorf("validate: max start nullops cannot be negative")
	}
	if c.DeathPenalty < 0 {
		return fmt.Errorf("validate: death penalty cannot be negative")
	}
	return nil
}

// ObservationLen returns the length of the flattened observation vector
// described by the Config
func (c Config) ObservationLen(ramSize int) int {
	n := 0
	if c.ObsType == RAM || c.ObsType == RAMImage {
		n += ramSize * c.NLastRAMs
	}
	if c.ObsType == Image || c.ObsType == RAMImage {
		n += c.ImgWidth * c.ImgHeight * c.NLastScreens
	}
	return n
}
