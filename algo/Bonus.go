package algo

import (
	"log/slog"

	"github.com/samuelfneumann/rllaunch/bonus"
)

const (
	ALEHashingType     Type = "ALEHashing"
	ZeroBonusType      Type = "ZeroBonus"
	ImageVectorizeType Type = "ImageVectorize"
	SlicingType        Type = "Slicing"
	IdentityType       Type = "Identity"
)

func init() {
	Register(ALEHashingType, ALEHashing{})
	Register(ZeroBonusType, ZeroBonus{})
	Register(ImageVectorizeType, ImageVectorize{})
	Register(SlicingType, Slicing{})
	Register(IdentityType, Identity{})
}

// Preprocessor is a Node that builds a bonus.Preprocessor
type Preprocessor interface {
	Node
	Preprocessor() bonus.Preprocessor
}

// ImageVectorize configures a bonus.ImageVectorize preprocessor
type ImageVectorize struct {
	bonus.ImageVectorize
}

func (ImageVectorize) Type() Type { return ImageVectorizeType }

func (i ImageVectorize) Validate() error {
	if i.NChannel < 1 || i.Width < 1 || i.Height < 1 {
		return invalid("validate", "image shape %vx%vx%v must be positive",
			i.NChannel, i.Height, i.Width)
	}
	if i.OutputDim() == 0 {
		return invalid("validate", "slices select no pixels")
	}
	return nil
}

func (i ImageVectorize) Preprocessor() bonus.Preprocessor {
	return i.ImageVectorize
}

// Slicing configures a bonus.Slicing preprocessor
type Slicing struct {
	bonus.Slicing
}

func (Slicing) Type() Type { return SlicingType }

func (s Slicing) Validate() error {
	if s.InputDim < 1 {
		return invalid("validate", "input dimension must be positive")
	}
	if s.OutputDim() == 0 {
		return invalid("validate", "slice selects no elements")
	}
	return nil
}

func (s Slicing) Preprocessor() bonus.Preprocessor {
	return s.Slicing
}

// Identity configures a bonus.Identity preprocessor
type Identity struct {
	bonus.Identity
}

func (Identity) Type() Type { return IdentityType }

func (i Identity) Validate() error {
	if i.Dim < 1 {
		return invalid("validate", "dimension must be positive")
	}
	return nil
}

func (i Identity) Preprocessor() bonus.Preprocessor {
	return i.Identity
}

// SimHash configures a bonus.SimHash. A zero ItemDim is filled in from
// the preprocessor output dimension.
type SimHash struct {
	ItemDim     int      `json:"item_dim"`
	DimKey      int      `json:"dim_key"`
	BucketSizes []uint64 `json:"bucket_sizes,omitempty"`

	// DisableRandomProjection hashes binary codes directly
	DisableRandomProjection bool `json:"disable_rnd_proj,omitempty"`
}

// Validate returns an error if the key dimension or a bucket size is
// not positive
func (s SimHash) Validate() error {
	if s.DimKey < 1 {
		return invalid("validate", "key dimension must be positive, got %v",
			s.DimKey)
	}
	if s.ItemDim < 0 {
		return invalid("validate", "negative item dimension")
	}
	for _, b := range s.BucketSizes {
		if b < 2 {
			return invalid("validate", "bucket sizes must exceed 1, got %v",
				s.BucketSizes)
		}
	}
	return nil
}

// ALEHashing counts states of Atari paths with a SimHash and gives
// bonuses decreasing with the counts
type ALEHashing struct {
	LogPrefix    string            `json:"log_prefix"`
	Preprocessor Typed             `json:"state_preprocessor"`
	Hash         SimHash           `json:"hash"`
	BonusForm    bonus.BonusForm   `json:"bonus_form"`
	CountTarget  bonus.CountTarget `json:"count_target"`
}

// NewALEHashing returns an ALEHashing evaluator hashing the output of
// pre into dimKey bits
func NewALEHashing(logPrefix string, pre Preprocessor, dimKey int,
	bucketSizes []uint64, form bonus.BonusForm,
	target bonus.CountTarget) ALEHashing {
	return ALEHashing{
		LogPrefix:    logPrefix,
		Preprocessor: NewTyped(pre),
		Hash: SimHash{
			ItemDim:     pre.Preprocessor().OutputDim(),
			DimKey:      dimKey,
			BucketSizes: bucketSizes,
		},
		BonusForm:   form,
		CountTarget: target,
	}
}

func (ALEHashing) Type() Type { return ALEHashingType }

func (a ALEHashing) Validate() error {
	if err := a.Preprocessor.Validate(); err != nil {
		return err
	}
	pre, ok := a.Preprocessor.Node.(Preprocessor)
	if !ok {
		return invalid("validate", "%q is not a preprocessor",
			a.Preprocessor.Type)
	}
	if err := a.Hash.Validate(); err != nil {
		return err
	}
	if dim := pre.Preprocessor().OutputDim(); a.Hash.ItemDim != 0 &&
		a.Hash.ItemDim != dim {
		return invalid("validate", "hash item dimension %v does not match "+
			"preprocessor output dimension %v", a.Hash.ItemDim, dim)
	}
	if _, err := a.BonusForm.Bonus(1); err != nil {
		return err
	}
	switch a.CountTarget {
	case bonus.Observations, bonus.Images, bonus.RAMStates:
		return nil
	}
	return invalid("validate", "unknown count target %q", a.CountTarget)
}

// Build returns the evaluator described by the node, counting into
// store, or into memory if store is nil
func (a ALEHashing) Build(seed uint64, store bonus.CountStore,
	logger *slog.Logger) (*bonus.Hashing, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	pre := a.Preprocessor.Node.(Preprocessor).Preprocessor()

	hash, err := bonus.NewSimHash(pre.OutputDim(), a.Hash.DimKey,
		a.Hash.BucketSizes, seed, store)
	if err != nil {
		return nil, err
	}
	h, err := bonus.NewHashing(hash, pre, a.BonusForm, a.CountTarget, logger)
	if err != nil {
		return nil, err
	}
	h.LogPrefix = a.LogPrefix
	return h, nil
}

// ZeroBonus gives no bonus
type ZeroBonus struct{}

func (ZeroBonus) Type() Type      { return ZeroBonusType }
func (ZeroBonus) Validate() error { return nil }

// Build returns a bonus.Zero evaluator
func (ZeroBonus) Build() bonus.Evaluator { return bonus.Zero{} }
