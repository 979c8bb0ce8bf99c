package tiffcore

import "encoding/binary"

// ReaderConfig holds every knob a Reader can be configured with via
// ReaderOption (spec.md §6). The zero value turns every knob off;
// DefaultReaderConfig supplies the permissive, auto-correcting defaults
// a casual caller expects.
type ReaderConfig struct {
	Logger Logger

	RequireValidTIFF             bool
	InterleaveResults             bool
	AutoUnpackUnusualPrecisions   bool
	AutoScaleWhenIncreasingDepth  bool
	AutoCorrectInvertedBrightness bool
	CropTilesToImageBoundaries    bool
	CachingIFDs                   bool
	MissingTilesAllowed           bool
	ByteFiller                    byte
	PreferRGBForJPEG              bool
}

// DefaultReaderConfig matches spec.md §6's defaults: permissive parsing,
// planar results re-interleaved, cropping, brightness correction and
// unusual-precision handling on, linear depth rescaling off, caching on.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{
		Logger:                        NopLogger{},
		InterleaveResults:             true,
		AutoUnpackUnusualPrecisions:   true,
		AutoScaleWhenIncreasingDepth:  false,
		AutoCorrectInvertedBrightness: true,
		CropTilesToImageBoundaries:    true,
		CachingIFDs:                   true,
		MissingTilesAllowed:           false,
		ByteFiller:                    0,
		PreferRGBForJPEG:              true,
	}
}

// ReaderOption configures a Reader at construction time.
type ReaderOption func(*ReaderConfig) error

// WithReaderLogger installs a Logger collaborator; nil is rejected.
func WithReaderLogger(l Logger) ReaderOption {
	return func(c *ReaderConfig) error {
		if l == nil {
			return ErrInvalidOption{msg: "WithReaderLogger: logger must not be nil"}
		}
		c.Logger = l
		return nil
	}
}

// WithRequireValidTIFF makes a header whose first-IFD offset is zero an
// error. Other header and IFD problems (bad byte-order mark or magic,
// corrupt entries) are returned as errors whether or not it is set; no
// best-effort recovery is attempted.
func WithRequireValidTIFF(require bool) ReaderOption {
	return func(c *ReaderConfig) error { c.RequireValidTIFF = require; return nil }
}

// WithInterleaveResults controls whether planar-separated tiles are
// re-interleaved into chunked pixel order before being returned.
func WithInterleaveResults(interleave bool) ReaderOption {
	return func(c *ReaderConfig) error { c.InterleaveResults = interleave; return nil }
}

// WithAutoUnpackUnusualPrecisions, together with
// WithAutoScaleWhenIncreasingDepth, enables linear rescaling of sub-byte
// and non-power-of-two sample widths. Such samples are bit-unpacked into
// byte-aligned containers whether or not it is set.
func WithAutoUnpackUnusualPrecisions(auto bool) ReaderOption {
	return func(c *ReaderConfig) error { c.AutoUnpackUnusualPrecisions = auto; return nil }
}

// WithAutoScaleWhenIncreasingDepth enables linear rescaling of unpacked
// samples to fill their wider container (when
// WithAutoUnpackUnusualPrecisions is also on); without it the raw value
// stays in the container's low-order bits.
func WithAutoScaleWhenIncreasingDepth(auto bool) ReaderOption {
	return func(c *ReaderConfig) error { c.AutoScaleWhenIncreasingDepth = auto; return nil }
}

// WithAutoCorrectInvertedBrightness enables brightness inversion for
// WhiteIsZero/CMYK photometric interpretations.
func WithAutoCorrectInvertedBrightness(auto bool) ReaderOption {
	return func(c *ReaderConfig) error { c.AutoCorrectInvertedBrightness = auto; return nil }
}

// WithCropTilesToImageBoundaries enables cropping boundary tiles down to
// their valid region instead of returning the full padded tile.
func WithCropTilesToImageBoundaries(crop bool) ReaderOption {
	return func(c *ReaderConfig) error { c.CropTilesToImageBoundaries = crop; return nil }
}

// WithCachingIFDs enables memoizing parsed IFDs for the lifetime of a
// Reader handle.
func WithCachingIFDs(cache bool) ReaderOption {
	return func(c *ReaderConfig) error { c.CachingIFDs = cache; return nil }
}

// WithMissingTilesAllowed tolerates zero offset/byte-count entries,
// returning ByteFiller-filled data for them instead of erroring.
func WithMissingTilesAllowed(allowed bool) ReaderOption {
	return func(c *ReaderConfig) error { c.MissingTilesAllowed = allowed; return nil }
}

// WithByteFiller sets the fill byte used for missing tiles.
func WithByteFiller(b byte) ReaderOption {
	return func(c *ReaderConfig) error { c.ByteFiller = b; return nil }
}

// WithPreferRGBForJPEG requests that JPEG-in-TIFF (Compression 6 or 7)
// tiles be returned already converted to RGB rather than YCbCr.
func WithPreferRGBForJPEG(prefer bool) ReaderOption {
	return func(c *ReaderConfig) error { c.PreferRGBForJPEG = prefer; return nil }
}

// WriterConfig holds every knob a Writer can be configured with via
// WriterOption (spec.md §6).
type WriterConfig struct {
	Logger Logger

	ByteOrder              binary.ByteOrder
	BigTIFF                bool
	WritingForwardAllowed  bool
	AutoInterleaveSource   bool
	SmartIFDCorrection     bool
	PreferRGBForJPEG       bool
	MissingTilesAllowed    bool
	ByteFiller             byte
	Quality                int
}

// DefaultWriterConfig matches spec.md §6's defaults: big-endian, classic
// (non-BigTIFF), forward writing allowed, smart correction on.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		Logger:                NopLogger{},
		ByteOrder:             binary.BigEndian,
		BigTIFF:               false,
		WritingForwardAllowed: true,
		AutoInterleaveSource:  true,
		SmartIFDCorrection:    true,
		PreferRGBForJPEG:      true,
		MissingTilesAllowed:   false,
		ByteFiller:            0,
		Quality:               75,
	}
}

// WriterOption configures a Writer at construction time.
type WriterOption func(*WriterConfig) error

// WithWriterLogger installs a Logger collaborator; nil is rejected.
func WithWriterLogger(l Logger) WriterOption {
	return func(c *WriterConfig) error {
		if l == nil {
			return ErrInvalidOption{msg: "WithWriterLogger: logger must not be nil"}
		}
		c.Logger = l
		return nil
	}
}

// WithByteOrder fixes the file's byte order; only BigEndian and
// LittleEndian are valid.
func WithByteOrder(order binary.ByteOrder) WriterOption {
	return func(c *WriterConfig) error {
		if order != binary.BigEndian && order != binary.LittleEndian {
			return ErrInvalidOption{msg: "WithByteOrder: order must be binary.BigEndian or binary.LittleEndian"}
		}
		c.ByteOrder = order
		return nil
	}
}

// WithBigTIFF selects BigTIFF (8-byte offsets) from the start. A classic
// file is never upgraded automatically: a write that would pass the
// 32-bit offset range fails with TooLargeImage.
func WithBigTIFF(big bool) WriterOption {
	return func(c *WriterConfig) error { c.BigTIFF = big; return nil }
}

// WithWritingForwardAllowed sets whether tiles may be appended as they
// are written, with IFDs emitted at Finish. That is the only write mode
// implemented: NewWriter rejects false with an Unsupported error.
func WithWritingForwardAllowed(allowed bool) WriterOption {
	return func(c *WriterConfig) error { c.WritingForwardAllowed = allowed; return nil }
}

// WithAutoInterleaveSource tells the Writer that incoming pixel data is
// chunked and must be de-interleaved before packing, when the target
// PlanarConfiguration is Separate.
func WithAutoInterleaveSource(auto bool) WriterOption {
	return func(c *WriterConfig) error { c.AutoInterleaveSource = auto; return nil }
}

// WithSmartIFDCorrection enables photometric inference and YCbCr
// substitution for JPEG-compressed RGB. BitsPerSample is left as the
// caller set it: unusual bit depths are not promoted.
func WithSmartIFDCorrection(smart bool) WriterOption {
	return func(c *WriterConfig) error { c.SmartIFDCorrection = smart; return nil }
}

// WithWriterPreferRGBForJPEG mirrors WithPreferRGBForJPEG on the write
// side: store JPEG tiles with an RGB photometric tag.
func WithWriterPreferRGBForJPEG(prefer bool) WriterOption {
	return func(c *WriterConfig) error { c.PreferRGBForJPEG = prefer; return nil }
}

// WithWriterMissingTilesAllowed permits Finish to materialize filler
// tiles for any slot that was never written.
func WithWriterMissingTilesAllowed(allowed bool) WriterOption {
	return func(c *WriterConfig) error { c.MissingTilesAllowed = allowed; return nil }
}

// WithWriterByteFiller sets the fill byte used for missing-tile
// materialization.
func WithWriterByteFiller(b byte) WriterOption {
	return func(c *WriterConfig) error { c.ByteFiller = b; return nil }
}

// WithQuality sets a 1-100 quality knob passed through to codecs that use
// one (e.g. JPEG); out of range values are rejected.
func WithQuality(q int) WriterOption {
	return func(c *WriterConfig) error {
		if q < 1 || q > 100 {
			return ErrInvalidOption{msg: "WithQuality: quality must be in [1, 100]"}
		}
		c.Quality = q
		return nil
	}
}
