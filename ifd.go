package tiffcore

import (
	"sort"
)

// Well-known tag numbers this core understands (spec.md §3/§6).
const (
	TagSubfileType       uint16 = 254
	TagImageWidth        uint16 = 256
	TagImageLength       uint16 = 257
	TagBitsPerSample     uint16 = 258
	TagCompression       uint16 = 259
	TagPhotometric       uint16 = 262
	TagFillOrder         uint16 = 266
	TagStripOffsets      uint16 = 273
	TagSamplesPerPixel   uint16 = 277
	TagRowsPerStrip      uint16 = 278
	TagStripByteCounts   uint16 = 279
	TagPlanarConfig      uint16 = 284
	TagPredictor         uint16 = 317
	TagColorMap          uint16 = 320
	TagTileWidth         uint16 = 322
	TagTileLength        uint16 = 323
	TagTileOffsets       uint16 = 324
	TagTileByteCounts    uint16 = 325
	TagSubIFDs           uint16 = 330
	TagExtraSamples      uint16 = 338
	TagSampleFormat      uint16 = 339
	TagJPEGTables        uint16 = 347
	TagYCbCrCoefficients uint16 = 529
	TagYCbCrSubSampling  uint16 = 530
	TagYCbCrPositioning  uint16 = 531
	TagReferenceBlackWhite uint16 = 532
)

// Compression codes (spec.md §3).
const (
	CompressionNone      = 1
	CompressionCCITT1D   = 2
	CompressionGroup3Fax = 3
	CompressionGroup4Fax = 4
	CompressionLZW       = 5
	CompressionOldJPEG   = 6
	CompressionJPEG      = 7
	CompressionDeflate   = 8
	CompressionPackBits  = 32773
	CompressionDeflateAlt = 32946
)

// Photometric interpretations (spec.md §3).
const (
	PhotometricWhiteIsZero     = 0
	PhotometricBlackIsZero     = 1
	PhotometricRGB             = 2
	PhotometricPalette         = 3
	PhotometricTransparencyMask = 4
	PhotometricCMYK            = 5
	PhotometricYCbCr           = 6
	PhotometricCIELab          = 8
)

// Planar configuration (spec.md §3).
const (
	PlanarChunked  = 1
	PlanarSeparate = 2
)

// Predictor kinds (spec.md §3).
const (
	PredictorNone          = 1
	PredictorHorizontal    = 2
	PredictorFloatingPoint = 3
)

// Fill order (spec.md §3).
const (
	FillOrderNormal   = 1
	FillOrderReversed = 2
)

// Sample format (spec.md §3).
const (
	SampleFormatUint        = 1
	SampleFormatInt         = 2
	SampleFormatFloat       = 3
	SampleFormatVoid        = 4
	SampleFormatComplexInt  = 5
	SampleFormatComplexFloat = 6
)

// SampleType is the derived, promoted in-memory representation of a
// channel's samples (spec.md §3).
type SampleType int

const (
	SampleBit SampleType = iota
	SampleInt8
	SampleUint8
	SampleInt16
	SampleUint16
	SampleInt32
	SampleUint32
	SampleFloat32
	SampleFloat64
)

// MaxBitsPerSample and MaxNumberOfChannels are the writer-enforced upper
// bounds named in spec.md §3.
const (
	MaxBitsPerSample    = 256
	MaxNumberOfChannels = 128
)

type ifdState int

const (
	stateLoose ifdState = iota
	stateFrozen
	stateEmittedPending
	stateEmittedComplete
)

// IFD is the tag→value dictionary describing one image, plus the derived
// metadata and positioning state of spec.md §3/§4.3/§4.11.
type IFD struct {
	bigTiff bool

	// Known, frequently-accessed fields, held as typed values the way
	// the teacher's cog.go IFD struct does, instead of round-tripping
	// through the generic map on every access.
	SubfileType     uint32
	ImageWidth      uint64
	ImageHeight     uint64
	BitsPerSample   []uint16
	Compression     uint16
	Photometric     uint16
	FillOrder       uint16
	SamplesPerPixel uint16
	RowsPerStrip    uint32
	PlanarConfig    uint16
	Predictor       uint16
	ColorMap        []uint16
	TileWidth       uint32
	TileLength      uint32
	ExtraSamples    []uint16
	SampleFormat    []uint16
	JPEGTables      []byte

	StripOffsets    []uint64
	StripByteCounts []uint64
	TileOffsets     []uint64
	TileByteCounts  []uint64

	YCbCrSubsamplingX, YCbCrSubsamplingY int
	YCbCrCoefficients                   [3]Rational
	YCbCrPositioning                    uint16
	ReferenceBlackWhite                 []Rational

	SubIFDOffsets []uint64
	SubIFDs       []*IFD

	// extra carries every tag this core doesn't special-case (GeoTIFF
	// georeferencing tags, ImageDescription, DateTime, ...), kept
	// opaque so a read→write round trip never drops or reinterprets
	// them. Supplemented feature, see SPEC_FULL.md §4.
	extra map[uint16]TagValue

	state ifdState

	fileOffsetForReading int64
	fileOffsetForWriting int64
	nextIFDOffset         uint64
	nextIFDOffsetFilePos  int64
	subIFDType            uint16

	tileMap *TileMap
}

// NewIFD creates an empty, Loose IFD ready for a writer to populate.
func NewIFD(bigTiff bool) *IFD {
	return &IFD{
		bigTiff:          bigTiff,
		Compression:      CompressionNone,
		PlanarConfig:     PlanarChunked,
		Predictor:        PredictorNone,
		FillOrder:        FillOrderNormal,
		YCbCrPositioning: 1,
		extra:            map[uint16]TagValue{},
	}
}

// SetExtra stores an opaque, unrecognized tag verbatim.
func (ifd *IFD) SetExtra(tag uint16, v TagValue) {
	if ifd.extra == nil {
		ifd.extra = map[uint16]TagValue{}
	}
	ifd.extra[tag] = v
}

// Extra retrieves a previously stored opaque tag.
func (ifd *IFD) Extra(tag uint16) (TagValue, bool) {
	v, ok := ifd.extra[tag]
	return v, ok
}

// IsTiled reports whether this IFD uses tile geometry rather than strips.
func (ifd *IFD) IsTiled() bool {
	return ifd.TileWidth > 0 && ifd.TileLength > 0
}

// EffectiveTileWidth returns the tiling unit's width: TileWidth if tiled,
// else the full image width (a strip is a full-width tile, per the
// glossary).
func (ifd *IFD) EffectiveTileWidth() uint64 {
	if ifd.IsTiled() {
		return uint64(ifd.TileWidth)
	}
	return ifd.ImageWidth
}

// EffectiveTileLength returns the tiling unit's height: TileLength if
// tiled, else RowsPerStrip (defaulting to the whole image if unset).
func (ifd *IFD) EffectiveTileLength() uint64 {
	if ifd.IsTiled() {
		return uint64(ifd.TileLength)
	}
	if ifd.RowsPerStrip > 0 {
		return uint64(ifd.RowsPerStrip)
	}
	return ifd.ImageHeight
}

func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// NTilesX is the number of tile/strip columns.
func (ifd *IFD) NTilesX() uint64 {
	return ceilDiv(ifd.ImageWidth, ifd.EffectiveTileWidth())
}

// NTilesY is the number of tile/strip rows.
func (ifd *IFD) NTilesY() uint64 {
	return ceilDiv(ifd.ImageHeight, ifd.EffectiveTileLength())
}

// NPlanes is 1 for chunked images, SamplesPerPixel for planar-separated
// ones (spec.md §3 TileIndex.plane).
func (ifd *IFD) NPlanes() uint64 {
	if ifd.PlanarConfig == PlanarSeparate {
		return uint64(ifd.SamplesPerPixel)
	}
	return 1
}

// TileLinearIndex computes the position of a TileIndex inside the
// offsets/byte-counts arrays, per spec.md §4.9:
// plane*tiles_per_plane + y*tile_count_x + x.
func (ifd *IFD) TileLinearIndex(idx TileIndex) uint64 {
	tilesPerPlane := ifd.NTilesX() * ifd.NTilesY()
	return uint64(idx.Plane)*tilesPerPlane + uint64(idx.Y)*ifd.NTilesX() + uint64(idx.X)
}

// BytesPerSample returns B = ceil(bits/8), validated to be identical for
// every channel (spec.md §3's hard invariant for this core).
func (ifd *IFD) BytesPerSample() (uint64, error) {
	if len(ifd.BitsPerSample) == 0 {
		return 0, errFormatCorruptf("IFD.BytesPerSample", "no BitsPerSample tag")
	}
	b := ceilDiv(uint64(ifd.BitsPerSample[0]), 8)
	for _, bits := range ifd.BitsPerSample[1:] {
		if ceilDiv(uint64(bits), 8) != b {
			return 0, errUnsupportedf("IFD.BytesPerSample", "non-uniform bytes-per-sample across channels: %v", ifd.BitsPerSample)
		}
	}
	return b, nil
}

// AlignedBitDepth returns the promoted, byte-aligned bit width used for
// an unpacked channel: B*8, except the pure-binary case (one channel,
// one bit), which returns 1. Per spec.md §8/§9 this contract returns
// BITS, not bytes (a resolved Open Question).
func (ifd *IFD) AlignedBitDepth() (uint64, error) {
	if ifd.SamplesPerPixel == 1 && len(ifd.BitsPerSample) == 1 && ifd.BitsPerSample[0] == 1 {
		return 1, nil
	}
	b, err := ifd.BytesPerSample()
	if err != nil {
		return 0, err
	}
	return b * 8, nil
}

// TileBufferRowBytes returns the byte width of one row of a tile's
// aligned pixel buffer for width columns and samplesPerPixel channels,
// honoring the pure-binary bit-packed fast path (spec.md §4.6/§4.7):
// when pureBinary, a row is a byte-packed bitmap of ceil(width/8) bytes
// rather than one aligned byte-per-sample value per column.
func TileBufferRowBytes(width, samplesPerPixel int, pureBinary bool, alignedBytesPerSample int) int {
	if pureBinary {
		return (width*samplesPerPixel + 7) / 8
	}
	return width * samplesPerPixel * alignedBytesPerSample
}

// SampleFormatUniform returns the single sample format shared by every
// channel, validated uniform (spec.md §3).
func (ifd *IFD) SampleFormatUniform() (uint16, error) {
	if len(ifd.SampleFormat) == 0 {
		return SampleFormatUint, nil
	}
	sf := ifd.SampleFormat[0]
	for _, f := range ifd.SampleFormat[1:] {
		if f != sf {
			return 0, errUnsupportedf("IFD.SampleFormatUniform", "non-uniform SampleFormat: %v", ifd.SampleFormat)
		}
	}
	return sf, nil
}

// DeriveSampleType computes the promoted SampleType for this IFD's
// channels, per spec.md §3.
func (ifd *IFD) DeriveSampleType() (SampleType, error) {
	if ifd.SamplesPerPixel == 1 && len(ifd.BitsPerSample) == 1 && ifd.BitsPerSample[0] == 1 {
		return SampleBit, nil
	}
	sf, err := ifd.SampleFormatUniform()
	if err != nil {
		return 0, err
	}
	aligned, err := ifd.AlignedBitDepth()
	if err != nil {
		return 0, err
	}
	switch sf {
	case SampleFormatFloat:
		if aligned <= 32 {
			return SampleFloat32, nil
		}
		return SampleFloat64, nil
	case SampleFormatInt:
		switch aligned {
		case 8:
			return SampleInt8, nil
		case 16:
			return SampleInt16, nil
		default:
			return SampleInt32, nil
		}
	default: // UINT, VOID, COMPLEX_* treated as unsigned containers
		switch aligned {
		case 8:
			return SampleUint8, nil
		case 16:
			return SampleUint16, nil
		default:
			return SampleUint32, nil
		}
	}
}

// Validate checks the invariants of spec.md §8 that must hold for any
// complete IFD: offsets/byte-counts array length, positive dimensions,
// bits-per-sample range, samples-per-pixel range. Tile dimensions are
// not checked against a multiple of 16, here or in writer.go.
func (ifd *IFD) Validate() error {
	if ifd.ImageWidth == 0 || ifd.ImageHeight == 0 {
		return errFormatCorruptf("IFD.Validate", "image dimensions must be positive, got %dx%d", ifd.ImageWidth, ifd.ImageHeight)
	}
	if ifd.ImageWidth > (1<<31)-1 || ifd.ImageHeight > (1<<31)-1 {
		return errFormatCorruptf("IFD.Validate", "image dimensions exceed 2^31-1")
	}
	if ifd.SamplesPerPixel == 0 || int(ifd.SamplesPerPixel) > MaxNumberOfChannels {
		return errFormatCorruptf("IFD.Validate", "samples per pixel %d out of range", ifd.SamplesPerPixel)
	}
	for _, b := range ifd.BitsPerSample {
		if b == 0 || int(b) > MaxBitsPerSample {
			return errFormatCorruptf("IFD.Validate", "bits per sample %d out of range", b)
		}
	}
	if _, err := ifd.BytesPerSample(); err != nil {
		return err
	}
	if ifd.IsTiled() != (ifd.TileWidth > 0) || ifd.IsTiled() != (ifd.TileLength > 0) {
		return errFormatCorruptf("IFD.Validate", "TileWidth/TileLength must both be present or both absent")
	}

	expected := ifd.NTilesX() * ifd.NTilesY() * ifd.NPlanes()
	var offs, counts []uint64
	if ifd.IsTiled() {
		offs, counts = ifd.TileOffsets, ifd.TileByteCounts
	} else {
		offs, counts = ifd.StripOffsets, ifd.StripByteCounts
	}
	if uint64(len(offs)) != expected || uint64(len(counts)) != expected {
		return errFormatCorruptf("IFD.Validate", "tile/strip offsets(%d)/byte-counts(%d) length mismatch, want %d", len(offs), len(counts), expected)
	}
	return nil
}

// freeze transitions Loose→Frozen. After this, only UpdateImageDimensions
// and UpdateDataPositioning may mutate the IFD (spec.md §4.11).
func (ifd *IFD) freeze() error {
	if ifd.state != stateLoose {
		return errFormatCorruptf("IFD.freeze", "cannot freeze from state %d", ifd.state)
	}
	ifd.state = stateFrozen
	return nil
}

// UpdateImageDimensions is one of the two mutations permitted while
// Frozen (spec.md §4.11).
func (ifd *IFD) UpdateImageDimensions(width, height uint64) error {
	if ifd.state != stateFrozen && ifd.state != stateLoose {
		return errFormatCorruptf("IFD.UpdateImageDimensions", "cannot mutate dimensions in state %d", ifd.state)
	}
	ifd.ImageWidth, ifd.ImageHeight = width, height
	ifd.invalidateCache()
	return nil
}

// UpdateDataPositioning is the other mutation permitted while Frozen.
func (ifd *IFD) UpdateDataPositioning(offsets, byteCounts []uint64) error {
	if ifd.state != stateFrozen && ifd.state != stateLoose {
		return errFormatCorruptf("IFD.UpdateDataPositioning", "cannot mutate positioning in state %d", ifd.state)
	}
	if ifd.IsTiled() {
		ifd.TileOffsets, ifd.TileByteCounts = offsets, byteCounts
	} else {
		ifd.StripOffsets, ifd.StripByteCounts = offsets, byteCounts
	}
	ifd.invalidateCache()
	return nil
}

// invalidateCache clears any memoized derived state. tileMap caches its
// own tile_offsets/tile_byte_counts view and must be invalidated here,
// per spec.md §5 ("memoization is invalidated whenever a tag that would
// affect it is mutated").
func (ifd *IFD) invalidateCache() {
	if ifd.tileMap != nil {
		ifd.tileMap.invalidate()
	}
}

// markEmittedPending records that the writer has placed this IFD at pos
// in the file (spec.md §4.11).
func (ifd *IFD) markEmittedPending(pos int64, nextSlotPos int64) {
	ifd.state = stateEmittedPending
	ifd.fileOffsetForWriting = pos
	ifd.nextIFDOffsetFilePos = nextSlotPos
}

// markEmittedComplete records that the writer has patched back the final
// offsets/byte-counts for this IFD's tiles.
func (ifd *IFD) markEmittedComplete() {
	ifd.state = stateEmittedComplete
}

// sortedKnownEntries returns the tag values this IFD will emit, sorted
// ascending by tag (spec.md §4.3 requires ascending-tag-order emission).
func (ifd *IFD) sortedKnownEntries() ([]uint16, map[uint16]TagValue) {
	m := map[uint16]TagValue{}

	putU32 := func(tag uint16, v uint32) {
		if v == 0 {
			return
		}
		m[tag] = scalarU32Value(v, ifd.bigTiff, tag)
	}
	putU16 := func(tag uint16, v uint16) {
		if v == 0 {
			return
		}
		m[tag] = TagValue{Type: TShort, Shorts: []uint16{v}}
	}

	if ifd.SubfileType != 0 {
		m[TagSubfileType] = TagValue{Type: TLong, Longs: []uint32{ifd.SubfileType}}
	}
	putU32(TagImageWidth, uint32(ifd.ImageWidth))
	putU32(TagImageLength, uint32(ifd.ImageHeight))
	if len(ifd.BitsPerSample) > 0 {
		m[TagBitsPerSample] = TagValue{Type: TShort, Shorts: ifd.BitsPerSample}
	}
	putU16(TagCompression, ifd.Compression)
	m[TagPhotometric] = TagValue{Type: TShort, Shorts: []uint16{ifd.Photometric}}
	if ifd.FillOrder != 0 && ifd.FillOrder != FillOrderNormal {
		putU16(TagFillOrder, ifd.FillOrder)
	}
	putU16(TagSamplesPerPixel, ifd.SamplesPerPixel)
	if !ifd.IsTiled() && ifd.RowsPerStrip > 0 {
		putU32(TagRowsPerStrip, ifd.RowsPerStrip)
	}
	if ifd.PlanarConfig != 0 {
		putU16(TagPlanarConfig, ifd.PlanarConfig)
	}
	if ifd.Predictor != 0 && ifd.Predictor != PredictorNone {
		putU16(TagPredictor, ifd.Predictor)
	}
	if len(ifd.ColorMap) > 0 {
		m[TagColorMap] = TagValue{Type: TShort, Shorts: ifd.ColorMap}
	}
	if ifd.IsTiled() {
		putU16(TagTileWidth, uint16(ifd.TileWidth))
		putU16(TagTileLength, uint16(ifd.TileLength))
		m[TagTileOffsets] = offsetsValue(ifd.TileOffsets, ifd.bigTiff)
		m[TagTileByteCounts] = offsetsValue(ifd.TileByteCounts, ifd.bigTiff)
	} else {
		m[TagStripOffsets] = offsetsValue(ifd.StripOffsets, ifd.bigTiff)
		m[TagStripByteCounts] = offsetsValue(ifd.StripByteCounts, ifd.bigTiff)
	}
	if len(ifd.ExtraSamples) > 0 {
		m[TagExtraSamples] = TagValue{Type: TShort, Shorts: ifd.ExtraSamples}
	}
	if len(ifd.SampleFormat) > 0 {
		m[TagSampleFormat] = TagValue{Type: TShort, Shorts: ifd.SampleFormat}
	}
	if len(ifd.JPEGTables) > 0 {
		m[TagJPEGTables] = TagValue{Type: TUndefined, Undefined: ifd.JPEGTables}
	}
	if ifd.Photometric == PhotometricYCbCr {
		if ifd.YCbCrSubsamplingX != 0 {
			m[TagYCbCrSubSampling] = TagValue{Type: TShort, Shorts: []uint16{uint16(ifd.YCbCrSubsamplingX), uint16(ifd.YCbCrSubsamplingY)}}
		}
		if ifd.YCbCrCoefficients != [3]Rational{} {
			m[TagYCbCrCoefficients] = TagValue{Type: TRational, Rationals: ifd.YCbCrCoefficients[:]}
		}
		if ifd.YCbCrPositioning != 0 {
			putU16(TagYCbCrPositioning, ifd.YCbCrPositioning)
		}
		if len(ifd.ReferenceBlackWhite) > 0 {
			m[TagReferenceBlackWhite] = TagValue{Type: TRational, Rationals: ifd.ReferenceBlackWhite}
		}
	}
	if len(ifd.SubIFDOffsets) > 0 {
		m[TagSubIFDs] = offsetsValue(ifd.SubIFDOffsets, ifd.bigTiff)
	}

	for tag, v := range ifd.extra {
		m[tag] = v
	}

	tags := make([]uint16, 0, len(m))
	for tag := range m {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags, m
}

// scalarU32Value writes a dimension-like scalar as LONG even in
// BigTIFF mode, per spec.md §4.3 ("a single-element u32 array must be
// written as a scalar LONG, not LONG8, in BigTIFF, for compatibility
// with existing viewers").
func scalarU32Value(v uint32, bigTiff bool, tag uint16) TagValue {
	return TagValue{Type: TLong, Longs: []uint32{v}}
}

// offsetsValue picks LONG vs LONG8 for a tile/strip offsets-or-counts
// array depending on whether every value fits in 32 bits and whether
// BigTIFF is active, mirroring the teacher's NewTileOffsets32/64 split
// in cog.go.
func offsetsValue(vals []uint64, bigTiff bool) TagValue {
	if !bigTiff {
		out := make([]uint32, len(vals))
		for i, v := range vals {
			out[i] = uint32(v)
		}
		return TagValue{Type: TLong, Longs: out}
	}
	fitsU32 := true
	for _, v := range vals {
		if v > 0xFFFFFFFF {
			fitsU32 = false
			break
		}
	}
	if fitsU32 {
		out := make([]uint32, len(vals))
		for i, v := range vals {
			out[i] = uint32(v)
		}
		return TagValue{Type: TLong, Longs: out}
	}
	return TagValue{Type: TLong8, Long8s: append([]uint64(nil), vals...)}
}

// ParseIFD reads one directory at offset and returns the populated IFD
// plus the file offset of the next IFD in the chain (0 if this is the
// last one), per spec.md §4.3. It does not follow SubIFDs or the next-
// IFD link itself; callers (reader.go) own chain-walking and cycle
// detection.
func ParseIFD(s ByteStream, offset int64, bigTiff bool) (ifd *IFD, nextOffset uint64, err error) {
	if _, err := s.Seek(offset, 0); err != nil {
		return nil, 0, errIO("ParseIFD", err)
	}

	var count uint64
	if bigTiff {
		count, err = s.ReadU64()
	} else {
		var c16 uint16
		c16, err = s.ReadU16()
		count = uint64(c16)
	}
	if err != nil {
		return nil, 0, errIO("ParseIFD", err)
	}
	if count == 0 || count > 1000000 {
		return nil, 0, errFormatCorruptf("ParseIFD", "directory entry count %d out of range", count)
	}

	ifd = NewIFD(bigTiff)
	ifd.fileOffsetForReading = offset
	seen := map[uint16]bool{}

	for i := uint64(0); i < count; i++ {
		tag, typ, elemCount, raw, err := readRawEntry(s, bigTiff)
		if err != nil {
			return nil, 0, errIO("ParseIFD", err)
		}
		if seen[tag] {
			// Duplicate tag: first occurrence wins, per spec.md §4.3.
			continue
		}
		seen[tag] = true

		v, err := decodeEntryValue(s, typ, elemCount, raw, bigTiff)
		if err != nil {
			return nil, 0, err
		}
		if err := ifd.applyParsedTag(tag, v); err != nil {
			return nil, 0, err
		}
	}

	if bigTiff {
		nextOffset, err = s.ReadU64()
	} else {
		var n32 uint32
		n32, err = s.ReadU32()
		nextOffset = uint64(n32)
	}
	if err != nil {
		return nil, 0, errIO("ParseIFD", err)
	}

	if err := ifd.freeze(); err != nil {
		return nil, 0, err
	}
	return ifd, nextOffset, nil
}

// applyParsedTag routes one decoded tag/value pair into the IFD's typed
// fields, falling back to the opaque extra map for anything this core
// doesn't special-case.
func (ifd *IFD) applyParsedTag(tag uint16, v TagValue) error {
	asUint := func() uint64 {
		n, _ := v.AsUint()
		return n
	}
	asUintSlice := func() []uint64 {
		s, _ := v.AsUintSlice()
		return s
	}
	asU16Slice := func() []uint16 {
		wide, _ := v.AsUintSlice()
		out := make([]uint16, len(wide))
		for i, w := range wide {
			out[i] = uint16(w)
		}
		return out
	}

	switch tag {
	case TagSubfileType:
		ifd.SubfileType = uint32(asUint())
	case TagImageWidth:
		ifd.ImageWidth = asUint()
	case TagImageLength:
		ifd.ImageHeight = asUint()
	case TagBitsPerSample:
		ifd.BitsPerSample = asU16Slice()
	case TagCompression:
		ifd.Compression = uint16(asUint())
	case TagPhotometric:
		ifd.Photometric = uint16(asUint())
	case TagFillOrder:
		ifd.FillOrder = uint16(asUint())
	case TagSamplesPerPixel:
		ifd.SamplesPerPixel = uint16(asUint())
	case TagRowsPerStrip:
		ifd.RowsPerStrip = uint32(asUint())
	case TagPlanarConfig:
		ifd.PlanarConfig = uint16(asUint())
	case TagPredictor:
		ifd.Predictor = uint16(asUint())
	case TagColorMap:
		ifd.ColorMap = asU16Slice()
	case TagTileWidth:
		ifd.TileWidth = uint32(asUint())
	case TagTileLength:
		ifd.TileLength = uint32(asUint())
	case TagStripOffsets:
		ifd.StripOffsets = asUintSlice()
	case TagStripByteCounts:
		ifd.StripByteCounts = asUintSlice()
	case TagTileOffsets:
		ifd.TileOffsets = asUintSlice()
	case TagTileByteCounts:
		ifd.TileByteCounts = asUintSlice()
	case TagSubIFDs:
		ifd.SubIFDOffsets = asUintSlice()
	case TagExtraSamples:
		ifd.ExtraSamples = asU16Slice()
	case TagSampleFormat:
		ifd.SampleFormat = asU16Slice()
	case TagJPEGTables:
		ifd.JPEGTables = append([]byte(nil), v.Undefined...)
	case TagYCbCrSubSampling:
		wide := asU16Slice()
		if len(wide) == 2 {
			ifd.YCbCrSubsamplingX, ifd.YCbCrSubsamplingY = int(wide[0]), int(wide[1])
		}
	case TagYCbCrCoefficients:
		if len(v.Rationals) == 3 {
			copy(ifd.YCbCrCoefficients[:], v.Rationals)
		}
	case TagYCbCrPositioning:
		ifd.YCbCrPositioning = uint16(asUint())
	case TagReferenceBlackWhite:
		ifd.ReferenceBlackWhite = append([]Rational(nil), v.Rationals...)
	default:
		ifd.SetExtra(tag, v)
	}
	return nil
}

// Emit writes this IFD's directory (entry count, sorted entries, and a
// next-IFD placeholder) at the stream's current position, spilling
// overflow values immediately after the directory, exactly as the
// teacher's writeIFD does in cog.go. It returns the file position of the
// next-IFD slot so the writer can patch it once the following IFD's
// offset is known.
func (ifd *IFD) Emit(s ByteStream) (nextIFDSlotPos int64, err error) {
	if ifd.state != stateLoose && ifd.state != stateFrozen {
		return 0, errFormatCorruptf("IFD.Emit", "cannot emit from state %d", ifd.state)
	}
	if err := ifd.Validate(); err != nil {
		return 0, err
	}

	tags, values := ifd.sortedKnownEntries()

	startPos, err := s.Offset()
	if err != nil {
		return 0, errIO("IFD.Emit", err)
	}

	if ifd.bigTiff {
		err = s.WriteU64(uint64(len(tags)))
	} else {
		err = s.WriteU16(uint16(len(tags)))
	}
	if err != nil {
		return 0, errIO("IFD.Emit", err)
	}

	dirBytes := entrySize(ifd.bigTiff) * uint64(len(tags))
	nextSlotPos := startPos + int64(headerCountWidth(ifd.bigTiff)) + int64(dirBytes)
	extraStart := uint64(nextSlotPos) + uint64(inlineCapacity(ifd.bigTiff))
	if extraStart%2 != 0 {
		extraStart++
	}
	extra := &extraBuffer{offset: extraStart}

	for _, tag := range tags {
		if err := writeEntry(s, tag, values[tag], ifd.bigTiff, extra); err != nil {
			return 0, errIO("IFD.Emit", err)
		}
	}

	slotPos, err := s.Offset()
	if err != nil {
		return 0, errIO("IFD.Emit", err)
	}
	if ifd.bigTiff {
		err = s.WriteU64(0)
	} else {
		err = s.WriteU32(0)
	}
	if err != nil {
		return 0, errIO("IFD.Emit", err)
	}

	if len(extra.buf) > 0 {
		if _, err := s.Seek(int64(extra.offset), 0); err != nil {
			return 0, errIO("IFD.Emit", err)
		}
		if err := s.WriteExact(extra.buf); err != nil {
			return 0, errIO("IFD.Emit", err)
		}
	}

	ifd.markEmittedPending(startPos, slotPos)
	return slotPos, nil
}

// headerCountWidth is the width, in bytes, of the leading entry-count
// field: 2 for classic TIFF, 8 for BigTIFF.
func headerCountWidth(bigTiff bool) uint64 {
	if bigTiff {
		return 8
	}
	return 2
}

// PatchNextIFDOffset rewrites the next-IFD pointer this IFD reserved
// during Emit, once the following IFD's (or terminal zero) offset is
// known. This is how the writer chains IFDs without needing to know
// every offset up front.
func (ifd *IFD) PatchNextIFDOffset(s ByteStream, offset uint64) error {
	if ifd.state != stateEmittedPending && ifd.state != stateEmittedComplete {
		return errFormatCorruptf("IFD.PatchNextIFDOffset", "cannot patch next-IFD offset from state %d", ifd.state)
	}
	cur, err := s.Offset()
	if err != nil {
		return errIO("IFD.PatchNextIFDOffset", err)
	}
	defer s.Seek(cur, 0)

	if _, err := s.Seek(ifd.nextIFDOffsetFilePos, 0); err != nil {
		return errIO("IFD.PatchNextIFDOffset", err)
	}
	if ifd.bigTiff {
		err = s.WriteU64(offset)
	} else {
		err = s.WriteU32(uint32(offset))
	}
	if err != nil {
		return errIO("IFD.PatchNextIFDOffset", err)
	}
	ifd.nextIFDOffset = offset
	return nil
}
