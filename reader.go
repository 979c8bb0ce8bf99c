package tiffcore

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	magicClassic uint16 = 42
	magicBigTIFF uint16 = 43
)

// Reader parses a TIFF/BigTIFF file's directory structure and decodes
// tile/strip payloads against a caller-supplied ByteStream (spec.md
// §4.9). A Reader serializes access to its stream behind mu: only one
// read operation may be in flight per handle at a time.
type Reader struct {
	stream ByteStream
	cfg    ReaderConfig

	bigTiff        bool
	firstIFDOffset int64

	mu       sync.Mutex
	ifdCache map[int64]*IFD
}

// NewReader parses stream's header and returns a ready-to-use Reader.
func NewReader(stream ByteStream, opts ...ReaderOption) (*Reader, error) {
	cfg := DefaultReaderConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	r := &Reader{stream: stream, cfg: cfg, ifdCache: map[int64]*IFD{}}
	if err := r.readHeader(); err != nil {
		return nil, err
	}
	r.cfg.Logger.Debugf("tiffcore: parsed header, bigTiff=%v firstIFDOffset=%d", r.bigTiff, r.firstIFDOffset)
	return r, nil
}

func (r *Reader) readHeader() error {
	var mark [2]byte
	if err := r.stream.ReadExact(mark[:]); err != nil {
		return errIO("Reader.readHeader", err)
	}
	switch string(mark[:]) {
	case "II":
		r.stream.SetByteOrder(binary.LittleEndian)
	case "MM":
		r.stream.SetByteOrder(binary.BigEndian)
	default:
		return errHeaderInvalid("Reader.readHeader", fmt.Errorf("unrecognized byte-order mark %q", mark[:]))
	}

	magic, err := r.stream.ReadU16()
	if err != nil {
		return errIO("Reader.readHeader", err)
	}

	switch magic {
	case magicClassic:
		r.bigTiff = false
		off, err := r.stream.ReadU32()
		if err != nil {
			return errIO("Reader.readHeader", err)
		}
		r.firstIFDOffset = int64(off)
	case magicBigTIFF:
		r.bigTiff = true
		byteSize, err := r.stream.ReadU16()
		if err != nil {
			return errIO("Reader.readHeader", err)
		}
		if byteSize != 8 {
			return errHeaderInvalid("Reader.readHeader", fmt.Errorf("unsupported BigTIFF offset byte size %d", byteSize))
		}
		reserved, err := r.stream.ReadU16()
		if err != nil {
			return errIO("Reader.readHeader", err)
		}
		if reserved != 0 {
			return errHeaderInvalid("Reader.readHeader", fmt.Errorf("nonzero BigTIFF reserved field %d", reserved))
		}
		off, err := r.stream.ReadU64()
		if err != nil {
			return errIO("Reader.readHeader", err)
		}
		r.firstIFDOffset = int64(off)
	default:
		return errHeaderInvalid("Reader.readHeader", fmt.Errorf("unrecognized magic number %d", magic))
	}

	if r.firstIFDOffset == 0 && r.cfg.RequireValidTIFF {
		return errHeaderInvalid("Reader.readHeader", fmt.Errorf("file has no IFDs"))
	}
	return nil
}

// BigTIFF reports whether the file uses the BigTIFF 8-byte-offset
// layout.
func (r *Reader) BigTIFF() bool { return r.bigTiff }

// IFDs walks the main IFD chain from the header's first-IFD offset,
// following next-IFD links until a zero offset or a previously-visited
// offset is reached (cycle detection, spec.md §4.9/§7).
func (r *Reader) IFDs() ([]*IFD, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*IFD
	visited := map[int64]bool{}
	offset := r.firstIFDOffset
	for offset != 0 {
		if visited[offset] {
			return nil, errFormatCorruptf("Reader.IFDs", "IFD chain cycles back to offset %d", offset)
		}
		visited[offset] = true

		ifd, err := r.ifdAt(offset)
		if err != nil {
			return nil, err
		}
		out = append(out, ifd)
		offset = int64(ifd.nextIFDOffset)
	}
	r.cfg.Logger.Debugf("tiffcore: walked IFD chain, found %d IFD(s)", len(out))
	return out, nil
}

// ifdAt parses (or, if caching is enabled, returns the cached parse of)
// the IFD at offset.
func (r *Reader) ifdAt(offset int64) (*IFD, error) {
	if r.cfg.CachingIFDs {
		if cached, ok := r.ifdCache[offset]; ok {
			return cached, nil
		}
	}
	ifd, next, err := ParseIFD(r.stream, offset, r.bigTiff)
	if err != nil {
		return nil, err
	}
	ifd.nextIFDOffset = next
	if _, err := NewTileMap(ifd, false); err != nil {
		return nil, err
	}
	if r.cfg.CachingIFDs {
		r.ifdCache[offset] = ifd
	}
	return ifd, nil
}

// SubIFDs parses the head directory at each offset named by parent's
// SubIFDs tag (supplemented feature, SPEC_FULL.md §4: this core parses
// only the head IFD of each SubIFD pointer and does not follow further
// next-IFD links within a SubIFD's own chain).
func (r *Reader) SubIFDs(parent *IFD) ([]*IFD, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*IFD, 0, len(parent.SubIFDOffsets))
	for _, off := range parent.SubIFDOffsets {
		ifd, err := r.ifdAt(int64(off))
		if err != nil {
			return nil, err
		}
		out = append(out, ifd)
	}
	return out, nil
}

// ReadTile reads and fully decodes the tile/strip at idx within ifd:
// raw bytes off disk, FillOrder correction, codec decompression,
// predictor reversal, bit-unpacking, YCbCr conversion, and boundary
// cropping, per spec.md §4.7/§4.9. When ifd.PlanarConfig is
// PlanarSeparate and InterleaveResults is enabled, idx's Plane component
// is ignored and every plane's tile at (idx.X, idx.Y) is read and woven
// back into one channel-interleaved buffer (spec.md §6
// "interleave_results").
func (r *Reader) ReadTile(ifd *IFD, idx TileIndex) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ifd.PlanarConfig == PlanarSeparate && r.cfg.InterleaveResults {
		return r.readInterleavedPlanes(ifd, idx)
	}
	return r.readTileLocked(ifd, idx)
}

// readInterleavedPlanes reads every plane's tile at (idx.X, idx.Y) and
// interleaves their samples back into one chunked, multi-channel
// buffer. Must be called with r.mu already held.
func (r *Reader) readInterleavedPlanes(ifd *IFD, idx TileIndex) ([]byte, error) {
	nPlanes := int(ifd.NPlanes())
	planes := make([][]byte, nPlanes)
	for p := 0; p < nPlanes; p++ {
		planeIdx := idx
		planeIdx.Plane = uint32(p)
		data, err := r.readTileLocked(ifd, planeIdx)
		if err != nil {
			return nil, err
		}
		planes[p] = data
	}
	if nPlanes == 0 {
		return nil, nil
	}

	alignedBits, err := ifd.AlignedBitDepth()
	if err != nil {
		return nil, err
	}
	elemSize := int(alignedBits / 8)
	if elemSize == 0 {
		elemSize = 1
	}

	pixelCount := len(planes[0]) / elemSize
	out := make([]byte, pixelCount*nPlanes*elemSize)
	for i := 0; i < pixelCount; i++ {
		for p := 0; p < nPlanes; p++ {
			srcOff := i * elemSize
			dstOff := (i*nPlanes + p) * elemSize
			copy(out[dstOff:dstOff+elemSize], planes[p][srcOff:srcOff+elemSize])
		}
	}
	return out, nil
}

// readTileLocked is ReadTile's single-tile implementation. Must be
// called with r.mu already held.
func (r *Reader) readTileLocked(ifd *IFD, idx TileIndex) ([]byte, error) {
	lin := ifd.TileLinearIndex(idx)
	offsets, counts := ifd.currentOffsetsAndCounts()
	if lin >= uint64(len(offsets)) {
		return nil, errRangef("Reader.ReadTile", "tile index %+v out of range", idx)
	}
	offset, count := offsets[lin], counts[lin]

	bytesPerSample, err := ifd.BytesPerSample()
	if err != nil {
		return nil, err
	}
	alignedBits, err := ifd.AlignedBitDepth()
	if err != nil {
		return nil, err
	}
	pureBinary := alignedBits == 1
	alignedBytesPerSample := uint64(0)
	if !pureBinary {
		alignedBytesPerSample = alignedBits / 8
		if alignedBytesPerSample == 0 {
			alignedBytesPerSample = 1
		}
	}

	width := int(ifd.EffectiveTileWidth())
	height := int(ifd.EffectiveTileLength())
	samplesPerTile := int(ifd.SamplesPerPixel)
	if ifd.PlanarConfig == PlanarSeparate {
		samplesPerTile = 1
	}

	if offset == 0 && count == 0 {
		if !r.cfg.MissingTilesAllowed {
			return nil, errRangef("Reader.ReadTile", "tile %+v has no data and missing tiles are not allowed", idx)
		}
		r.cfg.Logger.Warnf("tiffcore: tile %+v has no data, returning filler bytes", idx)
		rowBytes := TileBufferRowBytes(width, samplesPerTile, pureBinary, int(alignedBytesPerSample))
		filler := make([]byte, rowBytes*height)
		for i := range filler {
			filler[i] = r.cfg.ByteFiller
		}
		return filler, nil
	}

	raw := make([]byte, count)
	if _, err := r.stream.ReadAt(raw, int64(offset)); err != nil {
		return nil, errIO("Reader.ReadTile", err)
	}

	if ifd.Compression != CompressionJPEG && ifd.Compression != CompressionOldJPEG {
		applyFillOrder(raw, ifd.FillOrder)
	}

	codec, err := LookupCodec(ifd.Compression)
	if err != nil {
		return nil, err
	}
	codecOpts := CodecOptions{
		Width:            width,
		Height:           height,
		SamplesPerPixel:  samplesPerTile,
		BytesPerSample:   int(bytesPerSample),
		JPEGTables:       ifd.JPEGTables,
		PreferRGBForJPEG: r.cfg.PreferRGBForJPEG,
	}
	decoded, err := codec.Decode(raw, codecOpts)
	if err != nil {
		return nil, errCodec("Reader.ReadTile", err)
	}

	sf, err := ifd.SampleFormatUniform()
	if err != nil {
		return nil, err
	}
	bitsPerSample := 8
	if len(ifd.BitsPerSample) > 0 {
		bitsPerSample = int(ifd.BitsPerSample[0])
	}

	slot := (*TileSlot)(nil)
	if ifd.tileMap != nil {
		slot = ifd.tileMap.Slot(idx)
	}
	cropW, cropH := width, height
	if r.cfg.CropTilesToImageBoundaries && slot != nil {
		cropW, cropH = int(slot.CroppedSizeX), int(slot.CroppedSizeY)
	}

	scaleUnusualPrecision := r.cfg.AutoUnpackUnusualPrecisions && r.cfg.AutoScaleWhenIncreasingDepth
	willInvertBrightness := r.cfg.AutoCorrectInvertedBrightness && (ifd.Photometric == PhotometricWhiteIsZero || ifd.Photometric == PhotometricCMYK)
	if willInvertBrightness {
		r.cfg.Logger.Debugf("tiffcore: auto-correcting inverted brightness for tile %+v (photometric=%d)", idx, ifd.Photometric)
	}
	if scaleUnusualPrecision && bitsPerSample != int(alignedBytesPerSample)*8 {
		r.cfg.Logger.Debugf("tiffcore: auto-scaling %d-bit samples up to %d bits for tile %+v", bitsPerSample, alignedBytesPerSample*8, idx)
	}

	unpackOpts := UnpackOptions{
		Width:                 width,
		Height:                height,
		CropWidth:             cropW,
		CropHeight:            cropH,
		SamplesPerPixel:       samplesPerTile,
		BitsPerSample:         bitsPerSample,
		BytesPerSample:        int(alignedBytesPerSample),
		BitPacked:             pureBinary,
		SampleFormat:          sf,
		Predictor:             ifd.Predictor,
		Photometric:           ifd.Photometric,
		PlanarConfig:          ifd.PlanarConfig,
		SubsamplingX:          ifd.YCbCrSubsamplingX,
		SubsamplingY:          ifd.YCbCrSubsamplingY,
		YCbCrCoefficients:     ifd.YCbCrCoefficients,
		ReferenceBlackWhite:   ifd.ReferenceBlackWhite,
		ScaleUnusualPrecision: scaleUnusualPrecision,
		InvertBrightness:      r.cfg.AutoCorrectInvertedBrightness,
		ByteOrder:             r.stream.ByteOrder(),
	}
	out, err := (TileUnpacker{}).Unpack(decoded, unpackOpts)
	if err != nil {
		return nil, err
	}
	return out, nil
}
