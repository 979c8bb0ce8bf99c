package tiffcore

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxClassicOffset is the largest file offset a classic (non-BigTIFF)
// 32-bit pointer can address, leaving 16 bytes of headroom the way the
// teacher's computeStructure does in cog.go.
const maxClassicOffset = 0xFFFFFFFF - 16

type pendingTile struct {
	offset uint64
	length uint64
}

// Writer emits a TIFF/BigTIFF file: header, tile payloads written
// forward as they become available, and IFDs emitted once every tile for
// that image has been written (spec.md §4.10). Only the forward,
// append-only write mode is implemented; WithWritingForwardAllowed(false)
// is rejected since this core has no buffering strategy for rewriting
// tiles in place.
type Writer struct {
	stream ByteStream
	cfg    WriterConfig

	bigTiff           bool
	headerWritten     bool
	firstIFDOffsetPos int64

	ifds    []*IFD
	pending map[*IFD]map[TileIndex]pendingTile
	filler  map[*IFD]pendingTile
}

// NewWriter configures a Writer over stream. The header is not written
// until the first tile or IFD is emitted, so WithBigTIFF/WithByteOrder
// remain effective right up to that point.
func NewWriter(stream ByteStream, opts ...WriterOption) (*Writer, error) {
	cfg := DefaultWriterConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	if !cfg.WritingForwardAllowed {
		return nil, errUnsupportedf("NewWriter", "only forward (append-only) tile writing is implemented")
	}
	return &Writer{
		stream:  stream,
		cfg:     cfg,
		bigTiff: cfg.BigTIFF,
		pending: map[*IFD]map[TileIndex]pendingTile{},
		filler:  map[*IFD]pendingTile{},
	}, nil
}

func (w *Writer) ensureHeader() error {
	if w.headerWritten {
		return nil
	}
	order := w.cfg.ByteOrder
	w.stream.SetByteOrder(order)

	mark := "II"
	if order == binary.BigEndian {
		mark = "MM"
	}
	if err := w.stream.WriteExact([]byte(mark)); err != nil {
		return errIO("Writer.ensureHeader", err)
	}

	if w.bigTiff {
		if err := w.stream.WriteU16(magicBigTIFF); err != nil {
			return errIO("Writer.ensureHeader", err)
		}
		if err := w.stream.WriteU16(8); err != nil {
			return errIO("Writer.ensureHeader", err)
		}
		if err := w.stream.WriteU16(0); err != nil {
			return errIO("Writer.ensureHeader", err)
		}
		pos, err := w.stream.Offset()
		if err != nil {
			return errIO("Writer.ensureHeader", err)
		}
		w.firstIFDOffsetPos = pos
		if err := w.stream.WriteU64(0); err != nil {
			return errIO("Writer.ensureHeader", err)
		}
	} else {
		if err := w.stream.WriteU16(magicClassic); err != nil {
			return errIO("Writer.ensureHeader", err)
		}
		pos, err := w.stream.Offset()
		if err != nil {
			return errIO("Writer.ensureHeader", err)
		}
		w.firstIFDOffsetPos = pos
		if err := w.stream.WriteU32(0); err != nil {
			return errIO("Writer.ensureHeader", err)
		}
	}

	w.headerWritten = true
	w.cfg.Logger.Debugf("tiffcore: wrote header, bigTiff=%v byteOrder=%v", w.bigTiff, order)
	return nil
}

// AddIFD registers ifd with this writer, in the order its tiles and its
// directory will be emitted.
func (w *Writer) AddIFD(ifd *IFD) {
	if w.cfg.SmartIFDCorrection {
		w.smartCorrectIFD(ifd)
	}
	w.ifds = append(w.ifds, ifd)
	w.pending[ifd] = map[TileIndex]pendingTile{}
}

// smartCorrectIFD implements spec.md §6's SmartIFDCorrection knob:
// infer a Photometric interpretation from SamplesPerPixel when the
// caller never set one, and substitute PhotometricYCbCr for plain RGB
// when the data will be stored as JPEG-in-TIFF (Compression 6 or 7),
// which conventionally carries YCbCr samples, unless the caller
// asked to keep JPEG tiles as RGB via PreferRGBForJPEG.
func (w *Writer) smartCorrectIFD(ifd *IFD) {
	if ifd.Photometric == 0 {
		switch ifd.SamplesPerPixel {
		case 1, 2:
			ifd.Photometric = PhotometricBlackIsZero
		case 3:
			ifd.Photometric = PhotometricRGB
		case 4:
			ifd.Photometric = PhotometricCMYK
		}
		if ifd.Photometric != 0 {
			w.cfg.Logger.Infof("tiffcore: auto-corrected Photometric to %d from %d samples per pixel", ifd.Photometric, ifd.SamplesPerPixel)
		}
	}
	if ifd.Photometric == PhotometricRGB && ifd.SamplesPerPixel == 3 &&
		(ifd.Compression == CompressionJPEG || ifd.Compression == CompressionOldJPEG) && !w.cfg.PreferRGBForJPEG {
		ifd.Photometric = PhotometricYCbCr
		w.cfg.Logger.Infof("tiffcore: auto-corrected Photometric to YCbCr for JPEG compression")
	}
}

// WriteTile encodes pixels (an aligned, channel-interleaved buffer
// matching ifd's declared geometry) through predictor, bit-packing,
// codec compression, and FillOrder, then appends the result to the
// stream, recording its position for ifd's eventual tile_offsets/
// tile_byte_counts arrays (spec.md §4.6, §4.10).
func (w *Writer) WriteTile(ifd *IFD, idx TileIndex, pixels []byte) error {
	if err := w.ensureHeader(); err != nil {
		return err
	}
	if w.pending[ifd] == nil {
		w.AddIFD(ifd)
	}

	if ifd.PlanarConfig == PlanarSeparate && w.cfg.AutoInterleaveSource && int(ifd.SamplesPerPixel) > 1 {
		alignedBits, err := ifd.AlignedBitDepth()
		if err != nil {
			return err
		}
		elemSize := int(alignedBits / 8)
		if elemSize == 0 {
			elemSize = 1
		}
		pixels = deinterleaveChannel(pixels, int(ifd.SamplesPerPixel), int(idx.Plane), elemSize)
	}

	encoded, err := w.encodeTilePixels(ifd, pixels)
	if err != nil {
		return err
	}
	offset, err := w.appendBytes(encoded)
	if err != nil {
		return err
	}
	w.pending[ifd][idx] = pendingTile{offset: offset, length: uint64(len(encoded))}
	return nil
}

// encodeTilePixels runs the shared predictor/pack/compress/fill-order
// pipeline, without writing anything. pixels must already be in the
// single-plane shape ifd/samplesPerTile expects; WriteTile handles
// AutoInterleaveSource de-interleaving before calling in.
func (w *Writer) encodeTilePixels(ifd *IFD, pixels []byte) ([]byte, error) {
	bytesPerSample, err := ifd.BytesPerSample()
	if err != nil {
		return nil, err
	}
	alignedBits, err := ifd.AlignedBitDepth()
	if err != nil {
		return nil, err
	}
	pureBinary := alignedBits == 1
	alignedBytesPerSample := 0
	if !pureBinary {
		alignedBytesPerSample = int(alignedBits / 8)
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
	bitsPerSample := 8
	if len(ifd.BitsPerSample) > 0 {
		bitsPerSample = int(ifd.BitsPerSample[0])
	}

	packOpts := PackOptions{
		Width:           width,
		Height:          height,
		SamplesPerPixel: samplesPerTile,
		BitsPerSample:   bitsPerSample,
		BytesPerSample:  alignedBytesPerSample,
		BitPacked:       pureBinary,
		Predictor:       ifd.Predictor,
		FillOrder:       ifd.FillOrder,
		ByteOrder:       w.stream.ByteOrder(),
	}
	packed, err := (TilePacker{}).Pack(pixels, packOpts)
	if err != nil {
		return nil, err
	}

	codec, err := LookupCodec(ifd.Compression)
	if err != nil {
		return nil, err
	}
	encoded, err := codec.Encode(packed, CodecOptions{
		Width:            width,
		Height:           height,
		SamplesPerPixel:  samplesPerTile,
		BytesPerSample:   int(bytesPerSample),
		JPEGTables:       ifd.JPEGTables,
		Quality:          w.cfg.Quality,
		PreferRGBForJPEG: w.cfg.PreferRGBForJPEG,
	})
	if err != nil {
		return nil, errCodec("Writer.encodeTilePixels", err)
	}

	if ifd.Compression != CompressionJPEG && ifd.Compression != CompressionOldJPEG {
		applyFillOrder(encoded, ifd.FillOrder)
	}
	return encoded, nil
}

// deinterleaveChannel extracts channel out of chunked, a buffer holding
// channels samples of elemSize bytes per pixel, returning just that
// channel's samples packed contiguously (spec.md §6
// "auto_interleave_source").
func deinterleaveChannel(chunked []byte, channels, channel, elemSize int) []byte {
	n := len(chunked) / (channels * elemSize)
	out := make([]byte, n*elemSize)
	for i := 0; i < n; i++ {
		srcOff := (i*channels + channel) * elemSize
		dstOff := i * elemSize
		copy(out[dstOff:dstOff+elemSize], chunked[srcOff:srcOff+elemSize])
	}
	return out
}

// appendBytes writes b at the current end of the stream and returns the
// offset it landed at.
func (w *Writer) appendBytes(b []byte) (uint64, error) {
	pos, err := w.stream.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, errIO("Writer.appendBytes", err)
	}
	if err := w.stream.WriteExact(b); err != nil {
		return 0, errIO("Writer.appendBytes", err)
	}
	if !w.bigTiff && uint64(pos)+uint64(len(b)) > maxClassicOffset {
		return 0, errTooLarge("Writer.appendBytes", fmt.Errorf("file exceeds classic TIFF's 32-bit offset range; use WithBigTIFF(true)"))
	}
	return uint64(pos), nil
}

// fillerTile returns the offset/length of a shared, lazily-materialized
// filler tile for ifd, writing it once and reusing its bytes for every
// missing slot (spec.md §4.10 "shared filler tile reuse").
func (w *Writer) fillerTile(ifd *IFD) (pendingTile, error) {
	if pt, ok := w.filler[ifd]; ok {
		return pt, nil
	}
	w.cfg.Logger.Warnf("tiffcore: materializing shared filler tile for an IFD's missing slots")

	alignedBits, err := ifd.AlignedBitDepth()
	if err != nil {
		return pendingTile{}, err
	}
	pureBinary := alignedBits == 1
	alignedBytesPerSample := 0
	if !pureBinary {
		alignedBytesPerSample = int(alignedBits / 8)
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

	rowBytes := TileBufferRowBytes(width, samplesPerTile, pureBinary, alignedBytesPerSample)
	pixels := make([]byte, rowBytes*height)
	for i := range pixels {
		pixels[i] = w.cfg.ByteFiller
	}
	encoded, err := w.encodeTilePixels(ifd, pixels)
	if err != nil {
		return pendingTile{}, err
	}
	offset, err := w.appendBytes(encoded)
	if err != nil {
		return pendingTile{}, err
	}
	pt := pendingTile{offset: offset, length: uint64(len(encoded))}
	w.filler[ifd] = pt
	return pt, nil
}

// Finish materializes any missing tiles (if allowed), freezes and emits
// every registered IFD's directory in registration order, chains their
// next-IFD links, and patches the header's first-IFD offset, per
// spec.md §4.10/§4.11.
func (w *Writer) Finish() error {
	if err := w.ensureHeader(); err != nil {
		return err
	}

	for i, ifd := range w.ifds {
		nTiles := ifd.NTilesX() * ifd.NTilesY() * ifd.NPlanes()
		offsets := make([]uint64, nTiles)
		counts := make([]uint64, nTiles)

		for idx, pt := range w.pending[ifd] {
			lin := ifd.TileLinearIndex(idx)
			if lin >= nTiles {
				return errFormatCorruptf("Writer.Finish", "tile index %+v out of range for its IFD", idx)
			}
			offsets[lin] = pt.offset
			counts[lin] = pt.length
		}

		for lin := range offsets {
			if offsets[lin] == 0 && counts[lin] == 0 {
				if !w.cfg.MissingTilesAllowed {
					return errRangef("Writer.Finish", "tile %d of IFD %d was never written", lin, i)
				}
				pt, err := w.fillerTile(ifd)
				if err != nil {
					return err
				}
				offsets[lin], counts[lin] = pt.offset, pt.length
			}
		}

		if err := ifd.UpdateDataPositioning(offsets, counts); err != nil {
			return err
		}

		if _, err := ifd.Emit(w.stream); err != nil {
			return err
		}

		if i == 0 {
			if err := w.patchFirstIFDOffset(uint64(ifd.fileOffsetForWriting)); err != nil {
				return err
			}
		} else {
			prevIFD := w.ifds[i-1]
			if err := prevIFD.PatchNextIFDOffset(w.stream, uint64(ifd.fileOffsetForWriting)); err != nil {
				return err
			}
		}
		ifd.markEmittedComplete()
	}
	w.cfg.Logger.Infof("tiffcore: finished writing %d IFD(s)", len(w.ifds))
	return nil
}

func (w *Writer) patchFirstIFDOffset(offset uint64) error {
	cur, err := w.stream.Offset()
	if err != nil {
		return errIO("Writer.patchFirstIFDOffset", err)
	}
	defer w.stream.Seek(cur, io.SeekStart)

	if _, err := w.stream.Seek(w.firstIFDOffsetPos, io.SeekStart); err != nil {
		return errIO("Writer.patchFirstIFDOffset", err)
	}
	if w.bigTiff {
		err = w.stream.WriteU64(offset)
	} else {
		err = w.stream.WriteU32(uint32(offset))
	}
	if err != nil {
		return errIO("Writer.patchFirstIFDOffset", err)
	}
	return nil
}
