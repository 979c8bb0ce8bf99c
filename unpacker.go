package tiffcore

import "encoding/binary"

// UnpackOptions describes the on-disk shape a TileUnpacker must turn
// back into an aligned, channel-interleaved (or left-planar) pixel
// buffer (spec.md §4.7).
type UnpackOptions struct {
	Width, Height   int // full nominal tile size
	CropWidth       int // valid region, <= Width for boundary tiles
	CropHeight      int

	SamplesPerPixel int
	BitsPerSample   int
	BytesPerSample  int // aligned output width
	SampleFormat    uint16

	// BitPacked selects the dedicated samples_per_pixel==1,
	// bits_per_sample==1 fast path (spec.md §4.7): decoded stays a
	// byte-packed bitmap instead of being promoted to one byte per
	// sample, and BytesPerSample is ignored.
	BitPacked bool

	Predictor   uint16
	FillOrder   uint16
	Photometric uint16
	PlanarConfig uint16

	// SubsamplingX/Y are the YCbCr chroma subsampling factors
	// (YCbCrSubSampling tag, defaulting to 2,2), used only when
	// Photometric is PhotometricYCbCr.
	SubsamplingX, SubsamplingY int

	YCbCrCoefficients [3]Rational
	ReferenceBlackWhite []Rational

	ScaleUnusualPrecision  bool
	InvertBrightness       bool

	ByteOrder binary.ByteOrder
}

// TileUnpacker turns raw, decompressed tile bytes into an aligned,
// channel-interleaved pixel buffer (spec.md §4.7). Single-channel 1-bit
// tiles and chunked YCbCr tiles each take their own path; every other
// tile is bit-unpacked, has its predictor reversed, then has its
// brightness inverted where needed. Each path finally crops the result
// to the tile's valid region.
type TileUnpacker struct{}

// Unpack runs the bit-unpack/predictor/YCbCr decode-side pipeline over
// decoded, which must already be decompressed and fill-order-corrected
// by the caller (spec.md §4.4 applies FillOrder before codec decode, not
// here).
func (TileUnpacker) Unpack(decoded []byte, opts UnpackOptions) ([]byte, error) {
	if opts.BitPacked {
		return unpackPureBinary(decoded, opts)
	}
	if opts.Photometric == PhotometricYCbCr && opts.PlanarConfig != PlanarSeparate {
		return unpackYCbCrSubsampled(decoded, opts)
	}

	var aligned []byte
	if opts.BitsPerSample == opts.BytesPerSample*8 {
		aligned = append([]byte(nil), decoded...)
	} else {
		var err error
		aligned, err = unpackBits(decoded, opts, opts.SamplesPerPixel)
		if err != nil {
			return nil, err
		}
	}

	rowSamples := opts.Width * opts.SamplesPerPixel
	rowBytes := rowSamples * opts.BytesPerSample
	if len(aligned) < rowBytes*opts.Height {
		return nil, errFormatCorruptf("TileUnpacker.Unpack", "decoded tile too short: %d bytes, want %d", len(aligned), rowBytes*opts.Height)
	}
	aligned = aligned[:rowBytes*opts.Height]

	if opts.Predictor == PredictorHorizontal {
		for y := 0; y < opts.Height; y++ {
			row := aligned[y*rowBytes : (y+1)*rowBytes]
			if err := DecodeHorizontalPredictor(row, opts.SamplesPerPixel, opts.BytesPerSample, opts.ByteOrder); err != nil {
				return nil, err
			}
		}
	} else if opts.Predictor == PredictorFloatingPoint {
		return nil, errUnsupportedf("TileUnpacker.Unpack", "floating-point predictor is not implemented")
	}

	if opts.InvertBrightness && (opts.Photometric == PhotometricWhiteIsZero || opts.Photometric == PhotometricCMYK) {
		invertBrightness(aligned, opts.BytesPerSample)
	}

	return cropAligned(aligned, opts, rowBytes), nil
}

// unpackPureBinary implements spec.md §4.7's dedicated fast path for
// samples_per_pixel==1, bits_per_sample==1 tiles: rows are copied
// directly (fill-order correction already applied by the caller) into a
// byte-packed output row, with the 1-bit horizontal predictor (if any)
// applied as a bitwise XOR in that same packed-bit domain instead of
// promoting every pixel to its own byte via the generic unpackBits
// precision-stretch path.
func unpackPureBinary(decoded []byte, opts UnpackOptions) ([]byte, error) {
	rowBits := opts.Width * opts.SamplesPerPixel
	rowBytes := (rowBits + 7) / 8
	if len(decoded) < rowBytes*opts.Height {
		return nil, errFormatCorruptf("TileUnpacker.Unpack", "decoded tile too short: %d bytes, want %d", len(decoded), rowBytes*opts.Height)
	}

	out := make([]byte, rowBytes*opts.Height)
	copy(out, decoded[:rowBytes*opts.Height])

	if opts.Predictor == PredictorHorizontal {
		for y := 0; y < opts.Height; y++ {
			row := out[y*rowBytes : (y+1)*rowBytes]
			DecodeHorizontalPredictorBits(row, opts.Width, opts.SamplesPerPixel)
		}
	} else if opts.Predictor == PredictorFloatingPoint {
		return nil, errUnsupportedf("TileUnpacker.Unpack", "floating-point predictor is not implemented")
	}

	cropWidth, cropHeight := opts.CropWidth, opts.CropHeight
	if cropWidth == 0 {
		cropWidth = opts.Width
	}
	if cropHeight == 0 {
		cropHeight = opts.Height
	}
	if cropWidth == opts.Width && cropHeight == opts.Height {
		return out, nil
	}
	cropRowBytes := (cropWidth*opts.SamplesPerPixel + 7) / 8
	cropped := make([]byte, cropRowBytes*cropHeight)
	for y := 0; y < cropHeight; y++ {
		copy(cropped[y*cropRowBytes:(y+1)*cropRowBytes], out[y*rowBytes:y*rowBytes+cropRowBytes])
		if rem := (cropWidth * opts.SamplesPerPixel) % 8; rem != 0 {
			cropped[(y+1)*cropRowBytes-1] &= byte(0xFF << uint(8-rem))
		}
	}
	return cropped, nil
}

// unpackBits expands samples packed at bitsPerSample (possibly sub-byte)
// MSB-first into samplesPerPixel-wide, bytesPerSample-aligned samples,
// optionally linear-scaling them up to fill the wider container, per
// spec.md §4.7 ("auto_unpack_unusual_precisions").
func unpackBits(src []byte, opts UnpackOptions, samplesPerPixel int) ([]byte, error) {
	rowInBits := opts.Width * samplesPerPixel * opts.BitsPerSample
	rowInBytes := (rowInBits + 7) / 8
	rowOutBytes := opts.Width * samplesPerPixel * opts.BytesPerSample

	if len(src) < rowInBytes*opts.Height {
		return nil, errFormatCorruptf("unpackBits", "encoded tile too short: %d bytes, want at least %d", len(src), rowInBytes*opts.Height)
	}

	maxIn := uint64(1)<<uint(opts.BitsPerSample) - 1
	maxOut := uint64(1)<<uint(opts.BytesPerSample*8) - 1

	out := make([]byte, rowOutBytes*opts.Height)
	for y := 0; y < opts.Height; y++ {
		inRow := src[y*rowInBytes : (y+1)*rowInBytes]
		outRow := out[y*rowOutBytes : (y+1)*rowOutBytes]
		bitPos := 0
		for s := 0; s < opts.Width*samplesPerPixel; s++ {
			v := readBitsMSBFirst(inRow, bitPos, opts.BitsPerSample)
			bitPos += opts.BitsPerSample
			// Linear rescale is only valid for intensity/depth samples; a
			// palette index or transparency mask must survive unscaled,
			// since stretching it would no longer index the ColorMap.
			if opts.ScaleUnusualPrecision && maxIn > 0 &&
				opts.Photometric != PhotometricPalette && opts.Photometric != PhotometricTransparencyMask {
				v = v * maxOut / maxIn
			}
			predictorWriteValue(outRow, s*opts.BytesPerSample, opts.BytesPerSample, opts.ByteOrder, v)
		}
	}
	return out, nil
}

func readBitsMSBFirst(src []byte, bitPos, nBits int) uint64 {
	var v uint64
	for i := 0; i < nBits; i++ {
		pos := bitPos + i
		byteIdx := pos / 8
		bitIdx := 7 - (pos % 8)
		v <<= 1
		if byteIdx < len(src) && src[byteIdx]&(1<<uint(bitIdx)) != 0 {
			v |= 1
		}
	}
	return v
}

// invertBrightness flips every sample: v -> max-v. Used for
// WHITE_IS_ZERO and CMYK photometric interpretations whose "bright"
// direction is the opposite of this core's internal convention
// (spec.md §4.7 "auto_correct_inverted_brightness").
func invertBrightness(data []byte, bytesPerSample int) {
	order := binary.BigEndian
	maxV := uint64(1)<<uint(bytesPerSample*8) - 1
	for off := 0; off+bytesPerSample <= len(data); off += bytesPerSample {
		v := predictorReadValue(data, off, bytesPerSample, order)
		predictorWriteValue(data, off, bytesPerSample, order, maxV-v)
	}
}

// cropAligned copies only the valid CropWidth x CropHeight region out of
// a full Width x Height decoded tile, for tiles that overhang the image
// boundary (spec.md §4.7, §8 boundary scenario). CropWidth/CropHeight
// default to the nominal Width/Height when left zero.
func cropAligned(aligned []byte, opts UnpackOptions, rowBytes int) []byte {
	if opts.CropWidth == 0 {
		opts.CropWidth = opts.Width
	}
	if opts.CropHeight == 0 {
		opts.CropHeight = opts.Height
	}
	if opts.CropWidth == opts.Width && opts.CropHeight == opts.Height {
		return aligned
	}
	cropRowBytes := opts.CropWidth * opts.SamplesPerPixel * opts.BytesPerSample
	out := make([]byte, cropRowBytes*opts.CropHeight)
	for y := 0; y < opts.CropHeight; y++ {
		copy(out[y*cropRowBytes:(y+1)*cropRowBytes], aligned[y*rowBytes:y*rowBytes+cropRowBytes])
	}
	return out
}

// unpackYCbCrSubsampled decodes a chroma-subsampled YCbCr tile into
// (R, G, B) triples. Per spec.md §4.7/§4.9, decoded holds MCU blocks
// laid out in a (Width/SubsamplingX) x (Height/SubsamplingY) grid, each
// block covering SubsamplingX x SubsamplingY pixels: each
// block stores SubsamplingX*SubsamplingY Y samples (raster order within
// the block) followed by one Cb and one Cr sample, using the TIFF6
// conversion formula:
//
//	R = Y + (2 - 2*LumaRed)*(Cr - refBlack)
//	B = Y + (2 - 2*LumaBlue)*(Cb - refBlack)
//	G = (Y - LumaRed*R - LumaBlue*B) / LumaGreen
//
// with LumaRed/LumaGreen/LumaBlue from YCbCrCoefficients (defaulting to
// ITU-R BT.601) and refBlack from ReferenceBlackWhite's Cb/Cr black
// point (defaulting to the half-range midpoint). A trailing partial
// block row/column that doesn't fill a whole SubsamplingX/Y block is
// skipped, matching how such tiles are written.
func unpackYCbCrSubsampled(decoded []byte, opts UnpackOptions) ([]byte, error) {
	if opts.SamplesPerPixel != 3 {
		return nil, errUnsupportedf("unpackYCbCrSubsampled", "YCbCr requires 3 samples per pixel, got %d", opts.SamplesPerPixel)
	}
	subX, subY := opts.SubsamplingX, opts.SubsamplingY
	if subX == 0 {
		subX = 2
	}
	if subY == 0 {
		subY = 2
	}
	bps := opts.BytesPerSample
	if bps == 0 {
		bps = 1
	}

	blocksX := opts.Width / subX
	blocksY := opts.Height / subY
	samplesPerBlock := subX*subY + 2
	blockBytes := samplesPerBlock * bps
	blockRowBytes := blocksX * blockBytes
	if len(decoded) < blockRowBytes*blocksY {
		return nil, errFormatCorruptf("unpackYCbCrSubsampled", "decoded tile too short: %d bytes, want %d", len(decoded), blockRowBytes*blocksY)
	}

	lr, lg, lb := 0.299, 0.587, 0.114
	if opts.YCbCrCoefficients != ([3]Rational{}) {
		lr = rationalFloat(opts.YCbCrCoefficients[0])
		lg = rationalFloat(opts.YCbCrCoefficients[1])
		lb = rationalFloat(opts.YCbCrCoefficients[2])
	}
	maxV := float64(uint64(1)<<uint(bps*8) - 1)
	refBlack := maxV / 2
	if len(opts.ReferenceBlackWhite) >= 6 {
		cbBlack := rationalFloat(opts.ReferenceBlackWhite[2])
		crBlack := rationalFloat(opts.ReferenceBlackWhite[4])
		refBlack = (cbBlack + crBlack) / 2
	}

	order := binary.BigEndian
	rowBytes := opts.Width * 3 * bps
	out := make([]byte, rowBytes*opts.Height)

	for by := 0; by < blocksY; by++ {
		blockRow := decoded[by*blockRowBytes:]
		for bx := 0; bx < blocksX; bx++ {
			block := blockRow[bx*blockBytes : (bx+1)*blockBytes]
			cbOff := subX * subY * bps
			crOff := cbOff + bps
			cb := float64(predictorReadValue(block, cbOff, bps, order))
			cr := float64(predictorReadValue(block, crOff, bps, order))

			for dy := 0; dy < subY; dy++ {
				for dx := 0; dx < subX; dx++ {
					yi := dy*subX + dx
					y := float64(predictorReadValue(block, yi*bps, bps, order))

					r := y + (2-2*lr)*(cr-refBlack)
					b := y + (2-2*lb)*(cb-refBlack)
					g := (y - lr*r - lb*b) / lg

					px, py := bx*subX+dx, by*subY+dy
					outOff := py*rowBytes + px*3*bps
					predictorWriteValue(out, outOff, bps, order, clampSample(r, maxV))
					predictorWriteValue(out, outOff+bps, bps, order, clampSample(g, maxV))
					predictorWriteValue(out, outOff+2*bps, bps, order, clampSample(b, maxV))
				}
			}
		}
	}

	unpackOpts := opts
	unpackOpts.BytesPerSample = bps
	return cropAligned(out, unpackOpts, rowBytes), nil
}

func clampSample(v, maxV float64) uint64 {
	if v < 0 {
		return 0
	}
	if v > maxV {
		return uint64(maxV)
	}
	return uint64(v + 0.5)
}

func rationalFloat(r Rational) float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}
