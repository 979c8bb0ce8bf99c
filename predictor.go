package tiffcore

import "encoding/binary"

// predictorReadValue/predictorWriteValue read and write one sample at
// byteOffset within a scanline buffer, sized bytesPerSample (1, 2, 4, or
// 8), honoring the stream's byte order. Predictor math is done on the
// plain integer value; wraparound on the subtraction/addition is exactly
// the modular arithmetic the TIFF spec requires (spec.md §4.5).
func predictorReadValue(row []byte, byteOffset int, bytesPerSample int, order binary.ByteOrder) uint64 {
	switch bytesPerSample {
	case 1:
		return uint64(row[byteOffset])
	case 2:
		return uint64(order.Uint16(row[byteOffset:]))
	case 4:
		return uint64(order.Uint32(row[byteOffset:]))
	case 8:
		return order.Uint64(row[byteOffset:])
	default:
		return 0
	}
}

func predictorWriteValue(row []byte, byteOffset int, bytesPerSample int, order binary.ByteOrder, v uint64) {
	switch bytesPerSample {
	case 1:
		row[byteOffset] = byte(v)
	case 2:
		order.PutUint16(row[byteOffset:], uint16(v))
	case 4:
		order.PutUint32(row[byteOffset:], uint32(v))
	case 8:
		order.PutUint64(row[byteOffset:], v)
	}
}

// EncodeHorizontalPredictor applies TIFF's horizontal differencing
// predictor (Predictor=2) to a single scanline in place: each channel's
// sample is replaced by its difference from the same channel's sample in
// the previous pixel, wrapping modulo 2^(bytesPerSample*8). The first
// pixel of the row is left untouched, per spec.md §4.5.
func EncodeHorizontalPredictor(row []byte, samplesPerPixel int, bytesPerSample int, order binary.ByteOrder) error {
	if bytesPerSample == 0 || samplesPerPixel == 0 {
		return errUnsupportedf("EncodeHorizontalPredictor", "invalid shape: %d samples x %d bytes", samplesPerPixel, bytesPerSample)
	}
	stride := samplesPerPixel * bytesPerSample
	if len(row)%stride != 0 {
		return errFormatCorruptf("EncodeHorizontalPredictor", "row length %d not a multiple of pixel stride %d", len(row), stride)
	}
	mask := sampleMask(bytesPerSample)
	for off := len(row) - stride; off >= stride; off -= stride {
		for c := 0; c < samplesPerPixel; c++ {
			byteOff := off + c*bytesPerSample
			prevOff := off - stride + c*bytesPerSample
			cur := predictorReadValue(row, byteOff, bytesPerSample, order)
			prev := predictorReadValue(row, prevOff, bytesPerSample, order)
			predictorWriteValue(row, byteOff, bytesPerSample, order, (cur-prev)&mask)
		}
	}
	return nil
}

// DecodeHorizontalPredictor reverses EncodeHorizontalPredictor, turning
// differenced samples back into absolute values by running forward
// through the row accumulating sums.
func DecodeHorizontalPredictor(row []byte, samplesPerPixel int, bytesPerSample int, order binary.ByteOrder) error {
	if bytesPerSample == 0 || samplesPerPixel == 0 {
		return errUnsupportedf("DecodeHorizontalPredictor", "invalid shape: %d samples x %d bytes", samplesPerPixel, bytesPerSample)
	}
	stride := samplesPerPixel * bytesPerSample
	if len(row)%stride != 0 {
		return errFormatCorruptf("DecodeHorizontalPredictor", "row length %d not a multiple of pixel stride %d", len(row), stride)
	}
	mask := sampleMask(bytesPerSample)
	for off := stride; off < len(row); off += stride {
		for c := 0; c < samplesPerPixel; c++ {
			byteOff := off + c*bytesPerSample
			prevOff := off - stride + c*bytesPerSample
			cur := predictorReadValue(row, byteOff, bytesPerSample, order)
			prev := predictorReadValue(row, prevOff, bytesPerSample, order)
			predictorWriteValue(row, byteOff, bytesPerSample, order, (cur+prev)&mask)
		}
	}
	return nil
}

func sampleMask(bytesPerSample int) uint64 {
	if bytesPerSample >= 8 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(bytesPerSample*8)) - 1
}

// EncodeHorizontalPredictorBits applies the horizontal predictor to a
// bit-packed, MSB-first row of 1-bit samples in place: each channel's
// bit is replaced by its bitwise XOR with the same channel's bit in the
// previous pixel (spec.md §4.5's 1-bit case — subtraction mod 2 is XOR).
// The first pixel of the row is left untouched. Must run right-to-left
// so each previous-pixel bit is still read before it is overwritten.
func EncodeHorizontalPredictorBits(row []byte, width, samplesPerPixel int) {
	for s := width*samplesPerPixel - 1; s >= samplesPerPixel; s-- {
		cur := readBitsMSBFirst(row, s, 1)
		prev := readBitsMSBFirst(row, s-samplesPerPixel, 1)
		writeBitsMSBFirst(row, s, 1, cur^prev)
	}
}

// DecodeHorizontalPredictorBits reverses EncodeHorizontalPredictorBits.
// XOR is its own inverse, so decoding runs the identical bit-by-bit
// computation left-to-right, each step consuming the already-decoded
// previous pixel's bit.
func DecodeHorizontalPredictorBits(row []byte, width, samplesPerPixel int) {
	for s := samplesPerPixel; s < width*samplesPerPixel; s++ {
		cur := readBitsMSBFirst(row, s, 1)
		prev := readBitsMSBFirst(row, s-samplesPerPixel, 1)
		writeBitsMSBFirst(row, s, 1, cur^prev)
	}
}
