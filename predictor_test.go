package tiffcore

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHorizontalPredictorRoundTrip8Bit(t *testing.T) {
	row := []byte{10, 20, 30, 1, 2, 3, 255, 0, 128}
	original := append([]byte(nil), row...)

	require.NoError(t, EncodeHorizontalPredictor(row, 3, 1, binary.BigEndian))
	require.NotEqual(t, original, row, "encoding should change a non-constant row")

	require.NoError(t, DecodeHorizontalPredictor(row, 3, 1, binary.BigEndian))
	require.Equal(t, original, row)
}

func TestHorizontalPredictorRoundTrip16Bit(t *testing.T) {
	samples := []uint16{1000, 2000, 65000, 100, 50000, 1}
	row := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.BigEndian.PutUint16(row[i*2:], s)
	}
	original := append([]byte(nil), row...)

	require.NoError(t, EncodeHorizontalPredictor(row, 2, 2, binary.BigEndian))
	require.NoError(t, DecodeHorizontalPredictor(row, 2, 2, binary.BigEndian))
	require.Equal(t, original, row)
}

func TestHorizontalPredictorFirstPixelUnchanged(t *testing.T) {
	row := []byte{42, 7, 9}
	require.NoError(t, EncodeHorizontalPredictor(row, 3, 1, binary.BigEndian))
	require.Equal(t, byte(42), row[0], "the first pixel's first channel must be left untouched")
}

func TestHorizontalPredictorRejectsBadStride(t *testing.T) {
	row := []byte{1, 2, 3, 4, 5}
	err := EncodeHorizontalPredictor(row, 2, 1, binary.BigEndian)
	require.Error(t, err)
}

func TestHorizontalPredictorBitsRoundTrip(t *testing.T) {
	// 13 one-bit pixels, MSB-first: 1010 1100 1101 0xxx (last 3 bits pad).
	row := []byte{0xAC, 0xD0}
	original := append([]byte(nil), row...)

	EncodeHorizontalPredictorBits(row, 13, 1)
	require.NotEqual(t, original, row, "encoding should change a non-constant row")

	DecodeHorizontalPredictorBits(row, 13, 1)
	require.Equal(t, original, row)
}

func TestHorizontalPredictorBitsFirstPixelUnchanged(t *testing.T) {
	row := []byte{0x80} // single set bit: pixel 0 = 1, rest 0
	EncodeHorizontalPredictorBits(row, 8, 1)
	require.Equal(t, uint64(1), readBitsMSBFirst(row, 0, 1), "the first pixel must be left untouched")
}
