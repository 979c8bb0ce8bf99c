package tiffcore

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTripUncompressedTile(t *testing.T) {
	pixels := make([]byte, 16*16)
	for i := range pixels {
		pixels[i] = byte(i)
	}

	mf := newMemFile()
	w, err := NewWriter(NewFileStream(mf))
	require.NoError(t, err)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = 16, 16
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.Photometric = PhotometricBlackIsZero
	ifd.TileWidth, ifd.TileLength = 16, 16

	require.NoError(t, w.WriteTile(ifd, TileIndex{}, pixels))
	require.NoError(t, w.Finish())

	_, err = mf.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(NewFileStream(mf))
	require.NoError(t, err)
	require.False(t, r.BigTIFF())

	ifds, err := r.IFDs()
	require.NoError(t, err)
	require.Len(t, ifds, 1)
	require.Equal(t, uint64(16), ifds[0].ImageWidth)
	require.Equal(t, uint64(16), ifds[0].ImageHeight)

	out, err := r.ReadTile(ifds[0], TileIndex{})
	require.NoError(t, err)
	require.Equal(t, pixels, out)
}

func TestWriterReaderRoundTripWithHorizontalPredictor(t *testing.T) {
	width, height := 32, 16
	pixels := make([]byte, width*height)
	for i := range pixels {
		pixels[i] = byte((i*37 + 11) % 256)
	}

	mf := newMemFile()
	w, err := NewWriter(NewFileStream(mf))
	require.NoError(t, err)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = uint64(width), uint64(height)
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.Photometric = PhotometricBlackIsZero
	ifd.TileWidth, ifd.TileLength = uint32(width), uint32(height)
	ifd.Predictor = PredictorHorizontal

	require.NoError(t, w.WriteTile(ifd, TileIndex{}, pixels))
	require.NoError(t, w.Finish())

	_, err = mf.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(NewFileStream(mf))
	require.NoError(t, err)
	ifds, err := r.IFDs()
	require.NoError(t, err)

	out, err := r.ReadTile(ifds[0], TileIndex{})
	require.NoError(t, err)
	require.Equal(t, pixels, out)
}

func TestReaderCropsBoundaryTiles(t *testing.T) {
	mf := newMemFile()
	w, err := NewWriter(NewFileStream(mf))
	require.NoError(t, err)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = 17, 17
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.Photometric = PhotometricBlackIsZero
	ifd.TileWidth, ifd.TileLength = 16, 16

	markers := map[TileIndex]byte{
		{X: 0, Y: 0}: 1,
		{X: 1, Y: 0}: 2,
		{X: 0, Y: 1}: 3,
		{X: 1, Y: 1}: 4,
	}
	for idx, marker := range markers {
		pixels := make([]byte, 16*16)
		for i := range pixels {
			pixels[i] = 0xFF
		}
		pixels[0] = marker
		require.NoError(t, w.WriteTile(ifd, idx, pixels))
	}
	require.NoError(t, w.Finish())

	_, err = mf.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(NewFileStream(mf))
	require.NoError(t, err)
	ifds, err := r.IFDs()
	require.NoError(t, err)
	got := ifds[0]

	out00, err := r.ReadTile(got, TileIndex{X: 0, Y: 0})
	require.NoError(t, err)
	require.Len(t, out00, 16*16, "top-left tile is fully interior, not cropped")

	out11, err := r.ReadTile(got, TileIndex{X: 1, Y: 1})
	require.NoError(t, err)
	require.Equal(t, []byte{4}, out11, "bottom-right tile crops to its single valid pixel")

	out10, err := r.ReadTile(got, TileIndex{X: 1, Y: 0})
	require.NoError(t, err)
	require.Len(t, out10, 1*16, "right-edge tile crops its width to 1 column, keeps full height")
}

func TestReaderIFDChainCycleDetected(t *testing.T) {
	mf := newMemFile()
	s := NewFileStream(mf)
	s.SetByteOrder(binary.BigEndian)

	require.NoError(t, s.WriteExact([]byte("MM")))
	require.NoError(t, s.WriteU16(42))
	require.NoError(t, s.WriteU32(8)) // first IFD at offset 8

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = 1, 1
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.TileWidth, ifd.TileLength = 1, 1
	ifd.TileOffsets = []uint64{0}
	ifd.TileByteCounts = []uint64{0}

	_, err := s.Seek(8, 0)
	require.NoError(t, err)
	slotPos, err := ifd.Emit(s)
	require.NoError(t, err)
	// Point the IFD's next-IFD slot back at its own directory: a one-node cycle.
	require.NoError(t, ifd.PatchNextIFDOffset(s, 8))
	_ = slotPos

	_, err = s.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(s)
	require.NoError(t, err)
	_, err = r.IFDs()
	require.Error(t, err)
}

func TestReaderMissingTileAllowedReturnsFillerBytes(t *testing.T) {
	mf := newMemFile()
	s := NewFileStream(mf)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = 16, 16
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.TileWidth, ifd.TileLength = 16, 16
	ifd.TileOffsets = []uint64{0}
	ifd.TileByteCounts = []uint64{0}

	require.NoError(t, s.WriteExact([]byte("MM")))
	require.NoError(t, s.WriteU16(42))
	pos, err := s.Offset()
	require.NoError(t, err)
	require.NoError(t, s.WriteU32(0))
	ifdPos, err := s.Offset()
	require.NoError(t, err)
	_, err = ifd.Emit(s)
	require.NoError(t, err)
	_, err = s.Seek(pos, 0)
	require.NoError(t, err)
	require.NoError(t, s.WriteU32(uint32(ifdPos)))

	_, err = s.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(s, WithMissingTilesAllowed(true), WithByteFiller(0x77))
	require.NoError(t, err)
	ifds, err := r.IFDs()
	require.NoError(t, err)

	out, err := r.ReadTile(ifds[0], TileIndex{})
	require.NoError(t, err)
	require.Len(t, out, 16*16)
	for _, b := range out {
		require.Equal(t, byte(0x77), b)
	}
}

func TestWriterReaderRoundTripPureBinaryTile(t *testing.T) {
	width, height := 10, 2
	rowBytes := (width + 7) / 8
	pixels := []byte{0xAC, 0x80, 0x55, 0x00}
	require.Len(t, pixels, rowBytes*height)

	mf := newMemFile()
	w, err := NewWriter(NewFileStream(mf))
	require.NoError(t, err)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = uint64(width), uint64(height)
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{1}
	ifd.Photometric = PhotometricBlackIsZero
	ifd.TileWidth, ifd.TileLength = uint32(width), uint32(height)

	require.NoError(t, w.WriteTile(ifd, TileIndex{}, pixels))
	require.NoError(t, w.Finish())

	_, err = mf.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(NewFileStream(mf))
	require.NoError(t, err)
	ifds, err := r.IFDs()
	require.NoError(t, err)

	out, err := r.ReadTile(ifds[0], TileIndex{})
	require.NoError(t, err)
	require.Equal(t, pixels, out, "a 1-bit tile must round-trip bit-packed, not promoted to one byte per sample")
}

func TestWriterReaderRoundTripPureBinaryWithHorizontalPredictor(t *testing.T) {
	width, height := 13, 3
	rowBytes := (width + 7) / 8
	pixels := make([]byte, rowBytes*height)
	for i := range pixels {
		pixels[i] = byte(i*37 + 11)
	}

	mf := newMemFile()
	w, err := NewWriter(NewFileStream(mf))
	require.NoError(t, err)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = uint64(width), uint64(height)
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{1}
	ifd.Photometric = PhotometricBlackIsZero
	ifd.TileWidth, ifd.TileLength = uint32(width), uint32(height)
	ifd.Predictor = PredictorHorizontal

	require.NoError(t, w.WriteTile(ifd, TileIndex{}, pixels))
	require.NoError(t, w.Finish())

	_, err = mf.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(NewFileStream(mf))
	require.NoError(t, err)
	ifds, err := r.IFDs()
	require.NoError(t, err)

	out, err := r.ReadTile(ifds[0], TileIndex{})
	require.NoError(t, err)
	require.Equal(t, pixels, out)
}

func TestReaderInterleaveResultsFalseLeavesPlanesSeparate(t *testing.T) {
	mf := newMemFile()
	w, err := NewWriter(NewFileStream(mf), WithAutoInterleaveSource(false))
	require.NoError(t, err)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = 2, 1
	ifd.SamplesPerPixel = 2
	ifd.BitsPerSample = []uint16{8, 8}
	ifd.PlanarConfig = PlanarSeparate
	ifd.TileWidth, ifd.TileLength = 2, 1

	require.NoError(t, w.WriteTile(ifd, TileIndex{Plane: 0}, []byte{1, 2}))
	require.NoError(t, w.WriteTile(ifd, TileIndex{Plane: 1}, []byte{3, 4}))
	require.NoError(t, w.Finish())

	_, err = mf.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(NewFileStream(mf), WithInterleaveResults(false))
	require.NoError(t, err)
	ifds, err := r.IFDs()
	require.NoError(t, err)

	plane0, err := r.ReadTile(ifds[0], TileIndex{Plane: 0})
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, plane0, "with interleaving disabled, each plane's own tile comes back untouched")

	plane1, err := r.ReadTile(ifds[0], TileIndex{Plane: 1})
	require.NoError(t, err)
	require.Equal(t, []byte{3, 4}, plane1)
}

func TestReaderLogsThroughInjectedLogger(t *testing.T) {
	mf := newMemFile()
	w, err := NewWriter(NewFileStream(mf))
	require.NoError(t, err)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = 1, 1
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.Photometric = PhotometricBlackIsZero
	ifd.TileWidth, ifd.TileLength = 1, 1
	require.NoError(t, w.WriteTile(ifd, TileIndex{}, []byte{1}))
	require.NoError(t, w.Finish())

	_, err = mf.Seek(0, 0)
	require.NoError(t, err)
	logs := &stubLogger{}
	r, err := NewReader(NewFileStream(mf), WithReaderLogger(logs))
	require.NoError(t, err)
	require.True(t, logs.hasMessageContaining("parsed header"))

	_, err = r.IFDs()
	require.NoError(t, err)
	require.True(t, logs.hasMessageContaining("walked IFD chain"))
}

func TestWriterMissingTileFillerIsSharedAcrossSlots(t *testing.T) {
	mf := newMemFile()
	w, err := NewWriter(NewFileStream(mf), WithWriterMissingTilesAllowed(true), WithWriterByteFiller(0x11))
	require.NoError(t, err)

	ifd := NewIFD(false)
	ifd.ImageWidth, ifd.ImageHeight = 32, 16
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.Photometric = PhotometricBlackIsZero
	ifd.TileWidth, ifd.TileLength = 16, 16

	pixels := make([]byte, 16*16)
	for i := range pixels {
		pixels[i] = 9
	}
	// Only the left tile is written; the right tile is left missing.
	require.NoError(t, w.WriteTile(ifd, TileIndex{X: 0, Y: 0}, pixels))
	require.NoError(t, w.Finish())

	_, err = mf.Seek(0, 0)
	require.NoError(t, err)
	r, err := NewReader(NewFileStream(mf))
	require.NoError(t, err)
	ifds, err := r.IFDs()
	require.NoError(t, err)

	left, err := r.ReadTile(ifds[0], TileIndex{X: 0, Y: 0})
	require.NoError(t, err)
	require.Equal(t, pixels, left)

	right, err := r.ReadTile(ifds[0], TileIndex{X: 1, Y: 0})
	require.NoError(t, err)
	require.Len(t, right, 16*16)
	for _, b := range right {
		require.Equal(t, byte(0x11), b)
	}
}
