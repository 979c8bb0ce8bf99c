package tiffcore

import "testing"

import "github.com/stretchr/testify/require"

func tiledIFD17x17() *IFD {
	ifd := NewIFD(false)
	ifd.ImageWidth = 17
	ifd.ImageHeight = 17
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.TileWidth = 16
	ifd.TileLength = 16
	ifd.TileOffsets = make([]uint64, 4)
	ifd.TileByteCounts = make([]uint64, 4)
	return ifd
}

func TestNewTileMapGridShape(t *testing.T) {
	ifd := tiledIFD17x17()
	tm, err := NewTileMap(ifd, false)
	require.NoError(t, err)
	require.Equal(t, uint32(2), tm.TileCountX())
	require.Equal(t, uint32(2), tm.TileCountY())
	require.Equal(t, uint32(1), tm.NPlanes())
	require.Len(t, tm.All(), 4)
}

func TestTileMapBoundaryTileIsCropped(t *testing.T) {
	ifd := tiledIFD17x17()
	tm, err := NewTileMap(ifd, false)
	require.NoError(t, err)

	interior := tm.Slot(TileIndex{X: 0, Y: 0})
	require.Equal(t, uint32(16), interior.CroppedSizeX)
	require.Equal(t, uint32(16), interior.CroppedSizeY)

	corner := tm.Slot(TileIndex{X: 1, Y: 1})
	require.Equal(t, uint32(16), corner.SizeX, "nominal size stays the full tile width")
	require.Equal(t, uint32(1), corner.CroppedSizeX, "17 = one full 16-wide tile plus 1 column")
	require.Equal(t, uint32(1), corner.CroppedSizeY)
}

func TestTileMapSlotUnknownIndexIsNil(t *testing.T) {
	ifd := tiledIFD17x17()
	tm, err := NewTileMap(ifd, false)
	require.NoError(t, err)
	require.Nil(t, tm.Slot(TileIndex{X: 5, Y: 5}))
}

func TestTileMapExpandGrowsGrid(t *testing.T) {
	ifd := NewIFD(false)
	ifd.ImageWidth = 16
	ifd.ImageHeight = 16
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.TileWidth = 16
	ifd.TileLength = 16
	ifd.TileOffsets = []uint64{0}
	ifd.TileByteCounts = []uint64{0}

	tm, err := NewTileMap(ifd, true)
	require.NoError(t, err)
	require.Equal(t, uint32(1), tm.TileCountY())

	require.NoError(t, tm.Expand(32))
	require.Equal(t, uint32(2), tm.TileCountY())
	require.Equal(t, uint64(32), ifd.ImageHeight)
	require.NotNil(t, tm.Slot(TileIndex{X: 0, Y: 1}), "expand must add the new row's slots")
}

func TestTileMapExpandRejectsNonResizable(t *testing.T) {
	ifd := tiledIFD17x17()
	tm, err := NewTileMap(ifd, false)
	require.NoError(t, err)
	require.Error(t, tm.Expand(64))
}

func TestTileMapExpandRejectsShrink(t *testing.T) {
	ifd := NewIFD(false)
	ifd.ImageWidth = 16
	ifd.ImageHeight = 32
	ifd.SamplesPerPixel = 1
	ifd.BitsPerSample = []uint16{8}
	ifd.TileWidth = 16
	ifd.TileLength = 16
	ifd.TileOffsets = make([]uint64, 2)
	ifd.TileByteCounts = make([]uint64, 2)

	tm, err := NewTileMap(ifd, true)
	require.NoError(t, err)
	require.Error(t, tm.Expand(16))
}

func TestTileMapPlanarSeparateHasOneSamplePerPlane(t *testing.T) {
	ifd := NewIFD(false)
	ifd.ImageWidth = 16
	ifd.ImageHeight = 16
	ifd.SamplesPerPixel = 3
	ifd.BitsPerSample = []uint16{8, 8, 8}
	ifd.PlanarConfig = PlanarSeparate
	ifd.TileWidth = 16
	ifd.TileLength = 16
	ifd.TileOffsets = make([]uint64, 3)
	ifd.TileByteCounts = make([]uint64, 3)

	tm, err := NewTileMap(ifd, false)
	require.NoError(t, err)
	require.Equal(t, uint32(3), tm.NPlanes())
	slot := tm.Slot(TileIndex{Plane: 1, X: 0, Y: 0})
	require.Equal(t, 1, slot.SamplesPerPixelInTile)
	require.False(t, slot.Interleaved)
}
