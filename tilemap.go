package tiffcore

// TileIndex addresses one tile/strip within an IFD's grid: Plane selects
// the sample-plane for planar-separated images (always 0 for chunked),
// X/Y are the column/row in tile units (spec.md §4.4/§4.9).
type TileIndex struct {
	Plane uint32
	X     uint32
	Y     uint32
}

// TileSlot describes one entry of a TileMap: its geometry (possibly
// cropped against the image boundary, per spec.md's boundary-tile
// scenario), its file positioning once written, and whether its region
// has been filled.
type TileSlot struct {
	Index TileIndex

	// SizeX/SizeY are the tile's full nominal dimensions; CroppedSizeX/
	// CroppedSizeY are what's actually valid when the tile overhangs the
	// image edge (SizeX/SizeY for interior tiles).
	SizeX, SizeY               uint32
	CroppedSizeX, CroppedSizeY uint32

	SamplesPerPixelInTile int
	BytesPerSample        uint64
	Interleaved           bool

	FileOffset    uint64
	FileByteCount uint64

	Filled bool
}

// TileMap is the grid of TileSlot descriptors derived from an IFD's
// geometry tags, per spec.md §4.4. A Reader builds one read-only map per
// IFD. A map may also be resizable (see Expand); Writer does not build
// TileMaps.
type TileMap struct {
	ifd *IFD

	tileCountX, tileCountY uint32
	nPlanes                uint32

	slots map[TileIndex]*TileSlot

	resizable bool
}

// NewTileMap builds a TileMap that mirrors ifd's current geometry. Pass
// resizable=true for a Writer-side map that will grow via Expand as more
// rows of tiles are appended.
func NewTileMap(ifd *IFD, resizable bool) (*TileMap, error) {
	tm := &TileMap{ifd: ifd, resizable: resizable, slots: map[TileIndex]*TileSlot{}}
	if err := tm.rebuild(); err != nil {
		return nil, err
	}
	ifd.tileMap = tm
	return tm, nil
}

func (tm *TileMap) rebuild() error {
	tm.tileCountX = uint32(tm.ifd.NTilesX())
	tm.tileCountY = uint32(tm.ifd.NTilesY())
	tm.nPlanes = uint32(tm.ifd.NPlanes())

	tileW := uint32(tm.ifd.EffectiveTileWidth())
	tileH := uint32(tm.ifd.EffectiveTileLength())
	bps, err := tm.ifd.BytesPerSample()
	if err != nil {
		return err
	}
	samplesPerTile := int(tm.ifd.SamplesPerPixel)
	if tm.ifd.PlanarConfig == PlanarSeparate {
		samplesPerTile = 1
	}

	offs, counts := tm.ifd.currentOffsetsAndCounts()

	tm.slots = make(map[TileIndex]*TileSlot, tm.tileCountX*tm.tileCountY*tm.nPlanes)
	for plane := uint32(0); plane < tm.nPlanes; plane++ {
		for y := uint32(0); y < tm.tileCountY; y++ {
			for x := uint32(0); x < tm.tileCountX; x++ {
				idx := TileIndex{Plane: plane, X: x, Y: y}
				cw, ch := tileW, tileH
				if right := uint64(x+1) * uint64(tileW); right > tm.ifd.ImageWidth {
					cw = uint32(tm.ifd.ImageWidth - uint64(x)*uint64(tileW))
				}
				if bottom := uint64(y+1) * uint64(tileH); bottom > tm.ifd.ImageHeight {
					ch = uint32(tm.ifd.ImageHeight - uint64(y)*uint64(tileH))
				}
				slot := &TileSlot{
					Index:                 idx,
					SizeX:                 tileW,
					SizeY:                 tileH,
					CroppedSizeX:          cw,
					CroppedSizeY:          ch,
					SamplesPerPixelInTile: samplesPerTile,
					BytesPerSample:        bps,
					Interleaved:           tm.ifd.PlanarConfig != PlanarSeparate,
				}
				lin := tm.ifd.TileLinearIndex(idx)
				if lin < uint64(len(offs)) {
					slot.FileOffset = offs[lin]
					slot.FileByteCount = counts[lin]
					slot.Filled = offs[lin] != 0 || counts[lin] != 0
				}
				tm.slots[idx] = slot
			}
		}
	}
	return nil
}

// invalidate forces the next Slot/All call to recompute from the IFD's
// current tags. Called by IFD.invalidateCache whenever a mutation could
// have changed geometry or positioning.
func (tm *TileMap) invalidate() {
	_ = tm.rebuild()
}

// Slot returns the descriptor for idx, or nil if idx is out of range.
func (tm *TileMap) Slot(idx TileIndex) *TileSlot {
	return tm.slots[idx]
}

// TileCountX, TileCountY, NPlanes report the map's current grid shape.
func (tm *TileMap) TileCountX() uint32 { return tm.tileCountX }
func (tm *TileMap) TileCountY() uint32 { return tm.tileCountY }
func (tm *TileMap) NPlanes() uint32    { return tm.nPlanes }

// All returns every slot in row-major, plane-major order, matching the
// on-disk tile_offsets/tile_byte_counts ordering (spec.md §4.9).
func (tm *TileMap) All() []*TileSlot {
	out := make([]*TileSlot, 0, len(tm.slots))
	for plane := uint32(0); plane < tm.nPlanes; plane++ {
		for y := uint32(0); y < tm.tileCountY; y++ {
			for x := uint32(0); x < tm.tileCountX; x++ {
				out = append(out, tm.slots[TileIndex{Plane: plane, X: x, Y: y}])
			}
		}
	}
	return out
}

// Expand grows a resizable TileMap to cover newHeight rows, appending
// fresh, unfilled slots for the new tile rows without disturbing any
// slot already present (spec.md §8 boundary scenario: "a resizable map
// must support append-only growth for a writer streaming rows before
// the final image height is known").
func (tm *TileMap) Expand(newHeight uint64) error {
	if !tm.resizable {
		return errUnsupportedf("TileMap.Expand", "tile map is not resizable")
	}
	if newHeight < tm.ifd.ImageHeight {
		return errRangef("TileMap.Expand", "cannot shrink a tile map from %d to %d", tm.ifd.ImageHeight, newHeight)
	}
	if err := tm.ifd.UpdateImageDimensions(tm.ifd.ImageWidth, newHeight); err != nil {
		return err
	}
	return tm.rebuild()
}

// currentOffsetsAndCounts returns the IFD's current positioning arrays
// as stored; they may be nil or shorter than the tile count when not yet
// populated (fresh writer-side IFDs before any tile has been written).
func (ifd *IFD) currentOffsetsAndCounts() (offsets, counts []uint64) {
	if ifd.IsTiled() {
		return ifd.TileOffsets, ifd.TileByteCounts
	}
	return ifd.StripOffsets, ifd.StripByteCounts
}
