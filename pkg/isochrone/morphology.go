package isochrone

// dilateSparse performs one round of 8-connected dilation: a cell is set
// in the output if any of its 9 neighbors (including itself) is set in
// the input. Each tile row is widened by bitwise OR with itself shifted
// left/right by one, with the boundary bit carried in from the
// neighboring tile's edge column — the same trick TileBitmap packs a row
// into a single uint64 for in the first place.
func dilateSparse(m *SparseTileMap) *SparseTileMap {
	result := NewSparseTileMap(m.CellSizeM, m.OriginX, m.OriginY)

	for coord := range m.activeTilesWithHalo() {
		center := getTileBits(m, coord)
		above := getTileBits(m, TileCoord{TX: coord.TX, TY: coord.TY - 1})
		below := getTileBits(m, TileCoord{TX: coord.TX, TY: coord.TY + 1})
		left := getTileBits(m, TileCoord{TX: coord.TX - 1, TY: coord.TY})
		right := getTileBits(m, TileCoord{TX: coord.TX + 1, TY: coord.TY})
		aboveLeft := getTileBits(m, TileCoord{TX: coord.TX - 1, TY: coord.TY - 1})
		aboveRight := getTileBits(m, TileCoord{TX: coord.TX + 1, TY: coord.TY - 1})
		belowLeft := getTileBits(m, TileCoord{TX: coord.TX - 1, TY: coord.TY + 1})
		belowRight := getTileBits(m, TileCoord{TX: coord.TX + 1, TY: coord.TY + 1})

		var newTile TileBitmap

		for lr := 0; lr < TileSize; lr++ {
			cur := center[lr]
			leftBit := (left[lr] >> 63) & 1
			rightBit := (right[lr] & 1) << 63
			curH := cur | (cur << 1) | (cur >> 1) | leftBit | rightBit

			var aboveRow, aboveLeftRow, aboveRightRow uint64
			if lr == 0 {
				aboveRow, aboveLeftRow, aboveRightRow = above[TileSize-1], aboveLeft[TileSize-1], aboveRight[TileSize-1]
			} else {
				aboveRow, aboveLeftRow, aboveRightRow = center[lr-1], left[lr-1], right[lr-1]
			}
			aboveLeftBit := (aboveLeftRow >> 63) & 1
			aboveRightBit := (aboveRightRow & 1) << 63
			aboveH := aboveRow | (aboveRow << 1) | (aboveRow >> 1) | aboveLeftBit | aboveRightBit

			var belowRow, belowLeftRow, belowRightRow uint64
			if lr == TileSize-1 {
				belowRow, belowLeftRow, belowRightRow = below[0], belowLeft[0], belowRight[0]
			} else {
				belowRow, belowLeftRow, belowRightRow = center[lr+1], left[lr+1], right[lr+1]
			}
			belowLeftBit := (belowLeftRow >> 63) & 1
			belowRightBit := (belowRightRow & 1) << 63
			belowH := belowRow | (belowRow << 1) | (belowRow >> 1) | belowLeftBit | belowRightBit

			newTile.Bits[lr] = curH | aboveH | belowH
		}

		if !newTile.IsEmpty() {
			t := newTile
			result.Tiles[coord] = &t
		}
	}

	return result
}

// erodeSparse performs one round of 8-connected erosion: a cell stays set
// only if all 9 neighbors are set. Missing tiles read as zero, so a tile
// bordering an unallocated neighbor erodes at that edge — spec.md §4.5
// step 4's "erosion trims the dilation halo back."
func erodeSparse(m *SparseTileMap) *SparseTileMap {
	result := NewSparseTileMap(m.CellSizeM, m.OriginX, m.OriginY)

	for coord := range m.Tiles {
		center := getTileBits(m, coord)
		above := getTileBits(m, TileCoord{TX: coord.TX, TY: coord.TY - 1})
		below := getTileBits(m, TileCoord{TX: coord.TX, TY: coord.TY + 1})
		left := getTileBits(m, TileCoord{TX: coord.TX - 1, TY: coord.TY})
		right := getTileBits(m, TileCoord{TX: coord.TX + 1, TY: coord.TY})
		aboveLeft := getTileBits(m, TileCoord{TX: coord.TX - 1, TY: coord.TY - 1})
		aboveRight := getTileBits(m, TileCoord{TX: coord.TX + 1, TY: coord.TY - 1})
		belowLeft := getTileBits(m, TileCoord{TX: coord.TX - 1, TY: coord.TY + 1})
		belowRight := getTileBits(m, TileCoord{TX: coord.TX + 1, TY: coord.TY + 1})

		var newTile TileBitmap

		for lr := 0; lr < TileSize; lr++ {
			cur := center[lr]
			if cur == 0 {
				continue
			}

			leftBit := (left[lr] >> 63) & 1
			rightBit := (right[lr] & 1) << 63
			curH := cur & ((cur << 1) | leftBit) & ((cur >> 1) | rightBit)

			var aboveRow, aboveLeftRow, aboveRightRow uint64
			if lr == 0 {
				aboveRow, aboveLeftRow, aboveRightRow = above[TileSize-1], aboveLeft[TileSize-1], aboveRight[TileSize-1]
			} else {
				aboveRow, aboveLeftRow, aboveRightRow = center[lr-1], left[lr-1], right[lr-1]
			}
			aboveLeftBit := (aboveLeftRow >> 63) & 1
			aboveRightBit := (aboveRightRow & 1) << 63
			aboveH := aboveRow & ((aboveRow << 1) | aboveLeftBit) & ((aboveRow >> 1) | aboveRightBit)

			var belowRow, belowLeftRow, belowRightRow uint64
			if lr == TileSize-1 {
				belowRow, belowLeftRow, belowRightRow = below[0], belowLeft[0], belowRight[0]
			} else {
				belowRow, belowLeftRow, belowRightRow = center[lr+1], left[lr+1], right[lr+1]
			}
			belowLeftBit := (belowLeftRow >> 63) & 1
			belowRightBit := (belowRightRow & 1) << 63
			belowH := belowRow & ((belowRow << 1) | belowLeftBit) & ((belowRow >> 1) | belowRightBit)

			newTile.Bits[lr] = curH & aboveH & belowH
		}

		if !newTile.IsEmpty() {
			t := newTile
			result.Tiles[coord] = &t
		}
	}

	return result
}
