package isochrone

import "math"

// TileSize is the edge length of one raster tile in cells: 64x64 cells
// pack into 64 uint64 rows, one bit per cell (512 bytes per tile).
const TileSize = 64

// TileCoord addresses one tile in the sparse grid.
type TileCoord struct {
	TX, TY int32
}

// TileBitmap is one tile's 64x64 cell bitmap, one uint64 per row.
type TileBitmap struct {
	Bits [TileSize]uint64
}

// Get reports whether a local cell is set.
func (t *TileBitmap) Get(localCol, localRow int) bool {
	return (t.Bits[localRow]>>uint(localCol))&1 != 0
}

// Set marks a local cell.
func (t *TileBitmap) Set(localCol, localRow int) {
	t.Bits[localRow] |= 1 << uint(localCol)
}

// IsEmpty reports whether every row is zero.
func (t *TileBitmap) IsEmpty() bool {
	for _, row := range t.Bits {
		if row != 0 {
			return false
		}
	}
	return true
}

// CountSet returns the number of set bits across the tile.
func (t *TileBitmap) CountSet() int {
	n := 0
	for _, row := range t.Bits {
		n += popcount64(row)
	}
	return n
}

func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}

var emptyTile TileBitmap

// SparseTileMap is a hash of on-demand-allocated tiles over an unbounded
// Mercator-space cell grid. Only tiles that were actually stamped exist;
// lookups against a missing tile read as all-zero.
type SparseTileMap struct {
	Tiles     map[TileCoord]*TileBitmap
	CellSizeM float64
	OriginX   float64 // Mercator X of global cell (0,0)
	OriginY   float64 // Mercator Y of global cell (0,0)
}

// NewSparseTileMap creates an empty map anchored at (originX, originY).
func NewSparseTileMap(cellSizeM, originX, originY float64) *SparseTileMap {
	return &SparseTileMap{
		Tiles:     make(map[TileCoord]*TileBitmap),
		CellSizeM: cellSizeM,
		OriginX:   originX,
		OriginY:   originY,
	}
}

// MercatorToCell converts a Mercator point to global cell coordinates.
func (m *SparseTileMap) MercatorToCell(x, y float64) (col, row int32) {
	col = int32(math.Floor((x - m.OriginX) / m.CellSizeM))
	row = int32(math.Floor((y - m.OriginY) / m.CellSizeM))
	return
}

// cellToTile splits a global cell coordinate into a tile coordinate and
// the cell's local offset within that tile, using Euclidean div/mod so
// negative global coordinates still resolve to a valid [0, TileSize)
// local offset.
func cellToTile(col, row int32) (coord TileCoord, localCol, localRow int) {
	coord = TileCoord{TX: ediv(col, TileSize), TY: ediv(row, TileSize)}
	localCol = int(emod(col, TileSize))
	localRow = int(emod(row, TileSize))
	return
}

func ediv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func emod(a, b int32) int32 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

// SetCell marks a global cell, allocating its tile on demand.
func (m *SparseTileMap) SetCell(col, row int32) {
	coord, lc, lr := cellToTile(col, row)
	tile, ok := m.Tiles[coord]
	if !ok {
		tile = &TileBitmap{}
		m.Tiles[coord] = tile
	}
	tile.Set(lc, lr)
}

// GetCell reads a global cell, returning false for any cell inside a tile
// that was never allocated.
func (m *SparseTileMap) GetCell(col, row int32) bool {
	coord, lc, lr := cellToTile(col, row)
	tile, ok := m.Tiles[coord]
	if !ok {
		return false
	}
	return tile.Get(lc, lr)
}

// StampLine rasterizes a Mercator-space line segment with Bresenham's
// algorithm, allocating every tile the line crosses.
func (m *SparseTileMap) StampLine(x0, y0, x1, y1 float64) {
	col0, row0 := m.MercatorToCell(x0, y0)
	col1, row1 := m.MercatorToCell(x1, y1)

	dx := abs32(col1 - col0)
	dy := abs32(row1 - row0)
	sx := int32(1)
	if col0 >= col1 {
		sx = -1
	}
	sy := int32(1)
	if row0 >= row1 {
		sy = -1
	}
	err := dx - dy

	col, row := col0, row0
	for {
		m.SetCell(col, row)
		if col == col1 && row == row1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			col += sx
		}
		if e2 < dx {
			err += dx
			row += sy
		}
	}
}

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

// activeTilesWithHalo returns every stamped tile plus its 8 neighbors,
// the candidate set morphology needs to process (a dilation can activate
// a tile that itself holds no stamped cells yet).
func (m *SparseTileMap) activeTilesWithHalo() map[TileCoord]struct{} {
	out := make(map[TileCoord]struct{}, len(m.Tiles)*9)
	for coord := range m.Tiles {
		for dy := int32(-1); dy <= 1; dy++ {
			for dx := int32(-1); dx <= 1; dx++ {
				out[TileCoord{TX: coord.TX + dx, TY: coord.TY + dy}] = struct{}{}
			}
		}
	}
	return out
}

// countSetCells sums set bits across every allocated tile.
func (m *SparseTileMap) countSetCells() int {
	n := 0
	for _, t := range m.Tiles {
		n += t.CountSet()
	}
	return n
}

func getTileBits(m *SparseTileMap, coord TileCoord) *[TileSize]uint64 {
	if t, ok := m.Tiles[coord]; ok {
		return &t.Bits
	}
	return &emptyTile.Bits
}
