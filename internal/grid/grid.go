// File: internal/grid/grid.go

// Package grid partitions the screen into a fixed matrix of addressable cells
// and resolves symbolic cell references ("aa01") to absolute pixel
// coordinates. A Grid is immutable once built; a resolution change requires
// building a new one.
package grid

import (
	"errors"
	"fmt"
	"image"
	"strings"
)

// ErrInvalidCellReference marks a cell reference that is malformed or outside
// the grid bounds.
var ErrInvalidCellReference = errors.New("invalid cell reference")

// refLen is the fixed width of a cell reference: two column letters followed
// by a two-digit, 1-based row number.
const refLen = 4

// Grid is a fixed partition of a pixel rectangle into rows x cols cells.
// Every pixel of the bounds belongs to exactly one cell: interior cells share
// the same integer size and the last row/column absorbs the division
// remainder.
type Grid struct {
	bounds image.Rectangle
	rows   int
	cols   int
	cellW  int
	cellH  int
}

// Build creates the grid partition for the given screen bounds. It fails when
// the requested shape cannot address every cell in the "aa01" reference
// format or when cells would collapse to zero pixels.
func Build(bounds image.Rectangle, rows, cols int) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("grid shape %dx%d: rows and cols must be positive", rows, cols)
	}
	if rows > 99 {
		return nil, fmt.Errorf("grid rows %d exceed the two-digit reference format", rows)
	}
	if cols > 26*26 {
		return nil, fmt.Errorf("grid cols %d exceed the two-letter reference format", cols)
	}
	if bounds.Dx() < cols || bounds.Dy() < rows {
		return nil, fmt.Errorf("bounds %v too small for a %dx%d grid", bounds, rows, cols)
	}
	return &Grid{
		bounds: bounds,
		rows:   rows,
		cols:   cols,
		cellW:  bounds.Dx() / cols,
		cellH:  bounds.Dy() / rows,
	}, nil
}

// Bounds returns the screen rectangle the grid tiles.
func (g *Grid) Bounds() image.Rectangle { return g.bounds }

// Rows returns the number of grid rows.
func (g *Grid) Rows() int { return g.rows }

// Cols returns the number of grid columns.
func (g *Grid) Cols() int { return g.cols }

// Resolve maps a cell reference to the center pixel of that cell.
func (g *Grid) Resolve(ref string) (image.Point, error) {
	rect, err := g.CellRect(ref)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(rect.Min.X+rect.Dx()/2, rect.Min.Y+rect.Dy()/2), nil
}

// CellRect maps a cell reference to the pixel rectangle it covers. The last
// row and column extend to the grid bounds so the union of all cell
// rectangles tiles the screen exactly.
func (g *Grid) CellRect(ref string) (image.Rectangle, error) {
	row, col, err := ParseRef(ref)
	if err != nil {
		return image.Rectangle{}, err
	}
	if row >= g.rows || col >= g.cols {
		return image.Rectangle{}, fmt.Errorf("%w: %q outside %dx%d grid", ErrInvalidCellReference, ref, g.rows, g.cols)
	}
	return g.rect(row, col), nil
}

// RectAt is CellRect for numeric indices, used where the caller already holds
// a parsed position.
func (g *Grid) RectAt(row, col int) (image.Rectangle, error) {
	if row < 0 || col < 0 || row >= g.rows || col >= g.cols {
		return image.Rectangle{}, fmt.Errorf("%w: (%d,%d) outside %dx%d grid", ErrInvalidCellReference, row, col, g.rows, g.cols)
	}
	return g.rect(row, col), nil
}

func (g *Grid) rect(row, col int) image.Rectangle {
	x0 := g.bounds.Min.X + col*g.cellW
	y0 := g.bounds.Min.Y + row*g.cellH
	x1 := x0 + g.cellW
	y1 := y0 + g.cellH
	if col == g.cols-1 {
		x1 = g.bounds.Max.X
	}
	if row == g.rows-1 {
		y1 = g.bounds.Max.Y
	}
	return image.Rect(x0, y0, x1, y1)
}

// Neighborhood returns the cell rectangle grown by one cell of margin on each
// side, clamped to the grid bounds. The verifier diffs this region for
// targeted actions so effects spilling slightly outside the cell still count.
func (g *Grid) Neighborhood(ref string) (image.Rectangle, error) {
	rect, err := g.CellRect(ref)
	if err != nil {
		return image.Rectangle{}, err
	}
	grown := image.Rect(rect.Min.X-g.cellW, rect.Min.Y-g.cellH, rect.Max.X+g.cellW, rect.Max.Y+g.cellH)
	return grown.Intersect(g.bounds), nil
}

// ParseRef decodes a cell reference into zero-based (row, col) indices. The
// format is two lowercase column letters in base 26 ("aa" is column 0)
// followed by a two-digit 1-based row number: "aa01" is the top-left cell.
func ParseRef(ref string) (row, col int, err error) {
	r := strings.ToLower(strings.TrimSpace(ref))
	if len(r) != refLen {
		return 0, 0, fmt.Errorf("%w: %q is not a 4-character reference", ErrInvalidCellReference, ref)
	}
	if r[0] < 'a' || r[0] > 'z' || r[1] < 'a' || r[1] > 'z' {
		return 0, 0, fmt.Errorf("%w: %q has a non-letter column", ErrInvalidCellReference, ref)
	}
	if r[2] < '0' || r[2] > '9' || r[3] < '0' || r[3] > '9' {
		return 0, 0, fmt.Errorf("%w: %q has a non-numeric row", ErrInvalidCellReference, ref)
	}
	col = int(r[0]-'a')*26 + int(r[1]-'a')
	rowNum := int(r[2]-'0')*10 + int(r[3]-'0')
	if rowNum < 1 {
		return 0, 0, fmt.Errorf("%w: %q row numbers start at 01", ErrInvalidCellReference, ref)
	}
	return rowNum - 1, col, nil
}

// Label is the inverse of ParseRef: it renders zero-based (row, col) indices
// as a cell reference string.
func Label(row, col int) string {
	return fmt.Sprintf("%c%c%02d", 'a'+byte(col/26), 'a'+byte(col%26), row+1)
}

// ValidRef reports whether ref addresses a cell inside the grid.
func (g *Grid) ValidRef(ref string) bool {
	_, err := g.CellRect(ref)
	return err == nil
}
