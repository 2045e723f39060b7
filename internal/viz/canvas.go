package viz

import "strings"

// dotBits[row][col] is the braille bit of the dot at (col, row) inside a
// 2x4 cell.
var dotBits = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

const blank rune = 0x2800

// Canvas is a w x h grid of braille cells, giving 2w x 4h dots. Dot (0, 0)
// is the top-left corner.
type Canvas struct {
	w, h  int
	cells []rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{w: w, h: h, cells: make([]rune, w*h)}
	c.Clear()
	return c
}

// Dots returns the drawable size in dots.
func (c *Canvas) Dots() (w, h int) { return 2 * c.w, 4 * c.h }

// Set lights dot (x, y); dots off the canvas are ignored.
func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 || x >= 2*c.w || y >= 4*c.h {
		return
	}
	c.cells[(y/4)*c.w+x/2] |= dotBits[y%4][x%2]
}

func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = blank
	}
}

// HLine lights every step-th dot of row y between x0 and x1 inclusive.
// A step of 1 draws a solid line.
func (c *Canvas) HLine(y, x0, x1, step int) {
	for x := min(x0, x1); x <= max(x0, x1); x += max(step, 1) {
		c.Set(x, y)
	}
}

// VLine is HLine for column x.
func (c *Canvas) VLine(x, y0, y1, step int) {
	for y := min(y0, y1); y <= max(y0, y1); y += max(step, 1) {
		c.Set(x, y)
	}
}

// Frame draws a solid border around the canvas.
func (c *Canvas) Frame() {
	dw, dh := c.Dots()
	c.HLine(0, 0, dw-1, 1)
	c.HLine(dh-1, 0, dw-1, 1)
	c.VLine(0, 0, dh-1, 1)
	c.VLine(dw-1, 0, dh-1, 1)
}

func (c *Canvas) String() string {
	var b strings.Builder
	b.Grow(len(c.cells)*3 + c.h)
	for row := 0; row < c.h; row++ {
		b.WriteString(string(c.cells[row*c.w : (row+1)*c.w]))
		b.WriteByte('\n')
	}
	return b.String()
}
