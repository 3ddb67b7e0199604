package quatro

// The 10 winning lines in scan order: rows top to bottom, then columns left
// to right, then the main diagonal and the anti-diagonal. Win reporting
// always returns the first match in this order.
var winningLines = buildWinningLines()

// linesThrough[i] lists the indices into winningLines passing through cell i.
var linesThrough = buildLinesThrough()

func buildWinningLines() [][4]int {
	lines := make([][4]int, 0, 10)
	for row := 0; row < BoardSize; row++ {
		var line [4]int
		for col := 0; col < BoardSize; col++ {
			line[col] = row*BoardSize + col
		}
		lines = append(lines, line)
	}
	for col := 0; col < BoardSize; col++ {
		var line [4]int
		for row := 0; row < BoardSize; row++ {
			line[row] = row*BoardSize + col
		}
		lines = append(lines, line)
	}
	var diag, anti [4]int
	for i := 0; i < BoardSize; i++ {
		diag[i] = i*BoardSize + i
		anti[i] = i*BoardSize + (BoardSize - 1 - i)
	}
	return append(lines, diag, anti)
}

func buildLinesThrough() [BoardCells][]int {
	var through [BoardCells][]int
	for lineIdx, line := range winningLines {
		for _, cell := range line {
			through[cell] = append(through[cell], lineIdx)
		}
	}
	return through
}

// lineSharesTrait reports whether four piece values agree on at least one
// trait bit: and1 collects bits set in all four, and0 bits clear in all four.
func lineSharesTrait(a, b, c, d byte) bool {
	and1 := a & b & c & d
	and0 := ^a & ^b & ^c & ^d & 0x0F
	return and1 != 0 || and0 != 0
}

type WinChecker struct {
	lines [][4]int
}

func NewWinChecker() WinChecker {
	return WinChecker{lines: winningLines}
}

func (w WinChecker) lineWins(b Board, line [4]int) bool {
	v0 := b.cells[line[0]]
	v1 := b.cells[line[1]]
	v2 := b.cells[line[2]]
	v3 := b.cells[line[3]]
	if v0 == NoPiece || v1 == NoPiece || v2 == NoPiece || v3 == NoPiece {
		return false
	}
	return lineSharesTrait(v0, v1, v2, v3)
}

func (w WinChecker) HasWin(b Board) bool {
	for _, line := range w.lines {
		if w.lineWins(b, line) {
			return true
		}
	}
	return false
}

// WinningLine returns the first completed line whose pieces share a trait.
func (w WinChecker) WinningLine(b Board) ([4]int, bool) {
	for _, line := range w.lines {
		if w.lineWins(b, line) {
			return line, true
		}
	}
	return [4]int{}, false
}

// winAt checks only the lines through one cell, for use right after a
// placement there.
func (w WinChecker) winAt(b Board, index int) bool {
	for _, lineIdx := range linesThrough[index] {
		if w.lineWins(b, winningLines[lineIdx]) {
			return true
		}
	}
	return false
}

// WouldWin reports whether placing p at cell completes a winning line.
// Occupied or out-of-range cells never win.
func (w WinChecker) WouldWin(b Board, cell Cell, p Piece) bool {
	if !cell.Valid() || !p.Valid() || !b.IsEmpty(cell.Row, cell.Col) {
		return false
	}
	idx := cell.Index()
	b.cells[idx] = byte(p)
	return w.winAt(b, idx)
}
