package quatro

import "fmt"

const BoardSize = 4

type Cell struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func NewCell(row, col int) Cell { return Cell{Row: row, Col: col} }

func (c Cell) Valid() bool {
	return c.Row >= 0 && c.Col >= 0 && c.Row < BoardSize && c.Col < BoardSize
}

func (c Cell) Index() int { return c.Row*BoardSize + c.Col }

func CellFromIndex(index int) Cell {
	return Cell{Row: index / BoardSize, Col: index % BoardSize}
}

func (c Cell) Equals(other Cell) bool {
	return c.Row == other.Row && c.Col == other.Col
}

func (c Cell) String() string { return fmt.Sprintf("(%d,%d)", c.Row, c.Col) }
