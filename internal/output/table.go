package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Table is a bordered table with a styled header row.
type Table struct {
	headers []string
	rows    [][]string
	styled  bool
}

// NewTable creates a table with the given headers. Cells are styled only
// when stderr is a terminal.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers, styled: IsTTY()}
}

// Row appends a row.
func (t *Table) Row(cells ...string) *Table {
	t.rows = append(t.rows, cells)
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// String renders the table.
func (t *Table) String() string {
	header := lipgloss.NewStyle().Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)
	border := lipgloss.NewStyle()
	if t.styled {
		header = StyleHeader.Padding(0, 1)
		border = StyleDim
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(border).
		Headers(t.headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			return cell
		})
	for _, row := range t.rows {
		tbl.Row(row...)
	}
	return tbl.String()
}
