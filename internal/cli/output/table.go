package output

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by results that render as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// EmptyMessager is implemented by tables that print a message instead of
// a bare header row when they have no rows.
type EmptyMessager interface {
	EmptyMessage() string
}

// PrintTable writes data as a borderless, left aligned table with two
// spaces between columns.
func PrintTable(w io.Writer, data TableRenderer) error {
	rows := data.Rows()
	if len(rows) == 0 {
		if e, ok := data.(EmptyMessager); ok {
			_, err := fmt.Fprintln(w, e.EmptyMessage())
			return err
		}
	}

	t := tablewriter.NewWriter(w)
	t.SetHeader(data.Headers())
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(true)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorder(false)
	t.SetHeaderLine(false)
	t.SetCenterSeparator("")
	t.SetColumnSeparator("")
	t.SetRowSeparator("")
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	t.AppendBulk(rows)
	t.Render()
	return nil
}
