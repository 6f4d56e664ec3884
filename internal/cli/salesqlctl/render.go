package salesqlctl

import (
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/salesql/salesql/internal/query"
)

// renderRows prints rows as a table whose header follows the column order of
// the first row.
func renderRows(w io.Writer, rows []query.Row) error {
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(w, "(no rows)")
		return nil
	}
	columns := rows[0].Columns()
	data := make([][]string, 0, len(rows)+1)
	data = append(data, columns)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, column := range columns {
			value, _ := row.Get(column)
			cells[i] = formatCell(value)
		}
		data = append(data, cells)
	}
	return renderTable(w, data)
}

func renderTable(w io.Writer, data [][]string) error {
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, _ = fmt.Fprintln(w, rendered)
	return nil
}

func renderKeyValues(w io.Writer, pairs [][]string) error {
	rendered, err := pterm.DefaultTable.WithData(pairs).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, _ = fmt.Fprintln(w, rendered)
	return nil
}

func renderBullets(w io.Writer, items []string) error {
	bullets := make([]pterm.BulletListItem, 0, len(items))
	for _, item := range items {
		bullets = append(bullets, pterm.BulletListItem{Level: 0, Text: item})
	}
	rendered, err := pterm.DefaultBulletList.WithItems(bullets).Srender()
	if err != nil {
		return fmt.Errorf("render list: %w", err)
	}
	_, _ = fmt.Fprint(w, rendered)
	return nil
}

func formatCell(value any) string {
	if value == nil {
		return "NULL"
	}
	return fmt.Sprint(value)
}
