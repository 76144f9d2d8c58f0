package output

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Table 简单表格输出（对外导出）
type Table struct {
	headers []string
	rows    [][]string
	widths  []int
}

// NewTable 创建表格（对外导出）
func NewTable(headers []string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	return &Table{
		headers: headers,
		rows:    make([][]string, 0),
		widths:  widths,
	}
}

// AddRow 添加行（对外导出）
func (t *Table) AddRow(row []string) {
	for i, cell := range row {
		if i < len(t.widths) && len(cell) > t.widths[i] {
			t.widths[i] = len(cell)
		}
	}
	t.rows = append(t.rows, row)
}

// Render 渲染表格（对外导出）
func (t *Table) Render() {
	headerColor := color.New(color.FgCyan, color.Bold)
	for i, h := range t.headers {
		headerColor.Printf("%-*s  ", t.widths[i], h)
	}
	fmt.Println()

	total := 0
	for _, w := range t.widths {
		total += w + 2
	}
	fmt.Println(strings.Repeat("-", total))

	for _, row := range t.rows {
		for i, cell := range row {
			if i < len(t.widths) {
				fmt.Printf("%-*s  ", t.widths[i], cell)
			}
		}
		fmt.Println()
	}
}

// StatusColor 按状态着色输出（对外导出）
func StatusColor(status string) string {
	switch status {
	case "completed":
		return color.GreenString(status)
	case "failed":
		return color.RedString(status)
	case "in_progress", "running":
		return color.YellowString(status)
	case "cancelled", "paused":
		return color.MagentaString(status)
	default:
		return status
	}
}
