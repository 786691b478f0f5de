package commands

import (
	"fmt"
	"io"
	"strings"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const lineWidth = 59

// KV is one "key : value" line of a header
type KV struct {
	Key   string
	Value string
}

// printHeader prints a boxed title followed by aligned key/value lines
func printHeader(w io.Writer, title string, fields ...KV) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("═", lineWidth))
	fmt.Fprintf(w, "  %s\n", title)
	fmt.Fprintln(w, strings.Repeat("─", lineWidth))

	keyWidth := 0
	for _, f := range fields {
		if len(f.Key) > keyWidth {
			keyWidth = len(f.Key)
		}
	}
	for _, f := range fields {
		fmt.Fprintf(w, "  %-*s : %s\n", keyWidth, f.Key, f.Value)
	}
	if len(fields) > 0 {
		fmt.Fprintln(w, strings.Repeat("─", lineWidth))
	}
}

// printTable prints left-aligned columns separated by two spaces
func printTable(w io.Writer, columns []string, widths []int, rows [][]string) {
	printRow(w, columns, widths)

	total := 0
	for i, width := range widths {
		total += width
		if i < len(widths)-1 {
			total += 2
		}
	}
	fmt.Fprintln(w, strings.Repeat("─", total))

	for _, row := range rows {
		printRow(w, row, widths)
	}
}

func printRow(w io.Writer, values []string, widths []int) {
	for i, val := range values {
		if i < len(values)-1 {
			fmt.Fprintf(w, "%-*s  ", widths[i], val)
		} else {
			fmt.Fprintf(w, "%s", val)
		}
	}
	fmt.Fprintln(w)
}

// printSuccess prints a success message
func printSuccess(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "✅ "+format+"\n", args...)
}

// printWarning prints a warning message
func printWarning(w io.Writer, format string, args ...interface{}) {
	fmt.Fprintf(w, "⚠️  "+format+"\n", args...)
}

// printList prints a bulleted list
func printList(w io.Writer, items []string) {
	for _, item := range items {
		fmt.Fprintf(w, "   • %s\n", item)
	}
}
