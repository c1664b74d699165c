package commands

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/wonny/quantmon/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	for i, col := range columns {
		fmt.Printf("%-*s", widths[i], col)
		if i < len(columns)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	for i := 0; i < totalWidth; i++ {
		fmt.Print("─")
	}
	fmt.Println()
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// formatDate prints YYYY-MM-DD, or "-" for the zero time
func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(contracts.DateLayout)
}

// formatPct prints a ratio as a signed percentage
func formatPct(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", v*100)
}

// printTradeSheet prints the rows of a trade sheet as a table
func printTradeSheet(sheet *contracts.TradeSheet) {
	PrintDoubleSeparator()
	fmt.Printf("  Trade Sheet  entry %s  (decision %s)\n", formatDate(sheet.EntryDate), formatDate(sheet.DecisionDate))
	PrintSeparator()
	PrintKeyValue("Champion", strconv.Itoa(sheet.ClusterID), 12)
	if sheet.ConfigHash != "" {
		PrintKeyValue("Config", sheet.ConfigHash[:min(12, len(sheet.ConfigHash))], 12)
	}
	fmt.Println()

	widths := []int{4, 16, 10, 8}
	PrintTableHeader([]string{"#", "Symbol", "Score", "Weight"}, widths)
	for i, r := range sheet.Rows {
		PrintTableRow([]string{
			strconv.Itoa(i + 1),
			r.Symbol,
			formatPct(r.Score),
			strconv.FormatFloat(r.Weight, 'f', 4, 64),
		}, widths)
	}

	if len(sheet.Candidates) > 1 {
		fmt.Println()
		fmt.Println("  Challengers")
		for _, c := range sheet.Candidates {
			if c.ClusterID == sheet.ClusterID {
				continue
			}
			PrintKeyValue(fmt.Sprintf("cluster %d", c.ClusterID), formatPct(c.MeanScore), 12)
		}
	}
	if len(sheet.Skipped) > 0 {
		items := make([]string, len(sheet.Skipped))
		for i, s := range sheet.Skipped {
			items[i] = fmt.Sprintf("cluster %d: %s", s.ClusterID, s.Reason)
		}
		PrintWarning(fmt.Sprintf("%d cluster(s) skipped", len(items)))
		PrintList(items)
	}
	PrintDoubleSeparator()
}

// printCleaningReport prints the integrity classifier summary
func printCleaningReport(r contracts.CleaningReport) {
	PrintSeparator()
	PrintKeyValue("Symbols in", strconv.Itoa(r.SymbolsIn), 18)
	PrintKeyValue("Segments out", strconv.Itoa(r.SegmentsOut), 18)
	PrintKeyValue("Bars in / out", fmt.Sprintf("%d / %d", r.BarsIn, r.BarsOut), 18)
	PrintKeyValue("Duplicate bars", strconv.Itoa(r.DuplicateBars), 18)
	PrintKeyValue("Bad ticks dropped", strconv.Itoa(r.BadTicksDropped), 18)
	PrintKeyValue("Corporate events", strconv.Itoa(r.CorporateEvents), 18)
	if len(r.SymbolsSplit) > 0 {
		fmt.Println("   Split symbols:")
		PrintList(r.SymbolsSplit)
	}
	if len(r.UnsplitEvents) > 0 {
		items := make([]string, len(r.UnsplitEvents))
		for i, u := range r.UnsplitEvents {
			items[i] = fmt.Sprintf("%s %s (%s)", u.Symbol, formatDate(u.Date), u.Reason)
		}
		fmt.Println("   Unsplit events:")
		PrintList(items)
	}
	PrintSeparator()
}
