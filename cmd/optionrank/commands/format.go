package commands

import (
	"fmt"
	"strings"

	"github.com/wonny/optionrank/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintHeader prints a double-ruled section title
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
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

// PrintRankTable prints ranked contracts with their component scores
func PrintRankTable(ranks []contracts.CompositeRank) {
	if len(ranks) == 0 {
		fmt.Println("(no ranked contracts)")
		return
	}

	widths := []int{4, 22, 4, 9, 4, 7, 6, 6, 6, 6}
	PrintTableHeader([]string{"#", "Contract", "Side", "Strike", "DTE", "Comp", "Value", "Mom", "Greek", "Liq"}, widths)
	for _, r := range ranks {
		PrintTableRow([]string{
			fmt.Sprintf("%d", r.RankPosition),
			r.ContractID,
			string(r.Side),
			r.Strike.StringFixed(2),
			fmt.Sprintf("%d", r.DTE),
			fmt.Sprintf("%.2f", r.Composite),
			fmt.Sprintf("%.1f", r.Scores.Value),
			fmt.Sprintf("%.1f", r.Scores.SmoothedMomentum),
			fmt.Sprintf("%.1f", r.Scores.Greeks),
			fmt.Sprintf("%.2f", r.Liquidity),
		}, widths)
	}
}
