package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wonny/optionrank/internal/contracts"
	"github.com/wonny/optionrank/internal/rankcfg"
	"github.com/wonny/optionrank/internal/ranking"
	"github.com/wonny/optionrank/internal/snapshot"
	"github.com/wonny/optionrank/pkg/logger"
)

// rankCmd represents the rank command
var rankCmd = &cobra.Command{
	Use:   "rank FILE",
	Short: "스냅샷 파일로 1회 랭킹 계산",
	Long: `JSON 체인 스냅샷 파일 하나를 읽어 랭킹을 계산하고 출력합니다.
DB / Redis / 큐를 사용하지 않으며 결과는 저장되지 않습니다.

Example:
  go run ./cmd/optionrank rank internal/snapshot/testdata/AAPL.json
  go run ./cmd/optionrank rank chain.json --top 10 --side C
  go run ./cmd/optionrank rank chain.json --explain AAPL240419C00185000
  go run ./cmd/optionrank rank chain.json --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRank,
}

var (
	rankConfigPath string
	rankSymbol     string
	rankTop        int
	rankSide       string
	rankExplain    string
	rankJSON       bool
)

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringVar(&rankConfigPath, "config", "", "랭킹 YAML 설정 (기본값: 내장 설정)")
	rankCmd.Flags().StringVar(&rankSymbol, "symbol", "", "기대 심볼 (파일의 심볼과 다르면 오류)")
	rankCmd.Flags().IntVar(&rankTop, "top", 20, "출력할 상위 계약 수 (0 = 전체)")
	rankCmd.Flags().StringVar(&rankSide, "side", "", "C(call) 또는 P(put)만 출력")
	rankCmd.Flags().StringVar(&rankExplain, "explain", "", "점수 기여도를 출력할 contract_id")
	rankCmd.Flags().BoolVar(&rankJSON, "json", false, "JSON 출력")
}

func runRank(cmd *cobra.Command, args []string) error {
	log := logger.Nop()
	if verbose {
		log = logger.NewWithWriter(os.Stderr, "cli")
	}

	cfg, err := rankcfg.Load(rankConfigPath)
	if err != nil {
		return fmt.Errorf("load ranking config: %w", err)
	}

	engine, err := ranking.NewEngine(cfg, log)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	chain, err := snapshot.LoadFile(args[0], rankSymbol)
	if err != nil {
		return err
	}

	set, err := engine.Run(chain, nil, uuid.New(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("rank %s: %w", chain.Symbol, err)
	}

	if rankExplain != "" {
		exp, err := engine.Explain(set, rankExplain)
		if err != nil {
			return err
		}
		if rankJSON {
			return printJSON(exp)
		}
		printExplanation(exp)
		return nil
	}

	filter := contracts.RankFilter{Limit: rankTop}
	if rankSide != "" {
		side, err := contracts.ParseSide(rankSide)
		if err != nil {
			return err
		}
		filter.Side = side
	}

	view := set.Filter(filter)
	if rankJSON {
		return printJSON(view)
	}

	PrintHeader(fmt.Sprintf("%s as of %s", set.Symbol, set.AsOf.Format("2006-01-02")))
	fmt.Printf("Evaluated: %d, ranked: %d, config: %s\n", set.Evaluated, len(set.Ranks), shortHash(set.ConfigHash))
	for reason, n := range set.Excluded {
		fmt.Printf("  excluded %-16s %d\n", reason+":", n)
	}
	fmt.Println()
	PrintRankTable(view.Ranks)
	return nil
}

func printExplanation(e *contracts.Explanation) {
	PrintHeader(fmt.Sprintf("%s #%d", e.ContractID, e.RankPosition))
	fmt.Printf("Composite: %.2f  Liquidity: %.3f  Raw momentum: %.2f\n\n", e.Composite, e.Liquidity, e.RawMomentum)

	widths := []int{18, 8, 8, 12}
	PrintTableHeader([]string{"Component", "Score", "Weight", "Contribution"}, widths)
	for _, c := range e.Contributions {
		PrintTableRow([]string{
			c.Component,
			fmt.Sprintf("%.2f", c.Score),
			fmt.Sprintf("%.2f", c.Weight),
			fmt.Sprintf("%.2f", c.Contribution),
		}, widths)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
