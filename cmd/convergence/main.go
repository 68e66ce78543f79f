package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"lattice-pricer-go/convergence"
	"lattice-pricer-go/lattice"
)

func main() {
	spot := flag.Float64("spot", 40, "标的现价 S0")
	strike := flag.Float64("strike", 40, "行权价 K")
	ratePct := flag.Float64("rate", 4, "连续复利无风险利率（百分数）")
	sigmaPct := flag.Float64("sigma", 30, "年化波动率（百分数）")
	years := flag.Float64("years", 0.5, "到期时间（年）")
	payoff := flag.String("payoff", "call", "期权类型：call 或 put")
	stepsList := flag.String("steps", "5,10,25,50,101,201,401,801", "逗号分隔的步数序列，需严格递增")
	workers := flag.Int("workers", 0, "单行回推的并行度，0表示 GOMAXPROCS")
	flag.Parse()

	kind, err := lattice.ParseKind(*payoff)
	if err != nil {
		log.Fatalf("参数错误: %v", err)
	}
	steps, err := parseSteps(*stepsList)
	if err != nil {
		log.Fatalf("参数错误: %v", err)
	}

	params := lattice.Parameters{
		Spot:          *spot,
		Strike:        *strike,
		RiskFreePct:   *ratePct,
		SigmaPct:      *sigmaPct,
		MaturityYears: *years,
		Steps:         steps[len(steps)-1],
		Payoff:        kind,
	}
	if err := params.Validate(); err != nil {
		log.Fatalf("参数错误: %v", err)
	}

	points, err := convergence.Sweep(context.Background(), params, steps, *workers)
	if err != nil {
		log.Fatalf("扫描失败: %v", err)
	}

	fmt.Printf("payoff=%s spot=%.4f strike=%.4f rate=%.2f%% sigma=%.2f%% T=%.4fy\n",
		kind, *spot, *strike, *ratePct, *sigmaPct, *years)
	fmt.Printf("black-scholes reference = %.6f\n\n", points[0].Ref)

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"steps", "root", "abs error"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for _, pt := range points {
		table.Append([]string{
			strconv.Itoa(pt.Steps),
			fmt.Sprintf("%.6f", pt.Root),
			fmt.Sprintf("%.6f", pt.AbsError),
		})
	}
	table.Render()

	summary, err := convergence.Summarize(points)
	if err != nil {
		log.Fatalf("汇总失败: %v", err)
	}
	fmt.Printf("\nmean |err| = %.6f  std = %.6f  max = %.6f\n",
		summary.MeanAbsError, summary.StdAbsError, summary.MaxAbsError)

	if order, err := convergence.EstimateOrder(points); err == nil {
		fmt.Printf("estimated convergence order ≈ %.3f (error ~ N^-%.3f)\n", order, order)
	}
}

func parseSteps(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	steps := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad steps list %q: %w", s, err)
		}
		steps = append(steps, n)
	}
	return steps, nil
}
