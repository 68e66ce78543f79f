package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"

	"lattice-pricer-go/blackscholes"
	"lattice-pricer-go/config"
	"lattice-pricer-go/gridcsv"
	"lattice-pricer-go/lattice"
)

// maxRenderSteps 表格渲染的最大步数，再大终端放不下
const maxRenderSteps = 12

func main() {
	cfgPath := flag.String("config", "", "配置文件路径，留空则只用命令行参数")
	spot := flag.Float64("spot", 40, "标的现价 S0")
	strike := flag.Float64("strike", 40, "行权价 K")
	ratePct := flag.Float64("rate", 4, "连续复利无风险利率（百分数）")
	sigmaPct := flag.Float64("sigma", 30, "年化波动率（百分数）")
	years := flag.Float64("years", 0.5, "到期时间（年）")
	steps := flag.Int("steps", 101, "二叉树步数 N")
	payoff := flag.String("payoff", "call", "期权类型：call 或 put")
	workers := flag.Int("workers", 0, "单行回推的并行度，0表示 GOMAXPROCS")
	format := flag.String("format", "table", "输出格式：table、csv 或 json")
	out := flag.String("out", "", "输出文件，留空写标准输出")
	watch := flag.Bool("watch", false, "监听配置文件变化并重新定价（需要 -config，覆盖参数以文件为准）")
	flag.Parse()

	params, err := resolveParams(*cfgPath, scenarioFlags{
		spot: *spot, strike: *strike, ratePct: *ratePct, sigmaPct: *sigmaPct,
		years: *years, steps: *steps, payoff: *payoff,
	})
	if err != nil {
		log.Fatalf("参数错误: %v", err)
	}

	pricer := lattice.NewPricer(lattice.PricerConfig{Workers: *workers})

	if *watch {
		if *cfgPath == "" {
			log.Fatalf("-watch 需要 -config 指定配置文件")
		}
		runWatch(*cfgPath, *format, *out, pricer, params)
		return
	}

	result, err := pricer.Price(context.Background(), params)
	if err != nil {
		log.Fatalf("定价失败: %v", err)
	}
	if err := render(result, *format, *out); err != nil {
		log.Fatalf("输出失败: %v", err)
	}
}

type scenarioFlags struct {
	spot, strike, ratePct, sigmaPct, years float64
	steps                                  int
	payoff                                 string
}

// resolveParams 合并配置文件与命令行：显式传入的flag覆盖文件值
func resolveParams(cfgPath string, fv scenarioFlags) (lattice.Parameters, error) {
	kind, err := lattice.ParseKind(fv.payoff)
	if err != nil {
		return lattice.Parameters{}, err
	}
	params := lattice.Parameters{
		Spot:          fv.spot,
		Strike:        fv.strike,
		RiskFreePct:   fv.ratePct,
		SigmaPct:      fv.sigmaPct,
		MaturityYears: fv.years,
		Steps:         fv.steps,
		Payoff:        kind,
	}

	if cfgPath != "" {
		cfg, err := config.LoadWithEnvOverrides(cfgPath)
		if err != nil {
			return lattice.Parameters{}, err
		}
		base, err := cfg.Scenario.Parameters()
		if err != nil {
			return lattice.Parameters{}, err
		}
		// 只有命令行里显式出现的参数才覆盖文件
		overridden := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { overridden[f.Name] = true })
		if !overridden["spot"] {
			params.Spot = base.Spot
		}
		if !overridden["strike"] {
			params.Strike = base.Strike
		}
		if !overridden["rate"] {
			params.RiskFreePct = base.RiskFreePct
		}
		if !overridden["sigma"] {
			params.SigmaPct = base.SigmaPct
		}
		if !overridden["years"] {
			params.MaturityYears = base.MaturityYears
		}
		if !overridden["steps"] {
			params.Steps = base.Steps
		}
		if !overridden["payoff"] {
			params.Payoff = base.Payoff
		}
	}

	return params, params.Validate()
}

// runWatch 初次定价后监听配置文件，每次写入都重新定价并渲染
func runWatch(cfgPath, format, out string, pricer *lattice.Pricer, params lattice.Parameters) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	priceAndRender := func(p lattice.Parameters) {
		result, err := pricer.Price(ctx, p)
		if err != nil {
			log.Printf("定价失败: %v", err)
			return
		}
		if err := render(result, format, out); err != nil {
			log.Printf("输出失败: %v", err)
		}
	}
	priceAndRender(params)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
	}()

	w := config.Watcher{Path: cfgPath, Interval: 2 * time.Second}
	_ = w.Start(ctx, func(cfg config.AppConfig) {
		p, err := cfg.Scenario.Parameters()
		if err != nil {
			log.Printf("配置场景非法: %v", err)
			return
		}
		priceAndRender(p)
	})
}

func render(result *lattice.Result, format, out string) error {
	w := io.Writer(os.Stdout)
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "table":
		return renderTable(w, result)
	case "csv":
		return gridcsv.WriteNodes(w, result)
	case "json":
		return renderJSON(w, result)
	default:
		return fmt.Errorf("unknown format %q (want table, csv or json)", format)
	}
}

// renderTable 打印摘要行，小树再画出整个三角格子（每格 价格/价值）
func renderTable(w io.Writer, result *lattice.Result) error {
	p := result.Params
	ref := blackscholes.PriceParams(p)

	fmt.Fprintf(w, "payoff=%s spot=%.4f strike=%.4f rate=%.2f%% sigma=%.2f%% T=%.4fy steps=%d\n",
		p.Payoff, p.Spot, p.Strike, p.RiskFreePct, p.SigmaPct, p.MaturityYears, p.Steps)
	fmt.Fprintf(w, "root=%.6f  black-scholes=%.6f  |diff|=%.6f  elapsed=%s\n",
		result.Root, ref, math.Abs(result.Root-ref), result.Elapsed)
	if p.Steps > 0 {
		d := result.Derived
		fmt.Fprintf(w, "u=%.6f d=%.6f p=%.6f df=%.6f dt=%.6f\n", d.U, d.D, d.P, d.Discount, d.Dt)
	}

	if p.Steps > maxRenderSteps {
		fmt.Fprintf(w, "(%d steps is too large to draw; use -format csv for the full grids)\n", p.Steps)
		return nil
	}

	header := make([]string, 0, p.Steps+2)
	header = append(header, "step")
	for j := 0; j <= p.Steps; j++ {
		header = append(header, fmt.Sprintf("j=%d", j))
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for step := 0; step <= p.Steps; step++ {
		row := make([]string, 0, p.Steps+2)
		row = append(row, fmt.Sprintf("%d", step))
		for j := 0; j <= p.Steps; j++ {
			if j > step {
				row = append(row, "")
				continue
			}
			row = append(row, fmt.Sprintf("%.4f / %.4f",
				result.Prices.At(step, j), result.Values.At(step, j)))
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

type derivedJSON struct {
	Dt       float64 `json:"dt"`
	U        float64 `json:"u"`
	D        float64 `json:"d"`
	Growth   float64 `json:"growth"`
	Discount float64 `json:"discount"`
	P        float64 `json:"p"`
}

type resultJSON struct {
	Payoff        string      `json:"payoff"`
	Spot          float64     `json:"spot"`
	Strike        float64     `json:"strike"`
	RatePct       float64     `json:"rate_pct"`
	SigmaPct      float64     `json:"sigma_pct"`
	MaturityYears float64     `json:"maturity_years"`
	Steps         int         `json:"steps"`
	Root          float64     `json:"root"`
	BlackScholes  float64     `json:"black_scholes"`
	Derived       derivedJSON `json:"derived"`
	ElapsedMs     float64     `json:"elapsed_ms"`
	PriceGrid     [][]float64 `json:"price_grid"`
	ValueGrid     [][]float64 `json:"value_grid"`
}

func renderJSON(w io.Writer, result *lattice.Result) error {
	p := result.Params
	d := result.Derived
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resultJSON{
		Payoff:        p.Payoff.String(),
		Spot:          p.Spot,
		Strike:        p.Strike,
		RatePct:       p.RiskFreePct,
		SigmaPct:      p.SigmaPct,
		MaturityYears: p.MaturityYears,
		Steps:         p.Steps,
		Root:          result.Root,
		BlackScholes:  blackscholes.PriceParams(p),
		Derived: derivedJSON{
			Dt: d.Dt, U: d.U, D: d.D,
			Growth: d.Growth, Discount: d.Discount, P: d.P,
		},
		ElapsedMs: float64(result.Elapsed.Microseconds()) / 1000.0,
		PriceGrid: result.Prices.Rows(),
		ValueGrid: result.Values.Rows(),
	})
}
