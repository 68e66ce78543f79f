package main

import (
	"context"
	"flag"
	"io"
	"log"
	"math"
	"os"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"lattice-pricer-go/blackscholes"
	"lattice-pricer-go/gridcsv"
	"lattice-pricer-go/infrastructure/logger"
	"lattice-pricer-go/lattice"
)

func main() {
	in := flag.String("in", "", "场景CSV输入文件，留空读标准输入")
	out := flag.String("out", "", "汇总CSV输出文件，留空写标准输出")
	workers := flag.Int("workers", 0, "单行回推的并行度，0表示 GOMAXPROCS")
	logLevel := flag.String("logLevel", "info", "日志级别")
	flag.Parse()

	logCfg := logger.DefaultConfig()
	logCfg.Level = *logLevel
	zlog, err := logger.New(logCfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer zlog.Close()

	reader := io.Reader(os.Stdin)
	if *in != "" {
		f, err := os.Open(*in)
		if err != nil {
			log.Fatalf("打开输入失败: %v", err)
		}
		defer f.Close()
		reader = f
	}

	scenarios, err := gridcsv.ReadScenarios(reader)
	if err != nil {
		log.Fatalf("解析场景失败: %v", err)
	}
	if len(scenarios) == 0 {
		log.Fatalf("输入里没有场景")
	}

	pricer := lattice.NewPricer(lattice.PricerConfig{Workers: *workers})
	ctx := context.Background()

	summaries := make([]gridcsv.SummaryRecord, 0, len(scenarios))
	absErrs := make([]float64, 0, len(scenarios))
	elapsed := make([]float64, 0, len(scenarios))
	failed := 0

	for _, sc := range scenarios {
		params, err := sc.Parameters()
		if err != nil {
			failed++
			zlog.LogReject("scenario_invalid", map[string]interface{}{
				"name":  sc.Name,
				"error": err.Error(),
			})
			continue
		}

		res, err := pricer.Price(ctx, params)
		if err != nil {
			failed++
			zlog.LogReject("scenario_failed", map[string]interface{}{
				"name":  sc.Name,
				"error": err.Error(),
			})
			continue
		}

		ref := blackscholes.PriceParams(params)
		absErr := math.Abs(res.Root - ref)
		elapsedMs := float64(res.Elapsed.Microseconds()) / 1000.0

		summaries = append(summaries, gridcsv.SummaryRecord{
			Name:      sc.Name,
			Payoff:    params.Payoff.String(),
			Steps:     params.Steps,
			Root:      res.Root,
			BSRef:     ref,
			AbsError:  absErr,
			ElapsedMs: elapsedMs,
		})
		absErrs = append(absErrs, absErr)
		elapsed = append(elapsed, elapsedMs)

		zlog.LogPricing("scenario_priced", "", map[string]interface{}{
			"name":      sc.Name,
			"payoff":    params.Payoff.String(),
			"steps":     params.Steps,
			"root":      res.Root,
			"abs_error": absErr,
		})
	}

	if len(summaries) == 0 {
		log.Fatalf("全部 %d 个场景都失败了", failed)
	}

	writer := io.Writer(os.Stdout)
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatalf("创建输出失败: %v", err)
		}
		defer f.Close()
		writer = f
	}
	if err := gridcsv.WriteSummaries(writer, summaries); err != nil {
		log.Fatalf("写汇总失败: %v", err)
	}

	meanErr, _ := stats.Mean(absErrs)
	maxErr, _ := stats.Max(absErrs)
	medianMs, _ := stats.Median(elapsed)
	zlog.Info("批量定价完成",
		zap.Int("scenarios", len(scenarios)),
		zap.Int("priced", len(summaries)),
		zap.Int("failed", failed),
		zap.Float64("mean_abs_error", meanErr),
		zap.Float64("max_abs_error", maxErr),
		zap.Float64("median_elapsed_ms", medianMs))
}
