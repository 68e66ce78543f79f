package server

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lattice-pricer-go/internal/store"
	"lattice-pricer-go/lattice"
)

// PriceRequest 定价请求体。金额字段用decimal接收，同时兼容
// JSON数字和字符串两种写法。
type PriceRequest struct {
	Spot          decimal.Decimal `json:"spot"`
	Strike        decimal.Decimal `json:"strike"`
	RatePct       decimal.Decimal `json:"rate_pct"`
	SigmaPct      decimal.Decimal `json:"sigma_pct"`
	MaturityYears decimal.Decimal `json:"maturity_years"`
	Steps         int             `json:"steps"`
	Payoff        string          `json:"payoff"`
}

// Parameters 转换为定价参数；数值范围检查由定价层完成。
func (r PriceRequest) Parameters() (lattice.Parameters, error) {
	kind, err := lattice.ParseKind(r.Payoff)
	if err != nil {
		return lattice.Parameters{}, fmt.Errorf("payoff: %w", err)
	}
	return lattice.Parameters{
		Spot:          r.Spot.InexactFloat64(),
		Strike:        r.Strike.InexactFloat64(),
		RiskFreePct:   r.RatePct.InexactFloat64(),
		SigmaPct:      r.SigmaPct.InexactFloat64(),
		MaturityYears: r.MaturityYears.InexactFloat64(),
		Steps:         r.Steps,
		Payoff:        kind,
	}, nil
}

// DerivedDTO 派生量。decimal在JSON里序列化为字符串，避免
// 客户端因浮点序列化差异看到不稳定的值。
type DerivedDTO struct {
	Dt       decimal.Decimal `json:"dt"`
	U        decimal.Decimal `json:"u"`
	D        decimal.Decimal `json:"d"`
	Growth   decimal.Decimal `json:"growth"`
	Discount decimal.Decimal `json:"discount"`
	P        decimal.Decimal `json:"p"`
}

// ResultSummary 单次定价结果的摘要，也是WebSocket广播帧的负载。
type ResultSummary struct {
	ID            string          `json:"id"`
	Payoff        string          `json:"payoff"`
	Spot          decimal.Decimal `json:"spot"`
	Strike        decimal.Decimal `json:"strike"`
	RatePct       float64         `json:"rate_pct"`
	SigmaPct      float64         `json:"sigma_pct"`
	MaturityYears float64         `json:"maturity_years"`
	Steps         int             `json:"steps"`
	Root          decimal.Decimal `json:"root"`
	Derived       DerivedDTO      `json:"derived"`
	ElapsedMs     float64         `json:"elapsed_ms"`
	ComputedAt    time.Time       `json:"computed_at"`
}

// ResultDetail 摘要加两张网格，行优先三角矩阵。
type ResultDetail struct {
	ResultSummary
	PriceGrid [][]float64 `json:"price_grid,omitempty"`
	ValueGrid [][]float64 `json:"value_grid,omitempty"`
}

// ErrorResponse 统一错误体
type ErrorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// WSFrame WebSocket推送帧
type WSFrame struct {
	Type string        `json:"type"`
	Data ResultSummary `json:"data"`
}

func summaryFromRecord(rec *store.Record) ResultSummary {
	return ResultSummary{
		ID:            rec.ID,
		Payoff:        rec.Params.Payoff.String(),
		Spot:          decimal.NewFromFloat(rec.Params.Spot),
		Strike:        decimal.NewFromFloat(rec.Params.Strike),
		RatePct:       rec.Params.RiskFreePct,
		SigmaPct:      rec.Params.SigmaPct,
		MaturityYears: rec.Params.MaturityYears,
		Steps:         rec.Params.Steps,
		Root:          decimal.NewFromFloat(rec.Root),
		Derived: DerivedDTO{
			Dt:       decimal.NewFromFloat(rec.Derived.Dt),
			U:        decimal.NewFromFloat(rec.Derived.U),
			D:        decimal.NewFromFloat(rec.Derived.D),
			Growth:   decimal.NewFromFloat(rec.Derived.Growth),
			Discount: decimal.NewFromFloat(rec.Derived.Discount),
			P:        decimal.NewFromFloat(rec.Derived.P),
		},
		ElapsedMs:  float64(rec.Elapsed.Microseconds()) / 1000.0,
		ComputedAt: rec.ComputedAt,
	}
}

func detailFromRecord(rec *store.Record, includeGrids bool) ResultDetail {
	detail := ResultDetail{ResultSummary: summaryFromRecord(rec)}
	if includeGrids {
		detail.PriceGrid = rec.Prices.Rows()
		detail.ValueGrid = rec.Values.Rows()
	}
	return detail
}
