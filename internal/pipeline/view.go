package pipeline

import (
	"github.com/shopspring/decimal"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// BuildView lays the board out in stage order. label may be nil.
func BuildView(cols Columns, label func(domain.Stage) string) *domain.BoardView {
	view := &domain.BoardView{Columns: make([]domain.BoardColumn, 0, len(domain.Stages))}
	for _, stage := range domain.Stages {
		col := domain.BoardColumn{Stage: stage, Label: string(stage), Deals: []domain.BoardDeal{}}
		if label != nil {
			col.Label = label(stage)
		}
		for _, d := range cols[stage] {
			bd := domain.BoardDeal{Deal: d}
			if idx, ok := ProgressIndex(d.Stage); ok {
				bd.ProgressIndex = &idx
			}
			col.Deals = append(col.Deals, bd)
			col.Total += d.Value
		}
		col.Count = len(col.Deals)
		view.Columns = append(view.Columns, col)
	}
	return view
}

// Summarize computes dashboard totals. The weighted value discounts each open
// deal by its probability, rounded to the cent.
func Summarize(snap domain.PipelineSnapshot) *domain.PipelineSummary {
	out := &domain.PipelineSummary{DealsByStage: make(map[domain.Stage]int, len(domain.Stages))}
	weighted := decimal.Zero
	for _, stage := range domain.Stages {
		deals := snap[stage]
		out.DealsByStage[stage] = len(deals)
		for _, d := range deals {
			switch {
			case stage == domain.StageWon:
				out.WonValue += d.Value
			case !stage.IsTerminal():
				out.OpenValue += d.Value
				p := decimal.NewFromInt(int64(domain.ClampProbability(d.Probability)))
				weighted = weighted.Add(d.Value.Decimal().Mul(p).Div(decimal.NewFromInt(100)))
			}
		}
	}
	out.WeightedValue = domain.MoneyFromDecimal(weighted)
	return out
}
