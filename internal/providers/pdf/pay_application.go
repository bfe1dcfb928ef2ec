package pdf

import (
	"context"
	"fmt"
	"time"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	paydomain "github.com/smallbiznis/progresspay/internal/payapp/domain"
	"github.com/smallbiznis/progresspay/pkg/money"
)

var (
	labelStyle  = props.Text{Size: 9, Style: fontstyle.Bold}
	valueStyle  = props.Text{Size: 9, Align: align.Right}
	headerStyle = props.Text{Size: 7, Style: fontstyle.Bold, Align: align.Right}
	cellStyle   = props.Text{Size: 7, Align: align.Right}
)

func (r *Renderer) RenderPayApplication(ctx context.Context, payApp paydomain.PayApplicationResponse) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()
	m := maroto.New(cfg)

	addHeader(m, payApp)
	addSummary(m, payApp)
	addContinuationSheet(m, payApp)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pay application pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func addHeader(m core.Maroto, payApp paydomain.PayApplicationResponse) {
	m.AddRow(12,
		text.NewCol(12, "Application and Certificate for Payment", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	certified := "-"
	if payApp.CertifiedDate != nil {
		certified = formatDate(*payApp.CertifiedDate)
		if payApp.CertifiedBy != nil {
			certified += " by " + *payApp.CertifiedBy
		}
	}

	m.AddRow(24,
		col.New(6).Add(
			text.New(fmt.Sprintf("Application no.: %d", payApp.PayAppNumber), props.Text{Top: 0}),
			text.New("Period: "+formatDate(payApp.PeriodFrom)+" to "+formatDate(payApp.PeriodTo), props.Text{Top: 4}),
			text.New("Status: "+string(payApp.Status), props.Text{Top: 8}),
			text.New("Certified: "+certified, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Contractor: "+orDash(payApp.ContractorName), props.Text{Top: 0}),
			text.New("Contract no.: "+orDash(payApp.ContractNumber), props.Text{Top: 4}),
			text.New("Project: "+payApp.ProjectID.String(), props.Text{Top: 8}),
		),
	)
}

func addSummary(m core.Maroto, payApp paydomain.PayApplicationResponse) {
	t := payApp.Totals
	rows := []struct {
		label string
		value string
	}{
		{"Original contract sum", money.Format(t.ScheduledValue)},
		{"Completed previous applications", money.Format(t.CompletedPrevious)},
		{"Completed this period", money.Format(t.CompletedThisPeriod)},
		{"Certified this period", money.Format(t.CertifiedThisPeriod)},
		{"Materials presently stored", money.Format(t.MaterialsStored)},
		{"Total completed and stored to date", money.Format(t.TotalEarned)},
		{"Retainage held this period", money.Format(t.RetainageHeld)},
		{"Current payment due", money.Format(t.NetPayment)},
		{"Percent complete", t.PctComplete.StringFixed(money.Scale) + "%"},
	}

	m.AddRow(10, text.NewCol(12, "Summary", props.Text{Size: 12, Style: fontstyle.Bold, Top: 3}))
	for _, row := range rows {
		m.AddRow(6,
			text.NewCol(8, row.label, labelStyle),
			text.NewCol(4, row.value, valueStyle),
		)
	}
}

func addContinuationSheet(m core.Maroto, payApp paydomain.PayApplicationResponse) {
	m.AddRow(12, text.NewCol(12, "Continuation sheet", props.Text{Size: 12, Style: fontstyle.Bold, Top: 5}))
	m.AddRow(8,
		text.NewCol(1, "Item", withLeft(headerStyle)),
		text.NewCol(2, "Description", withLeft(headerStyle)),
		text.NewCol(2, "Scheduled", headerStyle),
		text.NewCol(1, "Previous", headerStyle),
		text.NewCol(1, "This period", headerStyle),
		text.NewCol(1, "Stored", headerStyle),
		text.NewCol(2, "Total to date", headerStyle),
		text.NewCol(1, "Balance", headerStyle),
		text.NewCol(1, "Retainage", headerStyle),
	)

	for _, line := range payApp.LineItems {
		m.AddRow(6,
			text.NewCol(1, line.ItemNumber, withLeft(cellStyle)),
			text.NewCol(2, line.Description, withLeft(cellStyle)),
			text.NewCol(2, money.Format(line.ScheduledValue), cellStyle),
			text.NewCol(1, money.Format(line.WorkCompletedPrevious), cellStyle),
			text.NewCol(1, money.Format(line.CertifiedAmount), cellStyle),
			text.NewCol(1, money.Format(line.MaterialsStored), cellStyle),
			text.NewCol(2, money.Format(line.TotalEarned)+" ("+percent(line.TotalEarned, line.ScheduledValue)+")", cellStyle),
			text.NewCol(1, money.Format(line.BalanceToFinish), cellStyle),
			text.NewCol(1, money.Format(line.Retainage), cellStyle),
		)
	}

	if len(payApp.Warnings) > 0 {
		m.AddRow(8, text.NewCol(12, fmt.Sprintf("%d line item(s) exceed their scheduled value.", len(payApp.Warnings)), props.Text{Size: 8, Style: fontstyle.Italic, Top: 3}))
	}
}

func percent(part, whole decimal.Decimal) string {
	if whole.IsZero() {
		return "0%"
	}
	return part.Mul(money.Hundred).DivRound(whole, 0).String() + "%"
}

func withLeft(p props.Text) props.Text {
	p.Align = align.Left
	return p
}

func formatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
