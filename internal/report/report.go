// Package report renders the board and the aging report for terminals.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/boddenberg/dealdesk-bfa/internal/config"
	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// Renderer turns domain views into styled text using a presentation profile.
type Renderer struct {
	pres *config.Presentation
	now  func() time.Time

	title  lipgloss.Style
	header lipgloss.Style
	muted  lipgloss.Style
	danger lipgloss.Style
	border lipgloss.Style
}

// NewRenderer creates a renderer; a nil profile uses the defaults.
func NewRenderer(pres *config.Presentation) *Renderer {
	if pres == nil {
		pres = config.DefaultPresentation()
	}
	accent := lipgloss.Color(pres.Palette.Accent)
	muted := lipgloss.Color(pres.Palette.Muted)
	return &Renderer{
		pres:   pres,
		now:    time.Now,
		title:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		header: lipgloss.NewStyle().Bold(true).Foreground(accent).Padding(0, 1),
		muted:  lipgloss.NewStyle().Foreground(muted),
		danger: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(pres.Palette.Danger)),
		border: lipgloss.NewStyle().Foreground(muted),
	}
}

func (r *Renderer) table(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.border).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.header
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

// Aging renders the aging report: totals, buckets, account rollup and the
// overdue list.
func (r *Renderer) Aging(rep *domain.AgingReport) string {
	var b strings.Builder

	b.WriteString(r.title.Render("Collections aging as of " + rep.AsOf.String()))
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total outstanding: %s across %s invoices\n",
		rep.TotalOutstanding.Format(), humanize.Comma(int64(rep.OutstandingCount)))
	fmt.Fprintf(&b, "Overdue: %s\n\n", rep.Buckets.Total().Format())

	buckets := r.table("Bucket", "Invoices", "Balance")
	for _, bk := range rep.Buckets.All() {
		label := lipgloss.NewStyle().Foreground(lipgloss.Color(r.pres.BucketColor(bk.Bucket))).Render(r.pres.BucketLabel(bk.Bucket))
		buckets.Row(label, strconv.Itoa(bk.Count), bk.Total.Format())
	}
	b.WriteString(buckets.Render())
	b.WriteString("\n")

	if len(rep.Accounts) > 0 {
		accounts := r.table("Account",
			r.pres.BucketLabel(domain.BucketCurrent),
			r.pres.BucketLabel(domain.Bucket1To30),
			r.pres.BucketLabel(domain.Bucket31To60),
			r.pres.BucketLabel(domain.Bucket60Plus),
			"Total")
		for _, row := range rep.Accounts {
			name := row.Account
			if name == domain.UnknownAccount {
				name = r.pres.Terminology.Unknown
			}
			accounts.Row(name, row.Current.Format(), row.Days1To30.Format(),
				row.Days31To60.Format(), row.Days60Plus.Format(), row.Total.Format())
		}
		b.WriteString(accounts.Render())
		b.WriteString("\n")
	}

	if len(rep.Overdue) == 0 {
		b.WriteString(r.muted.Render("No overdue accounts."))
		b.WriteString("\n")
		return b.String()
	}

	overdue := r.table("Invoice", "Account", "Due", "Days", "Balance")
	for _, inv := range rep.Overdue {
		days := strconv.Itoa(inv.DaysOverdue)
		if inv.Bucket == domain.Bucket60Plus {
			days = r.danger.Render(days)
		}
		overdue.Row(invoiceLabel(inv.Invoice), inv.AccountName(), inv.DueDate.String(), days, inv.BalanceDue.Format())
	}
	b.WriteString(overdue.Render())
	b.WriteString("\n")
	return b.String()
}

func invoiceLabel(inv domain.Invoice) string {
	if inv.Number != "" {
		return inv.Number
	}
	return inv.ID
}

// Board renders one block per column.
func (r *Renderer) Board(view *domain.BoardView) string {
	var b strings.Builder
	for _, col := range view.Columns {
		style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(r.pres.StageColor(col.Stage)))
		fmt.Fprintf(&b, "%s %s\n", style.Render(col.Label),
			r.muted.Render(fmt.Sprintf("(%d, %s)", col.Count, col.Total.Format())))

		if len(col.Deals) == 0 {
			b.WriteString(r.muted.Render("  no deals"))
			b.WriteString("\n\n")
			continue
		}
		t := r.table("Deal", "Account", "Value", "Probability", "Progress")
		for _, d := range col.Deals {
			t.Row(d.Name, d.Customer.BusinessName, d.Value.Format(), strconv.Itoa(d.Probability)+"%", progressBar(d.ProgressIndex))
		}
		b.WriteString(t.Render())
		b.WriteString("\n\n")
	}
	return b.String()
}

// progressBar draws the position on the five-step happy path.
func progressBar(idx *int) string {
	if idx == nil {
		return "-"
	}
	const steps = 5
	return strings.Repeat("■", *idx+1) + strings.Repeat("□", steps-*idx-1)
}

// Deal renders a single deal after a transition.
func (r *Renderer) Deal(d *domain.Deal) string {
	var b strings.Builder
	stage := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(r.pres.StageColor(d.Stage))).Render(r.pres.StageLabel(d.Stage))
	fmt.Fprintf(&b, "%s  %s\n", r.title.Render(d.Name), stage)
	fmt.Fprintf(&b, "  value %s, probability %d%%\n", d.Value.Format(), d.Probability)
	if d.Customer.BusinessName != "" {
		fmt.Fprintf(&b, "  account %s\n", d.Customer.BusinessName)
	}
	if d.ClosedAt != nil {
		fmt.Fprintf(&b, "  closed %s\n", humanize.RelTime(*d.ClosedAt, r.now(), "ago", "from now"))
	}
	if d.LossReason != "" {
		fmt.Fprintf(&b, "  loss reason: %s\n", d.LossReason)
	}
	return b.String()
}
