// Package aging classifies outstanding invoices by how long they have been
// overdue and rolls the balances up per customer account.
//
// Every function is pure: buckets are recomputed from the invoices passed in
// and the evaluation date, nothing is stored between calls.
package aging

import (
	"sort"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

const (
	bucketAMaxDays = 30
	bucketBMaxDays = 60
)

// DaysOverdue returns the whole days between the invoice's due date and asOf,
// or 0 when there is no due date or it is not before asOf.
func DaysOverdue(inv domain.Invoice, asOf domain.Date) int {
	if inv.DueDate.IsZero() || !inv.DueDate.Before(asOf) {
		return 0
	}
	return asOf.DaysSince(inv.DueDate)
}

// IsOverdue reports whether inv has a positive balance and a due date before asOf.
// An invoice due on asOf itself is not overdue yet.
func IsOverdue(inv domain.Invoice, asOf domain.Date) bool {
	return inv.BalanceDue > 0 && !inv.DueDate.IsZero() && inv.DueDate.Before(asOf)
}

// BucketFor maps a days-overdue count to its bucket. Upper bounds are inclusive.
func BucketFor(days int) domain.Bucket {
	switch {
	case days <= 0:
		return domain.BucketCurrent
	case days <= bucketAMaxDays:
		return domain.Bucket1To30
	case days <= bucketBMaxDays:
		return domain.Bucket31To60
	default:
		return domain.Bucket60Plus
	}
}

// Age annotates inv with its age and bucket as of asOf.
func Age(inv domain.Invoice, asOf domain.Date) domain.AgedInvoice {
	days := DaysOverdue(inv, asOf)
	bucket := domain.BucketCurrent
	if IsOverdue(inv, asOf) {
		bucket = BucketFor(days)
	}
	return domain.AgedInvoice{Invoice: inv, DaysOverdue: days, Bucket: bucket}
}

// Classify partitions the overdue subset of invoices into the 1-30, 31-60 and
// 60+ buckets. Invoices that are not overdue are left out.
func Classify(invoices []domain.Invoice, asOf domain.Date) domain.Classification {
	c := domain.NewClassification()
	for _, inv := range invoices {
		if !IsOverdue(inv, asOf) {
			continue
		}
		c.Add(Age(inv, asOf))
	}
	return c
}

// TotalOutstanding sums every positive balance, overdue or not, and counts
// the invoices that contributed.
func TotalOutstanding(invoices []domain.Invoice) (total domain.Money, count int) {
	for _, inv := range invoices {
		if inv.BalanceDue > 0 {
			total += inv.BalanceDue
			count++
		}
	}
	return total, count
}

// RollupByAccount sums overdue balances per customer and bucket. The current
// column is always zero: only overdue invoices are rolled up. Rows are ordered
// by total descending, then by account name.
func RollupByAccount(overdue []domain.AgedInvoice) []domain.AccountAgingRow {
	rows := make(map[string]*domain.AccountAgingRow)
	for _, inv := range overdue {
		name := inv.AccountName()
		row, ok := rows[name]
		if !ok {
			row = &domain.AccountAgingRow{Account: name}
			rows[name] = row
		}
		switch inv.Bucket {
		case domain.Bucket1To30:
			row.Days1To30 += inv.BalanceDue
		case domain.Bucket31To60:
			row.Days31To60 += inv.BalanceDue
		case domain.Bucket60Plus:
			row.Days60Plus += inv.BalanceDue
		default:
			continue
		}
		row.Total += inv.BalanceDue
	}

	out := make([]domain.AccountAgingRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Account < out[j].Account
	})
	return out
}

// SortedOverdueList returns the overdue invoices oldest first. Invoices with
// the same age keep their input order.
func SortedOverdueList(invoices []domain.Invoice, asOf domain.Date) []domain.AgedInvoice {
	out := make([]domain.AgedInvoice, 0, len(invoices))
	for _, inv := range invoices {
		if IsOverdue(inv, asOf) {
			out = append(out, Age(inv, asOf))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DaysOverdue > out[j].DaysOverdue
	})
	return out
}

// Report builds the full collections view. A nil or empty invoice set gives a
// report whose totals are all zero.
func Report(invoices []domain.Invoice, asOf domain.Date) domain.AgingReport {
	overdue := SortedOverdueList(invoices, asOf)

	critical := make([]domain.AgedInvoice, 0)
	for _, inv := range overdue {
		if inv.Bucket == domain.Bucket60Plus {
			critical = append(critical, inv)
		}
	}

	total, count := TotalOutstanding(invoices)
	return domain.AgingReport{
		AsOf:             asOf,
		TotalOutstanding: total,
		OutstandingCount: count,
		Buckets:          Classify(invoices, asOf),
		Overdue:          overdue,
		Critical:         critical,
		Accounts:         RollupByAccount(overdue),
	}
}
