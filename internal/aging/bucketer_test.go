package aging_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/dealdesk-bfa/internal/aging"
	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

var asOf = domain.NewDate(2024, time.June, 30)

func invoice(id, account string, cents domain.Money, daysAgo int) domain.Invoice {
	return domain.Invoice{
		ID:         id,
		Number:     "INV-" + id,
		Customer:   domain.CustomerRef{BusinessName: account},
		BalanceDue: cents,
		DueDate:    asOf.AddDays(-daysAgo),
	}
}

func TestIsOverdue_ZeroBalanceNeverOverdue(t *testing.T) {
	for _, days := range []int{-10, 0, 1, 30, 365} {
		assert.False(t, aging.IsOverdue(invoice("1", "Acme", 0, days), asOf), "days=%d", days)
	}
}

func TestIsOverdue_DueTodayIsNotOverdue(t *testing.T) {
	inv := invoice("1", "Acme", 10000, 0)
	assert.False(t, aging.IsOverdue(inv, asOf))
	assert.Equal(t, 0, aging.DaysOverdue(inv, asOf))

	assert.True(t, aging.IsOverdue(inv, asOf.AddDays(1)))
}

func TestIsOverdue_NoDueDate(t *testing.T) {
	inv := domain.Invoice{ID: "1", BalanceDue: 10000}
	assert.False(t, aging.IsOverdue(inv, asOf))
	assert.Equal(t, 0, aging.DaysOverdue(inv, asOf))
}

func TestDaysOverdue_NotYetDue(t *testing.T) {
	assert.Equal(t, 0, aging.DaysOverdue(invoice("1", "Acme", 100, -5), asOf))
}

func TestDaysOverdue_MonotonicInAsOf(t *testing.T) {
	inv := invoice("1", "Acme", 100, 3)
	prev := -1
	for day := -10; day <= 120; day++ {
		got := aging.DaysOverdue(inv, asOf.AddDays(day))
		assert.GreaterOrEqual(t, got, prev, "asOf offset %d", day)
		prev = got
	}
}

func TestBucketBoundaries(t *testing.T) {
	tests := []struct {
		daysAgo int
		want    domain.Bucket
	}{
		{1, domain.Bucket1To30},
		{30, domain.Bucket1To30},
		{31, domain.Bucket31To60},
		{60, domain.Bucket31To60},
		{61, domain.Bucket60Plus},
		{400, domain.Bucket60Plus},
	}
	for _, tt := range tests {
		aged := aging.Age(invoice("1", "Acme", 100, tt.daysAgo), asOf)
		assert.Equal(t, tt.daysAgo, aged.DaysOverdue)
		assert.Equal(t, tt.want, aged.Bucket, "days=%d", tt.daysAgo)
	}
	assert.Equal(t, domain.BucketCurrent, aging.BucketFor(0))
}

func TestClassify_PartitionIsExhaustiveAndDisjoint(t *testing.T) {
	var invoices []domain.Invoice
	for i := 0; i < 120; i++ {
		balance := domain.Money(1000 + i)
		if i%7 == 0 {
			balance = 0
		}
		invoices = append(invoices, invoice(string(rune('a'+i%26))+string(rune('0'+i/26)), "Acme", balance, i-10))
	}

	c := aging.Classify(invoices, asOf)

	seen := map[string]int{}
	for _, b := range c.All() {
		for _, inv := range b.Invoices {
			seen[inv.ID]++
			assert.Equal(t, b.Bucket, inv.Bucket)
		}
	}
	for _, inv := range invoices {
		if aging.IsOverdue(inv, asOf) {
			assert.Equal(t, 1, seen[inv.ID], "invoice %s", inv.ID)
		} else {
			assert.Zero(t, seen[inv.ID], "invoice %s", inv.ID)
		}
	}
}

func TestTotalOutstanding_EqualsRollupPlusCurrent(t *testing.T) {
	invoices := []domain.Invoice{
		invoice("1", "Acme", 45000, 32),
		invoice("2", "Globex", 18500, 5),
		invoice("3", "Acme", 0, 90),
		invoice("4", "Initech", 99900, -3),
		invoice("5", "", 12345, 75),
		invoice("6", "Globex", 500, 0),
	}

	total, count := aging.TotalOutstanding(invoices)
	assert.Equal(t, 5, count)

	var rolled domain.Money
	for _, row := range aging.RollupByAccount(aging.SortedOverdueList(invoices, asOf)) {
		rolled += row.Total
		assert.Zero(t, row.Current)
	}
	var current domain.Money
	for _, inv := range invoices {
		if inv.BalanceDue > 0 && !aging.IsOverdue(inv, asOf) {
			current += inv.BalanceDue
		}
	}
	assert.Equal(t, total, rolled+current)
}

func TestRollupByAccount(t *testing.T) {
	overdue := aging.SortedOverdueList([]domain.Invoice{
		invoice("1", "Acme", 10000, 10),
		invoice("2", "Acme", 20000, 45),
		invoice("3", "Globex", 5000, 90),
		invoice("4", "", 7000, 2),
		invoice("5", "  ", 1000, 70),
	}, asOf)

	rows := aging.RollupByAccount(overdue)
	require.Len(t, rows, 3)

	assert.Equal(t, domain.AccountAgingRow{Account: "Acme", Days1To30: 10000, Days31To60: 20000, Total: 30000}, rows[0])
	assert.Equal(t, domain.AccountAgingRow{Account: domain.UnknownAccount, Days1To30: 7000, Days60Plus: 1000, Total: 8000}, rows[1])
	assert.Equal(t, domain.AccountAgingRow{Account: "Globex", Days60Plus: 5000, Total: 5000}, rows[2])
}

func TestSortedOverdueList_StableOnTies(t *testing.T) {
	got := aging.SortedOverdueList([]domain.Invoice{
		invoice("a", "Acme", 100, 5),
		invoice("b", "Acme", 100, 40),
		invoice("c", "Acme", 100, 5),
		invoice("d", "Acme", 0, 90),
	}, asOf)

	ids := make([]string, 0, len(got))
	for _, inv := range got {
		ids = append(ids, inv.ID)
	}
	assert.Equal(t, []string{"b", "a", "c"}, ids)
}

func TestReport_EndToEnd(t *testing.T) {
	invoices := []domain.Invoice{
		invoice("1", "Acme", 45000, 32),
		invoice("2", "Globex", 18500, 5),
		invoice("3", "Initech", 0, 90),
	}

	r := aging.Report(invoices, asOf)

	require.Len(t, r.Overdue, 2)
	assert.Equal(t, "1", r.Overdue[0].ID)
	assert.Equal(t, 32, r.Overdue[0].DaysOverdue)
	assert.Equal(t, "2", r.Overdue[1].ID)
	assert.Equal(t, 5, r.Overdue[1].DaysOverdue)

	assert.Equal(t, domain.Money(18500), r.Buckets.Days1To30.Total)
	assert.Equal(t, 1, r.Buckets.Days1To30.Count)
	assert.Equal(t, domain.Money(45000), r.Buckets.Days31To60.Total)
	assert.Equal(t, 1, r.Buckets.Days31To60.Count)
	assert.Empty(t, r.Buckets.Days60Plus.Invoices)
	assert.Zero(t, r.Buckets.Days60Plus.Total)

	assert.Equal(t, domain.Money(63500), r.TotalOutstanding)
	assert.Equal(t, 2, r.OutstandingCount)
	assert.Empty(t, r.Critical)
	assert.True(t, r.AsOf.Equal(asOf))
}

func TestReport_CriticalIsSixtyPlus(t *testing.T) {
	r := aging.Report([]domain.Invoice{
		invoice("1", "Acme", 100, 60),
		invoice("2", "Acme", 100, 61),
	}, asOf)

	require.Len(t, r.Critical, 1)
	assert.Equal(t, "2", r.Critical[0].ID)
}

func TestReport_EmptyInput(t *testing.T) {
	r := aging.Report(nil, asOf)

	assert.Zero(t, r.TotalOutstanding)
	assert.Zero(t, r.Buckets.Total())
	assert.NotNil(t, r.Overdue)
	assert.NotNil(t, r.Critical)
	assert.NotNil(t, r.Accounts)
}
