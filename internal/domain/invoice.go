package domain

import "strings"

// ============================================================
// Invoices / Collections
// ============================================================

// UnknownAccount is the rollup key for invoices without a customer name.
const UnknownAccount = "Unknown"

// Invoice is an outstanding receivable as fetched from GET /invoices.
type Invoice struct {
	ID         string      `json:"id"`
	Number     string      `json:"invoice_number"`
	Customer   CustomerRef `json:"customer"`
	BalanceDue Money       `json:"balance_due"`
	DueDate    Date        `json:"due_date"` // zero when the invoice has no due date
	Status     string      `json:"status,omitempty"`
}

// AccountName is the customer display name, or UnknownAccount.
func (i Invoice) AccountName() string {
	if name := strings.TrimSpace(i.Customer.BusinessName); name != "" {
		return name
	}
	return UnknownAccount
}

// Bucket is an aging classification.
type Bucket string

const (
	BucketCurrent Bucket = "current"
	Bucket1To30   Bucket = "1-30"
	Bucket31To60  Bucket = "31-60"
	Bucket60Plus  Bucket = "60+"
)

// OverdueBuckets lists the overdue buckets from youngest to oldest.
var OverdueBuckets = []Bucket{Bucket1To30, Bucket31To60, Bucket60Plus}

// AgedInvoice is an overdue invoice with its age at evaluation time.
type AgedInvoice struct {
	Invoice
	DaysOverdue int    `json:"days_overdue"`
	Bucket      Bucket `json:"bucket"`
}

// AgingBucket holds the invoices of one bucket and their summed balance.
type AgingBucket struct {
	Bucket   Bucket        `json:"bucket"`
	Label    string        `json:"label,omitempty"`
	Count    int           `json:"count"`
	Total    Money         `json:"total"`
	Invoices []AgedInvoice `json:"invoices"`
}

func (b *AgingBucket) add(inv AgedInvoice) {
	b.Invoices = append(b.Invoices, inv)
	b.Count++
	b.Total += inv.BalanceDue
}

// Classification is the partition of overdue invoices into the three buckets.
type Classification struct {
	Days1To30  AgingBucket `json:"days_1_30"`
	Days31To60 AgingBucket `json:"days_31_60"`
	Days60Plus AgingBucket `json:"days_60_plus"`
}

// NewClassification returns empty, labelled buckets.
func NewClassification() Classification {
	return Classification{
		Days1To30:  AgingBucket{Bucket: Bucket1To30, Invoices: []AgedInvoice{}},
		Days31To60: AgingBucket{Bucket: Bucket31To60, Invoices: []AgedInvoice{}},
		Days60Plus: AgingBucket{Bucket: Bucket60Plus, Invoices: []AgedInvoice{}},
	}
}

// Add files inv into the bucket named by inv.Bucket. Invoices that are not
// overdue are ignored.
func (c *Classification) Add(inv AgedInvoice) {
	switch inv.Bucket {
	case Bucket1To30:
		c.Days1To30.add(inv)
	case Bucket31To60:
		c.Days31To60.add(inv)
	case Bucket60Plus:
		c.Days60Plus.add(inv)
	}
}

// All returns the buckets youngest first.
func (c Classification) All() []AgingBucket {
	return []AgingBucket{c.Days1To30, c.Days31To60, c.Days60Plus}
}

// Total is the overdue balance across all buckets.
func (c Classification) Total() Money {
	return c.Days1To30.Total + c.Days31To60.Total + c.Days60Plus.Total
}

// AccountAgingRow is one line of the per-account aging table.
type AccountAgingRow struct {
	Account    string `json:"account"`
	Current    Money  `json:"current"`
	Days1To30  Money  `json:"days_1_30"`
	Days31To60 Money  `json:"days_31_60"`
	Days60Plus Money  `json:"days_60_plus"`
	Total      Money  `json:"total"`
}

// AgingReport is returned by GET /v1/collections/aging.
type AgingReport struct {
	AsOf             Date              `json:"as_of"`
	TotalOutstanding Money             `json:"total_outstanding"`
	OutstandingCount int               `json:"outstanding_count"`
	Buckets          Classification    `json:"buckets"`
	Overdue          []AgedInvoice     `json:"overdue"`
	Critical         []AgedInvoice     `json:"critical"`
	Accounts         []AccountAgingRow `json:"accounts"`
}

// CollectionsSummary is the collections part of the dashboard.
type CollectionsSummary struct {
	TotalOutstanding Money            `json:"total_outstanding"`
	Overdue          Money            `json:"overdue"`
	ByBucket         map[Bucket]Money `json:"by_bucket"`
}
