package client

import (
	"context"
	"net/http"
	"strconv"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
)

// ListInvoices fetches one page of invoices.
func (c *Backend) ListInvoices(ctx context.Context, perPage int) ([]domain.Invoice, error) {
	if perPage <= 0 {
		perPage = 100
	}
	var invoices []domain.Invoice
	path := "/invoices?per_page=" + strconv.Itoa(perPage)
	if err := c.do(ctx, "ListInvoices", http.MethodGet, path, nil, &invoices); err != nil {
		return nil, c.wrapError("invoices", "", err)
	}
	if invoices == nil {
		invoices = []domain.Invoice{}
	}
	return invoices, nil
}
