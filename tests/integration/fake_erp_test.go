package integration

import (
	"context"
	stdsync "sync"

	"github.com/dentalab/erpsync/internal/domain/sync"
)

// fakeERP answers SearchRead from canned records, routing on the query's
// model and filter the way the real server would.
type fakeERP struct {
	mu stdsync.Mutex
	// partners with a positive customer rank, keyed by external ID
	partners map[int64]sync.ExternalRecord
	// contacts grouped by their parent partner ID
	contacts map[int64][]sync.ExternalRecord
	// sellable products
	products []sync.ExternalRecord
	// posted customer invoices
	invoices []sync.ExternalRecord

	created    []map[string]any
	nextCreate int64
}

func newFakeERP() *fakeERP {
	return &fakeERP{
		partners:   make(map[int64]sync.ExternalRecord),
		contacts:   make(map[int64][]sync.ExternalRecord),
		nextCreate: 9000,
	}
}

func (f *fakeERP) Authenticate(ctx context.Context) (int64, error) {
	return 1, nil
}

func (f *fakeERP) CheckCapabilities(ctx context.Context) error {
	return nil
}

func (f *fakeERP) SearchRead(ctx context.Context, query sync.SearchQuery, fn sync.RecordFunc) error {
	for _, record := range f.match(query) {
		if err := fn(record); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeERP) match(query sync.SearchQuery) []sync.ExternalRecord {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch query.Model {
	case "res.partner":
		for _, cond := range query.Filter {
			switch cond.Field {
			case "parent_id":
				parent, _ := cond.Value.(int64)
				return f.contacts[parent]
			case "email":
				email, _ := cond.Value.(string)
				for _, p := range f.partners {
					if p.Str("email") == email {
						return []sync.ExternalRecord{p}
					}
				}
				return nil
			}
		}
		// customer_rank filter: every seeded partner qualifies
		records := make([]sync.ExternalRecord, 0, len(f.partners))
		for _, p := range f.partners {
			records = append(records, p)
		}
		sortByID(records)
		return records
	case "product.product":
		return f.products
	case "account.move":
		return f.invoices
	}
	return nil
}

func (f *fakeERP) Create(ctx context.Context, model string, fields map[string]any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCreate++
	f.created = append(f.created, fields)
	return f.nextCreate, nil
}

func (f *fakeERP) Write(ctx context.Context, model string, ids []int64, fields map[string]any) error {
	return nil
}

func sortByID(records []sync.ExternalRecord) {
	for i := 1; i < len(records); i++ {
		for j := i; j > 0 && records[j].ID < records[j-1].ID; j-- {
			records[j], records[j-1] = records[j-1], records[j]
		}
	}
}

var _ sync.ERPClient = (*fakeERP)(nil)
