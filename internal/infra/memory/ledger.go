package memory

import (
	"context"
	"sync"

	"cobrancazap/internal/domain/billing"
)

// Ledger is an in-memory charge source and customer directory.
type Ledger struct {
	mu        sync.RWMutex
	charges   []billing.Charge
	customers map[string]billing.Customer
}

func NewLedger() *Ledger {
	return &Ledger{customers: make(map[string]billing.Customer)}
}

// PutCharge inserts or replaces a charge by ID.
func (l *Ledger) PutCharge(c billing.Charge) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.charges {
		if l.charges[i].ID == c.ID {
			l.charges[i] = c
			return
		}
	}
	l.charges = append(l.charges, c)
}

func (l *Ledger) PutCustomer(c billing.Customer) {
	l.mu.Lock()
	l.customers[c.ID] = c
	l.mu.Unlock()
}

func (l *Ledger) ListCharges(_ context.Context) ([]billing.Charge, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]billing.Charge, len(l.charges))
	copy(out, l.charges)
	return out, nil
}

// GetByID returns nil, nil for unknown customers.
func (l *Ledger) GetByID(_ context.Context, id string) (*billing.Customer, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	c, ok := l.customers[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}
