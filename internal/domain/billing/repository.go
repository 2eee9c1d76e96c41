package billing

import "context"

// ChargeSource is a read-only view of the external ledger at call time.
type ChargeSource interface {
	ListCharges(ctx context.Context) ([]Charge, error)
}

// CustomerRepository resolves customers referenced by charges.
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*Customer, error)
}
