// internal/domain/billing/charge.go
package billing

import "time"

// ChargeStatus is the ledger state of a charge.
type ChargeStatus string

const (
	StatusOpen       ChargeStatus = "OPEN"
	StatusPaidOnTime ChargeStatus = "PAID_ON_TIME"
	StatusOverdue    ChargeStatus = "OVERDUE"
	StatusCancelled  ChargeStatus = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s ChargeStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusPaidOnTime, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// Charge is a billable obligation read from the external ledger.
// DueDate and PaymentDate are civil dates: only their year/month/day matter.
type Charge struct {
	ID          string
	CustomerID  string
	AmountCents int64
	DueDate     time.Time
	PaymentDate *time.Time // set only when Status == StatusPaidOnTime
	Status      ChargeStatus
	PaymentLink string
}

// Consistent checks the ledger invariants relative to the evaluation time:
// PaymentDate is set iff the charge is paid, and an overdue charge is due
// strictly before today and has no payment date.
func (c Charge) Consistent(now time.Time) bool {
	if !c.Status.Valid() {
		return false
	}
	if (c.PaymentDate != nil) != (c.Status == StatusPaidOnTime) {
		return false
	}
	if c.Status == StatusOverdue && !Day(c.DueDate).Before(Day(now)) {
		return false
	}
	return true
}

// DaysOverdue is the number of whole calendar days between the due date and now.
// It is zero for charges not yet due.
func (c Charge) DaysOverdue(now time.Time) int {
	d := DaysBetween(c.DueDate, now)
	if d < 0 {
		return 0
	}
	return d
}

// Day returns the calendar date of t (read in t's own location) as a UTC midnight,
// so dates from different locations compare by their civil value.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts calendar days from a to b. Negative when b is before a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
