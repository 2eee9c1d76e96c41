// internal/domain/notification/shared_types.go
package notification

import "fmt"

// Kind is the closed set of rule categories. Each kind has exactly one
// matching policy in the trigger evaluator.
type Kind string

const (
	KindDueToday       Kind = "DUE_TODAY"        // "Cobranças que vencem hoje"
	KindOverdue        Kind = "OVERDUE"          // "Cobranças vencidas", recurs under anti-spam
	KindPreDueReminder Kind = "PRE_DUE_REMINDER" // "Aviso prévio de vencimento"
	KindPaymentThanks  Kind = "PAYMENT_THANKS"   // "Agradecimento por pagamento"
	KindCustom         Kind = "CUSTOM"
)

// Kinds lists every known kind.
var Kinds = []Kind{KindDueToday, KindOverdue, KindPreDueReminder, KindPaymentThanks, KindCustom}

func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown rule kind %q", s)
}

// Throttled reports whether the anti-spam cooldown applies to the kind.
// Only overdue notifications recur while their condition persists.
func (k Kind) Throttled() bool {
	return k == KindOverdue
}

// Outcome is the result of a single dispatch attempt.
type Outcome string

const (
	OutcomeSent       Outcome = "SENT"
	OutcomeFailed     Outcome = "FAILED"
	OutcomeSuppressed Outcome = "SUPPRESSED"
)

// Trigger is what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "SCHEDULED" // cron tick
	TriggerManual    Trigger = "MANUAL"    // admin "run now"
	TriggerEvent     Trigger = "EVENT"     // external event, e.g. payment received
)

// EngineState is the coordinator state exposed to the admin surface.
type EngineState string

const (
	StateIdle    EngineState = "IDLE"
	StateRunning EngineState = "RUNNING"
	StatePaused  EngineState = "PAUSED"
)
