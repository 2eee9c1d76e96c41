package notification

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduleTime is either a daily wall-clock time or Immediate.
type ScheduleTime struct {
	Immediate bool
	Hour      int
	Minute    int
}

// Immediate fires as soon as the triggering event occurs.
var Immediate = ScheduleTime{Immediate: true}

// DailyAt returns a daily schedule at hh:mm.
func DailyAt(hour, minute int) ScheduleTime {
	return ScheduleTime{Hour: hour, Minute: minute}
}

// ParseScheduleTime accepts "HH:MM" or "immediate" (also "imediato").
func ParseScheduleTime(s string) (ScheduleTime, error) {
	raw := strings.ToLower(strings.TrimSpace(s))
	if raw == "immediate" || raw == "imediato" {
		return Immediate, nil
	}
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return ScheduleTime{}, fmt.Errorf("invalid schedule time %q: expected HH:MM or immediate", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour in schedule time %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute in schedule time %q", s)
	}
	return DailyAt(h, m), nil
}

func (st ScheduleTime) String() string {
	if st.Immediate {
		return "immediate"
	}
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// CronSpec returns the five-field cron expression for a daily schedule.
// Immediate schedules have no cron expression.
func (st ScheduleTime) CronSpec() (string, bool) {
	if st.Immediate {
		return "", false
	}
	return fmt.Sprintf("%d %d * * *", st.Minute, st.Hour), true
}

// Rule is a named recurring notification rule.
// Rules are edited by an administrator and read-only during evaluation.
type Rule struct {
	ID           string
	Name         string
	Kind         Kind
	Enabled      bool
	ScheduleTime ScheduleTime
	LeadDays     int    // PreDueReminder only
	TemplateID   string // empty means the default template for Kind
	UpdatedAt    time.Time
}

// ThrottleSettings is the global anti-spam configuration.
type ThrottleSettings struct {
	AntiSpamEnabled bool
	CooldownDays    int
}
