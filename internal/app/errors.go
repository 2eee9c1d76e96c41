package app

import "errors"

var (
	ErrRuleNotFound       = errors.New("notification rule not found")
	ErrInvalidLeadDays    = errors.New("lead days must be between 1 and 30")
	ErrInvalidCooldown    = errors.New("cooldown days must be between 1 and 30")
	ErrNotLeadDayRule     = errors.New("lead days apply only to pre-due reminder rules")
	ErrBusy               = errors.New("a notification run is already in progress")
	ErrPaused             = errors.New("scheduler is paused")
	ErrStorage            = errors.New("run history storage failure")
	ErrAdminNotAuthorized = errors.New("performing user is not authorized as an admin")
)
