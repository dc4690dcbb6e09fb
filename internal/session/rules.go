package session

import (
	"fmt"
	"time"
)

// Rules evaluates the session time windows on every tick. These are
// deadline checks, not OS timers, so they are naturally cancellable and
// replay-deterministic.
type Rules struct {
	loc           *time.Location
	open          dayTime
	close         dayTime
	cutoff        dayTime
	noTradeWindow time.Duration
	autoClose     time.Duration
}

// dayTime is a time of day within the session's location.
type dayTime struct {
	hour, minute int
}

func (d dayTime) on(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), d.hour, d.minute, 0, 0, loc)
}

// RulesConfig configures session windows. Times are "HH:MM" in the
// named timezone.
type RulesConfig struct {
	OpenTime             string
	CloseTime            string
	CutoffTime           string
	Timezone             string
	NoTradeWindowMinutes int
	AutoCloseMinutes     int
}

// NewRules parses the configured session windows.
func NewRules(cfg RulesConfig) (*Rules, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	open, err := parseDayTime(cfg.OpenTime)
	if err != nil {
		return nil, fmt.Errorf("open_time: %w", err)
	}
	close, err := parseDayTime(cfg.CloseTime)
	if err != nil {
		return nil, fmt.Errorf("close_time: %w", err)
	}
	cutoff, err := parseDayTime(cfg.CutoffTime)
	if err != nil {
		return nil, fmt.Errorf("cutoff_time: %w", err)
	}

	return &Rules{
		loc:           loc,
		open:          open,
		close:         close,
		cutoff:        cutoff,
		noTradeWindow: time.Duration(cfg.NoTradeWindowMinutes) * time.Minute,
		autoClose:     time.Duration(cfg.AutoCloseMinutes) * time.Minute,
	}, nil
}

func parseDayTime(s string) (dayTime, error) {
	var d dayTime
	if _, err := fmt.Sscanf(s, "%d:%d", &d.hour, &d.minute); err != nil {
		return d, fmt.Errorf("parse %q as HH:MM: %w", s, err)
	}
	if d.hour < 0 || d.hour > 23 || d.minute < 0 || d.minute > 59 {
		return d, fmt.Errorf("time %q out of range", s)
	}
	return d, nil
}

// Entry-block reasons returned by CanEnter.
const (
	ReasonNoTradeWindow = "inside no-trade window"
	ReasonAfterCutoff   = "after cutoff time"
)

// CanEnter reports whether a new entry is allowed at t. Entries are
// blocked inside the no-trade window after session open and at or after
// the cutoff time. blocked entries carry the reason.
func (r *Rules) CanEnter(t time.Time) (bool, string) {
	local := t.In(r.loc)

	open := r.open.on(t, r.loc)
	if local.Before(open.Add(r.noTradeWindow)) {
		return false, ReasonNoTradeWindow
	}
	if !local.Before(r.cutoff.on(t, r.loc)) {
		return false, ReasonAfterCutoff
	}
	return true, ""
}

// ShouldAutoClose reports whether t is within the auto-close window
// before session close; all open trades must be force-closed.
func (r *Rules) ShouldAutoClose(t time.Time) bool {
	local := t.In(r.loc)
	return !local.Before(r.close.on(t, r.loc).Add(-r.autoClose))
}

// HoldingExceeded reports whether the failsafe holding time has elapsed
// since entry.
func HoldingExceeded(entry, now time.Time, failsafeMinutes int) bool {
	if failsafeMinutes <= 0 {
		return false
	}
	return now.Sub(entry) >= time.Duration(failsafeMinutes)*time.Minute
}
