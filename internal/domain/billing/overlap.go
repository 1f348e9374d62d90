package billing

import (
	"time"
)

// StartOfDay returns midnight of the given instant's calendar day
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// NextDay returns midnight of the following calendar day
func NextDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// DaysInMonth returns the number of days in the instant's calendar month
func DaysInMonth(t time.Time) int64 {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return int64(first.AddDate(0, 1, 0).Sub(first).Hours() / 24)
}

// MonthStart returns the first instant of the instant's calendar month
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthEnd returns the first instant of the following month (half-open)
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, 0)
}

// SameDay reports whether both instants fall on the same calendar day
func SameDay(a, b time.Time) bool {
	return StartOfDay(a).Equal(StartOfDay(b))
}

// OverlapOutcome describes what ResolveOverlap decided
type OverlapOutcome int

const (
	// OutcomeNoOverlap - the intervals do not contest a day; nothing changed
	OutcomeNoOverlap OverlapOutcome = iota
	// OutcomeExistingKeepsDay - the pricier existing item keeps the contested
	// day; the new item was pushed forward by one day
	OutcomeExistingKeepsDay
	// OutcomeExistingExtended - month boundary: the pricier existing item was
	// extended through the last day and the new item collapsed to zero length
	OutcomeExistingExtended
	// OutcomeNewKeepsDay - the new item keeps the contested day; the existing
	// item's end was shifted one day backward
	OutcomeNewKeepsDay
)

// ResolveOverlap adjusts the boundaries of an existing and a newly
// registered invoice item for the same resource so that the contested
// calendar day - the day on which the existing item ends and the new item
// starts - is billed exactly once.
//
// The day is deterministically ceded to whichever item carries the higher
// daily price, so a customer is never under-billed for a day on which two
// configurations briefly coexisted. Ties go to the new item.
//
// Both items may be mutated in place; the caller persists them in one
// transaction so a mid-flight failure can never leave the day with zero or
// two owners.
func ResolveOverlap(existing, item *InvoiceItem) OverlapOutcome {
	if existing == nil {
		return OutcomeNoOverlap
	}
	if existing.Resource != item.Resource {
		return OutcomeNoOverlap
	}

	contested := StartOfDay(item.Start)

	// An end is attributed to the day it falls in, except an end at exact
	// midnight, which closes the preceding day. The repository fetches the
	// overlap candidate with the same half-open window, so an item ending
	// at midnight after the contested day still contests it.
	if !existing.End.After(contested) || existing.End.After(NextDay(contested)) {
		return OutcomeNoOverlap
	}

	if existing.DailyPrice().GreaterThan(item.DailyPrice()) {
		lastDay := MonthEnd(item.Start).AddDate(0, 0, -1)
		if contested.Equal(lastDay) {
			// Nothing remains of the new item this month: cover the final day
			// with the pricier existing item and collapse the new one.
			existing.End = NextDay(contested)
			existing.Touch()
			item.End = item.Start
			return OutcomeExistingExtended
		}
		item.Start = NextDay(contested)
		if item.End.Before(item.Start) {
			item.End = item.Start
		}
		return OutcomeExistingKeepsDay
	}

	// The new item is at least as expensive: shift the existing end backward
	// to the start of the contested day, ceding the day to the new item.
	existing.End = contested
	if existing.End.Before(existing.Start) {
		existing.End = existing.Start
	}
	existing.Touch()
	return OutcomeNewKeepsDay
}
