package domain

import (
	"iter"
	"strings"
)

// TransactionFilter is the structured predicate record of the query layer.
// Every field is independently optional; set fields are AND-ed together.
type TransactionFilter struct {
	TransID    *int64
	SenderID   *int64
	ReceiverID *int64

	// Statuses is checkbox semantics: empty means every status passes,
	// non-empty means only the listed statuses pass.
	Statuses []TransactionStatus

	// Month matches the human-readable timestamp: either a substring of the
	// formatted time or a month name ("August", case-insensitive).
	Month string

	// SentOnly / ReceivedOnly restrict relative to Subject. Both may be set;
	// they are applied conjunctively like every other predicate.
	Subject      int64
	SentOnly     bool
	ReceivedOnly bool
}

// Matches reports whether a single transaction passes every set predicate.
func (f *TransactionFilter) Matches(t *Transaction) bool {
	if f.TransID != nil && t.TransID != *f.TransID {
		return false
	}
	if f.SenderID != nil && t.SenderID != *f.SenderID {
		return false
	}
	if f.ReceiverID != nil && t.ReceiverID != *f.ReceiverID {
		return false
	}
	if len(f.Statuses) > 0 && !f.statusChecked(t.Status) {
		return false
	}
	if f.Month != "" && !f.monthMatches(t) {
		return false
	}
	if f.SentOnly && t.SenderID != f.Subject {
		return false
	}
	if f.ReceivedOnly && t.ReceiverID != f.Subject {
		return false
	}
	return true
}

func (f *TransactionFilter) statusChecked(s TransactionStatus) bool {
	for _, want := range f.Statuses {
		if strings.EqualFold(string(want), string(s)) {
			return true
		}
	}
	return false
}

func (f *TransactionFilter) monthMatches(t *Transaction) bool {
	if strings.Contains(t.FormattedTimestamp(), f.Month) {
		return true
	}
	return strings.EqualFold(t.Timestamp.Month().String(), f.Month)
}

// Apply returns a lazy, restartable sequence over the given snapshot.
// The snapshot is never mutated; iterating twice yields the same result.
func (f *TransactionFilter) Apply(snapshot []*Transaction) iter.Seq[*Transaction] {
	return func(yield func(*Transaction) bool) {
		for _, t := range snapshot {
			if !f.Matches(t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}

// Collect drains Apply into a slice, for callers that need the whole result.
func (f *TransactionFilter) Collect(snapshot []*Transaction) []*Transaction {
	out := make([]*Transaction, 0)
	for t := range f.Apply(snapshot) {
		out = append(out, t)
	}
	return out
}
