package orders

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

const (
	noteOrderPlaced     = "Order placed"
	noteStatusUpdated   = "Status updated"
	noteRefundProcessed = "Refund processed"
)

var statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// ParseStatus accepts any known status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	candidate := Status(strings.ToLower(strings.TrimSpace(s)))
	for _, st := range statuses {
		if st == candidate {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// Terminal reports whether the order has reached delivered or cancelled.
// Admins may still move a terminal order; the flag drives reporting and delete rules.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// HistoryEntry is one record in an order's append-only audit log.
type HistoryEntry struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
	Note             string    `json:"note,omitempty"`
	IsTrackingUpdate bool      `json:"isTrackingUpdate,omitempty"`
	Location         string    `json:"location,omitempty"`
}

// NoteInput is an annotation added to the history without a status change.
type NoteInput struct {
	Note             string
	IsTrackingUpdate bool
	Location         string
}

// transition moves o to next and appends the matching history entry. It is a
// no-op when the status is unchanged and reports whether anything was appended.
func (o *Order) transition(next Status, note string, entryID string, at time.Time) bool {
	if next == o.Status {
		return false
	}
	if strings.TrimSpace(note) == "" {
		note = noteStatusUpdated
	}
	o.Status = next
	o.appendHistory(HistoryEntry{ID: entryID, Status: next, Timestamp: at, Note: strings.TrimSpace(note)})
	return true
}

// annotate appends a note carrying the current status.
func (o *Order) annotate(in NoteInput, entryID string, at time.Time) {
	o.appendHistory(HistoryEntry{
		ID:               entryID,
		Status:           o.Status,
		Timestamp:        at,
		Note:             strings.TrimSpace(in.Note),
		IsTrackingUpdate: in.IsTrackingUpdate,
		Location:         strings.TrimSpace(in.Location),
	})
}

func (o *Order) appendHistory(e HistoryEntry) {
	// copy so callers holding the previous slice never observe the append
	next := make([]HistoryEntry, len(o.StatusHistory), len(o.StatusHistory)+1)
	copy(next, o.StatusHistory)
	o.StatusHistory = append(next, e)
}
