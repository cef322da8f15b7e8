package valueobject

import "github.com/ignatzorin/tertab-backend/internal/pkg/apperror"

type AttendanceStatus string

const (
	AttendanceStatusPending  AttendanceStatus = "pending"
	AttendanceStatusVerified AttendanceStatus = "verified"
)

func (s AttendanceStatus) IsValid() bool {
	return s == AttendanceStatusPending || s == AttendanceStatusVerified
}

func NewAttendanceStatus(status string) (AttendanceStatus, error) {
	s := AttendanceStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "invalid attendance status")
	}
	return s, nil
}

type ReferenceStatus string

const (
	ReferenceStatusRequested  ReferenceStatus = "requested"
	ReferenceStatusInProgress ReferenceStatus = "in_progress"
	ReferenceStatusCompleted  ReferenceStatus = "completed"
	ReferenceStatusRejected   ReferenceStatus = "rejected"
)

var referenceTransitions = map[ReferenceStatus][]ReferenceStatus{
	ReferenceStatusRequested:  {ReferenceStatusInProgress, ReferenceStatusRejected},
	ReferenceStatusInProgress: {ReferenceStatusCompleted, ReferenceStatusRejected},
	ReferenceStatusCompleted:  {},
	ReferenceStatusRejected:   {},
}

func (s ReferenceStatus) IsValid() bool {
	_, ok := referenceTransitions[s]
	return ok
}

func (s ReferenceStatus) CanTransitionTo(newStatus ReferenceStatus) bool {
	return allowed(referenceTransitions[s], newStatus)
}

// IsTerminal - completed и rejected больше не меняются.
func (s ReferenceStatus) IsTerminal() bool {
	return s == ReferenceStatusCompleted || s == ReferenceStatusRejected
}

func NewReferenceStatus(status string) (ReferenceStatus, error) {
	s := ReferenceStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "invalid reference status")
	}
	return s, nil
}

type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "open"
	DisputeStatusResolved DisputeStatus = "resolved"
	DisputeStatusClosed   DisputeStatus = "closed"
)

var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpen:     {DisputeStatusResolved},
	DisputeStatusResolved: {DisputeStatusClosed},
	DisputeStatusClosed:   {},
}

func (s DisputeStatus) IsValid() bool {
	_, ok := disputeTransitions[s]
	return ok
}

func (s DisputeStatus) CanTransitionTo(newStatus DisputeStatus) bool {
	return allowed(disputeTransitions[s], newStatus)
}

func NewDisputeStatus(status string) (DisputeStatus, error) {
	s := DisputeStatus(status)
	if !s.IsValid() {
		return "", apperror.New(apperror.ErrCodeValidation, "invalid dispute status")
	}
	return s, nil
}

func allowed[T comparable](targets []T, next T) bool {
	for _, t := range targets {
		if t == next {
			return true
		}
	}
	return false
}
