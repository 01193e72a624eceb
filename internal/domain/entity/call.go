package entity

import (
	"fmt"
	"time"
)

type CallStatus string

const (
	CallStatusPending  CallStatus = "pending"
	CallStatusAccepted CallStatus = "accepted"
	CallStatusRejected CallStatus = "rejected"
	CallStatusEnded    CallStatus = "ended"
)

func (s CallStatus) Terminal() bool {
	return s == CallStatusRejected || s == CallStatusEnded
}

// CanTransition reports whether a call record may move from s to next.
// Transitions are monotonic: pending -> accepted|rejected|ended, accepted -> ended.
func (s CallStatus) CanTransition(next CallStatus) bool {
	switch s {
	case CallStatusPending:
		return next == CallStatusAccepted || next == CallStatusRejected || next == CallStatusEnded
	case CallStatusAccepted:
		return next == CallStatusEnded
	default:
		return false
	}
}

// CallSession is the signaling record at calls/{callId}. Participants is the
// ordered pair (caller, callee).
type CallSession struct {
	ID           string     `json:"id" firestore:"-"`
	Participants []string   `json:"participants" firestore:"participants"`
	Status       CallStatus `json:"status" firestore:"status"`
	CreatedBy    string     `json:"created_by" firestore:"createdBy"`
	CreatedAt    time.Time  `json:"created_at" firestore:"createdAt"`
	EndedAt      *time.Time `json:"ended_at,omitempty" firestore:"endedAt"`
}

// NewCallID derives a per-attempt id from the creation time and both users.
func NewCallID(at time.Time, callerID, calleeID string) string {
	return fmt.Sprintf("%d_%s_%s", at.UnixMilli(), callerID, calleeID)
}

func (c *CallSession) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Peer returns the other participant from userID's point of view.
func (c *CallSession) Peer(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

func (c *CallSession) Validate() error {
	if len(c.Participants) != 2 || c.Participants[0] == c.Participants[1] {
		return fmt.Errorf("call %s must have two distinct participants", c.ID)
	}
	if !c.HasParticipant(c.CreatedBy) {
		return fmt.Errorf("call %s creator %s is not a participant", c.ID, c.CreatedBy)
	}
	return nil
}
