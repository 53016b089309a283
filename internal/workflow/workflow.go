// Package workflow holds the submission curation state machine and the
// contact cadence rules. It has no storage dependencies.
package workflow

import (
	"fmt"
	"time"

	"scicat/internal/models"
)

type Action string

const (
	ActionReview   Action = "review"
	ActionContact  Action = "contact"
	ActionRespond  Action = "respond"
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionPublish  Action = "publish"
	ActionWithdraw Action = "withdraw"
	ActionExpire   Action = "expire"
	ActionReopen   Action = "reopen"
)

type rule struct {
	from []models.SubmissionStatus
	to   models.SubmissionStatus
}

var rules = map[Action]rule{
	ActionReview: {
		from: []models.SubmissionStatus{models.StatusReceived, models.StatusContacted},
		to:   models.StatusUnderReview,
	},
	ActionContact: {
		from: []models.SubmissionStatus{models.StatusReceived, models.StatusUnderReview, models.StatusContacted},
		to:   models.StatusContacted,
	},
	ActionRespond: {
		from: []models.SubmissionStatus{models.StatusContacted, models.StatusUnresponsive},
		to:   models.StatusUnderReview,
	},
	ActionAccept: {
		from: []models.SubmissionStatus{models.StatusUnderReview},
		to:   models.StatusAccepted,
	},
	ActionReject: {
		from: []models.SubmissionStatus{models.StatusReceived, models.StatusUnderReview, models.StatusContacted},
		to:   models.StatusRejected,
	},
	ActionPublish: {
		from: []models.SubmissionStatus{models.StatusAccepted},
		to:   models.StatusPublished,
	},
	ActionWithdraw: {
		from: []models.SubmissionStatus{models.StatusReceived, models.StatusUnderReview, models.StatusContacted, models.StatusAccepted},
		to:   models.StatusWithdrawn,
	},
	ActionExpire: {
		from: []models.SubmissionStatus{models.StatusContacted},
		to:   models.StatusUnresponsive,
	},
	ActionReopen: {
		from: []models.SubmissionStatus{models.StatusRejected, models.StatusUnresponsive, models.StatusWithdrawn},
		to:   models.StatusUnderReview,
	},
}

// Actions lists every action in a stable order.
var Actions = []Action{
	ActionReview, ActionContact, ActionRespond, ActionAccept, ActionReject,
	ActionPublish, ActionWithdraw, ActionExpire, ActionReopen,
}

func ParseAction(s string) (Action, error) {
	a := Action(s)
	if _, ok := rules[a]; !ok {
		return "", fmt.Errorf("unknown action %q: %w", s, models.ErrInvalidArgument)
	}
	return a, nil
}

// Next returns the status reached by applying action to status.
func Next(status models.SubmissionStatus, action Action) (models.SubmissionStatus, error) {
	r, ok := rules[action]
	if !ok {
		return "", fmt.Errorf("unknown action %q: %w", action, models.ErrInvalidArgument)
	}
	for _, from := range r.from {
		if from == status {
			return r.to, nil
		}
	}
	return "", fmt.Errorf("%s from %s: %w", action, status, models.ErrInvalidTransition)
}

// Allowed lists the actions that may be applied from status.
func Allowed(status models.SubmissionStatus) []Action {
	var out []Action
	for _, a := range Actions {
		if _, err := Next(status, a); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// IsTerminal reports whether no action leaves status.
func IsTerminal(status models.SubmissionStatus) bool {
	return len(Allowed(status)) == 0
}

// ContactPolicy controls how often a contacted submitter is reminded
// before the submission is marked unresponsive.
type ContactPolicy struct {
	ReminderAfter time.Duration
	MaxContacts   int
}

type CadenceDecision string

const (
	CadenceNone   CadenceDecision = "none"
	CadenceRemind CadenceDecision = "remind"
	CadenceExpire CadenceDecision = "expire"
)

// ContactDue decides what the reminder job should do with a submission at now.
func ContactDue(sub *models.Submission, policy ContactPolicy, now time.Time) CadenceDecision {
	if sub.Status != models.StatusContacted || sub.LastContactedAt == nil {
		return CadenceNone
	}
	if now.Sub(*sub.LastContactedAt) < policy.ReminderAfter {
		return CadenceNone
	}
	if sub.ContactCount < policy.MaxContacts {
		return CadenceRemind
	}
	return CadenceExpire
}

// Apply moves sub along action and updates the contact bookkeeping.
// It returns the event to persist alongside the submission.
func Apply(sub *models.Submission, action Action, actor, note string, now time.Time) (*models.SubmissionEvent, error) {
	to, err := Next(sub.Status, action)
	if err != nil {
		return nil, err
	}
	event := &models.SubmissionEvent{
		SubmissionID: sub.ID,
		Action:       string(action),
		From:         sub.Status,
		To:           to,
		Actor:        actor,
		Note:         note,
	}
	switch action {
	case ActionContact:
		sub.ContactCount++
		t := now
		sub.LastContactedAt = &t
	case ActionRespond, ActionReopen:
		sub.ContactCount = 0
	}
	sub.Status = to
	return event, nil
}
