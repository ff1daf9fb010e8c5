// Package policy decides who may see and mutate events and tasks. The
// predicates are pure and work on entities the caller already loaded.
package policy

import "gatherly/internal/domain"

// CanView reports whether userID may read the event: public events are open
// to everyone, private ones to their creator and participants.
func CanView(e domain.Event, userID int64) bool {
	if e.IsPublic() {
		return true
	}
	return e.CreatedBy == userID || IsParticipant(e, userID)
}

// CanCreateTask requires the resolved creator relation; an event whose
// creator could not be loaded grants nothing.
func CanCreateTask(e domain.Event, userID int64) bool {
	return e.Creator != nil && e.Creator.ID == userID
}

func CanManageParticipants(e domain.Event, userID int64) bool {
	return CanCreateTask(e, userID)
}

func CanUpdateTask(t domain.Task, userID int64) bool {
	return t.AssignedTo == userID
}

func IsParticipant(e domain.Event, userID int64) bool {
	for _, p := range e.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}
