package domain

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"

	InvitationPending  = "pending"
	InvitationAccepted = "accepted"
	InvitationDeclined = "declined"

	TaskPending   = "pending"
	TaskOngoing   = "ongoing"
	TaskCompleted = "completed"

	ParticipantAttending = "attending"
	ParticipantAbsent    = "absent"
	ParticipantMaybe     = "maybe"

	InvitationsSent     = "sent"
	InvitationsReceived = "received"

	ActionAccept  = "accept"
	ActionDecline = "decline"
)

var (
	Visibilities         = []string{VisibilityPublic, VisibilityPrivate}
	InvitationStatuses   = []string{InvitationPending, InvitationAccepted, InvitationDeclined}
	TaskStatuses         = []string{TaskPending, TaskOngoing, TaskCompleted}
	ParticipantStatuses  = []string{ParticipantAttending, ParticipantAbsent, ParticipantMaybe}
	Genders              = []string{"male", "female", "other"}
	InvitationActions    = []string{ActionAccept, ActionDecline}
	InvitationDirections = []string{InvitationsSent, InvitationsReceived}
)

type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	PasswordHash   string `json:"-"`
	AgreeTerms     bool   `json:"agree_terms"`
	ProfilePicture string `json:"profile_picture,omitempty"`
	Gender         string `json:"gender" enum:"male,female,other"`
	BirthDate      string `json:"birth_date,omitempty" format:"date"`
	Address        string `json:"address,omitempty"`
	CreatedAt      string `json:"created_at" format:"date-time"`
	UpdatedAt      string `json:"updated_at" format:"date-time"`
	DeletedAt      string `json:"deleted_at,omitempty" format:"date-time"`
}

type Event struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description,omitempty"`
	Date         string        `json:"date" format:"date-time"`
	Location     string        `json:"location,omitempty"`
	Visibility   string        `json:"visibility" enum:"public,private"`
	CreatedBy    int64         `json:"created_by"`
	DeletedBy    *int64        `json:"deleted_by,omitempty"`
	CreatedAt    string        `json:"created_at" format:"date-time"`
	UpdatedAt    string        `json:"updated_at" format:"date-time"`
	DeletedAt    string        `json:"deleted_at,omitempty" format:"date-time"`
	Creator      *User         `json:"creator,omitempty"`
	Participants []Participant `json:"participants,omitempty"`
}

func (e Event) IsPublic() bool { return e.Visibility == VisibilityPublic }

type Participant struct {
	ID        int64  `json:"id"`
	EventID   int64  `json:"event_id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Status    string `json:"status" enum:"attending,absent,maybe"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

// Invitation.UserID is the inviter. The invitee is only known by Email.
type Invitation struct {
	ID        int64  `json:"id"`
	EventID   int64  `json:"event_id"`
	Email     string `json:"email"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status" enum:"pending,accepted,declined"`
	CreatedAt string `json:"created_at" format:"date-time"`
	UpdatedAt string `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID          int64  `json:"id"`
	EventID     int64  `json:"event_id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date" format:"date-time"`
	AssignedTo  int64  `json:"assigned_to"`
	Status      string `json:"status" enum:"pending,ongoing,completed"`
	CreatedAt   string `json:"created_at" format:"date-time"`
	UpdatedAt   string `json:"updated_at" format:"date-time"`
}

type AccessToken struct {
	ID         string `json:"id"`
	UserID     int64  `json:"user_id"`
	Name       string `json:"name,omitempty"`
	TokenHash  string `json:"token_hash"`
	CreatedAt  string `json:"created_at" format:"date-time"`
	LastUsedAt string `json:"last_used_at,omitempty" format:"date-time"`
}

func Contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
