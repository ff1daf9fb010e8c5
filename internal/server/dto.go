package server

import (
	"gatherly/internal/domain"
	"gatherly/internal/validate"
)

// Request types keep every field optional in the OpenAPI schema; the
// validate tags decide what is required so failures share one message format.

type RegisterRequest struct {
	Name                 string `json:"name,omitempty" validate:"required,max=191"`
	Email                string `json:"email,omitempty" validate:"required,email,max=191"`
	Password             string `json:"password,omitempty" validate:"required,min=8,eqfield=PasswordConfirmation"`
	PasswordConfirmation string `json:"password_confirmation,omitempty"`
	Gender               string `json:"gender,omitempty" validate:"required,oneof=male female other"`
	BirthDate            string `json:"birth_date,omitempty" validate:"omitempty,date"`
	Address              string `json:"address,omitempty" validate:"omitempty,max=191"`
	ProfilePicture       string `json:"profile_picture,omitempty" validate:"omitempty,max=191"`
	AgreeTerms           bool   `json:"agree_terms,omitempty" validate:"accepted"`
}

var registerMessages = validate.Messages{
	"email.required":       "An email is required.",
	"email.unique":         "This email is already taken.",
	"password.eqfield":     "Password confirmation does not match.",
	"gender.oneof":         "The selected gender is invalid.",
	"agree_terms.accepted": "You must agree to the terms.",
}

type LoginRequest struct {
	Email    string `json:"email,omitempty" validate:"required,email"`
	Password string `json:"password,omitempty" validate:"required,min=6"`
}

var loginMessages = validate.Messages{
	"email.required":    "An email address is required.",
	"email.email":       "Please provide a valid email address.",
	"password.required": "A password is required.",
}

type UpdateUserRequest struct {
	Name                 *string `json:"name,omitempty" validate:"omitempty,max=191"`
	Email                *string `json:"email,omitempty" validate:"omitempty,email,max=191"`
	Password             *string `json:"password,omitempty" validate:"omitempty,min=8,eqfield=PasswordConfirmation"`
	PasswordConfirmation *string `json:"password_confirmation,omitempty"`
	Gender               *string `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	BirthDate            *string `json:"birth_date,omitempty" validate:"omitempty,date"`
	Address              *string `json:"address,omitempty" validate:"omitempty,max=191"`
	ProfilePicture       *string `json:"profile_picture,omitempty" validate:"omitempty,url,max=191"`
}

var updateUserMessages = validate.Messages{
	"email.email":         "Please provide a valid email address.",
	"email.unique":        "This email address is already in use.",
	"password.eqfield":    "Password confirmation does not match.",
	"gender.oneof":        "Gender must be one of male, female, or other.",
	"birth_date.date":     "Please provide a valid birth date.",
	"profile_picture.url": "Please provide a valid URL for the profile picture.",
	"profile_picture.max": "The profile picture field must not be greater than 191 characters.",
}

// EventRequest serves create and update. Optional fields are pointers so an
// update leaves omitted ones untouched.
type EventRequest struct {
	Title       string  `json:"title,omitempty" validate:"required,max=191"`
	Description *string `json:"description,omitempty"`
	Date        string  `json:"date,omitempty" validate:"required,date,future"`
	Location    *string `json:"location,omitempty" validate:"omitempty,max=191"`
	Visibility  string  `json:"visibility,omitempty" validate:"omitempty,oneof=public private"`
	CreatedBy   int64   `json:"created_by,omitempty" validate:"required"`
}

var eventMessages = validate.Messages{
	"title.required":      "The title of the event is required.",
	"date.required":       "The date of the event is required.",
	"date.date":           "Please provide a valid date.",
	"date.future":         "The event date must be a future date.",
	"visibility.oneof":    "Visibility must be either public or private.",
	"created_by.required": "The creator ID is required.",
	"created_by.exists":   "The selected creator ID is invalid.",
}

type TaskRequest struct {
	Title       string `json:"title,omitempty" validate:"required,max=191"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty" validate:"required,date,future"`
	AssignedTo  int64  `json:"assigned_to,omitempty" validate:"required"`
}

var taskMessages = validate.Messages{
	"title.required":       "The title of the event is required.",
	"due_date.required":    "The date of the event is required.",
	"due_date.date":        "Please provide a valid date.",
	"due_date.future":      "The event date must be a future date.",
	"assigned_to.required": "The assigned_to ID is required.",
	"assigned_to.exists":   "The selected assigned_to ID is invalid.",
}

type TaskStatusRequest struct {
	Status string `json:"status,omitempty" validate:"required,oneof=pending ongoing completed"`
}

type TaskQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=pending ongoing completed"`
}

var taskStatusMessages = validate.Messages{
	"status.oneof": "The selected status is invalid. Valid options are pending, ongoing, or completed.",
}

type InvitationRequest struct {
	Email string `json:"email,omitempty" validate:"required,email"`
}

var invitationMessages = validate.Messages{
	"email.required": "The email field is required.",
	"email.email":    "Please enter a valid email address.",
	"email.exists":   "The user with this email does not exist.",
	"email.self":     "You cannot invite yourself to an event.",
}

type InvitationQuery struct {
	Type   string `query:"type" validate:"omitempty,oneof=sent received"`
	Status string `query:"status" validate:"omitempty,oneof=pending accepted declined"`
}

var invitationQueryMessages = validate.Messages{
	"status.oneof": "The selected status is invalid. Valid options are pending, accepted, or declined.",
	"type.oneof":   "The selected type is invalid. Valid options are sent or received.",
}

type InvitationActionRequest struct {
	Action string `json:"action,omitempty" validate:"required,oneof=accept decline"`
}

var invitationActionMessages = validate.Messages{
	"action.required": "An action is required.",
	"action.oneof":    "The action must be either accept or decline.",
}

type ParticipantQuery struct {
	Status string `query:"status" validate:"omitempty,oneof=attending absent maybe"`
}

type AddParticipantRequest struct {
	UserID int64  `json:"user_id,omitempty" validate:"required"`
	Status string `json:"status,omitempty" validate:"omitempty,oneof=attending absent maybe"`
}

type ParticipationRequest struct {
	Status string `json:"status,omitempty" validate:"required,oneof=attending absent maybe"`
}

var participantMessages = validate.Messages{
	"status.oneof":   "The selected status is invalid. Please choose one of the following: attending, absent, maybe.",
	"user_id.exists": "The selected user ID is invalid.",
}

type UserResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
	Gender         string `json:"gender"`
	BirthDate      string `json:"birth_date"`
	Address        string `json:"address"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
	DeletedAt      string `json:"deleted_at,omitempty"`
}

type LoginResponse struct {
	Token string `json:"token"`
	UserResponse
}

type CreatorResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

type ParticipantResponse struct {
	UserID    int64  `json:"user_id"`
	EventID   int64  `json:"event_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type EventResponse struct {
	ID           int64                 `json:"id"`
	Title        string                `json:"title"`
	Description  string                `json:"description"`
	Date         string                `json:"date"`
	Location     string                `json:"location"`
	Visibility   string                `json:"visibility"`
	CreatedBy    *CreatorResponse      `json:"created_by"`
	DeletedBy    *int64                `json:"deleted_by"`
	Participants []ParticipantResponse `json:"participants"`
	CreatedAt    string                `json:"created_at"`
	UpdatedAt    string                `json:"updated_at"`
	DeletedAt    string                `json:"deleted_at,omitempty"`
}

type TaskResponse struct {
	ID          int64  `json:"id"`
	EventID     int64  `json:"event_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	AssignedTo  int64  `json:"assigned_to"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type InvitationResponse struct {
	ID        int64  `json:"id"`
	EventID   int64  `json:"event_id"`
	Email     string `json:"email"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Gender:         u.Gender,
		BirthDate:      u.BirthDate,
		Address:        u.Address,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
		DeletedAt:      u.DeletedAt,
	}
}

func mapUsers(items []domain.User) []UserResponse {
	out := make([]UserResponse, 0, len(items))
	for _, u := range items {
		out = append(out, userResponse(u))
	}
	return out
}

func participantResponse(p domain.Participant) ParticipantResponse {
	return ParticipantResponse{
		UserID:    p.UserID,
		EventID:   p.EventID,
		Name:      p.Name,
		Email:     p.Email,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func mapParticipants(items []domain.Participant) []ParticipantResponse {
	out := make([]ParticipantResponse, 0, len(items))
	for _, p := range items {
		out = append(out, participantResponse(p))
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	resp := EventResponse{
		ID:           e.ID,
		Title:        e.Title,
		Description:  e.Description,
		Date:         e.Date,
		Location:     e.Location,
		Visibility:   e.Visibility,
		DeletedBy:    e.DeletedBy,
		Participants: mapParticipants(e.Participants),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		DeletedAt:    e.DeletedAt,
	}
	if e.Creator != nil {
		resp.CreatedBy = &CreatorResponse{
			ID:             e.Creator.ID,
			Name:           e.Creator.Name,
			Email:          e.Creator.Email,
			ProfilePicture: e.Creator.ProfilePicture,
		}
	}
	return resp
}

func mapEvents(items []domain.Event) []EventResponse {
	out := make([]EventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, eventResponse(e))
	}
	return out
}

func taskResponse(t domain.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		EventID:     t.EventID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		AssignedTo:  t.AssignedTo,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t))
	}
	return out
}

func invitationResponse(inv domain.Invitation) InvitationResponse {
	return InvitationResponse{
		ID:        inv.ID,
		EventID:   inv.EventID,
		Email:     inv.Email,
		UserID:    inv.UserID,
		Status:    inv.Status,
		CreatedAt: inv.CreatedAt,
		UpdatedAt: inv.UpdatedAt,
	}
}

func mapInvitations(items []domain.Invitation) []InvitationResponse {
	out := make([]InvitationResponse, 0, len(items))
	for _, inv := range items {
		out = append(out, invitationResponse(inv))
	}
	return out
}
