package gatherlysdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Gatherly HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/api",
		Timeout:  10 * time.Second,
	}
}

type User struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
	Gender         string `json:"gender"`
	BirthDate      string `json:"birth_date"`
	Address        string `json:"address"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

type Creator struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Email          string `json:"email"`
	ProfilePicture string `json:"profile_picture"`
}

type Participant struct {
	UserID    int64  `json:"user_id"`
	EventID   int64  `json:"event_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type Event struct {
	ID           int64         `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Date         string        `json:"date"`
	Location     string        `json:"location"`
	Visibility   string        `json:"visibility"`
	CreatedBy    *Creator      `json:"created_by"`
	DeletedBy    *int64        `json:"deleted_by"`
	Participants []Participant `json:"participants"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
}

type Task struct {
	ID          int64  `json:"id"`
	EventID     int64  `json:"event_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     string `json:"due_date"`
	AssignedTo  int64  `json:"assigned_to"`
	Status      string `json:"status"`
}

// Invitation.UserID is the inviter.
type Invitation struct {
	ID        int64  `json:"id"`
	EventID   int64  `json:"event_id"`
	Email     string `json:"email"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// RegisterInput mirrors POST /register.
type RegisterInput struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
	Gender               string `json:"gender"`
	BirthDate            string `json:"birth_date,omitempty"`
	Address              string `json:"address,omitempty"`
	ProfilePicture       string `json:"profile_picture,omitempty"`
	AgreeTerms           bool   `json:"agree_terms"`
}

// UserUpdate sends only the non-nil fields.
type UserUpdate struct {
	Name                 *string `json:"name,omitempty"`
	Email                *string `json:"email,omitempty"`
	Password             *string `json:"password,omitempty"`
	PasswordConfirmation *string `json:"password_confirmation,omitempty"`
	Gender               *string `json:"gender,omitempty"`
	BirthDate            *string `json:"birth_date,omitempty"`
	Address              *string `json:"address,omitempty"`
	ProfilePicture       *string `json:"profile_picture,omitempty"`
}

type EventInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Date        string `json:"date"`
	Location    string `json:"location,omitempty"`
	Visibility  string `json:"visibility,omitempty"`
	CreatedBy   int64  `json:"created_by"`
}

type TaskInput struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date"`
	AssignedTo  int64  `json:"assigned_to"`
}

// APIError wraps non-2xx responses. Message is the envelope message.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d message=%s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterInput) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPost, "register", in, &resp)
	return resp, err
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User
	}
	if err := c.do(ctx, http.MethodPost, "login", map[string]any{"email": email, "password": password}, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Logout revokes the client's token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "users/logout", nil, nil); err != nil {
		return err
	}
	c.BearerToken = ""
	return nil
}

// LogoutAll revokes every token of the current user.
func (c *Client) LogoutAll(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "users/logout/all", nil, nil); err != nil {
		return err
	}
	c.BearerToken = ""
	return nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "users", nil, &resp)
	return resp, err
}

func (c *Client) UpdateMe(ctx context.Context, in UserUpdate) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodPut, "users", in, &resp)
	return resp, err
}

func (c *Client) SearchUsers(ctx context.Context, query string) ([]User, error) {
	var resp []User
	err := c.do(ctx, http.MethodGet, "users/search?query="+url.QueryEscape(query), nil, &resp)
	return resp, err
}

func (c *Client) CreateEvent(ctx context.Context, in EventInput) (Event, error) {
	var resp Event
	err := c.do(ctx, http.MethodPost, "events", in, &resp)
	return resp, err
}

func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, "events", nil, &resp)
	return resp, err
}

func (c *Client) GetEvent(ctx context.Context, id int64) (Event, error) {
	var resp Event
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("events/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) UpdateEvent(ctx context.Context, id int64, in EventInput) (Event, error) {
	var resp Event
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("events/%d", id), in, &resp)
	return resp, err
}

func (c *Client) DeleteEvent(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("events/%d", id), nil, nil)
}

// MyEvents returns every event visible to the current user.
func (c *Client) MyEvents(ctx context.Context) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, "users/events", nil, &resp)
	return resp, err
}

func (c *Client) CreatedEvents(ctx context.Context) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, "users/events/created", nil, &resp)
	return resp, err
}

// MyEvent fetches one event with the current user's visibility applied.
func (c *Client) MyEvent(ctx context.Context, id int64) (Event, error) {
	var resp Event
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/event/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) Participants(ctx context.Context, eventID int64, status string) ([]Participant, error) {
	endpoint := fmt.Sprintf("users/event/%d/participants", eventID)
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Participant
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) AddParticipant(ctx context.Context, eventID, userID int64, status string) (Participant, error) {
	body := map[string]any{"user_id": userID}
	if status != "" {
		body["status"] = status
	}
	var resp Participant
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("users/event/%d/participants", eventID), body, &resp)
	return resp, err
}

func (c *Client) SetParticipation(ctx context.Context, eventID int64, status string) (Participant, error) {
	var resp Participant
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("users/event/%d/participation", eventID), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, eventID int64, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("users/event/%d/task", eventID), in, &resp)
	return resp, err
}

// Tasks lists the current user's tasks on an event; status is optional.
func (c *Client) Tasks(ctx context.Context, eventID int64, status string) ([]Task, error) {
	endpoint := fmt.Sprintf("users/event/%d/task", eventID)
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	var resp []Task
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, eventID, taskID int64, status string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("users/event/%d/task/%d", eventID, taskID), map[string]any{"status": status}, &resp)
	return resp, err
}

func (c *Client) Invite(ctx context.Context, eventID int64, email string) (Invitation, error) {
	var resp Invitation
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("users/events/%d/invitations", eventID), map[string]any{"email": email}, &resp)
	return resp, err
}

// Invitations lists invitations; direction is "sent", "received" or empty for both.
func (c *Client) Invitations(ctx context.Context, direction, status string) ([]Invitation, error) {
	q := url.Values{}
	if direction != "" {
		q.Set("type", direction)
	}
	if status != "" {
		q.Set("status", status)
	}
	endpoint := "users/invitations"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp []Invitation
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// RespondInvitation accepts or declines a pending invitation.
func (c *Client) RespondInvitation(ctx context.Context, id int64, action string) (Invitation, error) {
	var resp Invitation
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("users/invitations/%d/action", id), map[string]any{"action": action}, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	var env envelope
	var raw bytes.Buffer
	decodeErr := json.NewDecoder(io.TeeReader(resp.Body, &raw)).Decode(&env)
	if resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: env.Message, Body: raw.String()}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
