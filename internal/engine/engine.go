package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"gatherly/internal/config"
	"gatherly/internal/domain"
	"gatherly/internal/engine/auth"
	"gatherly/internal/repo"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSelfInvite         = errors.New("you cannot invite yourself to an event")
	// ErrInvalidInput marks arguments the HTTP layer would have rejected.
	ErrInvalidInput       = errors.New("invalid input")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidInput)...)
}

type UserStore interface {
	InsertUser(ctx context.Context, u domain.User) (int64, error)
	GetUser(ctx context.Context, id int64) (domain.User, error)
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)
	UpdateUser(ctx context.Context, id int64, u repo.UserUpdate) error
	SearchUsers(ctx context.Context, query string, limit int) ([]domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

type EventStore interface {
	InsertEvent(ctx context.Context, e domain.Event) (int64, error)
	GetEvent(ctx context.Context, id int64) (domain.Event, error)
	ListEvents(ctx context.Context, f repo.EventFilters) ([]domain.Event, error)
	UpdateEvent(ctx context.Context, id int64, u repo.EventUpdate) error
	SoftDeleteEvent(ctx context.Context, id int64, deletedBy *int64, ts string) error
}

type ParticipantStore interface {
	UpsertParticipant(ctx context.Context, p domain.Participant) error
	GetParticipant(ctx context.Context, eventID, userID int64) (domain.Participant, error)
	UpdateParticipantStatus(ctx context.Context, eventID, userID int64, status, ts string) error
	ListParticipants(ctx context.Context, eventID int64, status string) ([]domain.Participant, error)
	ParticipantsByEvent(ctx context.Context, eventIDs []int64) (map[int64][]domain.Participant, error)
}

type InvitationStore interface {
	InsertInvitation(ctx context.Context, inv domain.Invitation) (int64, error)
	GetInvitation(ctx context.Context, id int64) (domain.Invitation, error)
	ListInvitations(ctx context.Context, f repo.InvitationFilters) ([]domain.Invitation, error)
	FindInvitation(ctx context.Context, f repo.InvitationFilters) (domain.Invitation, error)
	TransitionInvitation(ctx context.Context, id int64, fromStatus, toStatus, ts string) error
}

type TaskStore interface {
	InsertTask(ctx context.Context, t domain.Task) (int64, error)
	GetTask(ctx context.Context, id int64) (domain.Task, error)
	ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error)
	FindTask(ctx context.Context, f repo.TaskFilters) (domain.Task, error)
	UpdateTaskStatus(ctx context.Context, id int64, status, ts string) error
}

type TokenStore interface {
	InsertAccessToken(ctx context.Context, tok domain.AccessToken) error
	GetAccessTokenByHash(ctx context.Context, hash string) (domain.AccessToken, error)
	ListAccessTokens(ctx context.Context, userID int64) ([]domain.AccessToken, error)
	TouchAccessToken(ctx context.Context, id, ts string) error
	DeleteAccessToken(ctx context.Context, id string) error
	DeleteUserAccessTokens(ctx context.Context, userID int64) (int64, error)
}

type Engine struct {
	DB           *sql.DB
	Users        UserStore
	Events       EventStore
	Participants ParticipantStore
	Invitations  InvitationStore
	Tasks        TaskStore
	Tokens       TokenStore
	Issuer       auth.Issuer
	Config       *config.Config
	Logger       *slog.Logger
	Now          func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	e := Engine{
		DB:           db,
		Users:        r,
		Events:       r,
		Participants: r,
		Invitations:  r,
		Tasks:        r,
		Tokens:       r,
		Config:       cfg,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:          time.Now,
	}
	if cfg != nil {
		e.Issuer = auth.Issuer{
			Secret: cfg.Auth.JWTSecret,
			Issuer: cfg.Auth.Issuer,
			TTL:    cfg.Auth.TokenTTL,
		}
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return domain.FormatTime(e.now())
}

// issuer shares the engine clock so pinned tests sign and verify consistently.
func (e Engine) issuer() auth.Issuer {
	i := e.Issuer
	if i.Now == nil {
		i.Now = e.now
	}
	return i
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

var tracer = otel.Tracer("gatherly/internal/engine")

func (e Engine) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "engine."+op, trace.WithAttributes(attrs...))
}

// finish ends span, marking it failed unless err is the not-found outcome.
func finish(span trace.Span, err error) {
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func userAttr(id int64) attribute.KeyValue  { return attribute.Int64("gatherly.user_id", id) }
func eventAttr(id int64) attribute.KeyValue { return attribute.Int64("gatherly.event_id", id) }

func strPtr(s string) *string { return &s }
