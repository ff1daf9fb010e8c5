package engine_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gatherly/internal/config"
	"gatherly/internal/db"
	"gatherly/internal/domain"
	"gatherly/internal/engine"
	"gatherly/internal/engine/auth"
	"gatherly/internal/migrate"
	"gatherly/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "gatherly.db")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.JWTSecret = "test-secret"
	cfg.Auth.TokenTTL = time.Hour
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) register(t *testing.T, name string) domain.User {
	t.Helper()
	u, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{
		Name:       name,
		Email:      name + "@example.com",
		Password:   "password123",
		Gender:     "other",
		AgreeTerms: true,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u
}

func (env testEnv) event(t *testing.T, creator domain.User, visibility string) domain.Event {
	t.Helper()
	ev, err := env.Engine.CreateEvent(env.Ctx, engine.EventCreateOptions{
		Title:      "Launch party",
		Date:       "2030-06-01 18:00:00",
		Visibility: visibility,
		CreatedBy:  creator.ID,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	return ev
}

func TestRegisterNormalizesAndHidesPassword(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{
		Name: "Alice", Email: "  Alice@Example.COM ", Password: "password123", Gender: "female", BirthDate: "1990-02-03", AgreeTerms: true,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("expected normalized email, got %q", u.Email)
	}
	if u.PasswordHash == "password123" {
		t.Fatalf("password stored in clear")
	}
	if u.BirthDate != "1990-02-03" {
		t.Fatalf("unexpected birth date %q", u.BirthDate)
	}
}

func TestCreateEventDefaultsAndResolvesCreator(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	ev := env.event(t, alice, "")
	if ev.Visibility != domain.VisibilityPublic {
		t.Fatalf("expected default public visibility, got %s", ev.Visibility)
	}
	if ev.Date != "2030-06-01T18:00:00Z" {
		t.Fatalf("expected RFC3339 date, got %s", ev.Date)
	}
	if ev.Creator == nil || ev.Creator.ID != alice.ID {
		t.Fatalf("creator not resolved: %+v", ev.Creator)
	}
}

func TestPublicEventVisibleToEveryone(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)

	got, err := env.Engine.GetEventForUser(env.Ctx, bob, ev.ID)
	if err != nil {
		t.Fatalf("get public event: %v", err)
	}
	if got.ID != ev.ID {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestPrivateEventHiddenFromStrangers(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")
	ev := env.event(t, alice, domain.VisibilityPrivate)

	if _, err := env.Engine.GetEventForUser(env.Ctx, bob, ev.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for stranger, got %v", err)
	}
	if _, err := env.Engine.GetEventForUser(env.Ctx, alice, ev.ID); err != nil {
		t.Fatalf("creator should see own private event: %v", err)
	}
	if _, err := env.Engine.AddParticipant(env.Ctx, alice, ev.ID, carol.ID, domain.ParticipantAttending); err != nil {
		t.Fatalf("add participant: %v", err)
	}
	got, err := env.Engine.GetEventForUser(env.Ctx, carol, ev.ID)
	if err != nil {
		t.Fatalf("participant should see private event: %v", err)
	}
	if len(got.Participants) != 1 || got.Participants[0].UserID != carol.ID {
		t.Fatalf("participants not loaded: %+v", got.Participants)
	}
	if _, err := env.Engine.GetEventForUser(env.Ctx, alice, 999); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for missing event, got %v", err)
	}
}

func TestAllEventsForUserHasNoDuplicates(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	own := env.event(t, alice, domain.VisibilityPrivate)
	env.event(t, bob, domain.VisibilityPrivate)
	public := env.event(t, bob, domain.VisibilityPublic)
	if _, err := env.Engine.AddParticipant(env.Ctx, alice, own.ID, alice.ID, ""); err != nil {
		t.Fatalf("join own event: %v", err)
	}

	events, err := env.Engine.GetAllEventsForUser(env.Ctx, alice)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected own private and public event, got %d", len(events))
	}
	if events[0].ID != own.ID || events[1].ID != public.ID {
		t.Fatalf("unexpected events %d,%d", events[0].ID, events[1].ID)
	}
	if len(events[0].Participants) != 1 {
		t.Fatalf("participants not attached: %+v", events[0].Participants)
	}

	created, err := env.Engine.GetCreatedEventsOfUser(env.Ctx, bob)
	if err != nil || len(created) != 2 {
		t.Fatalf("created events: %v %d", err, len(created))
	}
}

func TestSelfInviteRejectedBeforeStore(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	ev := env.event(t, alice, domain.VisibilityPublic)

	if _, err := env.Engine.SendInvitation(env.Ctx, alice, "ALICE@example.com", ev.ID); !errors.Is(err, engine.ErrSelfInvite) {
		t.Fatalf("expected self invite error, got %v", err)
	}
	invs, err := env.Engine.GetUserInvitations(env.Ctx, alice, engine.InvitationListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(invs) != 0 {
		t.Fatalf("self invite was stored: %+v", invs)
	}
}

func TestSendInvitationMissingParties(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)

	if _, err := env.Engine.SendInvitation(env.Ctx, alice, "nobody@example.com", ev.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown invitee, got %v", err)
	}
	if _, err := env.Engine.SendInvitation(env.Ctx, alice, "bob@example.com", 42); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown event, got %v", err)
	}
}

func TestInvitationWorkflow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)

	inv, err := env.Engine.SendInvitation(env.Ctx, alice, "Bob@Example.com", ev.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if inv.UserID != alice.ID || inv.Email != bob.Email || inv.Status != domain.InvitationPending {
		t.Fatalf("unexpected invitation %+v", inv)
	}

	sent, _ := env.Engine.GetUserInvitations(env.Ctx, alice, engine.InvitationListOptions{Type: domain.InvitationsSent})
	received, _ := env.Engine.GetUserInvitations(env.Ctx, alice, engine.InvitationListOptions{Type: domain.InvitationsReceived})
	if len(sent) != 1 || len(received) != 0 {
		t.Fatalf("alice sides wrong: sent=%d received=%d", len(sent), len(received))
	}

	if _, err := env.Engine.HandleUserInvitation(env.Ctx, alice, inv.ID, domain.ActionAccept); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("inviter must not handle the invitation, got %v", err)
	}
	got, err := env.Engine.HandleUserInvitation(env.Ctx, bob, inv.ID, domain.ActionAccept)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != domain.InvitationAccepted {
		t.Fatalf("expected accepted, got %s", got.Status)
	}
	if _, err := env.Engine.HandleUserInvitation(env.Ctx, bob, inv.ID, domain.ActionDecline); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("resolved invitation handled again: %v", err)
	}

	pending, err := env.Engine.GetUserInvitations(env.Ctx, bob, engine.InvitationListOptions{Status: domain.InvitationPending})
	if err != nil || len(pending) != 0 {
		t.Fatalf("expected no pending invitations, got %v %+v", err, pending)
	}
}

func TestTaskCreationRequiresCreator(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)
	opts := engine.TaskCreateOptions{Title: "Book venue", DueDate: "2030-05-01", AssignedTo: bob.ID}

	if _, err := env.Engine.CreateUserTask(env.Ctx, bob, ev.ID, opts); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for non-creator, got %v", err)
	}
	task, err := env.Engine.CreateUserTask(env.Ctx, alice, ev.ID, opts)
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if task.Status != domain.TaskPending || task.EventID != ev.ID || task.DueDate != "2030-05-01T00:00:00Z" {
		t.Fatalf("unexpected task %+v", task)
	}
}

func TestTaskUpdateRequiresAssignee(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)
	task, err := env.Engine.CreateUserTask(env.Ctx, alice, ev.ID, engine.TaskCreateOptions{Title: "Order food", DueDate: "2030-05-01", AssignedTo: bob.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if _, err := env.Engine.UpdateEventTask(env.Ctx, alice, task.ID, domain.TaskCompleted); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for non-assignee, got %v", err)
	}
	for _, status := range []string{domain.TaskCompleted, domain.TaskPending, domain.TaskOngoing, domain.TaskOngoing} {
		got, err := env.Engine.UpdateEventTask(env.Ctx, bob, task.ID, status)
		if err != nil {
			t.Fatalf("update to %s: %v", status, err)
		}
		if got.Status != status {
			t.Fatalf("expected %s, got %s", status, got.Status)
		}
	}
}

func TestTaskReadsFilterByAssigneeAndStatus(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)
	other := env.event(t, alice, domain.VisibilityPublic)
	if _, err := env.Engine.CreateUserTask(env.Ctx, alice, other.ID, engine.TaskCreateOptions{Title: "c", DueDate: "2030-05-01", AssignedTo: bob.ID}); err != nil {
		t.Fatalf("seed other task: %v", err)
	}
	mine, _ := env.Engine.CreateUserTask(env.Ctx, alice, ev.ID, engine.TaskCreateOptions{Title: "a", DueDate: "2030-05-01", AssignedTo: bob.ID})
	env.Engine.CreateUserTask(env.Ctx, alice, ev.ID, engine.TaskCreateOptions{Title: "b", DueDate: "2030-05-01", AssignedTo: alice.ID})

	tasks, err := env.Engine.GetEventTasks(env.Ctx, bob, ev.ID, engine.TaskListOptions{})
	if err != nil || len(tasks) != 1 || tasks[0].ID != mine.ID {
		t.Fatalf("expected only bob's task: %v %+v", err, tasks)
	}
	tasks, err = env.Engine.GetEventTasks(env.Ctx, bob, ev.ID, engine.TaskListOptions{Status: domain.TaskCompleted})
	if err != nil || len(tasks) != 0 {
		t.Fatalf("expected empty list for completed filter: %v %+v", err, tasks)
	}
	if _, err := env.Engine.GetEventTaskByID(env.Ctx, alice, mine.ID, engine.TaskListOptions{}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for other assignee, got %v", err)
	}
	// the route's event id plays no part in the lookup
	got, err := env.Engine.GetEventTaskByID(env.Ctx, bob, mine.ID, engine.TaskListOptions{Status: domain.TaskPending})
	if err != nil || got.ID != mine.ID {
		t.Fatalf("get by id: %v %+v", err, got)
	}
}

func TestParticipantManagement(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)

	if _, err := env.Engine.AddParticipant(env.Ctx, bob, ev.ID, bob.ID, ""); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for non-creator, got %v", err)
	}
	if _, err := env.Engine.SetParticipationStatus(env.Ctx, bob, ev.ID, domain.ParticipantAttending); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for non-participant, got %v", err)
	}
	p, err := env.Engine.AddParticipant(env.Ctx, alice, ev.ID, bob.ID, "")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if p.Status != domain.ParticipantMaybe || p.Email != bob.Email {
		t.Fatalf("unexpected participant %+v", p)
	}
	p, err = env.Engine.SetParticipationStatus(env.Ctx, bob, ev.ID, domain.ParticipantAttending)
	if err != nil || p.Status != domain.ParticipantAttending {
		t.Fatalf("set status: %v %+v", err, p)
	}
	attending, err := env.Engine.ListEventParticipants(env.Ctx, alice, ev.ID, domain.ParticipantAttending)
	if err != nil || len(attending) != 1 {
		t.Fatalf("list attending: %v %+v", err, attending)
	}
	absent, err := env.Engine.ListEventParticipants(env.Ctx, alice, ev.ID, domain.ParticipantAbsent)
	if err != nil || len(absent) != 0 {
		t.Fatalf("list absent: %v %+v", err, absent)
	}
}

func TestDeleteEventRecordsDeleterAndHides(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)

	if err := env.Engine.DeleteEvent(env.Ctx, ev, bob.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.Engine.GetEvent(env.Ctx, ev.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("deleted event still readable: %v", err)
	}
	all, err := env.Engine.ListEvents(env.Ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("deleted event still listed: %v %+v", err, all)
	}
	var deletedBy int64
	if err := env.Engine.DB.QueryRowContext(env.Ctx, `SELECT deleted_by FROM events WHERE id=?`, ev.ID).Scan(&deletedBy); err != nil {
		t.Fatalf("read deleted_by: %v", err)
	}
	if deletedBy != bob.ID {
		t.Fatalf("expected deleter %d, got %d", bob.ID, deletedBy)
	}
}

func TestUpdateEventOverwritesProvidedFields(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	ev := env.event(t, alice, domain.VisibilityPublic)
	title := "Renamed"
	vis := domain.VisibilityPrivate
	got, err := env.Engine.UpdateEvent(env.Ctx, ev, engine.EventUpdateOptions{Title: &title, Visibility: &vis})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != title || got.Visibility != vis || got.Date != ev.Date {
		t.Fatalf("unexpected event %+v", got)
	}
}

func TestBadEnumsAreInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	ev := env.event(t, alice, domain.VisibilityPublic)

	_, err := env.Engine.CreateEvent(env.Ctx, engine.EventCreateOptions{Title: "Gala", Date: "2030-06-01 18:00:00", Visibility: "secret", CreatedBy: alice.ID})
	if !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid input for visibility, got %v", err)
	}
	task, err := env.Engine.CreateUserTask(env.Ctx, alice, ev.ID, engine.TaskCreateOptions{Title: "Order food", DueDate: "2030-05-01", AssignedTo: bob.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}
	if _, err := env.Engine.UpdateEventTask(env.Ctx, bob, task.ID, "later"); !errors.Is(err, engine.ErrInvalidInput) {
		t.Fatalf("expected invalid input for task status, got %v", err)
	}
	if _, err := env.Engine.UpdateEventTask(env.Ctx, bob, task.ID, domain.TaskCompleted); err != nil {
		t.Fatalf("valid status rejected: %v", err)
	}
}

func TestLoginAndLogout(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	if _, err := env.Engine.Login(env.Ctx, alice.Email, "wrong-password"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, "ghost@example.com", "password123"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}

	first, err := env.Engine.Login(env.Ctx, "ALICE@example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	second, err := env.Engine.Login(env.Ctx, alice.Email, "password123")
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	sess, err := env.Engine.Authenticate(env.Ctx, first.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if sess.User.ID != alice.ID || sess.Token.LastUsedAt == "" {
		t.Fatalf("unexpected session %+v", sess)
	}

	if err := env.Engine.Logout(env.Ctx, sess.Token.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, first.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("revoked token still valid: %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, second.Token); err != nil {
		t.Fatalf("other device logged out: %v", err)
	}

	third, _ := env.Engine.Login(env.Ctx, alice.Email, "password123")
	n, err := env.Engine.LogoutAllDevices(env.Ctx, alice.ID)
	if err != nil || n != 2 {
		t.Fatalf("logout all: n=%d err=%v", n, err)
	}
	for _, tok := range []string{second.Token, third.Token} {
		if _, err := env.Engine.Authenticate(env.Ctx, tok); !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("token survived logout all: %v", err)
		}
	}
}

func TestAuthenticateRejectsExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	res, err := env.Engine.Login(env.Ctx, alice.Email, "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	env.Engine.Now = func() time.Time { return time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC) }
	if _, err := env.Engine.Authenticate(env.Ctx, res.Token); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected expired token to fail, got %v", err)
	}
}

func TestUpdateUserRehashesPassword(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")
	pw := "newpassword1"
	name := "Alice Cooper"
	got, err := env.Engine.UpdateUser(env.Ctx, alice, engine.UserUpdateOptions{Name: &name, Password: &pw})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != name || got.Email != alice.Email {
		t.Fatalf("unexpected user %+v", got)
	}
	if _, err := env.Engine.Login(env.Ctx, alice.Email, "password123"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("old password still works: %v", err)
	}
	if _, err := env.Engine.Login(env.Ctx, alice.Email, pw); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestSearchUsersCapped(t *testing.T) {
	env := newTestEnv(t)
	for _, name := range []string{"anna", "annabel", "hannah", "bob"} {
		env.register(t, name)
	}
	got, err := env.Engine.SearchUsers(env.Ctx, "ANN")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %d", len(got))
	}
	if engine.SearchLimit != 10 {
		t.Fatalf("search limit changed: %d", engine.SearchLimit)
	}
}
