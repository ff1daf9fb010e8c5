package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"gatherly/internal/domain"
	"gatherly/internal/engine/auth"
	"gatherly/internal/repo"
)

// SearchLimit caps SearchUsers results.
const SearchLimit = 10

type RegisterOptions struct {
	Name           string
	Email          string
	Password       string
	Gender         string
	BirthDate      string
	Address        string
	ProfilePicture string
	AgreeTerms     bool
}

func normalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func hashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

func (e Engine) Register(ctx context.Context, opts RegisterOptions) (u domain.User, err error) {
	ctx, span := e.start(ctx, "Register")
	defer func() { finish(span, err) }()

	if strings.TrimSpace(opts.Name) == "" || strings.TrimSpace(opts.Email) == "" {
		return domain.User{}, invalid("name and email are required")
	}
	hash, err := hashPassword(opts.Password)
	if err != nil {
		return domain.User{}, err
	}
	birth := ""
	if opts.BirthDate != "" {
		if birth, err = domain.NormalizeDate(opts.BirthDate); err != nil {
			return domain.User{}, err
		}
	}
	ts := e.timestamp()
	id, err := e.Users.InsertUser(ctx, domain.User{
		Name:           strings.TrimSpace(opts.Name),
		Email:          normalizeEmail(opts.Email),
		PasswordHash:   hash,
		AgreeTerms:     opts.AgreeTerms,
		ProfilePicture: opts.ProfilePicture,
		Gender:         opts.Gender,
		BirthDate:      birth,
		Address:        opts.Address,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	return e.Users.GetUser(ctx, id)
}

type LoginResult struct {
	Token string
	User  domain.User
}

// Login checks the password and issues a new bearer token. Unknown emails and
// wrong passwords both yield ErrInvalidCredentials.
func (e Engine) Login(ctx context.Context, email, password string) (res LoginResult, err error) {
	ctx, span := e.start(ctx, "Login")
	defer func() { finish(span, err) }()

	u, err := e.Users.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return LoginResult{}, ErrInvalidCredentials
	}
	token, err := e.IssueToken(ctx, u.ID, "login")
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, User: u}, nil
}

// IssueToken signs a token for userID and stores its hash.
func (e Engine) IssueToken(ctx context.Context, userID int64, name string) (string, error) {
	tokenID := auth.NewTokenID()
	token, err := e.issuer().Sign(userID, tokenID)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	if err := e.Tokens.InsertAccessToken(ctx, domain.AccessToken{
		ID:        tokenID,
		UserID:    userID,
		Name:      name,
		TokenHash: repo.HashToken(token),
		CreatedAt: e.timestamp(),
	}); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

type Session struct {
	User  domain.User
	Token domain.AccessToken
}

// Authenticate resolves a bearer string to its user. The token must verify and
// its stored row must still exist for the same user and jti.
func (e Engine) Authenticate(ctx context.Context, bearer string) (Session, error) {
	parsed, err := e.issuer().Parse(strings.TrimSpace(bearer))
	if err != nil {
		return Session{}, err
	}
	tok, err := e.Tokens.GetAccessTokenByHash(ctx, repo.HashToken(bearer))
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: revoked", auth.ErrInvalidToken)
	}
	if err != nil {
		return Session{}, err
	}
	if tok.ID != parsed.TokenID || tok.UserID != parsed.UserID {
		return Session{}, fmt.Errorf("%w: token mismatch", auth.ErrInvalidToken)
	}
	u, err := e.Users.GetUser(ctx, tok.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, fmt.Errorf("%w: user gone", auth.ErrInvalidToken)
	}
	if err != nil {
		return Session{}, err
	}
	tok.LastUsedAt = e.timestamp()
	if err := e.Tokens.TouchAccessToken(ctx, tok.ID, tok.LastUsedAt); err != nil {
		e.logger().Warn("touch access token", "token_id", tok.ID, "error", err)
	}
	return Session{User: u, Token: tok}, nil
}

// Logout revokes the token the request was made with.
func (e Engine) Logout(ctx context.Context, tokenID string) (err error) {
	ctx, span := e.start(ctx, "Logout")
	defer func() { finish(span, err) }()
	return e.Tokens.DeleteAccessToken(ctx, tokenID)
}

// LogoutAllDevices revokes every token of the user.
func (e Engine) LogoutAllDevices(ctx context.Context, userID int64) (n int64, err error) {
	ctx, span := e.start(ctx, "LogoutAllDevices", userAttr(userID))
	defer func() { finish(span, err) }()
	return e.Tokens.DeleteUserAccessTokens(ctx, userID)
}

func (e Engine) UserTokens(ctx context.Context, userID int64) ([]domain.AccessToken, error) {
	return e.Tokens.ListAccessTokens(ctx, userID)
}

func (e Engine) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return e.Users.GetUser(ctx, id)
}

func (e Engine) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return e.Users.GetUserByEmail(ctx, email)
}

func (e Engine) ListUsers(ctx context.Context) ([]domain.User, error) {
	return e.Users.ListUsers(ctx)
}

// UserUpdateOptions overwrites the non-nil fields.
type UserUpdateOptions struct {
	Name           *string
	Email          *string
	Password       *string
	ProfilePicture *string
	Gender         *string
	BirthDate      *string
	Address        *string
}

func (e Engine) UpdateUser(ctx context.Context, user domain.User, opts UserUpdateOptions) (u domain.User, err error) {
	ctx, span := e.start(ctx, "UpdateUser", userAttr(user.ID))
	defer func() { finish(span, err) }()

	upd := repo.UserUpdate{
		Name:           opts.Name,
		ProfilePicture: opts.ProfilePicture,
		Gender:         opts.Gender,
		Address:        opts.Address,
		UpdatedAt:      e.timestamp(),
	}
	if opts.Email != nil {
		upd.Email = strPtr(normalizeEmail(*opts.Email))
	}
	if opts.Password != nil {
		hash, err := hashPassword(*opts.Password)
		if err != nil {
			return domain.User{}, err
		}
		upd.PasswordHash = &hash
	}
	if opts.BirthDate != nil {
		birth := ""
		if *opts.BirthDate != "" {
			if birth, err = domain.NormalizeDate(*opts.BirthDate); err != nil {
				return domain.User{}, err
			}
		}
		upd.BirthDate = &birth
	}
	if err := e.Users.UpdateUser(ctx, user.ID, upd); err != nil {
		return domain.User{}, err
	}
	return e.Users.GetUser(ctx, user.ID)
}

// SearchUsers matches query against names and emails, case-insensitively.
func (e Engine) SearchUsers(ctx context.Context, query string) (users []domain.User, err error) {
	ctx, span := e.start(ctx, "SearchUsers")
	defer func() { finish(span, err) }()
	return e.Users.SearchUsers(ctx, strings.TrimSpace(query), SearchLimit)
}
