package repo

import (
	"context"
	"database/sql"
	"strings"

	"gatherly/internal/domain"
)

const userColumns = `id,name,email,password,agree_terms,COALESCE(profile_picture,''),gender,COALESCE(birth_date,''),COALESCE(address,''),created_at,updated_at,COALESCE(deleted_at,'')`

func scanUser(row scanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.AgreeTerms, &u.ProfilePicture, &u.Gender,
		&u.BirthDate, &u.Address, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err != nil {
		return domain.User{}, notFound(err)
	}
	return u, nil
}

// InsertUser stores a user and returns its id. PasswordHash must already be hashed.
func (r Repo) InsertUser(ctx context.Context, u domain.User) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO users(name,email,password,agree_terms,profile_picture,gender,birth_date,address,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		u.Name, u.Email, u.PasswordHash, u.AgreeTerms, nullable(u.ProfilePicture), u.Gender, nullable(u.BirthDate), nullable(u.Address), u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=? AND deleted_at IS NULL`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=? AND deleted_at IS NULL`, strings.ToLower(strings.TrimSpace(email))))
}

// UserUpdate carries the columns to overwrite; nil fields are left untouched.
type UserUpdate struct {
	Name           *string
	Email          *string
	PasswordHash   *string
	ProfilePicture *string
	Gender         *string
	BirthDate      *string
	Address        *string
	UpdatedAt      string
}

func (r Repo) UpdateUser(ctx context.Context, id int64, u UserUpdate) error {
	var (
		fields []string
		args   []any
	)
	set := func(col string, v *string, null bool) {
		if v == nil {
			return
		}
		fields = append(fields, col+"=?")
		if null {
			args = append(args, nullable(*v))
		} else {
			args = append(args, *v)
		}
	}
	set("name", u.Name, false)
	set("email", u.Email, false)
	set("password", u.PasswordHash, false)
	set("profile_picture", u.ProfilePicture, true)
	set("gender", u.Gender, false)
	set("birth_date", u.BirthDate, true)
	set("address", u.Address, true)
	if len(fields) == 0 {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, u.UpdatedAt)
	return r.updateByID(ctx, "users", id, fields, args, "deleted_at IS NULL")
}

// SearchUsers matches query case-insensitively against name or email.
func (r Repo) SearchUsers(ctx context.Context, query string, limit int) ([]domain.User, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	q := `SELECT ` + userColumns + ` FROM users WHERE deleted_at IS NULL AND (LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\') ORDER BY id`
	args := []any{pattern, pattern}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r Repo) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, u)
	}
	return res, rows.Err()
}
