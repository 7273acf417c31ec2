package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ecoindex/internal/core"
)

// User is a row of main.users. Password holds the bcrypt hash of the
// password concatenated with Salt.
type User struct {
	ID            int64
	Email         string
	EmailVerified bool
	Password      string
	Salt          string
	Disabled      bool
	Role          string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const userColumns = "id, email, email_verified, password, salt, disabled, role, created_at, updated_at"

// Users is the credential store.
type Users struct {
	db DB
}

// NewUsers returns the users repository over db.
func NewUsers(db DB) *Users { return &Users{db: db} }

// GetByEmail returns the user with the given email or core.ErrNotFound.
func (u *Users) GetByEmail(ctx context.Context, email string) (User, error) {
	rows, err := u.db.Query(ctx, "SELECT "+userColumns+" FROM main.users WHERE email = @email", map[string]any{"email": email})
	if err != nil {
		return User{}, err
	}
	if len(rows) == 0 {
		return User{}, core.NotFoundf("user %s", email)
	}
	return userFromRow(rows[0])
}

// Insert creates a user. An email that is already registered yields
// core.ErrConflict.
func (u *Users) Insert(ctx context.Context, user User) (User, error) {
	if user.Role == "" {
		user.Role = "GUEST"
	}
	rows, err := u.db.Query(ctx,
		`INSERT INTO main.users (email, password, salt, role)
VALUES (@email, @password, @salt, @role)
RETURNING `+userColumns,
		map[string]any{"email": user.Email, "password": user.Password, "salt": user.Salt, "role": user.Role})
	if err != nil {
		return User{}, err
	}
	if len(rows) == 0 {
		return User{}, core.StoreError("insert user", fmt.Errorf("no row returned"))
	}
	return userFromRow(rows[0])
}

// List returns every user ordered by id.
func (u *Users) List(ctx context.Context) ([]User, error) {
	rows, err := u.db.Query(ctx, "SELECT "+userColumns+" FROM main.users ORDER BY id", nil)
	if err != nil {
		return nil, err
	}
	users := make([]User, 0, len(rows))
	for _, row := range rows {
		user, err := userFromRow(row)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

// UpdateRole sets the role of the user with the given email.
func (u *Users) UpdateRole(ctx context.Context, email, role string) error {
	return u.update(ctx, email, "role = @role", map[string]any{"role": role})
}

// SetDisabled enables or disables the user with the given email.
func (u *Users) SetDisabled(ctx context.Context, email string, disabled bool) error {
	return u.update(ctx, email, "disabled = @disabled", map[string]any{"disabled": disabled})
}

// UpdatePassword replaces the stored hash and salt.
func (u *Users) UpdatePassword(ctx context.Context, email, hash, salt string) error {
	return u.update(ctx, email, "password = @password, salt = @salt", map[string]any{"password": hash, "salt": salt})
}

func (u *Users) update(ctx context.Context, email, set string, args map[string]any) error {
	args["email"] = email
	n, err := u.db.Exec(ctx, "UPDATE main.users SET "+set+", updated_at = CURRENT_TIMESTAMP WHERE email = @email", args)
	if err != nil {
		return err
	}
	if n == 0 {
		return core.NotFoundf("user %s", email)
	}
	return nil
}

func userFromRow(row core.Row) (User, error) {
	id, err := asInt64(row["id"])
	if err != nil {
		return User{}, core.StoreError("decode user", err)
	}
	return User{
		ID:            id,
		Email:         asString(row["email"]),
		EmailVerified: asBool(row["email_verified"]),
		Password:      asString(row["password"]),
		Salt:          asString(row["salt"]),
		Disabled:      asBool(row["disabled"]),
		Role:          asString(row["role"]),
		CreatedAt:     asTime(row["created_at"]),
		UpdatedAt:     asTime(row["updated_at"]),
	}, nil
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int32:
		return int64(n), nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected integer value %T", v)
	}
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func asBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case string:
		parsed, _ := strconv.ParseBool(b)
		return parsed
	default:
		return false
	}
}

// sqliteTimestamp is the CURRENT_TIMESTAMP text layout.
const sqliteTimestamp = "2006-01-02 15:04:05"

func asTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		if parsed, err := time.Parse(sqliteTimestamp, t); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}
