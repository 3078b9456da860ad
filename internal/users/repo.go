package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"

	"github.com/ariefcatur/go-order-desk/internal/postgres"
)

type Repo struct {
	DB postgres.DB
	// BcryptCost 0 means bcrypt.DefaultCost.
	BcryptCost int
}

const userCols = `id, name, email, password_hash, role, version, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *Repo) cost() int {
	if r.BcryptCost > 0 {
		return r.BcryptCost
	}
	return bcrypt.DefaultCost
}

func validateIdentity(name, email string, role Role) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidInput)
	}
	if _, ok := ParseRole(string(role)); !ok {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 6 {
		return fmt.Errorf("%w: password must be at least 6 characters", ErrInvalidInput)
	}
	return nil
}

func (r *Repo) Create(ctx context.Context, name, email, password string, role Role) (User, error) {
	if err := validateIdentity(name, email, role); err != nil {
		return User{}, err
	}
	if err := validatePassword(password); err != nil {
		return User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost())
	if err != nil {
		return User{}, err
	}

	u := User{ID: uuid.NewString(), Name: name, Email: email, PasswordHash: string(hash), Role: role, Version: 1}
	err = r.DB.QueryRow(ctx, `
		INSERT INTO users(id, name, email, password_hash, role)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at, updated_at`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *Repo) Get(ctx context.Context, id string) (User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(r.DB.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email=$1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (r *Repo) List(ctx context.Context) ([]User, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Update rewrites name, email and role under the version guard. A
// non-empty newPassword is re-hashed; empty keeps the current hash.
func (r *Repo) Update(ctx context.Context, u User, newPassword string) (User, error) {
	if err := validateIdentity(u.Name, u.Email, u.Role); err != nil {
		return User{}, err
	}
	var (
		ct  pgconn.CommandTag
		err error
	)
	if newPassword == "" {
		// keep the current hash out of the write set
		ct, err = r.DB.Exec(ctx, `
			UPDATE users SET name=$2, email=$3, role=$4,
			       version=version+1, updated_at=now()
			WHERE id=$1 AND version=$5`,
			u.ID, u.Name, u.Email, u.Role, u.Version)
	} else {
		if err := validatePassword(newPassword); err != nil {
			return User{}, err
		}
		h, err2 := bcrypt.GenerateFromPassword([]byte(newPassword), r.cost())
		if err2 != nil {
			return User{}, err2
		}
		ct, err = r.DB.Exec(ctx, `
			UPDATE users SET name=$2, email=$3, password_hash=$4, role=$5,
			       version=version+1, updated_at=now()
			WHERE id=$1 AND version=$6`,
			u.ID, u.Name, u.Email, string(h), u.Role, u.Version)
	}
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	if ct.RowsAffected() == 0 {
		var n int
		if err := r.DB.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id=$1`, u.ID).Scan(&n); err != nil {
			return User{}, err
		}
		if n == 0 {
			return User{}, ErrNotFound
		}
		return User{}, ErrConcurrencyConflict
	}
	return r.Get(ctx, u.ID)
}

// Delete refuses while the user still owns orders (FK is RESTRICT too).
func (r *Repo) Delete(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var n int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE customer_id=$1`, id).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: user has %d order(s)", ErrConflict, n)
	}
	ct, err := tx.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

// Authenticate resolves the email and checks the password. Both failure
// modes collapse into ErrBadCredentials so callers cannot probe for
// registered emails.
func (r *Repo) Authenticate(ctx context.Context, email, password string) (User, error) {
	u, err := r.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return User{}, ErrBadCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
