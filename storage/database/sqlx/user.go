package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/user"
)

const (
	userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

	checkUserQuery                = `SELECT id, username, email FROM users WHERE username = $1 OR email = $2`
	insertUserQuery               = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	getUserByIDQuery              = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	getUserByUsernameOrEmailQuery = `SELECT ` + userColumns + ` FROM users WHERE username = $1 OR email = $1 LIMIT 1`
	updateUserQuery               = `UPDATE users SET name = $2, username = $3, email = $4, is_active = $5, roles = $6,
password_hash = $7, updated_at = $8, last_login = $9 WHERE id = $1`
)

type userRow struct {
	ID           string         `db:"id"`
	Name         null.String    `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     null.Bool      `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash null.Bytes     `db:"password_hash"`
	CreatedAt    null.Time      `db:"created_at"`
	UpdatedAt    null.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	roles := usr.Roles
	if roles == nil {
		roles = []string{}
	}
	return userRow{
		ID:           usr.ID,
		Name:         null.NewString(usr.Name, usr.Name != ""),
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     null.BoolFromPtr(usr.IsActive),
		Roles:        roles,
		PasswordHash: null.BytesFrom(usr.PasswordHash),
		CreatedAt:    null.NewTime(usr.CreatedAt.UTC(), !usr.CreatedAt.IsZero()),
		UpdatedAt:    null.NewTime(usr.UpdatedAt.UTC(), !usr.UpdatedAt.IsZero()),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	return user.User{
		ID:           r.ID,
		Name:         r.Name.String,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     r.IsActive.Ptr(),
		Roles:        r.Roles,
		PasswordHash: r.PasswordHash.Bytes,
		CreatedAt:    r.CreatedAt.Time,
		UpdatedAt:    r.UpdatedAt.Time,
		LastLogin:    r.LastLogin.Time,
	}
}

func (r userRow) args() []interface{} {
	return []interface{}{
		r.ID, r.Name, r.Username, r.Email, r.IsActive, r.Roles, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	}
}

type userRepository struct {
	baseRepo
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepo{exec: exec}}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) getOne(ctx context.Context, exec core.DBExecutor, query string, arg interface{}) (user.User, error) {
	var rows []userRow
	if err := repo.selectAll(ctx, exec, &rows, query, arg); err != nil {
		return user.User{}, err
	}
	if len(rows) == 0 {
		return user.User{}, sql.ErrNoRows
	}
	return rows[0].user(), nil
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	if username == "" && email == "" {
		return nil
	}

	var rows []userRow
	err := repo.selectAll(ctx, repo.getExec(exec), &rows, checkUserQuery,
		null.NewString(username, username != ""), null.NewString(email, email != ""))
	if err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}
	for _, row := range rows {
		if excluded[row.ID] {
			continue
		}
		if username != "" && row.Username.String == username {
			return user.ErrUsernameExists
		}
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	row := toUserRow(usr)
	if _, err := repo.getExec(exec).ExecContext(ctx, insertUserQuery, row.args()...); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	exe := repo.getExec(exec)

	if filter.ID != "" {
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		usr, err := repo.getOne(ctx, exe, getUserByIDQuery, filter.ID)
		if err != nil {
			return user.User{}, repo.trapNoRowsErr(err, "finding user by ID")
		}
		return usr, nil
	}

	if filter.UsernameOrEmail == "" {
		return user.User{}, user.ErrNotFound
	}
	usr, err := repo.getOne(ctx, exe, getUserByUsernameOrEmailQuery, filter.UsernameOrEmail)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return usr, nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := toUserRow(usr)
	res, err := repo.getExec(exec).ExecContext(ctx, updateUserQuery,
		row.ID, row.Name, row.Username, row.Email, row.IsActive, row.Roles, row.PasswordHash, row.UpdatedAt, row.LastLogin)
	if err == nil {
		err = rowsAffected(res)
	}
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateOrCreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if usr.ID == "" {
		return repo.CreateUser(ctx, usr, exec...)
	}
	return repo.UpdateUser(ctx, usr, exec...)
}
