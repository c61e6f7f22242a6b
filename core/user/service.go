package user

import (
	"context"
	"errors"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/trezcool/educa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrUserExists     = errors.New("a user with this username or email already exists")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists, ErrEmailExists or ErrUserExists on conflict.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateOrCreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Create(ctx context.Context, nu NewUser) (User, error)
		// RegisterStudent creates an active User with the student role only.
		RegisterStudent(ctx context.Context, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		// ChangePassword applies the password policy to pwd before saving it.
		ChangePassword(ctx context.Context, usr User, pwd string) (User, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers); err != nil {
		var field string
		switch pkgerrors.Cause(err) {
		case ErrUsernameExists, ErrUserExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return pkgerrors.Wrap(err, "checking uniqueness")
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr.SetActive(true)
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) RegisterStudent(ctx context.Context, nu NewUser) (User, error) {
	nu.Roles = []string{RoleStudent}
	return svc.Create(ctx, nu)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{UsernameOrEmail: core.CleanString(uname, true /* lower */)})
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) ChangePassword(ctx context.Context, usr User, pwd string) (User, error) {
	if msg := PasswordPolicyError(pwd, usr.Name, usr.Username, usr.Email); msg != "" {
		return User{}, core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, pkgerrors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
