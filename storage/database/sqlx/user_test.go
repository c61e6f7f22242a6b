package sqlxrepos

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core/user"
)

func Test_userRepository(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	repo := NewUserRepository(db)
	ctx := context.Background()

	t.Run("unique", func(t *testing.T) {
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "", "", nil), "nothing to check")

		mock.ExpectQuery(checkUserQuery).
			WithArgs("jdoe", nil).
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(ownerID, "jdoe", "jdoe@mail.com"))
		err := repo.CheckUsernameUniqueness(ctx, "jdoe", "", nil)
		assert.Equal(t, user.ErrUsernameExists, err)

		mock.ExpectQuery(checkUserQuery).
			WithArgs("jdoe", "jdoe@mail.com").
			WillReturnRows(sqlmock.NewRows([]string{"id", "username", "email"}).AddRow(ownerID, "jdoe", "jdoe@mail.com"))
		err = repo.CheckUsernameUniqueness(ctx, "jdoe", "jdoe@mail.com", []user.User{{ID: ownerID}})
		assert.NoError(t, err, "excluded user")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := repo.GetUser(ctx, user.GetFilter{ID: "42"})
		assert.Equal(t, user.ErrNotFound, err)

		mock.ExpectQuery(getUserByUsernameOrEmailQuery).
			WithArgs("ghost").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		_, err = repo.GetUser(ctx, user.GetFilter{UsernameOrEmail: "ghost"})
		assert.Equal(t, user.ErrNotFound, err)
	})

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(getUserByIDQuery).
			WithArgs(ownerID).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "username", "email", "is_active", "roles"}).
				AddRow(ownerID, "John Doe", "jdoe", nil, true, "{instructor:}"))
		usr, err := repo.GetUser(ctx, user.GetFilter{ID: ownerID})
		require.NoError(t, err)
		assert.Equal(t, "jdoe", usr.Username)
		assert.Equal(t, "", usr.Email)
		assert.True(t, usr.IsInstructor())
		assert.True(t, usr.Active())
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
