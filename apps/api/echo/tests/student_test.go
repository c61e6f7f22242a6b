package tests

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/tests"
)

func Test_studentApi(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	bob := app.createStudent(t, "bob")
	eve := app.createStudent(t, "eve")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	crs := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 101", "go-101")
	empty := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 201", "go-201")
	mod2 := testutil.CreateModule(t, app.crsRepo, crs, "Second", 1)
	mod1 := testutil.CreateModule(t, app.crsRepo, crs, "First", 0)
	txt := testutil.CreateText(t, app.crsRepo, alice, mod2, "Hello", 0)

	for _, id := range []int64{crs.ID, empty.ID} {
		_, err := app.crsRepo.EnrollStudent(context.Background(), id, bob.ID)
		require.NoError(t, err)
	}
	token := app.getToken(t, bob)
	notFound := marchallObj(t, httpErr{Error: "not found"})

	get := func(t *testing.T, path string) course.StudentCourse {
		rec := app.do(http.MethodGet, path, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sc course.StudentCourse
		unmarshal(t, rec, &sc)
		return sc
	}

	t.Run("first module by default", func(t *testing.T) {
		sc := get(t, fmt.Sprintf("/v1/students/courses/%d", crs.ID))
		assert.Equal(t, crs.ID, sc.Course.ID)
		require.Len(t, sc.Course.Modules, 2)
		require.NotNil(t, sc.Module)
		assert.Equal(t, mod1.ID, sc.Module.ID)
		assert.Empty(t, sc.Module.Contents)
	})

	t.Run("given module with its contents", func(t *testing.T) {
		sc := get(t, fmt.Sprintf("/v1/students/courses/%d/modules/%d", crs.ID, mod2.ID))
		require.NotNil(t, sc.Module)
		assert.Equal(t, mod2.ID, sc.Module.ID)
		require.Len(t, sc.Module.Contents, 1)
		assert.Equal(t, txt.ID, sc.Module.Contents[0].ID)
		require.NotNil(t, sc.Module.Contents[0].Item)
		assert.Equal(t, "Hello", sc.Module.Contents[0].Item.Title)
	})

	t.Run("course without modules", func(t *testing.T) {
		sc := get(t, fmt.Sprintf("/v1/students/courses/%d", empty.ID))
		assert.Equal(t, empty.ID, sc.Course.ID)
		assert.Nil(t, sc.Module)
	})

	tests := []httpTest{
		{name: "auth required", path: "/v1/students/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "module of another course", path: fmt.Sprintf("/v1/students/courses/%d/modules/%d", empty.ID, mod1.ID), token: token,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "not enrolled", path: fmt.Sprintf("/v1/students/courses/%d", crs.ID), token: app.getToken(t, eve),
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{name: "not enrolled: list", path: "/v1/students/courses", token: app.getToken(t, eve), wantCode: http.StatusOK, wantData: marchallList(t)},
	}
	runHTTPTests(t, app, tests)
}
