package tests

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/tests"
)

var errForbidden = httpErr{Error: "permission denied"}

func Test_manageApi_permissions(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	mallory := app.createInstructor(t, "mallory")
	bob := app.createStudent(t, "bob")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	crs := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 101", "go-101")
	mod := testutil.CreateModule(t, app.crsRepo, crs, "Intro", 0)
	cnt := testutil.CreateText(t, app.crsRepo, alice, mod, "Hello", 0)

	studentToken := app.getToken(t, bob)
	otherToken := app.getToken(t, mallory)
	notFound := marchallObj(t, httpErr{Error: "not found"})

	tests := []httpTest{
		{name: "auth required", path: "/v1/manage/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "instructor required", path: "/v1/manage/courses", token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "reorder: instructor required", method: http.MethodPost, path: "/v1/manage/modules/order", token: studentToken,
			body: []byte(fmt.Sprintf(`{"%d": 3}`, mod.ID)), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "own courses only", path: "/v1/manage/courses", token: otherToken, wantCode: http.StatusOK, wantData: marchallList(t)},
		{
			name: "update: foreign course", method: http.MethodPut, path: fmt.Sprintf("/v1/manage/courses/%d", crs.ID), token: otherToken,
			body: []byte(fmt.Sprintf(`{"subject_id": %d, "title": "Hijacked", "overview": "x"}`, prog.ID)), wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "delete: foreign course", method: http.MethodDelete, path: fmt.Sprintf("/v1/manage/courses/%d", crs.ID), token: otherToken,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "modules: foreign course", path: fmt.Sprintf("/v1/manage/courses/%d/modules", crs.ID), token: otherToken,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "contents: foreign module", path: fmt.Sprintf("/v1/manage/modules/%d/contents", mod.ID), token: otherToken,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
		{
			name: "delete: foreign content", method: http.MethodDelete, path: fmt.Sprintf("/v1/manage/contents/%d", cnt.ID), token: otherToken,
			wantCode: http.StatusNotFound, wantData: notFound,
		},
	}
	runHTTPTests(t, app, tests)

	got, err := app.crsRepo.GetCourse(context.Background(), crs.ID)
	require.NoError(t, err)
	assert.Equal(t, "Go 101", got.Title)
	_, err = app.crsRepo.GetContent(context.Background(), cnt.ID)
	assert.NoError(t, err)
}

func Test_manageApi_courses(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	token := app.getToken(t, alice)
	taken := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Taken", "taken")

	tests := []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: "/v1/manage/courses", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"subject_id": "this field is required",
				"title":      "this field is required",
				"overview":   "this field is required",
			}),
		},
		{
			name: "unknown subject", method: http.MethodPost, path: "/v1/manage/courses", token: token,
			body:     []byte(`{"subject_id": 999, "title": "Go", "overview": "Learn Go"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"subject_id": "subject not found"}),
		},
		{
			name: "slug taken", method: http.MethodPost, path: "/v1/manage/courses", token: token,
			body:     []byte(fmt.Sprintf(`{"subject_id": %d, "title": "Taken", "overview": "Learn Go"}`, prog.ID)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"slug": course.ErrSlugExists.Error()}),
		},
		{
			name: "invalid slug", method: http.MethodPost, path: "/v1/manage/courses", token: token,
			body:     []byte(fmt.Sprintf(`{"subject_id": %d, "title": "Go", "slug": "Go Lang", "overview": "Learn Go"}`, prog.ID)),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"slug": "only lowercase letters, numbers and hyphens are allowed"}),
		},
	}
	runHTTPTests(t, app, tests)

	var created course.Course
	t.Run("create", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/manage/courses", token,
			[]byte(fmt.Sprintf(`{"subject_id": %d, "title": "  Go Programming ", "overview": "Learn Go"}`, prog.ID)))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		unmarshal(t, rec, &created)
		assert.Equal(t, alice.ID, created.OwnerID)
		assert.Equal(t, "Go Programming", created.Title)
		assert.Equal(t, "go-programming", created.Slug)
	})

	t.Run("list ordering", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/manage/courses?ordering=title", token)
		require.Equal(t, http.StatusOK, rec.Code)
		var courses []course.Course
		unmarshal(t, rec, &courses)
		assert.Equal(t, []int64{created.ID, taken.ID}, courseIDs(courses))
	})

	t.Run("update keeps own slug", func(t *testing.T) {
		path := fmt.Sprintf("/v1/manage/courses/%d", taken.ID)
		rec := app.do(http.MethodPut, path, token,
			[]byte(fmt.Sprintf(`{"subject_id": %d, "title": "Taken", "overview": "Updated"}`, prog.ID)))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		got, err := app.crsRepo.GetCourse(context.Background(), taken.ID)
		require.NoError(t, err)
		assert.Equal(t, "Updated", got.Overview)
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, fmt.Sprintf("/v1/manage/courses/%d", created.ID), token)
		require.Equal(t, http.StatusNoContent, rec.Code)
		_, err := app.crsRepo.GetCourse(context.Background(), created.ID)
		assert.Equal(t, course.ErrNotFound, err)
	})
}

func moduleOrders(t *testing.T, repo course.Repository, courseID int64) map[int64]int {
	modules, err := repo.QueryModules(context.Background(), courseID)
	require.NoError(t, err)
	orders := make(map[int64]int, len(modules))
	for _, mod := range modules {
		require.NotNil(t, mod.Order)
		orders[mod.ID] = *mod.Order
	}
	return orders
}

func Test_manageApi_createModule(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	crs := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 101", "go-101")
	other := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 201", "go-201")
	token := app.getToken(t, alice)

	create := func(t *testing.T, courseID int64, body string) course.Module {
		rec := app.do(http.MethodPost, fmt.Sprintf("/v1/manage/courses/%d/modules", courseID), token, []byte(body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var mod course.Module
		unmarshal(t, rec, &mod)
		require.NotNil(t, mod.Order)
		return mod
	}

	t.Run("fresh scope counts from 0", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			mod := create(t, crs.ID, fmt.Sprintf(`{"title": "Module %d"}`, i))
			assert.Equal(t, i, *mod.Order)
		}
	})
	t.Run("scopes are independent", func(t *testing.T) {
		assert.Equal(t, 0, *create(t, other.ID, `{"title": "Other"}`).Order)
		assert.Equal(t, 3, *create(t, crs.ID, `{"title": "Module 3"}`).Order)
	})
	t.Run("explicit order is kept", func(t *testing.T) {
		assert.Equal(t, 10, *create(t, crs.ID, `{"title": "Far", "order": 10}`).Order)
		assert.Equal(t, 11, *create(t, crs.ID, `{"title": "Next"}`).Order)
	})
	t.Run("negative order", func(t *testing.T) {
		rec := app.do(http.MethodPost, fmt.Sprintf("/v1/manage/courses/%d/modules", crs.ID), token, []byte(`{"title": "Bad", "order": -1}`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec := app.do(http.MethodGet, fmt.Sprintf("/v1/manage/courses/%d/modules", crs.ID), token)
	require.Equal(t, http.StatusOK, rec.Code)
	var modules []course.Module
	unmarshal(t, rec, &modules)
	require.Len(t, modules, 6)
	for i := 1; i < len(modules); i++ {
		assert.LessOrEqual(t, *modules[i-1].Order, *modules[i].Order, "modules must be sorted by order")
	}
}

func Test_manageApi_saveModules(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	crs := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 101", "go-101")
	other := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 201", "go-201")
	intro := testutil.CreateModule(t, app.crsRepo, crs, "Intro", 0)
	basics := testutil.CreateModule(t, app.crsRepo, crs, "Basics", 5)
	foreign := testutil.CreateModule(t, app.crsRepo, other, "Foreign", 0)
	token := app.getToken(t, alice)
	path := fmt.Sprintf("/v1/manage/courses/%d/modules", crs.ID)

	t.Run("foreign module", func(t *testing.T) {
		rec := app.do(http.MethodPut, path, token, []byte(fmt.Sprintf(`{"modules": [{"id": %d, "title": "Mine"}]}`, foreign.ID)))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"modules[0].id": "module not found"}`, rec.Body.String())
	})

	t.Run("update, create & delete", func(t *testing.T) {
		body := fmt.Sprintf(`{"modules": [
			{"id": %d, "title": "Introduction", "description": "Start here"},
			{"id": %d, "delete": true},
			{"title": "Advanced"}
		]}`, intro.ID, basics.ID)
		rec := app.do(http.MethodPut, path, token, []byte(body))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var modules []course.Module
		unmarshal(t, rec, &modules)
		require.Len(t, modules, 2)
		assert.Equal(t, intro.ID, modules[0].ID)
		assert.Equal(t, "Introduction", modules[0].Title)
		assert.Equal(t, 0, *modules[0].Order, "formsets never change existing orders")
		assert.Equal(t, "Advanced", modules[1].Title)
		assert.Equal(t, 6, *modules[1].Order, "new modules go after the deleted one's order")
	})

	_, err := app.crsRepo.GetModule(context.Background(), foreign.ID)
	assert.NoError(t, err)
}

func Test_manageApi_reorderModules(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	mallory := app.createInstructor(t, "mallory")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	crs := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 101", "go-101")
	foreignCrs := testutil.CreateCourse(t, app.crsRepo, mallory, prog, "Hack 101", "hack-101")
	mod1 := testutil.CreateModule(t, app.crsRepo, crs, "One", 0)
	mod2 := testutil.CreateModule(t, app.crsRepo, crs, "Two", 1)
	foreign := testutil.CreateModule(t, app.crsRepo, foreignCrs, "Foreign", 0)
	token := app.getToken(t, alice)
	path := "/v1/manage/modules/order"
	saved := []byte(`{"saved": "OK"}`)

	t.Run("foreign rows are skipped", func(t *testing.T) {
		rec := app.do(http.MethodPost, path, token, []byte(fmt.Sprintf(`{"%d": 3, "%d": 1}`, mod1.ID, foreign.ID)))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: saved}, rec)
		assert.Equal(t, map[int64]int{mod1.ID: 3, mod2.ID: 1}, moduleOrders(t, app.crsRepo, crs.ID))
		assert.Equal(t, map[int64]int{foreign.ID: 0}, moduleOrders(t, app.crsRepo, foreignCrs.ID))
	})

	t.Run("duplicates are accepted", func(t *testing.T) {
		rec := app.do(http.MethodPost, path, token, []byte(fmt.Sprintf(`{"%d": 5, "%d": 5}`, mod1.ID, mod2.ID)))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: saved}, rec)
		assert.Equal(t, map[int64]int{mod1.ID: 5, mod2.ID: 5}, moduleOrders(t, app.crsRepo, crs.ID))
	})

	t.Run("unknown ids", func(t *testing.T) {
		rec := app.do(http.MethodPost, path, token, []byte(`{"999": 1}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: saved}, rec)
	})

	t.Run("empty mapping", func(t *testing.T) {
		rec := app.do(http.MethodPost, path, token, []byte(`{}`))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: saved}, rec)
	})

	malformed := map[string]string{
		"list":         fmt.Sprintf(`[%d, %d]`, mod1.ID, mod2.ID),
		"string value": fmt.Sprintf(`{"%d": "2", "%d": 0}`, mod1.ID, mod2.ID),
		"float value":  fmt.Sprintf(`{"%d": 1.5, "%d": 0}`, mod1.ID, mod2.ID),
		"negative":     fmt.Sprintf(`{"%d": -1, "%d": 0}`, mod1.ID, mod2.ID),
		"bad id":       fmt.Sprintf(`{"abc": 1, "%d": 0}`, mod2.ID),
		"null":         `null`,
		"empty body":   ``,
		"invalid json": `{"1": `,
	}
	for name, body := range malformed {
		t.Run("malformed: "+name, func(t *testing.T) {
			rec := app.do(http.MethodPost, path, token, []byte(body))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, map[int64]int{mod1.ID: 5, mod2.ID: 5}, moduleOrders(t, app.crsRepo, crs.ID), "no row may change")
		})
	}

	t.Run("auth required", func(t *testing.T) {
		rec := app.do(http.MethodPost, path, "", []byte(fmt.Sprintf(`{"%d": 0}`, mod1.ID)))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, map[int64]int{mod1.ID: 5, mod2.ID: 5}, moduleOrders(t, app.crsRepo, crs.ID))
	})
}

func Test_manageApi_contents(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	crs := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 101", "go-101")
	mod := testutil.CreateModule(t, app.crsRepo, crs, "Intro", 0)
	token := app.getToken(t, alice)
	base := fmt.Sprintf("/v1/manage/modules/%d/contents", mod.ID)

	create := func(t *testing.T, model, body string) course.Content {
		rec := app.do(http.MethodPost, base+"/"+model, token, []byte(body))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var cnt course.Content
		unmarshal(t, rec, &cnt)
		require.NotNil(t, cnt.Order)
		require.NotNil(t, cnt.Item)
		return cnt
	}

	text := create(t, "text", `{"title": "Welcome", "content": "Hello Gophers"}`)
	video := create(t, "video", `{"title": "Talk", "url": "https://www.youtube.com/watch?v=cN_DpYBzKso"}`)
	assert.Equal(t, 0, *text.Order)
	assert.Equal(t, 1, *video.Order)
	assert.Equal(t, course.KindVideo, video.Kind)
	assert.Equal(t, "https://www.youtube.com/watch?v=cN_DpYBzKso", video.Item.URL)

	tests := []httpTest{
		{name: "unknown model", method: http.MethodPost, path: base + "/audio", token: token, body: []byte(`{"title": "x"}`), wantCode: http.StatusNotFound},
		{
			name: "text requires content", method: http.MethodPost, path: base + "/text", token: token, body: []byte(`{"title": "x"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"content": "this field is required"}),
		},
		{
			name: "video requires url", method: http.MethodPost, path: base + "/video", token: token, body: []byte(`{"title": "x", "url": "nope"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"url": "url must be a valid URL"}),
		},
		{
			name: "image requires file", method: http.MethodPost, path: base + "/image", token: token, body: []byte(`{"title": "x"}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"file": "this field is required"}),
		},
	}
	runHTTPTests(t, app, tests)

	t.Run("update", func(t *testing.T) {
		rec := app.do(http.MethodPut, fmt.Sprintf("%s/text/%d", base, text.ObjectID), token, []byte(`{"title": "Welcome!", "content": "Hi"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var it course.Item
		unmarshal(t, rec, &it)
		assert.Equal(t, "Welcome!", it.Title)
		assert.Equal(t, "Hi", it.Content)

		rec = app.do(http.MethodPut, fmt.Sprintf("%s/video/%d", base, text.ObjectID), token, []byte(`{"title": "x", "url": "https://go.dev"}`))
		assert.Equal(t, http.StatusNotFound, rec.Code, "kind must match")
	})

	t.Run("module contents", func(t *testing.T) {
		rec := app.do(http.MethodGet, base, token)
		require.Equal(t, http.StatusOK, rec.Code)
		var got course.Module
		unmarshal(t, rec, &got)
		require.Len(t, got.Contents, 2)
		assert.Equal(t, text.ID, got.Contents[0].ID)
		assert.Equal(t, "Welcome!", got.Contents[0].Item.Title)
		assert.Equal(t, video.ID, got.Contents[1].ID)
	})

	t.Run("reorder", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/manage/contents/order", token, []byte(fmt.Sprintf(`{"%d": 0, "%d": 1}`, video.ID, text.ID)))
		checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"saved": "OK"}`)}, rec)

		contents, err := app.crsRepo.QueryContents(context.Background(), mod.ID)
		require.NoError(t, err)
		require.Len(t, contents, 2)
		assert.Equal(t, video.ID, contents[0].ID)
		assert.Equal(t, text.ID, contents[1].ID)
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(http.MethodDelete, fmt.Sprintf("/v1/manage/contents/%d", text.ID), token)
		require.Equal(t, http.StatusNoContent, rec.Code)

		_, err := app.crsRepo.GetContent(context.Background(), text.ID)
		assert.Equal(t, course.ErrNotFound, err)
		_, err = app.crsRepo.GetItem(context.Background(), course.KindText, text.ObjectID)
		assert.Equal(t, course.ErrNotFound, err)

		assert.Equal(t, 1, *create(t, "text", `{"title": "Again", "content": "..."}`).Order)
	})
}

func Test_manageApi_uploads(t *testing.T) {
	app := setup(t)
	alice := app.createInstructor(t, "alice")
	prog := testutil.CreateSubject(t, app.crsRepo, "Programming", "programming")
	crs := testutil.CreateCourse(t, app.crsRepo, alice, prog, "Go 101", "go-101")
	mod := testutil.CreateModule(t, app.crsRepo, crs, "Intro", 0)
	token := app.getToken(t, alice)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("title", "Gopher"))
	fw, err := w.CreateFormFile("file", "gopher.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not really a png"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/v1/manage/modules/%d/contents/image", mod.ID), &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var cnt course.Content
	unmarshal(t, rec, &cnt)
	require.NotNil(t, cnt.Item)
	assert.Equal(t, "Gopher", cnt.Item.Title)
	assert.Regexp(t, `^images/[0-9a-f-]{36}-gopher\.png$`, cnt.Item.File)
	assert.Equal(t, "/media/"+cnt.Item.File, cnt.Item.FileURL)

	data, err := os.ReadFile(filepath.Join(app.conf.Storage.MediaDir, filepath.FromSlash(cnt.Item.File)))
	require.NoError(t, err)
	assert.Equal(t, "not really a png", string(data))

	// the media dir is served in DEV
	req, rec = newRequest(http.MethodGet, cnt.Item.FileURL)
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not really a png", rec.Body.String())

	rec = app.do(http.MethodDelete, fmt.Sprintf("/v1/manage/contents/%d", cnt.ID), token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	_, err = os.Stat(filepath.Join(app.conf.Storage.MediaDir, filepath.FromSlash(cnt.Item.File)))
	assert.True(t, os.IsNotExist(err), "the file must be deleted along with its item")
}
