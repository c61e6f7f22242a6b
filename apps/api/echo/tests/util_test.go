package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	. "github.com/trezcool/educa/apps/api/echo"
	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
	appfs "github.com/trezcool/educa/fs"
	emailsvc "github.com/trezcool/educa/services/email"
	"github.com/trezcool/educa/services/filestore"
	logsvc "github.com/trezcool/educa/services/logger"
	inmemcache "github.com/trezcool/educa/storage/cache/inmem"
	inmemdb "github.com/trezcool/educa/storage/database/inmem"
	"github.com/trezcool/educa/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

const testPassword = "Educ@2021!"

type testApp struct {
	*Server
	conf    *core.Config
	usrRepo user.Repository
	crsRepo course.Repository
	mailSvc *emailsvc.ConsoleServiceMock
}

// setup returns a server backed by fresh in-memory storage.
func setup(t *testing.T) *testApp {
	conf := testutil.NewConfig(t)
	logger := logsvc.NewRollbarLogger(zap.NewNop(), conf)
	logger.Enable(false)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	core.ParseEmailTemplates(appfs.FS, "templates/email", conf, logger)

	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	crsRepo := inmemdb.NewCourseRepository(db)
	cache, err := inmemcache.New(conf.Cache.LRUSize)
	require.NoError(t, err)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	crsSvc := course.NewService(
		crsRepo,
		inmemdb.NewOrderStore(db),
		db,
		cache,
		filestore.NewLocalStore(conf),
		mailSvc,
		logger,
		conf,
	)
	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		UserSvc:    user.NewService(usrRepo),
		CourseSvc:  crsSvc,
		Validate:   validate,
		Translator: translator,
	})

	return &testApp{
		Server:  srv,
		conf:    conf,
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		mailSvc: mailSvc,
	}
}

func (app *testApp) createInstructor(t *testing.T, uname string) user.User {
	return testutil.CreateUser(t, app.usrRepo, "Instructor "+uname, uname, uname+"@test.cd", testPassword, []string{user.RoleInstructor}, true)
}

func (app *testApp) createStudent(t *testing.T, uname string) user.User {
	return testutil.CreateUser(t, app.usrRepo, "Student "+uname, uname, uname+"@test.cd", testPassword, []string{user.RoleStudent}, true)
}

func (app *testApp) getToken(t *testing.T, usr user.User) string {
	token, err := GenerateToken(GetUserClaims(usr, app.conf), app.conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

// do serves an authenticated JSON request.
func (app *testApp) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			rec := app.do(method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, rec)
		})
	}
}
