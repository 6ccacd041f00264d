package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/escola/apps/api/echo"
	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/auth"
	"github.com/trezcool/escola/core/grade"
	emailsvc "github.com/trezcool/escola/services/email"
	sqlxrepos "github.com/trezcool/escola/storage/database/sqlx"
	testutil "github.com/trezcool/escola/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errForbidden    = httpErr{Error: "permission denied"}
	errNotFound     = httpErr{Error: "not found"}

	admin      = core.Session{UserID: "adm1", Name: "Admin", Role: core.RoleAdminPrincipal, SchoolID: "s1"}
	teacher    = core.Session{UserID: "tch1", Name: "Teacher", Role: core.RoleTeacher, SchoolID: "s1"}
	student    = core.Session{UserID: "st1", Name: "Student", Role: core.RoleStudent, SchoolID: "s1"}
	otherAdmin = core.Session{UserID: "adm2", Name: "Other", Role: core.RoleAdmin, SchoolID: "s2"}
)

type testApp struct {
	conf *core.Config
	srv  *echoapi.Server
	repo grade.Repository
}

func setup(t *testing.T) testApp {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger(conf)

	// set up DB & repos
	db := testutil.PrepareDB(t, conf)
	gradeRepo := sqlxrepos.NewGradeRepository(db)
	settingsRepo := sqlxrepos.NewSettingsRepository(db)

	// set up services
	core.ParseEmailTemplates(logger, true)
	emailsvc.ResetSentMessages()
	gradeSvc := grade.NewService(grade.ServiceDeps{
		DB:           db,
		Repo:         gradeRepo,
		SettingsRepo: settingsRepo,
		MailSvc:      emailsvc.NewConsoleServiceMock(conf, logger),
		Defaults:     grade.DefaultConfig(),
		Conf:         conf,
		Logger:       logger,
	})

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)

	// set up server
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		GradeSvc:   gradeSvc,
		Validate:   validate,
		Translator: translator,
	})
	return testApp{conf: conf, srv: srv, repo: gradeRepo}
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

func (app testApp) token(t *testing.T, sess core.Session) string {
	token, err := auth.GenerateToken(auth.NewClaims(sess, app.conf), app.conf.SecretKey)
	if err != nil {
		t.Fatalf("token() failed: %v", err)
	}
	return token
}

// do runs tt against the server and checks the status code and, when set, the JSON body.
func (app testApp) do(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	app.srv.ServeHTTP(rec, req)
	checkCode(t, tt, rec)
	if tt.wantData != nil {
		checkData(t, tt, rec)
	}
	return rec
}

func newAuthRequest(method, path, token string, data []byte) (*http.Request, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshalRecord(t *testing.T, rec *httptest.ResponseRecorder) grade.Record {
	var r grade.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &r); err != nil {
		t.Fatalf("unmarshalRecord() failed: %v; body %s", err, rec.Body.String())
	}
	return r
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCode(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	want := tt.wantCode
	if want == 0 {
		want = http.StatusOK
	}
	assert.Equal(t, want, rec.Code, "body: %s", rec.Body.String())
}

func checkData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
