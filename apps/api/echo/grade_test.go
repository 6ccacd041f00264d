package echoapi_test

import (
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/auth"
	"github.com/trezcool/escola/core/grade"
	emailsvc "github.com/trezcool/escola/services/email"
	testutil "github.com/trezcool/escola/tests"
)

func TestServer_home(t *testing.T) {
	app := setup(t)
	req, rec := newAuthRequest(http.MethodGet, "/", "", nil)
	app.srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Escola API!", rec.Body.String())
}

func Test_gradeApi_permissions(t *testing.T) {
	app := setup(t)
	now := time.Now().UTC().Truncate(time.Second)
	own := testutil.CreateRecord(t, app.repo, "s1", "st1", "math", 2024, grade.Quarters{testutil.Mark(8)}, now)
	others := testutil.CreateRecord(t, app.repo, "s1", "st2", "math", 2024, grade.Quarters{}, now)

	adminToken := app.token(t, admin)
	teacherToken := app.token(t, teacher)
	studentToken := app.token(t, student)
	parentToken, err := auth.GenerateToken(
		auth.NewClaims(core.Session{UserID: "p1", Role: "parent:", SchoolID: "s1"}, app.conf),
		app.conf.SecretKey,
	)
	require.NoError(t, err)
	body := []byte(`{"student_id":"st3","subject_id":"math","academic_year":2024}`)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/grades", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Unknown role", path: "/v1/grades", token: parentToken, wantCode: http.StatusUnauthorized},
		{
			name: "Student cannot create", method: http.MethodPost, path: "/v1/grades", body: body,
			token: studentToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "Student reads own record", path: "/v1/grades/" + own.ID, token: studentToken, wantData: marchallObj(t, own)},
		{
			name: "Student cannot read others", path: "/v1/grades/" + others.ID, token: studentToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound),
		},
		{
			name: "Student cannot update own", method: http.MethodPut, path: "/v1/grades/" + own.ID, body: []byte(`{}`),
			token: studentToken, wantCode: http.StatusForbidden,
		},
		{name: "Records are scoped to the school", path: "/v1/grades/" + own.ID, token: app.token(t, otherAdmin), wantCode: http.StatusNotFound},
		{name: "Unknown record", path: "/v1/grades/unknown", token: adminToken, wantCode: http.StatusNotFound},
		{name: "Teacher reads a record", path: "/v1/grades/" + others.ID, token: teacherToken, wantData: marchallObj(t, others)},
		{name: "Teacher reads settings", path: "/v1/grades/settings", token: teacherToken, wantData: marchallObj(t, grade.DefaultConfig())},
		{name: "Student cannot read settings", path: "/v1/grades/settings", token: studentToken, wantCode: http.StatusForbidden},
		{
			name: "Teacher cannot change settings", method: http.MethodPut, path: "/v1/grades/settings",
			body: []byte(`{"min_passing_grade":5,"min_grade":0,"max_grade":10}`), token: teacherToken, wantCode: http.StatusForbidden,
		},
		{name: "Teacher cannot recompute", method: http.MethodPost, path: "/v1/grades/recompute", token: teacherToken, wantCode: http.StatusForbidden},
		{name: "Teacher cannot delete", method: http.MethodDelete, path: "/v1/grades/" + own.ID, token: teacherToken, wantCode: http.StatusForbidden},
		{
			name: "Student reads own report card", path: "/v1/students/st1/report-card?academic_year=2024",
			token: studentToken, wantCode: http.StatusOK,
		},
		{
			name: "Student cannot read another report card", path: "/v1/students/st2/report-card?academic_year=2024",
			token: studentToken, wantCode: http.StatusNotFound,
		},
		{
			name: "Student cannot send report cards", method: http.MethodPost, path: "/v1/students/st1/report-card/send",
			body: []byte(`{"academic_year":2024,"name":"Mom","email":"mom@test.com"}`), token: studentToken, wantCode: http.StatusForbidden,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.do(t, tt)
		})
	}
}

func Test_gradeApi_create(t *testing.T) {
	app := setup(t)
	teacherToken := app.token(t, teacher)

	t.Run("Normalizes and derives", func(t *testing.T) {
		rec := app.do(t, httpTest{
			method: http.MethodPost, path: "/v1/grades", token: teacherToken, wantCode: http.StatusCreated,
			body: []byte(`{"student_id":" st1 ","subject_id":"math","class_id":"3A","academic_year":2024,"quarter1":"8,5","quarter2":6,"quarter4":null}`),
		})
		r := unmarshalRecord(t, rec)
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, "s1", r.SchoolID)
		assert.Equal(t, "st1", r.StudentID)
		assert.Equal(t, "3A", r.ClassID)
		assert.Equal(t, grade.Quarters{testutil.Mark(8.5), testutil.Mark(6), nil, nil}, r.Quarters())
		assert.Equal(t, 7.25, *r.FinalAverage)
		assert.Equal(t, grade.StatusApproved, r.Status)
	})

	tests := []httpTest{
		{
			name: "Duplicate", body: []byte(`{"student_id":"st1","subject_id":"math","academic_year":2024}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"subject_id": grade.ErrRecordExists.Error()}),
		},
		{
			name: "Required fields", body: []byte(`{"student_id":"  "}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"student_id":    "this field is required",
				"subject_id":    "this field is required",
				"academic_year": "this field is required",
			}),
		},
		{
			name: "Invalid academic year", body: []byte(`{"student_id":"st2","subject_id":"math","academic_year":1800}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"academic_year": "enter a valid academic year"}),
		},
		{
			name: "Unusable quarter", body: []byte(`{"student_id":"st2","subject_id":"math","academic_year":2024,"quarter1":"abc","quarter3":11}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"quarter1": "enter a grade between 0 and 10"}),
		},
		{
			name: "Quarter of the wrong type", body: []byte(`{"student_id":"st2","subject_id":"math","academic_year":2024,"quarter1":true}`),
			wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/v1/grades"
			tt.token = teacherToken
			app.do(t, tt)
		})
	}
}

func Test_gradeApi_query(t *testing.T) {
	app := setup(t)
	now := time.Now().UTC().Truncate(time.Second)
	r1 := testutil.CreateRecord(t, app.repo, "s1", "st1", "math", 2024, grade.Quarters{testutil.Mark(8)}, now.Add(-3*time.Hour))
	r2 := testutil.CreateRecord(t, app.repo, "s1", "st1", "history", 2024, grade.Quarters{testutil.Mark(4)}, now.Add(-2*time.Hour))
	r3 := testutil.CreateRecord(t, app.repo, "s1", "st2", "math", 2024, grade.Quarters{}, now.Add(-time.Hour))
	_ = testutil.CreateRecord(t, app.repo, "s2", "st1", "math", 2024, grade.Quarters{}, now)

	path := func(params ...string) string {
		v := make(url.Values)
		for i := 0; i+1 < len(params); i += 2 {
			v.Add(params[i], params[i+1])
		}
		return "/v1/grades?" + v.Encode()
	}
	list := func(recs ...grade.Record) []byte {
		if recs == nil {
			recs = []grade.Record{}
		}
		return marchallObj(t, recs)
	}
	adminToken := app.token(t, admin)
	studentToken := app.token(t, student)

	tests := []httpTest{
		{name: "All, newest first", path: path(), token: adminToken, wantData: list(r3, r2, r1)},
		{name: "student_id", path: path("student_id", "st1", "ordering", "subject_id"), token: adminToken, wantData: list(r2, r1)},
		{name: "status", path: path("status", "reprovado"), token: adminToken, wantData: list(r2)},
		{name: "ids", path: path("id", r1.ID, "id", r3.ID), token: adminToken, wantData: list(r3, r1)},
		{name: "ordering desc, nulls last", path: path("ordering", "-final_average"), token: adminToken, wantData: list(r1, r2, r3)},
		{name: "No match", path: path("subject_id", "art"), token: adminToken, wantData: list()},
		{
			name: "Unknown ordering", path: path("ordering", "quarter1"), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"ordering": `cannot order by "quarter1"`}),
		},
		{
			name: "Invalid academic year", path: path("academic_year", "12"), token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"academic_year": "enter a valid academic year"}),
		},
		{name: "Invalid status", path: path("status", "lol"), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "Malformed academic year", path: path("academic_year", "abc"), token: adminToken, wantCode: http.StatusBadRequest},
		{name: "Malformed academic year, student", path: path("academic_year", "2024x"), token: studentToken, wantCode: http.StatusBadRequest},
		{name: "Students see their own records", path: path(), token: studentToken, wantData: list(r2, r1)},
		{name: "Students cannot widen the filter", path: path("student_id", "st2"), token: studentToken, wantData: list(r2, r1)},
		{name: "Other school", path: path(), token: app.token(t, otherAdmin), wantData: list()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.do(t, tt)
		})
	}
}

func Test_gradeApi_update(t *testing.T) {
	app := setup(t)
	teacherToken := app.token(t, teacher)
	r := testutil.CreateRecord(t, app.repo, "s1", "st1", "math", 2024, grade.Quarters{testutil.Mark(8)})
	path := "/v1/grades/" + r.ID

	rec := app.do(t, httpTest{
		method: http.MethodPut, path: path, token: teacherToken,
		body: []byte(`{"class_id":"3A","quarter1":4,"quarter2":"5","quarter3":6,"quarter4":"6,5"}`),
	})
	got := unmarshalRecord(t, rec)
	assert.Equal(t, "3A", got.ClassID)
	assert.Equal(t, 5.38, *got.FinalAverage)
	assert.Equal(t, grade.StatusFailed, got.Status)
	assert.True(t, got.UpdatedAt.After(r.UpdatedAt) || got.UpdatedAt.Equal(r.UpdatedAt))

	rec = app.do(t, httpTest{method: http.MethodPatch, path: path + "/quarters", token: teacherToken, body: []byte(`{"quarter":4,"value":null}`)})
	got = unmarshalRecord(t, rec)
	assert.Nil(t, got.Quarter4)
	assert.Equal(t, 5.0, *got.FinalAverage)

	rec = app.do(t, httpTest{method: http.MethodPatch, path: path + "/quarters", token: teacherToken, body: []byte(`{"quarter":1,"value":"9,5"}`)})
	got = unmarshalRecord(t, rec)
	assert.Equal(t, 9.5, *got.Quarter1)
	assert.Equal(t, 6.83, *got.FinalAverage)

	tests := []httpTest{
		{name: "Quarter out of range", body: []byte(`{"quarter":5,"value":7}`), wantCode: http.StatusBadRequest},
		{
			name: "Quarter required", body: []byte(`{"value":7}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"quarter": "this field is required"}),
		},
		{
			name: "Unusable value", body: []byte(`{"quarter":1,"value":"nove"}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"value": "enter a grade between 0 and 10"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPatch
			tt.path = path + "/quarters"
			tt.token = teacherToken
			app.do(t, tt)
		})
	}

	// failed updates leave the record untouched
	rec = app.do(t, httpTest{path: path, token: teacherToken})
	assert.Equal(t, 6.83, *unmarshalRecord(t, rec).FinalAverage)
}

func Test_gradeApi_delete(t *testing.T) {
	app := setup(t)
	adminToken := app.token(t, admin)
	r1 := testutil.CreateRecord(t, app.repo, "s1", "st1", "math", 2024, grade.Quarters{})
	r2 := testutil.CreateRecord(t, app.repo, "s1", "st2", "math", 2024, grade.Quarters{})
	r3 := testutil.CreateRecord(t, app.repo, "s1", "st3", "math", 2024, grade.Quarters{})

	app.do(t, httpTest{method: http.MethodDelete, path: "/v1/grades/" + r1.ID, token: adminToken, wantCode: http.StatusNoContent})
	app.do(t, httpTest{path: "/v1/grades/" + r1.ID, token: adminToken, wantCode: http.StatusNotFound})

	app.do(t, httpTest{
		method: http.MethodDelete, path: "/v1/grades?id=" + r2.ID + "&id=" + r3.ID, token: app.token(t, otherAdmin),
		wantCode: http.StatusNoContent,
	})
	app.do(t, httpTest{path: "/v1/grades/" + r2.ID, token: adminToken}) // other schools cannot delete

	app.do(t, httpTest{method: http.MethodDelete, path: "/v1/grades?id=" + r2.ID + "&id=" + r3.ID, token: adminToken, wantCode: http.StatusNoContent})
	app.do(t, httpTest{path: "/v1/grades", token: adminToken, wantData: []byte(`[]`)})
}

func Test_gradeApi_settings(t *testing.T) {
	app := setup(t)
	adminToken := app.token(t, admin)
	r := testutil.CreateRecord(t, app.repo, "s1", "st1", "math", 2024, grade.Quarters{testutil.Mark(6)})
	require.Equal(t, grade.StatusFailed, r.Status)

	tests := []httpTest{
		{
			name: "Required", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"min_passing_grade": "this field is required",
				"min_grade":         "this field is required",
				"max_grade":         "this field is required",
			}),
		},
		{
			name: "Bounds", body: []byte(`{"min_passing_grade":5,"min_grade":10,"max_grade":0}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"max_grade": "min grade must be lower than max grade"}),
		},
		{
			name: "Passing grade", body: []byte(`{"min_passing_grade":11,"min_grade":0,"max_grade":10}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"min_passing_grade": "passing grade must be between min and max grade"}),
		},
		{name: "Policy", body: []byte(`{"min_passing_grade":5,"min_grade":0,"max_grade":10,"out_of_range":"wrap"}`), wantCode: http.StatusBadRequest},
		{
			name: "Bounds exclude a stored grade", body: []byte(`{"min_passing_grade":3,"min_grade":0,"max_grade":5}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"max_grade": "stored grades go up to 6.00"}),
		},
		{
			name: "Saved", body: []byte(`{"min_passing_grade":5,"min_grade":0,"max_grade":10}`),
			wantData: marchallObj(t, grade.Config{MinPassingGrade: 5, MinGrade: 0, MaxGrade: 10, OutOfRange: grade.PolicyClamp}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPut
			tt.path = "/v1/grades/settings"
			tt.token = adminToken
			app.do(t, tt)
		})
	}

	// the school's records follow the new passing grade
	rec := app.do(t, httpTest{path: "/v1/grades/" + r.ID, token: adminToken})
	assert.Equal(t, grade.StatusApproved, unmarshalRecord(t, rec).Status)

	normalize := func(body string, want string) {
		t.Helper()
		app.do(t, httpTest{
			method: http.MethodPost, path: "/v1/grades/normalize", token: app.token(t, student),
			body: []byte(body), wantData: []byte(want),
		})
	}
	normalize(`{"value":"12,5"}`, `{"value":10}`)
	normalize(`{"value":" 7,456 "}`, `{"value":7.46}`)
	normalize(`{"value":"abc"}`, `{"value":null}`)
	normalize(`{"value":null}`, `{"value":null}`)

	app.do(t, httpTest{
		method: http.MethodPut, path: "/v1/grades/settings", token: adminToken,
		body: []byte(`{"min_passing_grade":5,"min_grade":0,"max_grade":10,"out_of_range":"reject"}`),
	})
	normalize(`{"value":"12,5"}`, `{"value":null}`)
	normalize(`{"value":10}`, `{"value":10}`)
}

func Test_gradeApi_recompute(t *testing.T) {
	app := setup(t)
	r := testutil.CreateRecord(t, app.repo, "s1", "st1", "math", 2024, grade.Quarters{testutil.Mark(9), testutil.Mark(8)})
	_ = testutil.CreateRecord(t, app.repo, "s1", "st2", "math", 2024, grade.Quarters{testutil.Mark(9)})

	// a record derived under an older rule
	r.FinalAverage = testutil.Mark(2)
	r.Status = grade.StatusFailed
	_, err := app.repo.UpdateRecord(testContext(t), r)
	require.NoError(t, err)

	adminToken := app.token(t, admin)
	app.do(t, httpTest{method: http.MethodPost, path: "/v1/grades/recompute", token: adminToken, wantData: []byte(`{"updated":1}`)})
	app.do(t, httpTest{method: http.MethodPost, path: "/v1/grades/recompute", token: adminToken, wantData: []byte(`{"updated":0}`)})

	rec := app.do(t, httpTest{path: "/v1/grades/" + r.ID, token: adminToken})
	got := unmarshalRecord(t, rec)
	assert.Equal(t, 8.5, *got.FinalAverage)
	assert.Equal(t, grade.StatusApproved, got.Status)
}

func Test_gradeApi_concepts(t *testing.T) {
	app := setup(t)
	token := app.token(t, student)

	tests := []httpTest{
		{name: "Scale", path: "/v1/grades/concepts", token: token, wantData: marchallObj(t, grade.Concepts())},
		{
			name: "By label", path: "/v1/grades/concepts/" + url.PathEscape("muito bom"), token: token,
			wantData: []byte(`{"key":"MUITO_BOM","label":"Muito Bom","grade":8}`),
		},
		{
			name: "By key", path: "/v1/grades/concepts/INSUFICIENTE", token: token,
			wantData: []byte(`{"key":"INSUFICIENTE","label":"Insuficiente","grade":3}`),
		},
		{
			name: "Suggestions", path: "/v1/grades/concepts/Excelnte", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"concept": `unknown concept "Excelnte"; did you mean EXCELENTE?`}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app.do(t, tt)
		})
	}
}

func Test_gradeApi_reportCard(t *testing.T) {
	app := setup(t)
	teacherToken := app.token(t, teacher)
	testutil.CreateRecord(t, app.repo, "s1", "st1", "math", 2024, grade.Quarters{testutil.Mark(8), testutil.Mark(7)})
	testutil.CreateRecord(t, app.repo, "s1", "st1", "history", 2024, grade.Quarters{testutil.Mark(5)})

	rec := app.do(t, httpTest{path: "/v1/students/st1/report-card?academic_year=2024", token: teacherToken})
	for _, want := range []string{`"approved":1`, `"failed":1`, `"in_progress":0`, `"overall_average":6.25`} {
		assert.Contains(t, rec.Body.String(), want)
	}

	assert.NotContains(t, rec.Body.String(), `"attendance"`)

	app.do(t, httpTest{
		path: "/v1/students/st1/report-card", token: teacherToken, wantCode: http.StatusBadRequest,
		wantData: marchallObj(t, map[string]string{"academic_year": "this field is required"}),
	})

	rec = app.do(t, httpTest{path: "/v1/students/st1/report-card?academic_year=2024&classes_attended=18&classes_total=20", token: teacherToken})
	assert.Contains(t, rec.Body.String(), `"attendance":90`)
	rec = app.do(t, httpTest{
		path: "/v1/students/st1/report-card?academic_year=2024&classes_attended=21&classes_total=20", token: teacherToken,
		wantCode: http.StatusBadRequest,
	})
	assert.Contains(t, rec.Body.String(), `"classes_attended"`)

	t.Run("Send", func(t *testing.T) {
		app.do(t, httpTest{
			method: http.MethodPost, path: "/v1/students/st1/report-card/send", token: teacherToken, wantCode: http.StatusAccepted,
			body: []byte(`{"student_name":"Joana","academic_year":2024,"name":"Maria","email":" Maria@Test.com ","classes_attended":18,"classes_total":20}`),
		})
		require.Len(t, emailsvc.SentMessages, 1)
		msg := emailsvc.SentMessages[0]
		assert.Equal(t, "maria@test.com", msg.To[0].Address)
		assert.True(t, strings.Contains(msg.TextContent, "Report card for Joana - 2024"), msg.TextContent)
		assert.Contains(t, msg.TextContent, "Attendance: 90,00%")
		require.Len(t, msg.Attachments, 1)
		assert.Equal(t, "report-card-st1-2024.csv", msg.Attachments[0].Filename)

		app.do(t, httpTest{
			method: http.MethodPost, path: "/v1/students/st1/report-card/send", token: teacherToken, wantCode: http.StatusNotFound,
			body: []byte(`{"academic_year":2030,"name":"Maria","email":"maria@test.com"}`),
		})
		app.do(t, httpTest{
			method: http.MethodPost, path: "/v1/students/st1/report-card/send", token: teacherToken, wantCode: http.StatusBadRequest,
			body: []byte(`{"academic_year":2024,"name":"Maria","email":"maria"}`),
		})
		assert.Len(t, emailsvc.SentMessages, 1)
	})
}
