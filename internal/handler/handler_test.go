package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"schoolreport/internal/auth"
	"schoolreport/internal/jobs"
	"schoolreport/internal/report"
	"schoolreport/internal/schoolapi"
)

const signingKey = "k"

type fakeExporter struct {
	art *report.Artifact
	err error
	id  string
	got report.Params
}

func (f *fakeExporter) Generate(_ context.Context, id string, p report.Params) (*report.Artifact, error) {
	f.id, f.got = id, p
	return f.art, f.err
}

type fakeJobs struct {
	jobs      map[string]jobs.Job
	submitErr error
	filter    jobs.ListFilter
}

func (f *fakeJobs) Submit(_ context.Context, id string, p report.Params, by string) (jobs.Job, error) {
	if f.submitErr != nil {
		return jobs.Job{}, f.submitErr
	}
	if _, err := report.Lookup(id); err != nil {
		return jobs.Job{}, err
	}
	job := jobs.Job{ID: "job-1", Report: id, Params: p, Status: jobs.StatusPending, RequestedBy: by}
	f.jobs[job.ID] = job
	return job, nil
}

func (f *fakeJobs) Get(_ context.Context, id string) (jobs.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return jobs.Job{}, jobs.ErrNotFound
	}
	return job, nil
}

func (f *fakeJobs) List(_ context.Context, lf jobs.ListFilter) ([]jobs.Job, error) {
	f.filter = lf
	out := []jobs.Job{}
	for _, j := range f.jobs {
		if lf.RequestedBy == "" || j.RequestedBy == lf.RequestedBy {
			out = append(out, j)
		}
	}
	return out, nil
}

type staticCheck bool

func (s staticCheck) Healthy(context.Context) bool { return bool(s) }

func setup(t *testing.T, exp *fakeExporter, js *fakeJobs, checks map[string]Checker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	New(exp, js, checks, zaptest.NewLogger(t)).Register(r,
		auth.Bearer(signingKey, ""), auth.RequireRole(auth.RoleAdmin, auth.RoleTeacher))
	return r
}

func call(t *testing.T, r http.Handler, method, path, sub, role, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if sub != "" {
		tok, err := auth.Issue(sub, role, "", signingKey, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := setup(t, &fakeExporter{}, &fakeJobs{}, map[string]Checker{"db": staticCheck(true), "redis": staticCheck(false)})
	w := call(t, r, http.MethodGet, "/healthz", "", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","db":true,"redis":false}`, w.Body.String())
}

func TestCatalogueRequiresAuth(t *testing.T) {
	r := setup(t, &fakeExporter{}, &fakeJobs{}, nil)
	assert.Equal(t, http.StatusUnauthorized, call(t, r, http.MethodGet, "/v1/reports", "", "", "").Code)

	w := call(t, r, http.MethodGet, "/v1/reports", "t1", auth.RoleTeacher, "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Reports []report.Summary `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Reports, len(report.All()))
}

func TestExport(t *testing.T) {
	exp := &fakeExporter{art: &report.Artifact{
		Filename: "បញ្ជី_2026-10-16.csv", ContentType: "text/csv; charset=utf-8",
		Data: []byte("\ufeffa,b\n"), Rows: 4, Degraded: 1, Truncated: true,
	}}
	r := setup(t, exp, &fakeJobs{}, nil)

	w := call(t, r, http.MethodPost, "/v1/reports/class-roster/export", "t1", auth.RoleTeacher,
		`{"school_id":"s1","format":"csv"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "class-roster", exp.id)
	assert.Equal(t, report.FormatCSV, exp.got.Format)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename*=utf-8''")
	assert.Equal(t, "4", w.Header().Get("X-Report-Rows"))
	assert.Equal(t, "1", w.Header().Get("X-Report-Degraded"))
	assert.Equal(t, "0", w.Header().Get("X-Report-Skipped"))
	assert.Equal(t, "true", w.Header().Get("X-Report-Truncated"))
	assert.Equal(t, "\ufeffa,b\n", w.Body.String())
}

func TestExportErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
		err  error
		code int
	}{
		{"missing school", `{"format":"csv"}`, nil, http.StatusBadRequest},
		{"bad format", `{"school_id":"s1","format":"pdf"}`, nil, http.StatusBadRequest},
		{"unknown report", `{"school_id":"s1"}`, report.ErrUnknownReport, http.StatusNotFound},
		{"invalid params", `{"school_id":"s1"}`, fmt.Errorf("%w: bad date", report.ErrInvalidParams), http.StatusBadRequest},
		{"upstream", `{"school_id":"s1"}`, fmt.Errorf("/students: %w", errors.New("status 500")), http.StatusBadGateway},
		{"upstream not found", `{"school_id":"s1"}`, fmt.Errorf("fetch: %w", schoolapi.ErrNotFound), http.StatusBadGateway},
		{"timeout", `{"school_id":"s1"}`, context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := setup(t, &fakeExporter{err: tc.err}, &fakeJobs{}, nil)
			w := call(t, r, http.MethodPost, "/v1/reports/x/export", "a", auth.RoleAdmin, tc.body)
			assert.Equal(t, tc.code, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestJobs(t *testing.T) {
	js := &fakeJobs{jobs: map[string]jobs.Job{
		"other": {ID: "other", Report: "class-roster", RequestedBy: "t2", Status: jobs.StatusDone},
	}}
	r := setup(t, &fakeExporter{}, js, nil)

	w := call(t, r, http.MethodPost, "/v1/reports/ethnic-minority/jobs", "t1", auth.RoleTeacher, `{"school_id":"s1"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"job_id":"job-1","status":"pending"}`, w.Body.String())

	w = call(t, r, http.MethodPost, "/v1/reports/nope/jobs", "t1", auth.RoleTeacher, `{"school_id":"s1"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, r, http.MethodGet, "/v1/jobs/job-1", "t1", auth.RoleTeacher, "")
	require.Equal(t, http.StatusOK, w.Code)
	var job jobs.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "ethnic-minority", job.Report)
	assert.Equal(t, "t1", job.RequestedBy)

	assert.Equal(t, http.StatusNotFound, call(t, r, http.MethodGet, "/v1/jobs/other", "t1", auth.RoleTeacher, "").Code)
	assert.Equal(t, http.StatusOK, call(t, r, http.MethodGet, "/v1/jobs/other", "root", auth.RoleAdmin, "").Code)
	assert.Equal(t, http.StatusNotFound, call(t, r, http.MethodGet, "/v1/jobs/missing", "root", auth.RoleAdmin, "").Code)

	w = call(t, r, http.MethodGet, "/v1/jobs?limit=5&offset=2&status=done", "t1", auth.RoleTeacher, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, jobs.ListFilter{Status: jobs.StatusDone, RequestedBy: "t1", Limit: 5, Offset: 2}, js.filter)
	var list struct {
		Jobs []jobs.Job `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Jobs, 1)

	call(t, r, http.MethodGet, "/v1/jobs", "root", auth.RoleAdmin, "")
	assert.Equal(t, jobs.ListFilter{Limit: 50}, js.filter)
}

func TestSubmitJobStoreFailure(t *testing.T) {
	r := setup(t, &fakeExporter{}, &fakeJobs{submitErr: errors.New("db locked")}, nil)
	w := call(t, r, http.MethodPost, "/v1/reports/class-roster/jobs", "t1", auth.RoleTeacher, `{"school_id":"s1"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
