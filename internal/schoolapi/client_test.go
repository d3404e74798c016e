package schoolapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, "secret", 5*time.Second, nil)
}

func TestListStudents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/students", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		q := r.URL.Query()
		assert.Equal(t, "s1", q.Get("schoolId"))
		assert.Equal(t, "c1", q.Get("classId"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "100", q.Get("limit"))
		assert.Equal(t, "true", q.Get("isEtnicgroup"))
		assert.Empty(t, q.Get("hasAccessibility"))
		_, _ = w.Write([]byte(`{"success":true,"data":[{"userId":42,"studentId":"S-1","firstName":"Dara","gender":"M"}],"total":101,"totalPages":2}`))
	})

	page, err := c.ListStudents(context.Background(), StudentQuery{
		SchoolID: "s1", ClassID: "c1", Page: 2, Limit: 100, IsEthnicGroup: true,
	})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, ID("42"), page.Data[0].UserID)
	assert.Equal(t, ID("S-1"), page.Data[0].StudentID)
	assert.Equal(t, 101, page.Total)
	assert.Equal(t, 2, page.TotalPages)
}

func TestGetUserNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/users/empty":
			_, _ = w.Write([]byte(`{"success":false,"data":null,"message":"no such user"}`))
		default:
			_, _ = w.Write([]byte(`{"success":true,"data":{"userId":"u1","ethnicGroup":"Cham"}}`))
		}
	})

	_, err := c.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = c.GetUser(context.Background(), "empty")
	assert.ErrorIs(t, err, ErrNotFound)

	s, err := c.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Cham", s.EthnicGroup)
}

func TestServerErrorIsNotNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.ParentsByStudent(context.Background(), "s1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "500")
}

func TestListAttendanceQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "c9", q.Get("classId"))
		assert.Equal(t, "2026-01-01", q.Get("startDate"))
		assert.Equal(t, "2026-01-31", q.Get("endDate"))
		assert.Empty(t, q.Get("date"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": []map[string]any{
				{"userId": "u1", "classId": "c9", "date": "2026-01-02", "status": "ABSENT"},
			},
		})
	})
	recs, err := c.ListAttendance(context.Background(), AttendanceQuery{
		ClassID: "c9", StartDate: "2026-01-01", EndDate: "2026-01-31", Limit: 1000,
	})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, StatusAbsent, recs[0].Status)
}

func TestStudentMerge(t *testing.T) {
	base := Student{UserID: "u1", FirstName: "Dara", EthnicGroup: ""}
	detail := Student{FirstName: "  ", LastName: "Sok", EthnicGroup: "Cham"}
	got := base.Merge(detail)
	assert.Equal(t, "Dara", got.FirstName)
	assert.Equal(t, "Sok Dara", got.FullName())
	assert.Equal(t, "Cham", got.EthnicGroup)
	assert.Equal(t, ID("u1"), got.UserID)
}

func TestParentMergeKeepsLinkRelationship(t *testing.T) {
	link := Parent{UserID: "p1", Relationship: RelationMother}
	detail := Parent{Relationship: RelationGuardian, FirstName: "Srey", Phone: "012"}
	got := link.Merge(detail)
	assert.Equal(t, RelationMother, got.Relationship)
	assert.Equal(t, "012", got.Phone)
}
