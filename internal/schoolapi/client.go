package schoolapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"schoolreport/internal/metrics"
)

// ErrNotFound is returned when the backend answers 404 or reports an
// unsuccessful detail lookup with no data.
var ErrNotFound = errors.New("record not found")

// Client calls the school backend REST API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Metrics *metrics.Metrics
}

// New creates a client with configurable timeout.
func New(baseURL, token string, timeout time.Duration, m *metrics.Metrics) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		Metrics: m,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type envelope struct {
	Success    *bool           `json:"success"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Total      int             `json:"total"`
	TotalPages int             `json:"totalPages"`
}

func (e envelope) failed() bool { return e.Success != nil && !*e.Success }

func (e envelope) empty() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}

// get performs a GET and decodes the response envelope. endpoint is the
// metric label, path is appended to BaseURL.
func (c *Client) get(ctx context.Context, endpoint, path string, q url.Values) (envelope, error) {
	u := c.BaseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return envelope{}, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		c.Metrics.ObserveUpstream(endpoint, 0, time.Since(start))
		return envelope{}, fmt.Errorf("school api request failed: %w", err)
	}
	defer resp.Body.Close()
	c.Metrics.ObserveUpstream(endpoint, resp.StatusCode, time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return envelope{}, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return envelope{}, fmt.Errorf("school api error %s on %s: %s", resp.Status, path, string(bodyBytes))
	}

	var out envelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return envelope{}, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return out, nil
}

// getList decodes a list envelope into dst. An unsuccessful envelope is an error.
func (c *Client) getList(ctx context.Context, endpoint, path string, q url.Values, dst any) (envelope, error) {
	env, err := c.get(ctx, endpoint, path, q)
	if err != nil {
		return env, err
	}
	if env.failed() {
		return env, fmt.Errorf("school api %s: %s", path, env.Message)
	}
	if env.empty() {
		return env, nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return env, fmt.Errorf("failed to decode %s data: %w", path, err)
	}
	return env, nil
}

// getOne decodes a detail envelope into dst. Unsuccessful or empty
// envelopes are reported as ErrNotFound.
func (c *Client) getOne(ctx context.Context, endpoint, path string, dst any) error {
	env, err := c.get(ctx, endpoint, path, nil)
	if err != nil {
		return err
	}
	if env.failed() || env.empty() {
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("failed to decode %s data: %w", path, err)
	}
	return nil
}

// ListStudents fetches one page of students.
func (c *Client) ListStudents(ctx context.Context, q StudentQuery) (StudentPage, error) {
	v := url.Values{}
	if q.SchoolID != "" {
		v.Set("schoolId", q.SchoolID)
	}
	if q.ClassID != "" {
		v.Set("classId", q.ClassID)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.HasAccessibility {
		v.Set("hasAccessibility", "true")
	}
	if q.IsEthnicGroup {
		v.Set("isEtnicgroup", "true")
	}

	var students []Student
	env, err := c.getList(ctx, "students", "/students", v, &students)
	if err != nil {
		return StudentPage{}, err
	}
	return StudentPage{
		Success:    true,
		Data:       students,
		Total:      env.Total,
		TotalPages: env.TotalPages,
	}, nil
}

// GetUser fetches the full student record.
func (c *Client) GetUser(ctx context.Context, userID string) (Student, error) {
	var s Student
	err := c.getOne(ctx, "users", "/users/"+url.PathEscape(userID), &s)
	return s, err
}

// ParentsByStudent fetches the parent links of a student.
func (c *Client) ParentsByStudent(ctx context.Context, studentID string) ([]Parent, error) {
	var parents []Parent
	_, err := c.getList(ctx, "parents_by_student", "/parents/by-student/"+url.PathEscape(studentID), nil, &parents)
	return parents, err
}

// GetParent fetches the full parent record.
func (c *Client) GetParent(ctx context.Context, userID string) (Parent, error) {
	var p Parent
	err := c.getOne(ctx, "parents", "/parents/"+url.PathEscape(userID), &p)
	return p, err
}

// ListAttendance fetches attendance marks for a class on a day or a range.
func (c *Client) ListAttendance(ctx context.Context, q AttendanceQuery) ([]AttendanceRecord, error) {
	v := url.Values{}
	if q.ClassID != "" {
		v.Set("classId", q.ClassID)
	}
	if q.Date != "" {
		v.Set("date", q.Date)
	} else {
		if q.StartDate != "" {
			v.Set("startDate", q.StartDate)
		}
		if q.EndDate != "" {
			v.Set("endDate", q.EndDate)
		}
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	var records []AttendanceRecord
	_, err := c.getList(ctx, "attendance", "/attendance", v, &records)
	return records, err
}

// ListBMI fetches the BMI history of a student.
func (c *Client) ListBMI(ctx context.Context, userID, year string, limit int) ([]BMIRecord, error) {
	v := url.Values{}
	if year != "" {
		v.Set("year", year)
	}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	var records []BMIRecord
	_, err := c.getList(ctx, "bmi", "/bmi/"+url.PathEscape(userID), v, &records)
	return records, err
}

// Health checks if the school backend is reachable.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("school api unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("school api unhealthy: %s", resp.Status)
	}
	return nil
}
