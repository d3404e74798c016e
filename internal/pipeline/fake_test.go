package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"schoolreport/internal/schoolapi"
)

// fakeSource is an in-memory school backend.
type fakeSource struct {
	mu sync.Mutex

	students    []schoolapi.Student
	alwaysFull  bool // every page is full, total unknown
	reportTotal bool
	pageErrAt   int

	details    map[schoolapi.ID]schoolapi.Student
	detailErr  map[schoolapi.ID]error
	links      map[schoolapi.ID][]schoolapi.Parent
	parents    map[schoolapi.ID]schoolapi.Parent
	attendance map[string][]schoolapi.AttendanceRecord
	// attendanceFull returns exactly q.Limit marks for every class.
	attendanceFull bool
	bmi        map[schoolapi.ID][]schoolapi.BMIRecord

	pageCalls       int
	attendanceCalls map[string]int
}

func newFakeSource(n int) *fakeSource {
	src := &fakeSource{
		details:         map[schoolapi.ID]schoolapi.Student{},
		detailErr:       map[schoolapi.ID]error{},
		links:           map[schoolapi.ID][]schoolapi.Parent{},
		parents:         map[schoolapi.ID]schoolapi.Parent{},
		attendance:      map[string][]schoolapi.AttendanceRecord{},
		bmi:             map[schoolapi.ID][]schoolapi.BMIRecord{},
		attendanceCalls: map[string]int{},
	}
	for i := 1; i <= n; i++ {
		id := schoolapi.ID("u" + strconv.Itoa(i))
		src.students = append(src.students, schoolapi.Student{
			UserID:    id,
			StudentID: schoolapi.ID("s" + strconv.Itoa(i)),
			FirstName: "Student " + strconv.Itoa(i),
			ClassID:   schoolapi.ID("c" + strconv.Itoa(i%2)),
		})
	}
	return src
}

func (f *fakeSource) ListStudents(_ context.Context, q schoolapi.StudentQuery) (schoolapi.StudentPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls++
	if f.pageErrAt > 0 && q.Page == f.pageErrAt {
		return schoolapi.StudentPage{}, fmt.Errorf("page %d exploded", q.Page)
	}
	if f.alwaysFull {
		data := make([]schoolapi.Student, q.Limit)
		for i := range data {
			data[i] = schoolapi.Student{UserID: schoolapi.ID(fmt.Sprintf("p%d-%d", q.Page, i))}
		}
		return schoolapi.StudentPage{Success: true, Data: data}, nil
	}
	start := (q.Page - 1) * q.Limit
	if start > len(f.students) {
		start = len(f.students)
	}
	end := start + q.Limit
	if end > len(f.students) {
		end = len(f.students)
	}
	page := schoolapi.StudentPage{Success: true, Data: append([]schoolapi.Student(nil), f.students[start:end]...)}
	if f.reportTotal {
		page.Total = len(f.students)
	}
	return page, nil
}

func (f *fakeSource) GetUser(_ context.Context, userID string) (schoolapi.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.detailErr[schoolapi.ID(userID)]; err != nil {
		return schoolapi.Student{}, err
	}
	d, ok := f.details[schoolapi.ID(userID)]
	if !ok {
		return schoolapi.Student{}, schoolapi.ErrNotFound
	}
	return d, nil
}

func (f *fakeSource) ParentsByStudent(_ context.Context, studentID string) ([]schoolapi.Parent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.links[schoolapi.ID(studentID)], nil
}

func (f *fakeSource) GetParent(_ context.Context, userID string) (schoolapi.Parent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.parents[schoolapi.ID(userID)]
	if !ok {
		return schoolapi.Parent{}, schoolapi.ErrNotFound
	}
	return p, nil
}

func (f *fakeSource) ListAttendance(_ context.Context, q schoolapi.AttendanceQuery) ([]schoolapi.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attendanceCalls[q.ClassID]++
	if f.attendanceFull {
		data := make([]schoolapi.AttendanceRecord, q.Limit)
		for i := range data {
			data[i] = schoolapi.AttendanceRecord{UserID: "u1", ClassID: schoolapi.ID(q.ClassID), Date: fmt.Sprintf("2026-10-%02d", i%28+1)}
		}
		return data, nil
	}
	return f.attendance[q.ClassID], nil
}

func (f *fakeSource) ListBMI(_ context.Context, userID, _ string, _ int) ([]schoolapi.BMIRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bmi[schoolapi.ID(userID)], nil
}
