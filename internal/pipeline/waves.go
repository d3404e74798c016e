package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"schoolreport/internal/bmi"
	"schoolreport/internal/locale"
	"schoolreport/internal/schoolapi"
)

// WaveKind names a built-in enrichment wave.
type WaveKind string

const (
	WaveDetail        WaveKind = "detail"
	WaveParents       WaveKind = "parents"
	WaveParentDetails WaveKind = "parent-details"
	WaveAttendance    WaveKind = "attendance"
	WaveBMI           WaveKind = "bmi"
)

// WaveSpec configures one built-in wave of a report.
type WaveSpec struct {
	Kind   WaveKind
	Policy Policy
}

// Scope carries the run parameters the attendance and BMI waves need.
type Scope struct {
	Date            string // single day, wins over the range
	StartDate       string
	EndDate         string
	AttendanceLimit int
	BMIYear         string
	BMILimit        int
}

// Wave builds the built-in wave described by spec.
func (p *Pipeline) Wave(spec WaveSpec, scope Scope) (Wave, error) {
	var (
		apply     func(context.Context, Record) (Record, error)
		truncated func() bool
	)
	switch spec.Kind {
	case WaveDetail:
		apply = p.applyDetail
	case WaveParents:
		apply = p.applyParents
	case WaveParentDetails:
		apply = p.applyParentDetails
	case WaveAttendance:
		apply, truncated = p.attendanceApplier(scope)
	case WaveBMI:
		apply = p.bmiApplier(scope)
	default:
		return Wave{}, fmt.Errorf("unknown wave %q", spec.Kind)
	}
	return Wave{Name: string(spec.Kind), Policy: spec.Policy, Apply: apply, Truncated: truncated}, nil
}

func (p *Pipeline) notFound(wave string, rec Record, err error) bool {
	if !errors.Is(err, schoolapi.ErrNotFound) {
		return false
	}
	p.log.Debug("enrichment target not found, keeping base record",
		zap.String("wave", wave), zap.String("user_id", rec.Student.UserID.String()))
	return true
}

func (p *Pipeline) applyDetail(ctx context.Context, rec Record) (Record, error) {
	if rec.Student.UserID == "" {
		return rec, nil
	}
	detail, err := p.src.GetUser(ctx, rec.Student.UserID.String())
	if err != nil {
		if p.notFound(string(WaveDetail), rec, err) {
			return rec, nil
		}
		return rec, err
	}
	rec.Student = rec.Student.Merge(detail)
	return rec, nil
}

func studentKey(s schoolapi.Student) string {
	if s.StudentID != "" {
		return s.StudentID.String()
	}
	return s.UserID.String()
}

func (p *Pipeline) applyParents(ctx context.Context, rec Record) (Record, error) {
	key := studentKey(rec.Student)
	if key == "" {
		return rec, nil
	}
	links, err := p.src.ParentsByStudent(ctx, key)
	if err != nil {
		if p.notFound(string(WaveParents), rec, err) {
			return rec, nil
		}
		return rec, err
	}
	parents := make([]schoolapi.Parent, 0, len(links))
	for _, l := range links {
		if l.UserID == "" {
			continue
		}
		parents = append(parents, l)
	}
	rec.Parents = parents
	return rec, nil
}

func (p *Pipeline) applyParentDetails(ctx context.Context, rec Record) (Record, error) {
	parents := make([]schoolapi.Parent, 0, len(rec.Parents))
	for _, link := range rec.Parents {
		detail, err := p.src.GetParent(ctx, link.UserID.String())
		if err != nil {
			if p.notFound(string(WaveParentDetails), rec, err) {
				parents = append(parents, link)
				continue
			}
			return rec, err
		}
		parents = append(parents, link.Merge(detail))
	}
	rec.Parents = parents
	return rec, nil
}

// attendanceApplier fetches each class once per run and hands every record
// the marks that belong to its user. The endpoint has no paging, so a class
// that returns exactly the limit is reported as truncated.
func (p *Pipeline) attendanceApplier(scope Scope) (func(context.Context, Record) (Record, error), func() bool) {
	var (
		group     singleflight.Group
		mu        sync.Mutex
		memo      = map[schoolapi.ID]map[schoolapi.ID][]schoolapi.AttendanceRecord{}
		truncated atomic.Bool
	)
	limit := scope.AttendanceLimit
	if limit <= 0 {
		limit = 5000
	}
	byClass := func(ctx context.Context, classID schoolapi.ID) (map[schoolapi.ID][]schoolapi.AttendanceRecord, error) {
		mu.Lock()
		cached, ok := memo[classID]
		mu.Unlock()
		if ok {
			return cached, nil
		}
		v, err, _ := group.Do(classID.String(), func() (any, error) {
			recs, err := p.src.ListAttendance(ctx, schoolapi.AttendanceQuery{
				ClassID:   classID.String(),
				Date:      scope.Date,
				StartDate: scope.StartDate,
				EndDate:   scope.EndDate,
				Limit:     limit,
			})
			if err != nil {
				return nil, err
			}
			if len(recs) >= limit {
				truncated.Store(true)
				p.metrics.Truncated()
				p.log.Warn("attendance fetch truncated at limit",
					zap.String("class_id", classID.String()), zap.Int("limit", limit))
			}
			byUser := make(map[schoolapi.ID][]schoolapi.AttendanceRecord)
			for _, r := range recs {
				byUser[r.UserID] = append(byUser[r.UserID], r)
			}
			mu.Lock()
			memo[classID] = byUser
			mu.Unlock()
			return byUser, nil
		})
		if err != nil {
			return nil, err
		}
		return v.(map[schoolapi.ID][]schoolapi.AttendanceRecord), nil
	}

	apply := func(ctx context.Context, rec Record) (Record, error) {
		if rec.Student.ClassID == "" {
			return rec, nil
		}
		byUser, err := byClass(ctx, rec.Student.ClassID)
		if err != nil {
			if p.notFound(string(WaveAttendance), rec, err) {
				return rec, nil
			}
			return rec, err
		}
		marks := byUser[rec.Student.UserID]
		rec.Attendance = append([]schoolapi.AttendanceRecord(nil), marks...)
		sort.SliceStable(rec.Attendance, func(i, j int) bool {
			return rec.Attendance[i].Date < rec.Attendance[j].Date
		})
		return rec, nil
	}
	return apply, truncated.Load
}

// bmiApplier fetches the BMI history of each record, newest first, with
// missing values and categories derived from height and weight.
func (p *Pipeline) bmiApplier(scope Scope) func(context.Context, Record) (Record, error) {
	return func(ctx context.Context, rec Record) (Record, error) {
		if rec.Student.UserID == "" {
			return rec, nil
		}
		history, err := p.src.ListBMI(ctx, rec.Student.UserID.String(), scope.BMIYear, scope.BMILimit)
		if err != nil {
			if p.notFound(string(WaveBMI), rec, err) {
				return rec, nil
			}
			return rec, err
		}
		out := make([]schoolapi.BMIRecord, 0, len(history))
		for _, b := range history {
			if b.BMI <= 0 {
				b.BMI = bmi.Compute(b.Height, b.Weight)
			}
			if b.BMI > 0 {
				b.Category = string(bmi.Classify(b.BMI))
			}
			out = append(out, b)
		}
		sort.SliceStable(out, func(i, j int) bool {
			ti, _ := locale.ParseDate(out[i].RecordedAt)
			tj, _ := locale.ParseDate(out[j].RecordedAt)
			return ti.After(tj)
		})
		rec.BMI = out
		return rec, nil
	}
}
