package report

import (
	"math"
	"sort"
	"strings"
	"time"

	"schoolreport/internal/bmi"
	"schoolreport/internal/locale"
	"schoolreport/internal/pipeline"
	"schoolreport/internal/schoolapi"
)

type marks struct {
	present, absent, late, excused int
	approved, pending, rejected    int
	reasons                        []string
}

func (m marks) total() int { return m.present + m.absent + m.late + m.excused }

func countMarks(recs []schoolapi.AttendanceRecord) marks {
	var m marks
	seen := map[string]bool{}
	for _, r := range recs {
		switch strings.ToUpper(strings.TrimSpace(r.Status)) {
		case schoolapi.StatusPresent:
			m.present++
		case schoolapi.StatusAbsent:
			m.absent++
		case schoolapi.StatusLate:
			m.late++
		case schoolapi.StatusExcused:
			m.excused++
			switch strings.ToUpper(strings.TrimSpace(r.ApprovalStatus)) {
			case schoolapi.ApprovalApproved:
				m.approved++
			case schoolapi.ApprovalRejected:
				m.rejected++
			default:
				m.pending++
			}
			if reason := strings.TrimSpace(r.Reason); reason != "" && !seen[reason] {
				seen[reason] = true
				m.reasons = append(m.reasons, reason)
			}
		}
	}
	return m
}

// studentRow holds the identity cells shared by every report.
func studentRow(n int, s schoolapi.Student) Row {
	return Row{
		"no":             n,
		"student_number": s.StudentNumber,
		"name":           s.FullName(),
		"latin_name":     s.LatinName(),
		"gender":         locale.GenderGlyph(s.Gender),
		"dob":            locale.FormatDate(s.DateOfBirth),
		"class":          s.ClassName,
	}
}

func parentOf(parents []schoolapi.Parent, relation string) (schoolapi.Parent, bool) {
	for _, p := range parents {
		if strings.EqualFold(p.Relationship, relation) {
			return p, true
		}
	}
	return schoolapi.Parent{}, false
}

// ageAt returns completed years between dob and asOf.
func ageAt(dob string, asOf time.Time) (int, bool) {
	born, ok := locale.ParseDate(dob)
	if !ok || born.After(asOf) {
		return 0, false
	}
	age := asOf.Year() - born.Year()
	if asOf.Month() < born.Month() || (asOf.Month() == born.Month() && asOf.Day() < born.Day()) {
		age--
	}
	return age, true
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// each builds one row per record with a 1-based row number.
func each(fn func(n int, rec pipeline.Record) Row) Transformer {
	return func(recs []pipeline.Record, _ Params) []Row {
		out := make([]Row, len(recs))
		for i, rec := range recs {
			out[i] = fn(i+1, rec)
		}
		return out
	}
}

// sortedDesc builds rows, orders them by key descending keeping input order
// on ties, then numbers them.
func sortedDesc(key string, fn func(rec pipeline.Record) Row) Transformer {
	return func(recs []pipeline.Record, _ Params) []Row {
		out := make([]Row, len(recs))
		for i, rec := range recs {
			out[i] = fn(rec)
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i][key].(int) > out[j][key].(int)
		})
		for i := range out {
			out[i]["no"] = i + 1
		}
		return out
	}
}

func studentParents(n int, rec pipeline.Record) Row {
	row := studentRow(n, rec.Student)
	for prefix, rel := range map[string]string{"father": schoolapi.RelationFather, "mother": schoolapi.RelationMother} {
		p, _ := parentOf(rec.Parents, rel)
		row[prefix+"_name"] = p.FullName()
		row[prefix+"_occupation"] = p.Occupation
		row[prefix+"_phone"] = p.Phone
	}
	return row
}

func classRoster(n int, rec pipeline.Record) Row {
	row := studentRow(n, rec.Student)
	row["place_of_birth"] = rec.Student.PlaceOfBirth
	return row
}

func attendanceDetail(n int, rec pipeline.Record) Row {
	m := countMarks(rec.Attendance)
	row := studentRow(n, rec.Student)
	row["present"] = m.present
	row["absent"] = m.absent
	row["late"] = m.late
	row["excused"] = m.excused
	row["total"] = m.total()
	return row
}

func absenceSummary(rec pipeline.Record) Row {
	m := countMarks(rec.Attendance)
	row := studentRow(0, rec.Student)
	row["absences"] = m.absent
	row["leaves"] = m.excused
	row["totalAbsenceAndLeave"] = m.absent + m.excused
	return row
}

func bmiRow(n int, rec pipeline.Record) Row {
	row := studentRow(n, rec.Student)
	b, ok := latestBMI(rec)
	if !ok {
		return row
	}
	row["height"] = b.Height
	row["weight"] = b.Weight
	row["bmi"] = bmi.Round(b.BMI)
	row["category"] = bmi.Category(b.Category).Label()
	row["recorded_at"] = locale.FormatDate(b.RecordedAt)
	return row
}

func disabilityRow(n int, rec pipeline.Record) Row {
	row := studentRow(n, rec.Student)
	row["accessibility"] = locale.Normalize(rec.Student.Accessibility)
	return row
}

func ageRoster(recs []pipeline.Record, p Params) []Row {
	asOf, ok := p.asOf()
	out := make([]Row, len(recs))
	for i, rec := range recs {
		row := studentRow(i+1, rec.Student)
		if ok {
			if age, known := ageAt(rec.Student.DateOfBirth, asOf); known {
				row["age"] = age
			}
		}
		out[i] = row
	}
	return out
}

func contactRow(n int, rec pipeline.Record) Row {
	row := studentRow(n, rec.Student)
	row["phone"] = rec.Student.Phone
	row["address"] = rec.Student.Address
	father, _ := parentOf(rec.Parents, schoolapi.RelationFather)
	mother, _ := parentOf(rec.Parents, schoolapi.RelationMother)
	guardian, _ := parentOf(rec.Parents, schoolapi.RelationGuardian)
	row["father_phone"] = father.Phone
	row["mother_phone"] = mother.Phone
	row["guardian_name"] = guardian.FullName()
	row["guardian_phone"] = guardian.Phone
	return row
}

func ethnicRow(n int, rec pipeline.Record) Row {
	row := studentRow(n, rec.Student)
	row["ethnic_group"] = locale.Normalize(rec.Student.EthnicGroup)
	return row
}

func leaveRow(n int, rec pipeline.Record) Row {
	m := countMarks(rec.Attendance)
	row := studentRow(n, rec.Student)
	row["excused"] = m.excused
	row["approved"] = m.approved
	row["pending"] = m.pending
	row["rejected"] = m.rejected
	row["reason"] = strings.Join(m.reasons, "; ")
	return row
}

// attendanceRate counts late arrivals as attended.
func attendanceRate(m marks) float64 {
	if m.total() == 0 {
		return 0
	}
	return round2(float64(m.present+m.late) / float64(m.total()) * 100)
}

func rateRow(n int, rec pipeline.Record) Row {
	m := countMarks(rec.Attendance)
	row := studentRow(n, rec.Student)
	row["present"] = m.present + m.late
	row["total"] = m.total()
	row["rate"] = attendanceRate(m)
	return row
}

func lateRow(rec pipeline.Record) Row {
	row := studentRow(0, rec.Student)
	row["late"] = countMarks(rec.Attendance).late
	return row
}
