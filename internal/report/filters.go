package report

import (
	"schoolreport/internal/bmi"
	"schoolreport/internal/locale"
	"schoolreport/internal/pipeline"
	"schoolreport/internal/schoolapi"
)

func isSentinel(v string, sentinels ...string) bool {
	for _, s := range sentinels {
		if locale.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// HasEthnicMinority keeps students whose ethnic group is set and is not the
// majority group. The Khmer literal is compared exactly; the romanized name
// and the unknown/null sentinels are compared case-insensitively.
func HasEthnicMinority(rec pipeline.Record) bool {
	g := locale.Normalize(rec.Student.EthnicGroup)
	if g == "" || g == locale.T(locale.MajorityEthnicity) {
		return false
	}
	return !isSentinel(g, "khmer", "unknown", "null")
}

// HasDisability keeps students with a recorded accessibility need.
func HasDisability(rec pipeline.Record) bool {
	a := locale.Normalize(rec.Student.Accessibility)
	return a != "" && !isSentinel(a, "none", "null")
}

func latestBMI(rec pipeline.Record) (schoolapi.BMIRecord, bool) {
	if len(rec.BMI) == 0 {
		return schoolapi.BMIRecord{}, false
	}
	return rec.BMI[0], true
}

// HasAbnormalBMI keeps students whose latest measurement is outside the
// normal range.
func HasAbnormalBMI(rec pipeline.Record) bool {
	b, ok := latestBMI(rec)
	return ok && b.Category != "" && b.Category != string(bmi.Normal)
}

// HasLateArrival keeps students with at least one late mark.
func HasLateArrival(rec pipeline.Record) bool {
	return countMarks(rec.Attendance).late > 0
}

// HasExcusedAbsence keeps students with at least one excused absence.
func HasExcusedAbsence(rec pipeline.Record) bool {
	return countMarks(rec.Attendance).excused > 0
}
