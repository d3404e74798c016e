package report

import (
	"schoolreport/internal/locale"
	"schoolreport/internal/pipeline"
	"schoolreport/internal/sheet"
)

func col(key string, header locale.Key, width float64) Column {
	return Column{Key: key, Header: locale.T(header), Width: width}
}

func grouped(group locale.Key, cols ...Column) []Column {
	for i := range cols {
		cols[i].Group = locale.T(group)
	}
	return cols
}

func columns(parts ...[]Column) []Column {
	var out []Column
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func identity() []Column {
	return []Column{
		col("no", locale.Number, 6),
		col("name", locale.Name, 24),
		col("gender", locale.Gender, 7),
		col("dob", locale.DateOfBirth, 14),
	}
}

var (
	classSignature    = sheet.Signature{Left: locale.T(locale.SeenBy), Right: locale.T(locale.ClassTeacher)}
	directorSignature = sheet.Signature{Left: locale.T(locale.Director), Right: locale.T(locale.Teacher)}

	detailWave        = pipeline.WaveSpec{Kind: pipeline.WaveDetail, Policy: pipeline.Degrade}
	parentsWave       = pipeline.WaveSpec{Kind: pipeline.WaveParents, Policy: pipeline.Degrade}
	parentDetailsWave = pipeline.WaveSpec{Kind: pipeline.WaveParentDetails, Policy: pipeline.Degrade}
	attendanceWave    = pipeline.WaveSpec{Kind: pipeline.WaveAttendance, Policy: pipeline.Abort}
)

func init() {
	register(&Definition{
		ID:     "student-parents",
		Number: 1,
		Title:  "បញ្ជីព័ត៌មានសិស្ស និងមាតាបិតា",
		Columns: columns(identity(),
			[]Column{col("class", locale.Class, 10)},
			grouped(locale.Father,
				col("father_name", locale.Name, 22),
				col("father_occupation", locale.Occupation, 14),
				col("father_phone", locale.Phone, 14)),
			grouped(locale.Mother,
				col("mother_name", locale.Name, 22),
				col("mother_occupation", locale.Occupation, 14),
				col("mother_phone", locale.Phone, 14)),
		),
		Waves:     []pipeline.WaveSpec{detailWave, parentsWave, parentDetailsWave},
		Transform: each(studentParents),
		Layout:    sheet.LayoutParentList,
		Signature: classSignature,
	})

	register(&Definition{
		ID:     "class-roster",
		Number: 2,
		Title:  "បញ្ជីឈ្មោះសិស្សតាមថ្នាក់",
		Columns: []Column{
			col("no", locale.Number, 6),
			col("student_number", locale.StudentNumber, 12),
			col("name", locale.Name, 24),
			col("latin_name", locale.LatinName, 24),
			col("gender", locale.Gender, 7),
			col("dob", locale.DateOfBirth, 14),
			col("place_of_birth", locale.PlaceOfBirth, 24),
			col("class", locale.Class, 10),
		},
		Waves:     []pipeline.WaveSpec{detailWave},
		Transform: each(classRoster),
		Layout:    sheet.LayoutGeneric,
		Signature: classSignature,
	})

	register(&Definition{
		ID:     "attendance-detail",
		Number: 3,
		Title:  "របាយការណ៍វត្តមានសិស្ស",
		Columns: []Column{
			col("no", locale.Number, 6),
			col("name", locale.Name, 24),
			col("gender", locale.Gender, 7),
			col("present", locale.Present, 10),
			col("absent", locale.Absent, 10),
			col("late", locale.Late, 10),
			col("excused", locale.Excused, 10),
			col("total", locale.Total, 10),
		},
		Waves:     []pipeline.WaveSpec{attendanceWave},
		Transform: each(attendanceDetail),
		Layout:    sheet.LayoutGeneric,
		Signature: classSignature,
	})

	register(&Definition{
		ID:     "absence-summary",
		Number: 4,
		Title:  "បញ្ជីអវត្តមាន និងច្បាប់របស់សិស្ស",
		Columns: []Column{
			col("no", locale.Number, 6),
			col("name", locale.Name, 24),
			col("gender", locale.Gender, 7),
			col("class", locale.Class, 10),
			col("absences", locale.Absent, 12),
			col("leaves", locale.Excused, 12),
			col("totalAbsenceAndLeave", locale.Total, 12),
		},
		Waves:       []pipeline.WaveSpec{attendanceWave},
		Transform:   sortedDesc("totalAbsenceAndLeave", absenceSummary),
		Layout:      sheet.LayoutAbsence,
		EmphasisKey: "totalAbsenceAndLeave",
		Signature:   classSignature,
	})

	register(&Definition{
		ID:     "student-bmi",
		Number: 5,
		Title:  "របាយការណ៍សន្ទស្សន៍ម៉ាសរាងកាយសិស្ស",
		Columns: columns(identity(), []Column{
			col("height", locale.Height, 12),
			col("weight", locale.Weight, 12),
			col("bmi", locale.BMI, 10),
			col("category", locale.Category, 14),
			col("recorded_at", locale.RecordedAt, 14),
		}),
		Waves: []pipeline.WaveSpec{
			detailWave,
			{Kind: pipeline.WaveBMI, Policy: pipeline.Degrade},
		},
		Transform: each(bmiRow),
		Layout:    sheet.LayoutGeneric,
		Signature: directorSignature,
	})

	register(&Definition{
		ID:     "disability",
		Number: 6,
		Title:  "បញ្ជីសិស្សមានពិការភាព",
		Columns: columns(identity(), []Column{
			col("class", locale.Class, 10),
			col("accessibility", locale.Accessibility, 24),
		}),
		Waves:         []pipeline.WaveSpec{detailWave},
		Filter:        HasDisability,
		Accessibility: true,
		Transform:     each(disabilityRow),
		Layout:        sheet.LayoutGeneric,
		Signature:     directorSignature,
	})

	register(&Definition{
		ID:     "age-roster",
		Number: 7,
		Title:  "បញ្ជីឈ្មោះសិស្សតាមអាយុ",
		Columns: columns(identity(), []Column{
			col("age", locale.Age, 8),
			col("class", locale.Class, 10),
		}),
		Waves:     []pipeline.WaveSpec{detailWave},
		Transform: ageRoster,
		Layout:    sheet.LayoutGeneric,
		Signature: classSignature,
	})

	register(&Definition{
		ID:     "student-contacts",
		Number: 8,
		Title:  "បញ្ជីទំនាក់ទំនងសិស្ស",
		Columns: columns(
			[]Column{
				col("no", locale.Number, 6),
				col("name", locale.Name, 24),
				col("gender", locale.Gender, 7),
				col("phone", locale.Phone, 14),
				col("address", locale.Address, 30),
			},
			grouped(locale.Father, col("father_phone", locale.Phone, 14)),
			grouped(locale.Mother, col("mother_phone", locale.Phone, 14)),
			grouped(locale.Guardian,
				col("guardian_name", locale.Name, 22),
				col("guardian_phone", locale.Phone, 14)),
		),
		Waves:     []pipeline.WaveSpec{detailWave, parentsWave, parentDetailsWave},
		Transform: each(contactRow),
		Layout:    sheet.LayoutParentList,
		Signature: classSignature,
	})

	register(&Definition{
		ID:     "ethnic-minority",
		Number: 9,
		Title:  "បញ្ជីសិស្សជនជាតិដើមភាគតិច",
		Columns: columns(identity(), []Column{
			col("class", locale.Class, 10),
			col("ethnic_group", locale.EthnicGroup, 16),
		}),
		Waves:       []pipeline.WaveSpec{detailWave},
		Filter:      HasEthnicMinority,
		EthnicGroup: true,
		Transform:   each(ethnicRow),
		Layout:      sheet.LayoutGeneric,
		Signature:   directorSignature,
	})

	register(&Definition{
		ID:     "leave-requests",
		Number: 10,
		Title:  "បញ្ជីសុំច្បាប់របស់សិស្ស",
		Columns: []Column{
			col("no", locale.Number, 6),
			col("name", locale.Name, 24),
			col("gender", locale.Gender, 7),
			col("excused", locale.Excused, 10),
			col("approved", locale.Approved, 12),
			col("pending", locale.Pending, 12),
			col("rejected", locale.Rejected, 12),
			col("reason", locale.Reason, 30),
		},
		Waves:     []pipeline.WaveSpec{attendanceWave},
		Filter:    HasExcusedAbsence,
		Transform: each(leaveRow),
		Layout:    sheet.LayoutGeneric,
		Signature: directorSignature,
	})

	register(&Definition{
		ID:     "bmi-risk",
		Number: 11,
		Title:  "បញ្ជីសិស្សមានស្ថានភាពសុខភាពត្រូវតាមដាន",
		Columns: columns(identity(), []Column{
			col("height", locale.Height, 12),
			col("weight", locale.Weight, 12),
			col("bmi", locale.BMI, 10),
			col("category", locale.Category, 14),
			col("recorded_at", locale.RecordedAt, 14),
		}),
		Waves: []pipeline.WaveSpec{
			detailWave,
			{Kind: pipeline.WaveBMI, Policy: pipeline.Skip},
		},
		Filter:    HasAbnormalBMI,
		Transform: each(bmiRow),
		Layout:    sheet.LayoutGeneric,
		Signature: directorSignature,
	})

	register(&Definition{
		ID:     "attendance-rate",
		Number: 12,
		Title:  "អត្រាវត្តមានរបស់សិស្ស",
		Columns: []Column{
			col("no", locale.Number, 6),
			col("name", locale.Name, 24),
			col("gender", locale.Gender, 7),
			col("present", locale.Present, 10),
			col("total", locale.Total, 10),
			col("rate", locale.Rate, 14),
		},
		Waves:     []pipeline.WaveSpec{attendanceWave},
		Transform: each(rateRow),
		Layout:    sheet.LayoutGeneric,
		Signature: directorSignature,
	})

	register(&Definition{
		ID:     "late-arrivals",
		Number: 13,
		Title:  "បញ្ជីសិស្សមកយឺត",
		Columns: []Column{
			col("no", locale.Number, 6),
			col("name", locale.Name, 24),
			col("gender", locale.Gender, 7),
			col("class", locale.Class, 10),
			col("late", locale.Late, 10),
		},
		Waves:     []pipeline.WaveSpec{attendanceWave},
		Filter:    HasLateArrival,
		Transform: sortedDesc("late", lateRow),
		Layout:    sheet.LayoutGeneric,
		Signature: classSignature,
	})
}
