package schoolapi

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ID accepts both JSON strings and numbers; the school backend is not
// consistent about which one it sends.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Student is the student shape returned by the list and detail endpoints.
type Student struct {
	UserID           ID     `json:"userId"`
	StudentID        ID     `json:"studentId"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	EnglishFirstName string `json:"englishFirstName"`
	EnglishLastName  string `json:"englishLastName"`
	Gender           string `json:"gender"`
	DateOfBirth      string `json:"dateOfBirth"`
	PlaceOfBirth     string `json:"placeOfBirth"`
	EthnicGroup      string `json:"ethnicGroup"`
	Accessibility    string `json:"accessibility"`
	ClassID          ID     `json:"classId"`
	ClassName        string `json:"className"`
	GradeLevel       string `json:"gradeLevel"`
	StudentNumber    string `json:"studentNumber"`
	AcademicYear     string `json:"academicYear"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
}

// FullName returns the Khmer name, family name first.
func (s Student) FullName() string {
	return joinName(s.LastName, s.FirstName)
}

// LatinName returns the romanized name, family name first.
func (s Student) LatinName() string {
	return joinName(s.EnglishLastName, s.EnglishFirstName)
}

// Merge overlays the non-empty fields of detail on s.
func (s Student) Merge(detail Student) Student {
	pick := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	pickID := func(dst *ID, v ID) {
		if v != "" {
			*dst = v
		}
	}
	pickID(&s.UserID, detail.UserID)
	pickID(&s.StudentID, detail.StudentID)
	pick(&s.FirstName, detail.FirstName)
	pick(&s.LastName, detail.LastName)
	pick(&s.EnglishFirstName, detail.EnglishFirstName)
	pick(&s.EnglishLastName, detail.EnglishLastName)
	pick(&s.Gender, detail.Gender)
	pick(&s.DateOfBirth, detail.DateOfBirth)
	pick(&s.PlaceOfBirth, detail.PlaceOfBirth)
	pick(&s.EthnicGroup, detail.EthnicGroup)
	pick(&s.Accessibility, detail.Accessibility)
	pickID(&s.ClassID, detail.ClassID)
	pick(&s.ClassName, detail.ClassName)
	pick(&s.GradeLevel, detail.GradeLevel)
	pick(&s.StudentNumber, detail.StudentNumber)
	pick(&s.AcademicYear, detail.AcademicYear)
	pick(&s.Phone, detail.Phone)
	pick(&s.Address, detail.Address)
	return s
}

// Relationship tags of a parent link.
const (
	RelationFather   = "FATHER"
	RelationMother   = "MOTHER"
	RelationGuardian = "GUARDIAN"
)

// Parent is a parent link or a full parent record.
type Parent struct {
	UserID           ID     `json:"userId"`
	Relationship     string `json:"relationship"`
	FirstName        string `json:"firstName"`
	LastName         string `json:"lastName"`
	EnglishFirstName string `json:"englishFirstName"`
	EnglishLastName  string `json:"englishLastName"`
	Gender           string `json:"gender"`
	Phone            string `json:"phone"`
	Occupation       string `json:"occupation"`
	Address          string `json:"address"`
}

func (p Parent) FullName() string {
	return joinName(p.LastName, p.FirstName)
}

// Merge overlays the non-empty fields of detail on p. The relationship tag
// of the link wins over the detail record.
func (p Parent) Merge(detail Parent) Parent {
	pick := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	pick(&p.FirstName, detail.FirstName)
	pick(&p.LastName, detail.LastName)
	pick(&p.EnglishFirstName, detail.EnglishFirstName)
	pick(&p.EnglishLastName, detail.EnglishLastName)
	pick(&p.Gender, detail.Gender)
	pick(&p.Phone, detail.Phone)
	pick(&p.Occupation, detail.Occupation)
	pick(&p.Address, detail.Address)
	if p.Relationship == "" {
		p.Relationship = detail.Relationship
	}
	return p
}

// Attendance statuses.
const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
	StatusLate    = "LATE"
	StatusExcused = "EXCUSED"
)

// Approval statuses of an excused absence.
const (
	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
)

// AttendanceRecord is one attendance mark.
type AttendanceRecord struct {
	UserID         ID     `json:"userId"`
	ClassID        ID     `json:"classId"`
	Date           string `json:"date"`
	Status         string `json:"status"`
	Reason         string `json:"reason"`
	ApprovalStatus string `json:"approvalStatus"`
}

// BMIRecord is one body-mass measurement.
type BMIRecord struct {
	UserID     ID      `json:"userId"`
	Height     float64 `json:"height"` // cm
	Weight     float64 `json:"weight"` // kg
	BMI        float64 `json:"bmi"`
	Category   string  `json:"category"`
	RecordedAt string  `json:"recordedAt"`
}

// StudentQuery filters the student list endpoint.
type StudentQuery struct {
	SchoolID         string
	ClassID          string
	Page             int
	Limit            int
	HasAccessibility bool
	IsEthnicGroup    bool
}

// StudentPage is one page of the student list endpoint.
type StudentPage struct {
	Success    bool      `json:"success"`
	Data       []Student `json:"data"`
	Total      int       `json:"total"`
	TotalPages int       `json:"totalPages"`
}

// AttendanceQuery filters the attendance endpoint. Date and the range are
// mutually exclusive; Date wins when both are set.
type AttendanceQuery struct {
	ClassID   string
	Date      string
	StartDate string
	EndDate   string
	Limit     int
}

func joinName(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
