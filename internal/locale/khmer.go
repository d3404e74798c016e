// Package locale centralizes the Khmer literals used by reports: gender
// glyphs, sentinel values, letterhead captions and date formatting.
package locale

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key names a localized literal.
type Key int

const (
	Kingdom Key = iota
	NationReligionKing
	MajorityEthnicity
	SeenBy
	ClassTeacher
	Teacher
	Director
	Number
	Name
	LatinName
	Gender
	DateOfBirth
	PlaceOfBirth
	Class
	StudentNumber
	Phone
	Address
	Father
	Mother
	Guardian
	Occupation
	EthnicGroup
	Accessibility
	Age
	Present
	Absent
	Late
	Excused
	Total
	Rate
	Height
	Weight
	BMI
	Category
	Approved
	Pending
	Rejected
	Remark
	Period
	Male
	Female
	Underweight
	Normal
	Overweight
	Obese
	From
	Until
	Daily
	AcademicYear
	Reason
	RecordedAt
)

var texts = map[Key]string{
	Kingdom:            "ព្រះរាជាណាចក្រកម្ពុជា",
	NationReligionKing: "ជាតិ សាសនា ព្រះមហាក្សត្រ",
	MajorityEthnicity:  "ខ្មែរ",
	SeenBy:             "បានឃើញ",
	ClassTeacher:       "គ្រូប្រចាំថ្នាក់",
	Teacher:            "គ្រូបង្រៀន",
	Director:           "នាយកសាលា",
	Number:             "ល.រ",
	Name:               "គោត្តនាម និងនាម",
	LatinName:          "ឈ្មោះជាអក្សរឡាតាំង",
	Gender:             "ភេទ",
	DateOfBirth:        "ថ្ងៃខែឆ្នាំកំណើត",
	PlaceOfBirth:       "ទីកន្លែងកំណើត",
	Class:              "ថ្នាក់",
	StudentNumber:      "អត្តលេខ",
	Phone:              "លេខទូរស័ព្ទ",
	Address:            "អាសយដ្ឋាន",
	Father:             "ឪពុក",
	Mother:             "ម្តាយ",
	Guardian:           "អាណាព្យាបាល",
	Occupation:         "មុខរបរ",
	EthnicGroup:        "ជនជាតិ",
	Accessibility:      "ប្រភេទពិការភាព",
	Age:                "អាយុ",
	Present:            "វត្តមាន",
	Absent:             "អវត្តមាន",
	Late:               "មកយឺត",
	Excused:            "ច្បាប់",
	Total:              "សរុប",
	Rate:               "អត្រាវត្តមាន (%)",
	Height:             "កម្ពស់ (សម)",
	Weight:             "ទម្ងន់ (គក)",
	BMI:                "BMI",
	Category:           "ស្ថានភាព",
	Approved:           "បានអនុម័ត",
	Pending:            "កំពុងរង់ចាំ",
	Rejected:           "បានបដិសេធ",
	Remark:             "ផ្សេងៗ",
	Period:             "ប្រចាំ",
	Male:               "ប",
	Female:             "ស",
	Underweight:        "ស្គម",
	Normal:             "ធម្មតា",
	Overweight:         "លើសទម្ងន់",
	Obese:              "ធាត់",
	From:               "ពីថ្ងៃទី",
	Until:              "ដល់ថ្ងៃទី",
	Daily:              "ប្រចាំថ្ងៃទី",
	AcademicYear:       "ឆ្នាំសិក្សា",
	Reason:             "មូលហេតុ",
	RecordedAt:         "ថ្ងៃវាស់",
}

// T returns the Khmer literal for key, or "" when none is registered.
func T(key Key) string {
	return texts[key]
}

var (
	maleValues   = []string{"m", "male", "ប្រុស", "ប"}
	femaleValues = []string{"f", "female", "ស្រី", "ស"}
	folder       = cases.Fold()
)

// Normalize trims s and converts it to NFC so Khmer strings typed with
// different combining sequences compare equal.
func Normalize(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// EqualFold compares two strings after normalization and Unicode case folding.
func EqualFold(a, b string) bool {
	return folder.String(Normalize(a)) == folder.String(Normalize(b))
}

// GenderGlyph maps the stored gender values (M, MALE, male, ប្រុស, ...) to the
// single-glyph form printed in reports. Unknown values map to "".
func GenderGlyph(raw string) string {
	for _, v := range maleValues {
		if EqualFold(raw, v) {
			return T(Male)
		}
	}
	for _, v := range femaleValues {
		if EqualFold(raw, v) {
			return T(Female)
		}
	}
	return ""
}

// IsFemale reports whether raw is one of the stored female gender values.
func IsFemale(raw string) bool {
	return GenderGlyph(raw) == T(Female)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

// ParseDate accepts the date shapes returned by the school backend.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDate renders raw as DD/MM/YYYY. Unparseable input is returned trimmed.
func FormatDate(raw string) string {
	t, ok := ParseDate(raw)
	if !ok {
		return strings.TrimSpace(raw)
	}
	return t.Format("02/01/2006")
}

var months = [...]string{
	"មករា", "កុម្ភៈ", "មីនា", "មេសា", "ឧសភា", "មិថុនា",
	"កក្កដា", "សីហា", "កញ្ញា", "តុលា", "វិច្ឆិកា", "ធ្នូ",
}

// Month returns the Khmer month name.
func Month(m time.Month) string {
	if m < time.January || m > time.December {
		return ""
	}
	return months[m-1]
}

// Digits replaces ASCII digits in s with Khmer digits.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s) * 3)
	for _, r := range s {
		if r >= '0' && r <= '9' {
			r = '០' + (r - '0')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// LongDate renders t as the dated line written above report signatures,
// e.g. "ថ្ងៃទី១៦ ខែតុលា ឆ្នាំ២០២៦".
func LongDate(t time.Time) string {
	return "ថ្ងៃទី" + Digits(t.Format("02")) + " ខែ" + Month(t.Month()) + " ឆ្នាំ" + Digits(t.Format("2006"))
}
