package interview

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Field names a structured fact about the interviewee.
type Field string

const (
	FieldName       Field = "name"
	FieldBirthYear  Field = "birth_year"
	FieldHometown   Field = "hometown"
	FieldOccupation Field = "occupation"
	FieldEducation  Field = "education"
)

// MinBirthYear is the earliest birth year accepted by validation.
const MinBirthYear = 1880

const maxFieldRunes = 80

// Fields lists every profile field in default priority order.
func Fields() []Field {
	return []Field{FieldName, FieldBirthYear, FieldHometown, FieldOccupation, FieldEducation}
}

// ParseField converts a configured or persisted field name.
func ParseField(s string) (Field, error) {
	f := Field(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Fields() {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown profile field %q", s)
}

// Profile holds what is known about the interviewee. Zero values mean unknown.
type Profile struct {
	Name       string
	BirthYear  int
	Hometown   string
	Occupation string
	Education  string
}

// Get returns the string form of f and whether it is set.
func (p Profile) Get(f Field) (string, bool) {
	switch f {
	case FieldName:
		return p.Name, p.Name != ""
	case FieldBirthYear:
		if p.BirthYear == 0 {
			return "", false
		}
		return strconv.Itoa(p.BirthYear), true
	case FieldHometown:
		return p.Hometown, p.Hometown != ""
	case FieldOccupation:
		return p.Occupation, p.Occupation != ""
	case FieldEducation:
		return p.Education, p.Education != ""
	}
	return "", false
}

// Has reports whether f is populated.
func (p Profile) Has(f Field) bool {
	_, ok := p.Get(f)
	return ok
}

// Missing returns the fields of want that are still unknown, in order.
func (p Profile) Missing(want []Field) []Field {
	var out []Field
	for _, f := range want {
		if !p.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Empty reports whether no field is populated.
func (p Profile) Empty() bool {
	return p == (Profile{})
}

// Set validates raw and stores it in f. When now is non-zero, birth years in
// the future are rejected. Validation failures leave p untouched and return a
// *MalformedFieldError.
func (p *Profile) Set(f Field, raw string, now time.Time) error {
	value, err := NormalizeField(f, raw, now)
	if err != nil {
		return err
	}
	switch f {
	case FieldName:
		p.Name = value
	case FieldBirthYear:
		year, _ := strconv.Atoi(value)
		p.BirthYear = year
	case FieldHometown:
		p.Hometown = value
	case FieldOccupation:
		p.Occupation = value
	case FieldEducation:
		p.Education = value
	}
	return nil
}

// NormalizeField trims and type-checks raw for f.
func NormalizeField(f Field, raw string, now time.Time) (string, error) {
	value := strings.TrimSpace(raw)
	value = strings.Trim(value, ".,;:!?。，；：！？\"'")
	value = strings.TrimSpace(value)

	malformed := func(reason string) error {
		return &MalformedFieldError{Field: f, Value: raw, Reason: reason}
	}

	if value == "" {
		return "", malformed("is empty")
	}

	if f == FieldBirthYear {
		year, err := strconv.Atoi(value)
		if err != nil {
			return "", malformed("is not a number")
		}
		if year < MinBirthYear {
			return "", malformed(fmt.Sprintf("is before %d", MinBirthYear))
		}
		if !now.IsZero() && year > now.Year() {
			return "", malformed("is in the future")
		}
		return strconv.Itoa(year), nil
	}

	if _, err := ParseField(string(f)); err != nil {
		return "", malformed("is not a profile field")
	}
	if utf8.RuneCountInString(value) > maxFieldRunes {
		return "", malformed("is too long")
	}
	hasLetter := false
	for _, r := range value {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if f == FieldName && unicode.IsDigit(r) {
			return "", malformed("contains digits")
		}
	}
	if !hasLetter {
		return "", malformed("has no letters")
	}
	return value, nil
}

// Map returns the populated fields keyed by field name.
func (p Profile) Map() map[string]string {
	m := make(map[string]string)
	for _, f := range Fields() {
		if v, ok := p.Get(f); ok {
			m[string(f)] = v
		}
	}
	return m
}

// ProfileFromMap rebuilds a profile from its persisted map form.
func ProfileFromMap(m map[string]string) (Profile, error) {
	var p Profile
	for k, v := range m {
		f, err := ParseField(k)
		if err != nil {
			return Profile{}, err
		}
		if err := p.Set(f, v, time.Time{}); err != nil {
			return Profile{}, err
		}
	}
	return p, nil
}
