package interview

import (
	"errors"
	"testing"
	"time"
)

func TestProfile_SetValidation(t *testing.T) {
	now := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)

	testCases := []struct {
		name    string
		field   Field
		raw     string
		wantErr bool
	}{
		{"name", FieldName, "Margaret", false},
		{"name with digits", FieldName, "R2D2", true},
		{"birth year", FieldBirthYear, "1951", false},
		{"birth year words", FieldBirthYear, "nineteen fifty", true},
		{"birth year future", FieldBirthYear, "2031", true},
		{"birth year ancient", FieldBirthYear, "1492", true},
		{"hometown", FieldHometown, "Suzhou.", false},
		{"empty hometown", FieldHometown, "  ", true},
		{"numeric occupation", FieldOccupation, "42", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var p Profile
			err := p.Set(tc.field, tc.raw, now)
			if tc.wantErr {
				if !errors.Is(err, ErrMalformedProfileField) {
					t.Fatalf("expected ErrMalformedProfileField, got %v", err)
				}
				if p.Has(tc.field) {
					t.Error("malformed value must not be stored")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !p.Has(tc.field) {
				t.Error("expected field to be set")
			}
		})
	}
}

func TestProfile_Missing(t *testing.T) {
	p := Profile{Name: "Li Wei"}
	missing := p.Missing([]Field{FieldName, FieldBirthYear, FieldHometown})
	if len(missing) != 2 || missing[0] != FieldBirthYear || missing[1] != FieldHometown {
		t.Errorf("unexpected missing fields: %v", missing)
	}
}

func TestProfile_MapRoundTrip(t *testing.T) {
	p := Profile{Name: "Ada", BirthYear: 1948, Hometown: "Leeds", Occupation: "nurse"}
	m := p.Map()
	if _, ok := m[string(FieldEducation)]; ok {
		t.Error("unset fields must not appear in the map")
	}
	got, err := ProfileFromMap(m)
	if err != nil {
		t.Fatalf("ProfileFromMap failed: %v", err)
	}
	if got != p {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, p)
	}

	if _, err := ProfileFromMap(map[string]string{"shoe_size": "9"}); err == nil {
		t.Error("expected error for unknown field")
	}
}
