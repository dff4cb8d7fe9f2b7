package memoir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/memoir/internal/interview"
)

var fieldLabels = map[interview.Field]string{
	interview.FieldName:       "Name",
	interview.FieldBirthYear:  "Birth year",
	interview.FieldHometown:   "Hometown",
	interview.FieldOccupation: "Occupation",
	interview.FieldEducation:  "Education",
}

// Markdown renders doc as a Markdown document with a basic-information
// header.
func Markdown(doc *interview.Document) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", doc.Title)
	fmt.Fprintf(&b, "> Style: %s  \n", doc.Style)
	if !doc.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "> Written: %s  \n", doc.GeneratedAt.Format("January 2, 2006"))
	}
	b.WriteString("> Recorded in conversation\n\n")

	if !doc.Profile.Empty() {
		b.WriteString("## Basic Information\n\n")
		for _, f := range interview.Fields() {
			if v, ok := doc.Profile.Get(f); ok {
				fmt.Fprintf(&b, "- **%s**: %s\n", fieldLabels[f], v)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("---\n\n")
	if doc.Preamble != "" {
		b.WriteString(doc.Preamble)
		b.WriteString("\n\n")
	}
	for _, s := range doc.Sections {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", s.Title, strings.TrimSpace(s.Body))
	}
	if doc.Closing != "" {
		b.WriteString("---\n\n")
		b.WriteString(doc.Closing)
		b.WriteString("\n")
	}
	return b.String()
}

// Digest returns the hex SHA-256 of an export, used to detect duplicates.
func Digest(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
