package store

import (
	"strings"
	"time"
)

// DateLayout is the display format used in the spreadsheet.
const DateLayout = "02/01/2006"

// Record is one relevant regulation as persisted to the spreadsheet.
type Record struct {
	PublicationDate time.Time
	GeneratedTitle  string
	Category        string
	Relevance       int
	Reasoning       string
	Summary         string
	KeyPoints       []string
	Link            string
}

// DateString returns the publication date in spreadsheet display format.
func (r Record) DateString() string {
	return r.PublicationDate.Format(DateLayout)
}

func joinKeyPoints(points []string) string {
	return strings.Join(points, "; ")
}

func splitKeyPoints(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
