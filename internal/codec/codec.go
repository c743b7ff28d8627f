package codec

import (
	"fmt"
	"strings"
	"time"
)

// Envelope is the versioned interchange payload shared by all codecs.
// JSON carries the whole graph; CSV and ICS only carry the task rows.
type Envelope struct {
	Version    string           `json:"version"`
	ExportDate time.Time        `json:"exportDate"`
	UserID     string           `json:"userId"`
	Tasks      []TaskRecord     `json:"tasks"`
	Classes    []ClassRecord    `json:"classes"`
	TaskTypes  []TaskTypeRecord `json:"taskTypes"`
}

const EnvelopeVersion = "1.0"

// TaskRecord is an import/export row. Fields are raw strings as decoded
// from the file; validation happens later in the import pipeline.
type TaskRecord struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	DueDate     string   `json:"dueDate,omitempty"`
	Class       string   `json:"class,omitempty"`
	TaskType    string   `json:"taskType,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	Completed   bool     `json:"completed"`
	Grade       *float64 `json:"grade,omitempty"`
	Points      *float64 `json:"points,omitempty"`
	TotalPoints *float64 `json:"totalPoints,omitempty"`
}

type ClassRecord struct {
	Name       string `json:"name"`
	CourseCode string `json:"courseCode,omitempty"`
	Color      string `json:"color,omitempty"`
}

type TaskTypeRecord struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// Decoded is the output of any codec's decode path.
type Decoded struct {
	Tasks     []TaskRecord
	Classes   []ClassRecord
	TaskTypes []TaskTypeRecord
	Warnings  []string
}

type Codec interface {
	Encode(env *Envelope) ([]byte, error)
	Decode(data []byte) (*Decoded, error)
	ContentType() string
	Extension() string
}

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatICS  = "ics"
)

func ForFormat(format string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		return JSONCodec{}, nil
	case FormatCSV:
		return CSVCodec{}, nil
	case FormatICS:
		return ICSCodec{}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

var dueDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
	"20060102",
	"Jan 2, 2006",
	"January 2, 2006",
}

// ParseDueDate accepts the date forms our own exports produce plus the
// common spreadsheet variants seen in user files.
func ParseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
