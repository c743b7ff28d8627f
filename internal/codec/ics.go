package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ICSCodec writes an iCalendar file with one all-day VEVENT per task and
// reads VEVENT blocks back with a line-oriented state machine.
type ICSCodec struct{}

func (ICSCodec) ContentType() string { return "text/calendar" }
func (ICSCodec) Extension() string   { return "ics" }

// US Pacific with its DST transitions, matching the planner's default
// campus timezone. All-day events are date-only so this only anchors
// clients that insist on a TZID.
var icsTimezoneBlock = []string{
	"BEGIN:VTIMEZONE",
	"TZID:America/Los_Angeles",
	"BEGIN:DAYLIGHT",
	"DTSTART:19700308T020000",
	"RRULE:FREQ=YEARLY;BYMONTH=3;BYDAY=2SU",
	"TZOFFSETFROM:-0800",
	"TZOFFSETTO:-0700",
	"TZNAME:PDT",
	"END:DAYLIGHT",
	"BEGIN:STANDARD",
	"DTSTART:19701101T020000",
	"RRULE:FREQ=YEARLY;BYMONTH=11;BYDAY=1SU",
	"TZOFFSETFROM:-0700",
	"TZOFFSETTO:-0800",
	"TZNAME:PST",
	"END:STANDARD",
	"END:VTIMEZONE",
}

func (ICSCodec) Encode(env *Envelope) ([]byte, error) {
	now := env.ExportDate
	if now.IsZero() {
		now = time.Now().UTC()
	}
	stamp := now.UTC().Format("20060102T150405Z")

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//ScheduleBud//Task Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}
	lines = append(lines, icsTimezoneBlock...)

	for _, task := range env.Tasks {
		due, ok := ParseDueDate(task.DueDate)
		if !ok {
			// calendars need a date; tasks without one are not events
			continue
		}
		status := "CONFIRMED"
		if task.Completed {
			status = "COMPLETED"
		}
		description := icsDescription(task)
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+uuid.New().String()+"@schedulebud.app",
			"DTSTAMP:"+stamp,
			"DTSTART;VALUE=DATE:"+due.Format("20060102"),
			"DTEND;VALUE=DATE:"+due.AddDate(0, 0, 1).Format("20060102"),
			"SUMMARY:"+icsEscape(task.Title),
			"STATUS:"+status,
		)
		if description != "" {
			lines = append(lines, "DESCRIPTION:"+icsEscape(description))
		}
		lines = append(lines, "END:VEVENT")
	}

	lines = append(lines, "END:VCALENDAR")
	return []byte(strings.Join(lines, "\r\n") + "\r\n"), nil
}

func icsDescription(task TaskRecord) string {
	var parts []string
	if task.Class != "" {
		parts = append(parts, "Class: "+task.Class)
	}
	if task.TaskType != "" {
		parts = append(parts, "Type: "+task.TaskType)
	}
	if task.Priority != "" {
		parts = append(parts, "Priority: "+task.Priority)
	}
	if task.Description != "" {
		parts = append(parts, task.Description)
	}
	return strings.Join(parts, "\n")
}

// icsEscape applies RFC 5545 text escaping to free-text values.
func icsEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, ";", `\;`)
	s = strings.ReplaceAll(s, ",", `\,`)
	s = strings.ReplaceAll(s, "\r\n", `\n`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func icsUnescape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			switch s[i] {
			case 'n', 'N':
				b.WriteByte('\n')
			default:
				b.WriteByte(s[i])
			}
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func (ICSCodec) Decode(data []byte) (*Decoded, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	out := &Decoded{}
	var current *TaskRecord
	var endDate string
	sawCalendar := false

	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, params, value := splitICSLine(line)
		switch name {
		case "BEGIN":
			switch strings.ToUpper(value) {
			case "VCALENDAR":
				sawCalendar = true
			case "VEVENT":
				current = &TaskRecord{}
				endDate = ""
			}
		case "END":
			if strings.ToUpper(value) == "VEVENT" && current != nil {
				if current.DueDate == "" && endDate != "" {
					current.DueDate = endDate
				}
				if current.Title != "" {
					out.Tasks = append(out.Tasks, *current)
				} else {
					out.Warnings = append(out.Warnings, "skipping event with no SUMMARY")
				}
				current = nil
			}
		case "SUMMARY":
			if current != nil {
				current.Title = icsUnescape(value)
			}
		case "DESCRIPTION":
			if current != nil {
				current.Description = icsUnescape(value)
			}
		case "LOCATION":
			if current != nil && current.Class == "" {
				current.Class = icsUnescape(value)
			}
		case "DTSTART":
			if current != nil {
				if t, ok := parseICSDate(value, params); ok {
					current.DueDate = t.Format("2006-01-02")
				}
			}
		case "DTEND":
			// fallback due date when the event carries no DTSTART;
			// an all-day DTEND is exclusive, the last day is the day
			// before it
			if current != nil {
				if t, ok := parseICSDate(value, params); ok {
					if !strings.Contains(value, "T") {
						t = t.AddDate(0, 0, -1)
					}
					endDate = t.Format("2006-01-02")
				}
			}
		case "STATUS":
			if current != nil && strings.EqualFold(value, "COMPLETED") {
				current.Completed = true
			}
		}
		// all other properties (UID, DTSTAMP, RRULE, ...) are ignored
	}

	if !sawCalendar && len(out.Tasks) == 0 {
		return nil, fmt.Errorf("not an iCalendar file")
	}
	return out, nil
}

// splitICSLine breaks "NAME;PARAM=V:value" into its three parts.
func splitICSLine(line string) (name, params, value string) {
	idx := strings.Index(line, ":")
	if idx < 0 {
		return strings.ToUpper(strings.TrimSpace(line)), "", ""
	}
	value = line[idx+1:]
	head := line[:idx]
	if semi := strings.Index(head, ";"); semi >= 0 {
		params = head[semi+1:]
		head = head[:semi]
	}
	return strings.ToUpper(strings.TrimSpace(head)), params, value
}

// parseICSDate handles both the bare all-day form (YYYYMMDD) and the
// timed form (YYYYMMDDTHHMMSS, optionally suffixed with Z).
func parseICSDate(value, params string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	_ = params
	if t, err := time.Parse("20060102", value); err == nil {
		return t, true
	}
	if t, err := time.Parse("20060102T150405Z", value); err == nil {
		return t, true
	}
	if t, err := time.Parse("20060102T150405", value); err == nil {
		return t, true
	}
	return time.Time{}, false
}
