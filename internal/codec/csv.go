package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// CSVCodec writes one row per task and reads tabular task rows back.
//
// The decode path intentionally uses a naive comma split with
// surrounding-quote stripping: a quoted field containing an embedded
// comma will be split incorrectly. This mirrors what typical planner
// exports produce (no embedded commas in titles or class names) and is
// a documented limitation rather than a full RFC 4180 reader.
type CSVCodec struct{}

var csvHeader = []string{
	"Class", "Course Code", "Task Title", "Task Type", "Due Date",
	"Completed", "Grade", "Points", "Total Points", "Percentage",
}

func (CSVCodec) ContentType() string { return "text/csv" }
func (CSVCodec) Extension() string   { return "csv" }

func (CSVCodec) Encode(env *Envelope) ([]byte, error) {
	var b strings.Builder
	b.WriteString(strings.Join(csvHeader, ","))
	b.WriteString("\n")

	for _, task := range env.Tasks {
		completed := "No"
		if task.Completed {
			completed = "Yes"
		}
		courseCode := ""
		for _, cl := range env.Classes {
			if cl.Name == task.Class {
				courseCode = cl.CourseCode
				break
			}
		}
		percentage := ""
		if task.Points != nil && task.TotalPoints != nil && *task.TotalPoints != 0 {
			percentage = formatFloat(*task.Points / *task.TotalPoints * 100)
		}
		row := []string{
			csvQuote(task.Class),
			csvQuote(courseCode),
			csvQuote(task.Title),
			csvQuote(task.TaskType),
			csvQuote(localeDate(task.DueDate)),
			completed,
			csvQuote(formatFloatPtr(task.Grade)),
			csvQuote(formatFloatPtr(task.Points)),
			csvQuote(formatFloatPtr(task.TotalPoints)),
			csvQuote(percentage),
		}
		b.WriteString(strings.Join(row, ","))
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// csvQuote wraps a field in quotes when it contains the delimiter, a
// quote character, or a newline, doubling any internal quotes.
func csvQuote(field string) string {
	if !strings.ContainsAny(field, ",\"\n\r") {
		return field
	}
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// localeDate renders a stored due date as a US-style short date. Raw
// strings that do not parse pass through untouched.
func localeDate(raw string) string {
	if t, ok := ParseDueDate(raw); ok {
		return t.Format("1/2/2006")
	}
	return raw
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

type csvColumns struct {
	title     int
	due       int
	class     int
	taskType  int
	completed int
	grade     int
	points    int
	total     int
}

func (CSVCodec) Decode(data []byte) (*Decoded, error) {
	lines := splitLines(string(data))
	if len(lines) == 0 {
		return nil, fmt.Errorf("empty CSV file")
	}

	cols, err := locateColumns(splitRow(lines[0]))
	if err != nil {
		return nil, err
	}

	out := &Decoded{}
	for _, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitRow(line)
		title := fieldAt(fields, cols.title)
		if title == "" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("skipping row with empty title: %q", line))
			continue
		}
		rec := TaskRecord{
			Title:    title,
			DueDate:  fieldAt(fields, cols.due),
			Class:    fieldAt(fields, cols.class),
			TaskType: fieldAt(fields, cols.taskType),
		}
		if raw := fieldAt(fields, cols.completed); raw != "" {
			rec.Completed = parseCompleted(raw)
		}
		rec.Grade = parseFloatField(fieldAt(fields, cols.grade))
		rec.Points = parseFloatField(fieldAt(fields, cols.points))
		rec.TotalPoints = parseFloatField(fieldAt(fields, cols.total))
		out.Tasks = append(out.Tasks, rec)
	}
	return out, nil
}

// locateColumns matches headers case-insensitively by substring so that
// files from other planners ("Assignment Name", "Course") still map.
func locateColumns(headers []string) (csvColumns, error) {
	cols := csvColumns{title: -1, due: -1, class: -1, taskType: -1, completed: -1, grade: -1, points: -1, total: -1}
	for i, h := range headers {
		h = strings.ToLower(strings.TrimSpace(h))
		switch {
		case cols.title == -1 && (strings.Contains(h, "title") || strings.Contains(h, "assignment") || (strings.Contains(h, "name") && !strings.Contains(h, "class") && !strings.Contains(h, "course"))):
			cols.title = i
		case cols.due == -1 && strings.Contains(h, "due"):
			cols.due = i
		case cols.class == -1 && (strings.Contains(h, "class") || strings.Contains(h, "course")):
			cols.class = i
		case cols.taskType == -1 && strings.Contains(h, "type"):
			cols.taskType = i
		case cols.completed == -1 && (strings.Contains(h, "complet") || strings.Contains(h, "done")):
			cols.completed = i
		case cols.total == -1 && strings.Contains(h, "total"):
			cols.total = i
		case cols.grade == -1 && strings.Contains(h, "grade"):
			cols.grade = i
		case cols.points == -1 && strings.Contains(h, "point"):
			cols.points = i
		}
	}
	if cols.title == -1 || cols.due == -1 {
		return cols, fmt.Errorf("CSV header must contain a title column and a due date column")
	}
	return cols, nil
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func splitRow(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) >= 2 && strings.HasPrefix(p, `"`) && strings.HasSuffix(p, `"`) {
			p = strings.ReplaceAll(p[1:len(p)-1], `""`, `"`)
		}
		parts[i] = p
	}
	return parts
}

func fieldAt(fields []string, idx int) string {
	if idx < 0 || idx >= len(fields) {
		return ""
	}
	return fields[idx]
}

func parseCompleted(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "yes", "y", "true", "1", "done":
		return true
	default:
		return false
	}
}

func parseFloatField(raw string) *float64 {
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "%"))
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &f
}
