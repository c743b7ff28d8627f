package codec

import (
	"strings"
	"testing"
)

func TestICSDecodeBareEvent(t *testing.T) {
	data := []byte("BEGIN:VEVENT\nSUMMARY:Midterm\nDTSTART;VALUE=DATE:20240315\nEND:VEVENT")

	decoded, err := (ICSCodec{}).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Tasks) != 1 {
		t.Fatalf("decoded %d tasks, want 1", len(decoded.Tasks))
	}
	task := decoded.Tasks[0]
	if task.Title != "Midterm" {
		t.Fatalf("title = %q, want Midterm", task.Title)
	}
	if task.DueDate != "2024-03-15" {
		t.Fatalf("due date = %q, want 2024-03-15", task.DueDate)
	}
}

func TestICSEncode(t *testing.T) {
	env := &Envelope{
		Tasks: []TaskRecord{
			{Title: "Midterm, Part 1", DueDate: "2024-03-15", Completed: true, Class: "History 200"},
			{Title: "No Date Task"},
		},
	}
	data, err := (ICSCodec{}).Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	text := string(data)

	if !strings.HasPrefix(text, "BEGIN:VCALENDAR\r\n") {
		t.Fatalf("missing calendar header: %q", text[:40])
	}
	if !strings.HasSuffix(text, "END:VCALENDAR\r\n") {
		t.Fatalf("missing calendar trailer")
	}
	if strings.Contains(strings.ReplaceAll(text, "\r\n", ""), "\n") {
		t.Fatalf("all line endings must be CRLF")
	}
	if !strings.Contains(text, "TZID:America/Los_Angeles") {
		t.Fatalf("missing VTIMEZONE block")
	}
	if !strings.Contains(text, `SUMMARY:Midterm\, Part 1`) {
		t.Fatalf("summary comma must be escaped: %s", text)
	}
	if !strings.Contains(text, "DTSTART;VALUE=DATE:20240315") {
		t.Fatalf("missing all-day DTSTART")
	}
	if !strings.Contains(text, "DTEND;VALUE=DATE:20240316") {
		t.Fatalf("DTEND should be the day after DTSTART")
	}
	if !strings.Contains(text, "STATUS:COMPLETED") {
		t.Fatalf("completed task should carry STATUS:COMPLETED")
	}
	if strings.Contains(text, "No Date Task") {
		t.Fatalf("tasks without a parseable due date must be omitted")
	}
	if strings.Count(text, "BEGIN:VEVENT") != 1 {
		t.Fatalf("expected exactly one VEVENT")
	}
}

func TestICSEncodeDecodeRoundTrip(t *testing.T) {
	env := &Envelope{
		Tasks: []TaskRecord{
			{Title: "Lab Practical", DueDate: "2024-04-22", Class: "BIO 110", TaskType: "Exam", Completed: false},
		},
	}
	data, err := (ICSCodec{}).Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := (ICSCodec{}).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Tasks) != 1 {
		t.Fatalf("decoded %d tasks, want 1", len(decoded.Tasks))
	}
	task := decoded.Tasks[0]
	if task.Title != "Lab Practical" || task.DueDate != "2024-04-22" || task.Completed {
		t.Fatalf("round trip mismatch: %+v", task)
	}
	if !strings.Contains(task.Description, "Class: BIO 110") {
		t.Fatalf("description should carry the class context: %q", task.Description)
	}
}

func TestICSDecodeTimedEvent(t *testing.T) {
	data := []byte(strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"SUMMARY:Office Hours Review",
		"DTSTART:20240501T153000Z",
		"STATUS:COMPLETED",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n"))

	decoded, err := (ICSCodec{}).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Tasks) != 1 {
		t.Fatalf("decoded %d tasks, want 1", len(decoded.Tasks))
	}
	task := decoded.Tasks[0]
	if task.DueDate != "2024-05-01" {
		t.Fatalf("timed DTSTART should reduce to a date, got %q", task.DueDate)
	}
	if !task.Completed {
		t.Fatalf("STATUS:COMPLETED should mark the task complete")
	}
}

func TestICSDecodeDTENDFallback(t *testing.T) {
	data := []byte(strings.Join([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"BEGIN:VEVENT",
		"SUMMARY:Lab Report",
		"DTEND;VALUE=DATE:20240316",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"SUMMARY:Quiz 2",
		"DTSTART;VALUE=DATE:20240410",
		"DTEND;VALUE=DATE:20240411",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n"))

	decoded, err := (ICSCodec{}).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Tasks) != 2 {
		t.Fatalf("decoded %d tasks, want 2", len(decoded.Tasks))
	}
	// all-day DTEND is exclusive: the event's last day is the 15th
	if got := decoded.Tasks[0].DueDate; got != "2024-03-15" {
		t.Fatalf("DTEND-only event due date = %q, want 2024-03-15", got)
	}
	// DTSTART wins when both are present
	if got := decoded.Tasks[1].DueDate; got != "2024-04-10" {
		t.Fatalf("DTSTART should take precedence over DTEND, got %q", got)
	}
}

func TestICSDecodeSkipsUntitledEvents(t *testing.T) {
	data := []byte(strings.Join([]string{
		"BEGIN:VCALENDAR",
		"BEGIN:VEVENT",
		"DTSTART;VALUE=DATE:20240301",
		"END:VEVENT",
		"END:VCALENDAR",
	}, "\r\n"))

	decoded, err := (ICSCodec{}).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Tasks) != 0 {
		t.Fatalf("untitled events must be skipped, got %+v", decoded.Tasks)
	}
	if len(decoded.Warnings) != 1 {
		t.Fatalf("expected a warning for the skipped event, got %v", decoded.Warnings)
	}
}

func TestICSDecodeNotACalendar(t *testing.T) {
	if _, err := (ICSCodec{}).Decode([]byte(`{"tasks":[]}`)); err == nil {
		t.Fatalf("non-calendar input must fail")
	}
}

func TestICSEscapeRoundTrip(t *testing.T) {
	cases := []string{
		"plain title",
		"semi;colon",
		"comma, separated",
		"multi\nline",
	}
	for _, tc := range cases {
		if got := icsUnescape(icsEscape(tc)); got != tc {
			t.Fatalf("escape round trip: %q -> %q", tc, got)
		}
	}
}
