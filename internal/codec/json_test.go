package codec

import (
	"strings"
	"testing"
)

func TestJSONRoundTrip(t *testing.T) {
	env := &Envelope{
		UserID: "3f1b6d3e-0000-0000-0000-000000000000",
		Tasks: []TaskRecord{
			{Title: "Essay", DueDate: "2024-05-01", Completed: false},
		},
		Classes:   []ClassRecord{{Name: "English 101", CourseCode: "ENG101"}},
		TaskTypes: []TaskTypeRecord{{Name: "Essay"}},
	}

	data, err := (JSONCodec{}).Encode(env)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(data), `"version": "1.0"`) {
		t.Fatalf("encoded envelope missing version: %s", data)
	}

	decoded, err := (JSONCodec{}).Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Tasks) != 1 || decoded.Tasks[0].Title != "Essay" || decoded.Tasks[0].DueDate != "2024-05-01" {
		t.Fatalf("tasks did not survive the round trip: %+v", decoded.Tasks)
	}
	if len(decoded.Classes) != 1 || decoded.Classes[0].CourseCode != "ENG101" {
		t.Fatalf("classes did not survive the round trip: %+v", decoded.Classes)
	}
	if len(decoded.TaskTypes) != 1 {
		t.Fatalf("task types did not survive the round trip: %+v", decoded.TaskTypes)
	}
	if len(decoded.Warnings) != 0 {
		t.Fatalf("clean round trip should not warn: %v", decoded.Warnings)
	}
}

func TestJSONDecodeTasksNotArrayIsHardError(t *testing.T) {
	_, err := (JSONCodec{}).Decode([]byte(`{"version":"1.0","tasks":{"title":"x"}}`))
	if err == nil {
		t.Fatalf("non-array tasks must be a hard error")
	}
}

func TestJSONDecodeMissingArraysWarn(t *testing.T) {
	decoded, err := (JSONCodec{}).Decode([]byte(`{"version":"1.0"}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Tasks) != 0 {
		t.Fatalf("expected no tasks, got %+v", decoded.Tasks)
	}
	if len(decoded.Warnings) != 3 {
		t.Fatalf("expected a warning per missing array, got %v", decoded.Warnings)
	}
}

func TestJSONDecodeUnknownVersionWarnsButProceeds(t *testing.T) {
	decoded, err := (JSONCodec{}).Decode([]byte(`{"version":"9.9","tasks":[{"title":"Essay"}],"classes":[],"taskTypes":[]}`))
	if err != nil {
		t.Fatalf("unknown version should not be fatal: %v", err)
	}
	if len(decoded.Tasks) != 1 {
		t.Fatalf("tasks should still decode: %+v", decoded.Tasks)
	}
	found := false
	for _, w := range decoded.Warnings {
		if strings.Contains(w, "9.9") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a version warning, got %v", decoded.Warnings)
	}
}

func TestJSONDecodeNestedRawResponse(t *testing.T) {
	payload := `{"rawResponse":{"version":"1.0","tasks":[{"title":"Quiz 1","dueDate":"2024-02-10"}],"classes":[],"taskTypes":[]}}`
	decoded, err := (JSONCodec{}).Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Tasks) != 1 || decoded.Tasks[0].Title != "Quiz 1" {
		t.Fatalf("nested envelope did not decode: %+v", decoded.Tasks)
	}
}

func TestJSONDecodeGarbage(t *testing.T) {
	if _, err := (JSONCodec{}).Decode([]byte("BEGIN:VCALENDAR")); err == nil {
		t.Fatalf("non-JSON input must fail")
	}
}
