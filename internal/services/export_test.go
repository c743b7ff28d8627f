package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/schedulebud/backend/internal/codec"
	types "github.com/schedulebud/backend/internal/domain"
)

type fakeArchiver struct {
	objectPaths []string
	err         error
}

func (a *fakeArchiver) UploadBytes(_ context.Context, objectPath string, _ []byte, _ string) (string, error) {
	if a.err != nil {
		return "", a.err
	}
	a.objectPaths = append(a.objectPaths, objectPath)
	return "https://cdn.example.com/" + objectPath, nil
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestApplyExportFilters(t *testing.T) {
	classA := uuid.New()
	classB := uuid.New()
	tasks := []*types.Task{
		{Title: "done in march", Completed: true, DueDate: datePtr(2024, 3, 10), ClassID: &classA},
		{Title: "open in april", Completed: false, DueDate: datePtr(2024, 4, 2), ClassID: &classB},
		{Title: "open, no due date", Completed: false},
		{Title: "done in june", Completed: true, DueDate: datePtr(2024, 6, 15), ClassID: &classA},
	}

	cases := []struct {
		name    string
		filters ExportFilters
		want    []string
	}{
		{
			name:    "no filters keeps everything",
			filters: ExportFilters{},
			want:    []string{"done in march", "open in april", "open, no due date", "done in june"},
		},
		{
			name:    "completed only",
			filters: ExportFilters{Completion: CompletionCompleted},
			want:    []string{"done in march", "done in june"},
		},
		{
			name:    "incomplete only",
			filters: ExportFilters{Completion: CompletionIncomplete},
			want:    []string{"open in april", "open, no due date"},
		},
		{
			name:    "date range, dateless tasks always pass",
			filters: ExportFilters{From: datePtr(2024, 3, 1), To: datePtr(2024, 4, 30)},
			want:    []string{"done in march", "open in april", "open, no due date"},
		},
		{
			name:    "class allow-list drops unassigned tasks",
			filters: ExportFilters{ClassIDs: []uuid.UUID{classA}},
			want:    []string{"done in march", "done in june"},
		},
		{
			name: "filters compose",
			filters: ExportFilters{
				Completion: CompletionCompleted,
				From:       datePtr(2024, 1, 1),
				To:         datePtr(2024, 5, 31),
				ClassIDs:   []uuid.UUID{classA},
			},
			want: []string{"done in march"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplyExportFilters(tasks, tc.filters)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d tasks, want %d", len(got), len(tc.want))
			}
			for i, task := range got {
				if task.Title != tc.want[i] {
					t.Fatalf("task %d = %q, want %q", i, task.Title, tc.want[i])
				}
			}
		})
	}
}

func TestTermDateRange(t *testing.T) {
	cases := []struct {
		term     string
		year     int
		wantFrom time.Time
		wantTo   time.Time
	}{
		{"spring", 2024, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)},
		{"summer", 2024, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)},
		{"fall", 2024, time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)},
		{"winter", 2024, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
		{" Fall ", 2023, time.Date(2023, 8, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		from, to, err := TermDateRange(tc.term, tc.year)
		if err != nil {
			t.Fatalf("TermDateRange(%q, %d): %v", tc.term, tc.year, err)
		}
		if !from.Equal(tc.wantFrom) || !to.Equal(tc.wantTo) {
			t.Fatalf("TermDateRange(%q, %d) = %v..%v, want %v..%v", tc.term, tc.year, from, to, tc.wantFrom, tc.wantTo)
		}
	}

	if _, _, err := TermDateRange("trimester", 2024); err == nil {
		t.Fatalf("unknown term must error")
	}
}

func TestExportFilename(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
	if got := exportFilename("tasks", "", 0, now, "json"); got != "schedulebud_tasks_2024-03-15.json" {
		t.Fatalf("plain filename = %q", got)
	}
	if got := exportFilename("archive", "Fall", 2024, now, "json"); got != "schedulebud_archive_fall_2024_2024-03-15.json" {
		t.Fatalf("term filename = %q", got)
	}
	if got := exportFilename("tasks", "", 0, now, "ics"); got != "schedulebud_tasks_2024-03-15.ics" {
		t.Fatalf("ics filename = %q", got)
	}
}

func newExportFixture(t *testing.T, archiver ArtifactArchiver) (*fakeClassRepo, *fakeTaskTypeRepo, *fakeTaskRepo, *exportService) {
	t.Helper()
	classRepo := &fakeClassRepo{}
	typeRepo := &fakeTaskTypeRepo{}
	taskRepo := &fakeTaskRepo{}
	svc := &exportService{
		log:          testLogger(t),
		classRepo:    classRepo,
		taskTypeRepo: typeRepo,
		taskRepo:     taskRepo,
		archiver:     archiver,
		now: func() time.Time {
			return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
		},
	}
	return classRepo, typeRepo, taskRepo, svc
}

func TestExportJSON(t *testing.T) {
	classRepo, typeRepo, taskRepo, svc := newExportFixture(t, nil)
	userID := uuid.New()
	classID := uuid.New()
	typeID := uuid.New()
	classRepo.classes = []*types.Class{{ID: classID, UserID: userID, Name: "Biology", CourseCode: "BIO110"}}
	typeRepo.types = []*types.TaskType{{ID: typeID, UserID: userID, Name: "Exam"}}
	taskRepo.tasks = []*types.Task{
		{ID: uuid.New(), UserID: userID, Title: "Midterm", DueDate: datePtr(2024, 3, 20), ClassID: &classID, TaskTypeID: &typeID},
	}

	artifact, err := svc.Export(context.Background(), userID, ExportOptions{Format: codec.FormatJSON})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if artifact.Filename != "schedulebud_tasks_2024-03-15.json" {
		t.Fatalf("filename = %q", artifact.Filename)
	}
	if artifact.ContentType != "application/json" {
		t.Fatalf("content type = %q", artifact.ContentType)
	}

	var env codec.Envelope
	if err := json.Unmarshal(artifact.Data, &env); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if len(env.Tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(env.Tasks))
	}
	rec := env.Tasks[0]
	if rec.Class != "Biology" || rec.TaskType != "Exam" || rec.DueDate != "2024-03-20" {
		t.Fatalf("record mismatch: %+v", rec)
	}
	if env.UserID != userID.String() {
		t.Fatalf("user id = %q", env.UserID)
	}
}

func TestExportTermArchive(t *testing.T) {
	archiver := &fakeArchiver{}
	_, _, taskRepo, svc := newExportFixture(t, archiver)
	userID := uuid.New()
	taskRepo.tasks = []*types.Task{
		{ID: uuid.New(), UserID: userID, Title: "Fall paper", DueDate: datePtr(2024, 10, 5)},
		{ID: uuid.New(), UserID: userID, Title: "Spring quiz", DueDate: datePtr(2024, 2, 10)},
		{ID: uuid.New(), UserID: userID, Title: "Undated"},
	}

	artifact, err := svc.ExportTermArchive(context.Background(), userID, "fall", 2024)
	if err != nil {
		t.Fatalf("ExportTermArchive: %v", err)
	}
	if artifact.Filename != "schedulebud_archive_fall_2024_2024-03-15.json" {
		t.Fatalf("filename = %q", artifact.Filename)
	}

	var env codec.Envelope
	if err := json.Unmarshal(artifact.Data, &env); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	titles := map[string]bool{}
	for _, rec := range env.Tasks {
		titles[rec.Title] = true
	}
	if !titles["Fall paper"] || !titles["Undated"] || titles["Spring quiz"] {
		t.Fatalf("term scoping wrong: %v", titles)
	}

	if len(archiver.objectPaths) != 1 {
		t.Fatalf("term archives always upload, got %v", archiver.objectPaths)
	}
	want := "exports/" + userID.String() + "/" + artifact.Filename
	if archiver.objectPaths[0] != want {
		t.Fatalf("object path = %q, want %q", archiver.objectPaths[0], want)
	}
}

func TestExportArchiveFailureIsBestEffort(t *testing.T) {
	archiver := &fakeArchiver{err: errors.New("bucket unavailable")}
	_, _, _, svc := newExportFixture(t, archiver)

	artifact, err := svc.Export(context.Background(), uuid.New(), ExportOptions{Format: codec.FormatJSON, Archive: true})
	if err != nil {
		t.Fatalf("a failed archive upload must not fail the export: %v", err)
	}
	if len(artifact.Data) == 0 {
		t.Fatalf("artifact should still carry the encoded payload")
	}
}

// TestExportImportRoundTrip exports a planner through the JSON codec and
// feeds the artifact back through the importer into an empty account.
func TestExportImportRoundTrip(t *testing.T) {
	classRepo, typeRepo, taskRepo, svc := newExportFixture(t, nil)
	userID := uuid.New()
	classID := uuid.New()
	typeID := uuid.New()
	classRepo.classes = []*types.Class{{ID: classID, UserID: userID, Name: "Biology", CourseCode: "BIO110"}}
	typeRepo.types = []*types.TaskType{{ID: typeID, UserID: userID, Name: "Essay"}}
	taskRepo.tasks = []*types.Task{
		{ID: uuid.New(), UserID: userID, Title: "Final Essay", DueDate: datePtr(2024, 5, 1), ClassID: &classID, TaskTypeID: &typeID},
	}

	artifact, err := svc.Export(context.Background(), userID, ExportOptions{Format: codec.FormatJSON})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}

	_, destClasses, destTypes, destTasks, importer := newImportFixture(t)
	summary, err := importer.Run(context.Background(), uuid.New(), artifact.Data, ImportOptions{Format: codec.FormatJSON}, nil)
	if err != nil {
		t.Fatalf("import of exported artifact: %v", err)
	}
	if !summary.Success {
		t.Fatalf("round trip failed: %+v", summary)
	}
	if summary.ClassesImported != 1 || summary.TaskTypesImported != 1 || summary.TasksImported != 1 {
		t.Fatalf("counts mismatch: %+v", summary)
	}
	if destClasses.classes[0].Name != "Biology" || destTypes.types[0].Name != "Essay" {
		t.Fatalf("entity names lost in transit")
	}
	got := destTasks.tasks[0]
	if got.Title != "Final Essay" || got.DueDate == nil || !got.DueDate.Equal(*datePtr(2024, 5, 1)) {
		t.Fatalf("task mismatch: %+v", got)
	}
	if got.ClassID == nil || *got.ClassID != destClasses.classes[0].ID {
		t.Fatalf("task should link to the re-created class")
	}
}

func TestExportUnknownTermFails(t *testing.T) {
	_, _, _, svc := newExportFixture(t, nil)
	if _, err := svc.ExportTermArchive(context.Background(), uuid.New(), "trimester", 2024); err == nil {
		t.Fatalf("unknown term must error")
	}
}
