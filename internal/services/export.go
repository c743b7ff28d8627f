package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/schedulebud/backend/internal/codec"
	"github.com/schedulebud/backend/internal/data/repos"
	types "github.com/schedulebud/backend/internal/domain"
	"github.com/schedulebud/backend/internal/pkg/dbctx"
	apperrors "github.com/schedulebud/backend/internal/pkg/errors"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

const (
	CompletionAny        = ""
	CompletionCompleted  = "completed"
	CompletionIncomplete = "incomplete"
)

type ExportFilters struct {
	Completion string
	From       *time.Time
	To         *time.Time
	ClassIDs   []uuid.UUID
}

type ExportOptions struct {
	Format  string
	Filters ExportFilters
	Archive bool
}

type ExportArtifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ArtifactArchiver stores a copy of an exported artifact out of band.
// The bucket client implements it; exports work fine without one.
type ArtifactArchiver interface {
	UploadBytes(ctx context.Context, objectPath string, data []byte, contentType string) (string, error)
}

type ExportService interface {
	Export(ctx context.Context, userID uuid.UUID, opts ExportOptions) (*ExportArtifact, error)
	ExportTermArchive(ctx context.Context, userID uuid.UUID, term string, year int) (*ExportArtifact, error)
}

type exportService struct {
	db           *gorm.DB
	log          *logger.Logger
	classRepo    repos.ClassRepo
	taskTypeRepo repos.TaskTypeRepo
	taskRepo     repos.TaskRepo
	archiver     ArtifactArchiver
	now          func() time.Time
}

func NewExportService(
	db *gorm.DB,
	baseLog *logger.Logger,
	classRepo repos.ClassRepo,
	taskTypeRepo repos.TaskTypeRepo,
	taskRepo repos.TaskRepo,
	archiver ArtifactArchiver,
) ExportService {
	return &exportService{
		db:           db,
		log:          baseLog.With("service", "ExportService"),
		classRepo:    classRepo,
		taskTypeRepo: taskTypeRepo,
		taskRepo:     taskRepo,
		archiver:     archiver,
		now:          time.Now,
	}
}

func (s *exportService) Export(ctx context.Context, userID uuid.UUID, opts ExportOptions) (*ExportArtifact, error) {
	c, err := codec.ForFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	tasks, classes, taskTypes, err := s.collect(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks = ApplyExportFilters(tasks, opts.Filters)

	data, err := c.Encode(buildEnvelope(userID, tasks, classes, taskTypes, s.now()))
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}

	artifact := &ExportArtifact{
		Filename:    exportFilename("tasks", "", 0, s.now(), c.Extension()),
		ContentType: c.ContentType(),
		Data:        data,
	}
	s.maybeArchive(ctx, userID, artifact, opts.Archive)
	return artifact, nil
}

// ExportTermArchive is a JSON export pre-scoped to the date range of
// one academic term. It reuses the normal export path rather than
// being its own codec.
func (s *exportService) ExportTermArchive(ctx context.Context, userID uuid.UUID, term string, year int) (*ExportArtifact, error) {
	from, to, err := TermDateRange(term, year)
	if err != nil {
		return nil, err
	}

	tasks, classes, taskTypes, err := s.collect(ctx, userID)
	if err != nil {
		return nil, err
	}
	tasks = ApplyExportFilters(tasks, ExportFilters{From: &from, To: &to})

	c, _ := codec.ForFormat(codec.FormatJSON)
	data, err := c.Encode(buildEnvelope(userID, tasks, classes, taskTypes, s.now()))
	if err != nil {
		return nil, fmt.Errorf("encode term archive: %w", err)
	}

	artifact := &ExportArtifact{
		Filename:    exportFilename("archive", term, year, s.now(), c.Extension()),
		ContentType: c.ContentType(),
		Data:        data,
	}
	s.maybeArchive(ctx, userID, artifact, true)
	return artifact, nil
}

// collect pulls the user's tasks, classes and task types concurrently.
func (s *exportService) collect(ctx context.Context, userID uuid.UUID) ([]*types.Task, []*types.Class, []*types.TaskType, error) {
	var (
		tasks     []*types.Task
		classes   []*types.Class
		taskTypes []*types.TaskType
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.taskRepo.GetByUserID(dbctx.Context{Ctx: gctx}, userID)
		return err
	})
	g.Go(func() error {
		var err error
		classes, err = s.classRepo.GetByUserID(dbctx.Context{Ctx: gctx}, userID)
		return err
	})
	g.Go(func() error {
		var err error
		taskTypes, err = s.taskTypeRepo.GetByUserID(dbctx.Context{Ctx: gctx}, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, nil, fmt.Errorf("load export entities: %w", err)
	}
	return tasks, classes, taskTypes, nil
}

// ApplyExportFilters runs the filter chain in order: completion status,
// then date range, then class allow-list. Tasks with no due date always
// pass the date-range filter.
func ApplyExportFilters(tasks []*types.Task, f ExportFilters) []*types.Task {
	allowed := map[uuid.UUID]bool{}
	for _, id := range f.ClassIDs {
		allowed[id] = true
	}

	out := make([]*types.Task, 0, len(tasks))
	for _, t := range tasks {
		switch f.Completion {
		case CompletionCompleted:
			if !t.Completed {
				continue
			}
		case CompletionIncomplete:
			if t.Completed {
				continue
			}
		}

		if t.DueDate != nil {
			if f.From != nil && t.DueDate.Before(*f.From) {
				continue
			}
			if f.To != nil && t.DueDate.After(*f.To) {
				continue
			}
		}

		if len(allowed) > 0 {
			if t.ClassID == nil || !allowed[*t.ClassID] {
				continue
			}
		}
		out = append(out, t)
	}
	return out
}

func buildEnvelope(userID uuid.UUID, tasks []*types.Task, classes []*types.Class, taskTypes []*types.TaskType, now time.Time) *codec.Envelope {
	classByID := map[uuid.UUID]*types.Class{}
	for _, cl := range classes {
		classByID[cl.ID] = cl
	}
	typeByID := map[uuid.UUID]*types.TaskType{}
	for _, tt := range taskTypes {
		typeByID[tt.ID] = tt
	}

	env := &codec.Envelope{
		Version:    codec.EnvelopeVersion,
		ExportDate: now.UTC(),
		UserID:     userID.String(),
		Tasks:      []codec.TaskRecord{},
		Classes:    []codec.ClassRecord{},
		TaskTypes:  []codec.TaskTypeRecord{},
	}
	for _, t := range tasks {
		rec := codec.TaskRecord{
			Title:       t.Title,
			Description: t.Description,
			Priority:    t.Priority,
			Completed:   t.Completed,
			Grade:       t.Grade,
			Points:      t.Points,
			TotalPoints: t.TotalPoints,
		}
		if t.DueDate != nil {
			rec.DueDate = t.DueDate.Format("2006-01-02")
		}
		if t.ClassID != nil {
			if cl, ok := classByID[*t.ClassID]; ok {
				rec.Class = cl.Name
			}
		}
		if t.TaskTypeID != nil {
			if tt, ok := typeByID[*t.TaskTypeID]; ok {
				rec.TaskType = tt.Name
			}
		}
		env.Tasks = append(env.Tasks, rec)
	}
	for _, cl := range classes {
		env.Classes = append(env.Classes, codec.ClassRecord{
			Name:       cl.Name,
			CourseCode: cl.CourseCode,
			Color:      cl.Color,
		})
	}
	for _, tt := range taskTypes {
		env.TaskTypes = append(env.TaskTypes, codec.TaskTypeRecord{
			Name:  tt.Name,
			Color: tt.Color,
		})
	}
	return env
}

// TermDateRange returns the inclusive date bounds for an academic term.
// Winter break spans the year boundary, so it ends in January of the
// following year.
func TermDateRange(term string, year int) (time.Time, time.Time, error) {
	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	switch strings.ToLower(strings.TrimSpace(term)) {
	case "spring":
		return day(year, time.January, 1), day(year, time.May, 31), nil
	case "summer":
		return day(year, time.June, 1), day(year, time.July, 31), nil
	case "fall":
		return day(year, time.August, 1), day(year, time.December, 31), nil
	case "winter":
		return day(year, time.December, 1), day(year+1, time.January, 31), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("%w: unknown term %q", apperrors.ErrInvalidArgument, term)
	}
}

func exportFilename(kind, term string, year int, now time.Time, ext string) string {
	var b strings.Builder
	b.WriteString("schedulebud_")
	b.WriteString(kind)
	if term != "" {
		fmt.Fprintf(&b, "_%s_%d", strings.ToLower(term), year)
	}
	fmt.Fprintf(&b, "_%s.%s", now.Format("2006-01-02"), ext)
	return b.String()
}

func (s *exportService) maybeArchive(ctx context.Context, userID uuid.UUID, artifact *ExportArtifact, enabled bool) {
	if !enabled || s.archiver == nil {
		return
	}
	objectPath := fmt.Sprintf("exports/%s/%s", userID, artifact.Filename)
	if _, err := s.archiver.UploadBytes(ctx, objectPath, artifact.Data, artifact.ContentType); err != nil {
		// archival is best effort, the download still succeeds
		s.log.Warn("failed to archive export artifact", "object_path", objectPath, "error", err)
	}
}
