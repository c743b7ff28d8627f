package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/schedulebud/backend/internal/codec"
	"github.com/schedulebud/backend/internal/data/repos"
	types "github.com/schedulebud/backend/internal/domain"
	"github.com/schedulebud/backend/internal/pkg/dbctx"
	"github.com/schedulebud/backend/internal/pkg/logger"
)

type ConflictPolicy string

const (
	ConflictPolicySkip      ConflictPolicy = "skip"
	ConflictPolicyOverwrite ConflictPolicy = "overwrite"
	ConflictPolicyMerge     ConflictPolicy = "merge"
)

type ImportOptions struct {
	Format         string
	Preview        bool
	ConflictPolicy ConflictPolicy
	SkipDuplicates bool
}

type ImportProgress struct {
	Step      string `json:"step"`
	Percent   int    `json:"percent"`
	Message   string `json:"message"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
}

const (
	ImportStepReading    = "reading"
	ImportStepDecoding   = "decoding"
	ImportStepValidating = "validating"
	ImportStepConflicts  = "conflict-detection"
	ImportStepClasses    = "importing-classes"
	ImportStepTaskTypes  = "importing-task-types"
	ImportStepTasks      = "importing-tasks"
	ImportStepComplete   = "complete"
)

const (
	ErrorKindFormat     = "format"
	ErrorKindValidation = "validation"
	ErrorKindDatabase   = "database"
	ErrorKindConflict   = "conflict"

	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

type ImportError struct {
	Kind     string `json:"kind"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Item     string `json:"item,omitempty"`
}

// ImportConflict pairs the colliding names with full record snapshots
// so a preview consumer can show exactly what a merge would touch.
type ImportConflict struct {
	Type                string `json:"type"` // class | taskType | task
	Field               string `json:"field"`
	Existing            string `json:"existing"`
	Imported            string `json:"imported"`
	ExistingRecord      any    `json:"existing_record,omitempty"`
	ImportedRecord      any    `json:"imported_record,omitempty"`
	SuggestedResolution string `json:"suggested_resolution"`
}

type ImportSummary struct {
	Success bool `json:"success"`
	Preview bool `json:"preview"`

	ClassesImported   int `json:"classes_imported"`
	ClassesSkipped    int `json:"classes_skipped"`
	TaskTypesImported int `json:"task_types_imported"`
	TaskTypesSkipped  int `json:"task_types_skipped"`
	TasksImported     int `json:"tasks_imported"`
	TasksSkipped      int `json:"tasks_skipped"`

	Conflicts []ImportConflict `json:"conflicts,omitempty"`
	Errors    []ImportError    `json:"errors,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
}

type ProgressFunc func(ImportProgress)

// ImportService decodes an uploaded file, reconciles it against the
// user's existing planner data, and writes accepted records in the
// fixed order classes -> task types -> tasks. Tasks reference the other
// two by id, so the ordering is a correctness requirement.
type ImportService interface {
	Run(ctx context.Context, userID uuid.UUID, raw []byte, opts ImportOptions, onProgress ProgressFunc) (*ImportSummary, error)
}

type importService struct {
	db           *gorm.DB
	log          *logger.Logger
	classRepo    repos.ClassRepo
	taskTypeRepo repos.TaskTypeRepo
	taskRepo     repos.TaskRepo
}

func NewImportService(
	db *gorm.DB,
	baseLog *logger.Logger,
	classRepo repos.ClassRepo,
	taskTypeRepo repos.TaskTypeRepo,
	taskRepo repos.TaskRepo,
) ImportService {
	return &importService{
		db:           db,
		log:          baseLog.With("service", "ImportService"),
		classRepo:    classRepo,
		taskTypeRepo: taskTypeRepo,
		taskRepo:     taskRepo,
	}
}

func (s *importService) Run(ctx context.Context, userID uuid.UUID, raw []byte, opts ImportOptions, onProgress ProgressFunc) (*ImportSummary, error) {
	if onProgress == nil {
		onProgress = func(ImportProgress) {}
	}
	if opts.ConflictPolicy == "" {
		opts.ConflictPolicy = ConflictPolicyMerge
	}
	summary := &ImportSummary{Preview: opts.Preview}

	onProgress(ImportProgress{Step: ImportStepReading, Percent: 5, Message: "Reading file"})
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty import file")
	}

	c, err := codec.ForFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	decoded, err := c.Decode(raw)
	if err != nil {
		// unrecoverable format errors abort the run
		return nil, err
	}
	summary.Warnings = append(summary.Warnings, decoded.Warnings...)
	onProgress(ImportProgress{Step: ImportStepDecoding, Percent: 15, Message: fmt.Sprintf("Decoded %d tasks", len(decoded.Tasks))})

	validTasks := s.validate(decoded, summary)
	onProgress(ImportProgress{Step: ImportStepValidating, Percent: 25, Message: fmt.Sprintf("%d valid, %d rejected", len(validTasks), len(decoded.Tasks)-len(validTasks))})

	dbc := dbctx.Context{Ctx: ctx}
	existingClasses, err := s.classRepo.GetByUserID(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("load existing classes: %w", err)
	}
	existingTypes, err := s.taskTypeRepo.GetByUserID(dbc, userID)
	if err != nil {
		return nil, fmt.Errorf("load existing task types: %w", err)
	}
	var existingTasks []*types.Task
	if opts.SkipDuplicates {
		existingTasks, err = s.taskRepo.GetByUserID(dbc, userID)
		if err != nil {
			return nil, fmt.Errorf("load existing tasks: %w", err)
		}
	}

	s.detectConflicts(decoded, validTasks, existingClasses, existingTypes, existingTasks, summary)
	onProgress(ImportProgress{Step: ImportStepConflicts, Percent: 35, Message: fmt.Sprintf("%d conflicts detected", len(summary.Conflicts))})

	if opts.Preview {
		// preview reports everything and writes nothing
		summary.Success = true
		onProgress(ImportProgress{Step: ImportStepComplete, Percent: 100, Message: "Preview complete"})
		return summary, nil
	}

	if hasHighSeverity(summary.Errors) {
		// fail fast before any write rather than partially mutating
		summary.Success = false
		return summary, nil
	}

	classIDs := s.importClasses(ctx, userID, decoded, validTasks, existingClasses, opts, summary, onProgress)
	typeIDs := s.importTaskTypes(ctx, userID, decoded, validTasks, existingTypes, opts, summary, onProgress)
	s.importTasks(ctx, userID, validTasks, classIDs, typeIDs, existingTasks, opts, summary, onProgress)

	summary.Success = true
	onProgress(ImportProgress{Step: ImportStepComplete, Percent: 100, Message: "Import complete"})
	return summary, nil
}

func (s *importService) validate(decoded *codec.Decoded, summary *ImportSummary) []codec.TaskRecord {
	valid := make([]codec.TaskRecord, 0, len(decoded.Tasks))
	for i, rec := range decoded.Tasks {
		if strings.TrimSpace(rec.Title) == "" {
			summary.Errors = append(summary.Errors, ImportError{
				Kind:     ErrorKindValidation,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("record %d is missing a title", i+1),
			})
			continue
		}
		if strings.TrimSpace(rec.DueDate) != "" {
			if _, ok := codec.ParseDueDate(rec.DueDate); !ok {
				summary.Errors = append(summary.Errors, ImportError{
					Kind:     ErrorKindValidation,
					Severity: SeverityHigh,
					Message:  fmt.Sprintf("record %d has an unparsable due date %q", i+1, rec.DueDate),
					Item:     rec.Title,
				})
				continue
			}
		}
		valid = append(valid, rec)
	}
	return valid
}

// detectConflicts reports collisions; it never decides. The applied
// resolution is whatever policy the caller configured.
func (s *importService) detectConflicts(
	decoded *codec.Decoded,
	validTasks []codec.TaskRecord,
	existingClasses []*types.Class,
	existingTypes []*types.TaskType,
	existingTasks []*types.Task,
	summary *ImportSummary,
) {
	classByKey := map[string]*types.Class{}
	for _, cl := range existingClasses {
		classByKey[nameKey(cl.Name)] = cl
	}
	typeByKey := map[string]*types.TaskType{}
	for _, tt := range existingTypes {
		typeByKey[nameKey(tt.Name)] = tt
	}
	importedClassRecs := map[string]codec.ClassRecord{}
	for _, rec := range decoded.Classes {
		importedClassRecs[nameKey(rec.Name)] = rec
	}
	importedTypeRecs := map[string]codec.TaskTypeRecord{}
	for _, rec := range decoded.TaskTypes {
		importedTypeRecs[nameKey(rec.Name)] = rec
	}

	seen := map[string]bool{}
	for _, name := range importedClassNames(decoded, validTasks) {
		key := nameKey(name)
		if seen["class:"+key] {
			continue
		}
		seen["class:"+key] = true
		if existing, ok := classByKey[key]; ok {
			importedRec, hasRec := importedClassRecs[key]
			if !hasRec {
				importedRec = codec.ClassRecord{Name: name}
			}
			summary.Conflicts = append(summary.Conflicts, ImportConflict{
				Type:                "class",
				Field:               "name",
				Existing:            existing.Name,
				Imported:            name,
				ExistingRecord:      classSnapshot(existing),
				ImportedRecord:      importedRec,
				SuggestedResolution: string(ConflictPolicyMerge),
			})
		}
	}
	for _, name := range importedTypeNames(decoded, validTasks) {
		key := nameKey(name)
		if seen["type:"+key] {
			continue
		}
		seen["type:"+key] = true
		if existing, ok := typeByKey[key]; ok {
			importedRec, hasRec := importedTypeRecs[key]
			if !hasRec {
				importedRec = codec.TaskTypeRecord{Name: name}
			}
			summary.Conflicts = append(summary.Conflicts, ImportConflict{
				Type:                "taskType",
				Field:               "name",
				Existing:            existing.Name,
				Imported:            name,
				ExistingRecord:      typeSnapshot(existing),
				ImportedRecord:      importedRec,
				SuggestedResolution: string(ConflictPolicyMerge),
			})
		}
	}

	if len(existingTasks) > 0 {
		taskByKey := map[string]*types.Task{}
		for _, t := range existingTasks {
			taskByKey[taskKey(t.Title, t.DueDate)] = t
		}
		for _, rec := range validTasks {
			var due *time.Time
			if d, ok := codec.ParseDueDate(rec.DueDate); ok {
				due = &d
			}
			if existing, ok := taskByKey[taskKey(rec.Title, due)]; ok {
				summary.Conflicts = append(summary.Conflicts, ImportConflict{
					Type:                "task",
					Field:               "title",
					Existing:            existing.Title,
					Imported:            rec.Title,
					ExistingRecord:      taskSnapshot(existing),
					ImportedRecord:      rec,
					SuggestedResolution: string(ConflictPolicySkip),
				})
			}
		}
	}
}

func classSnapshot(cl *types.Class) codec.ClassRecord {
	return codec.ClassRecord{
		Name:       cl.Name,
		CourseCode: cl.CourseCode,
		Color:      cl.Color,
	}
}

func typeSnapshot(tt *types.TaskType) codec.TaskTypeRecord {
	return codec.TaskTypeRecord{
		Name:  tt.Name,
		Color: tt.Color,
	}
}

func taskSnapshot(t *types.Task) codec.TaskRecord {
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
	return rec
}

// importClasses creates missing classes and returns a name -> id map
// covering both pre-existing and newly created classes.
func (s *importService) importClasses(
	ctx context.Context,
	userID uuid.UUID,
	decoded *codec.Decoded,
	validTasks []codec.TaskRecord,
	existing []*types.Class,
	opts ImportOptions,
	summary *ImportSummary,
	onProgress ProgressFunc,
) map[string]uuid.UUID {
	byName := map[string]*types.Class{}
	ids := map[string]uuid.UUID{}
	for _, cl := range existing {
		byName[nameKey(cl.Name)] = cl
		ids[nameKey(cl.Name)] = cl.ID
	}

	imported := map[string]codec.ClassRecord{}
	var order []string
	for _, rec := range decoded.Classes {
		if strings.TrimSpace(rec.Name) == "" {
			continue
		}
		key := nameKey(rec.Name)
		if _, ok := imported[key]; !ok {
			order = append(order, key)
		}
		imported[key] = rec
	}
	for _, name := range importedClassNames(nil, validTasks) {
		key := nameKey(name)
		if _, ok := imported[key]; !ok {
			imported[key] = codec.ClassRecord{Name: name}
			order = append(order, key)
		}
	}

	total := len(order)
	for i, key := range order {
		rec := imported[key]
		onProgress(ImportProgress{
			Step:      ImportStepClasses,
			Percent:   stagePercent(40, 70, i, total),
			Message:   fmt.Sprintf("Importing class %q", rec.Name),
			Processed: i,
			Total:     total,
		})

		if current, ok := byName[key]; ok {
			switch opts.ConflictPolicy {
			case ConflictPolicyOverwrite:
				current.Name = rec.Name
				if rec.CourseCode != "" {
					current.CourseCode = rec.CourseCode
				}
				if rec.Color != "" {
					current.Color = rec.Color
				}
				if err := s.classRepo.Update(dbctx.Context{Ctx: ctx}, current); err != nil {
					s.recordItemError(summary, "class", rec.Name, err)
					summary.ClassesSkipped++
					continue
				}
				summary.ClassesImported++
			case ConflictPolicyMerge:
				changed := false
				if current.CourseCode == "" && rec.CourseCode != "" {
					current.CourseCode = rec.CourseCode
					changed = true
				}
				if current.Color == "" && rec.Color != "" {
					current.Color = rec.Color
					changed = true
				}
				if changed {
					if err := s.classRepo.Update(dbctx.Context{Ctx: ctx}, current); err != nil {
						s.recordItemError(summary, "class", rec.Name, err)
					}
				}
				summary.ClassesSkipped++
			default: // skip
				summary.ClassesSkipped++
			}
			continue
		}

		class := &types.Class{
			ID:         uuid.New(),
			UserID:     userID,
			Name:       rec.Name,
			CourseCode: rec.CourseCode,
			Color:      rec.Color,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}
		if _, err := s.classRepo.Create(dbctx.Context{Ctx: ctx}, []*types.Class{class}); err != nil {
			s.recordItemError(summary, "class", rec.Name, err)
			summary.ClassesSkipped++
			continue
		}
		byName[key] = class
		ids[key] = class.ID
		summary.ClassesImported++
	}

	onProgress(ImportProgress{Step: ImportStepClasses, Percent: 70, Message: "Classes imported", Processed: total, Total: total})
	return ids
}

func (s *importService) importTaskTypes(
	ctx context.Context,
	userID uuid.UUID,
	decoded *codec.Decoded,
	validTasks []codec.TaskRecord,
	existing []*types.TaskType,
	opts ImportOptions,
	summary *ImportSummary,
	onProgress ProgressFunc,
) map[string]uuid.UUID {
	byName := map[string]*types.TaskType{}
	ids := map[string]uuid.UUID{}
	for _, tt := range existing {
		byName[nameKey(tt.Name)] = tt
		ids[nameKey(tt.Name)] = tt.ID
	}

	imported := map[string]codec.TaskTypeRecord{}
	var order []string
	for _, rec := range decoded.TaskTypes {
		if strings.TrimSpace(rec.Name) == "" {
			continue
		}
		key := nameKey(rec.Name)
		if _, ok := imported[key]; !ok {
			order = append(order, key)
		}
		imported[key] = rec
	}
	for _, name := range importedTypeNames(nil, validTasks) {
		key := nameKey(name)
		if _, ok := imported[key]; !ok {
			imported[key] = codec.TaskTypeRecord{Name: name}
			order = append(order, key)
		}
	}

	total := len(order)
	for i, key := range order {
		rec := imported[key]
		onProgress(ImportProgress{
			Step:      ImportStepTaskTypes,
			Percent:   stagePercent(70, 90, i, total),
			Message:   fmt.Sprintf("Importing task type %q", rec.Name),
			Processed: i,
			Total:     total,
		})

		if current, ok := byName[key]; ok {
			switch opts.ConflictPolicy {
			case ConflictPolicyOverwrite:
				current.Name = rec.Name
				if rec.Color != "" {
					current.Color = rec.Color
				}
				if err := s.taskTypeRepo.Update(dbctx.Context{Ctx: ctx}, current); err != nil {
					s.recordItemError(summary, "task type", rec.Name, err)
					summary.TaskTypesSkipped++
					continue
				}
				summary.TaskTypesImported++
			case ConflictPolicyMerge:
				if current.Color == "" && rec.Color != "" {
					current.Color = rec.Color
					if err := s.taskTypeRepo.Update(dbctx.Context{Ctx: ctx}, current); err != nil {
						s.recordItemError(summary, "task type", rec.Name, err)
					}
				}
				summary.TaskTypesSkipped++
			default:
				summary.TaskTypesSkipped++
			}
			continue
		}

		taskType := &types.TaskType{
			ID:        uuid.New(),
			UserID:    userID,
			Name:      rec.Name,
			Color:     rec.Color,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		if _, err := s.taskTypeRepo.Create(dbctx.Context{Ctx: ctx}, []*types.TaskType{taskType}); err != nil {
			s.recordItemError(summary, "task type", rec.Name, err)
			summary.TaskTypesSkipped++
			continue
		}
		byName[key] = taskType
		ids[key] = taskType.ID
		summary.TaskTypesImported++
	}

	onProgress(ImportProgress{Step: ImportStepTaskTypes, Percent: 90, Message: "Task types imported", Processed: total, Total: total})
	return ids
}

func (s *importService) importTasks(
	ctx context.Context,
	userID uuid.UUID,
	validTasks []codec.TaskRecord,
	classIDs map[string]uuid.UUID,
	typeIDs map[string]uuid.UUID,
	existingTasks []*types.Task,
	opts ImportOptions,
	summary *ImportSummary,
	onProgress ProgressFunc,
) {
	duplicates := map[string]bool{}
	for _, t := range existingTasks {
		duplicates[taskKey(t.Title, t.DueDate)] = true
	}

	total := len(validTasks)
	for i, rec := range validTasks {
		onProgress(ImportProgress{
			Step:      ImportStepTasks,
			Percent:   stagePercent(90, 100, i, total),
			Message:   fmt.Sprintf("Importing task %q", rec.Title),
			Processed: i,
			Total:     total,
		})

		var due *time.Time
		if d, ok := codec.ParseDueDate(rec.DueDate); ok {
			due = &d
		}
		if opts.SkipDuplicates && duplicates[taskKey(rec.Title, due)] {
			summary.TasksSkipped++
			continue
		}

		task := &types.Task{
			ID:          uuid.New(),
			UserID:      userID,
			Title:       rec.Title,
			Description: rec.Description,
			DueDate:     due,
			Priority:    rec.Priority,
			Completed:   rec.Completed,
			Grade:       rec.Grade,
			Points:      rec.Points,
			TotalPoints: rec.TotalPoints,
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		}
		if rec.Class != "" {
			if id, ok := classIDs[nameKey(rec.Class)]; ok {
				classID := id
				task.ClassID = &classID
			}
		}
		if rec.TaskType != "" {
			if id, ok := typeIDs[nameKey(rec.TaskType)]; ok {
				typeID := id
				task.TaskTypeID = &typeID
			}
		}

		// one bad record must not abort the batch
		if _, err := s.taskRepo.Create(dbctx.Context{Ctx: ctx}, []*types.Task{task}); err != nil {
			s.recordItemError(summary, "task", rec.Title, err)
			summary.TasksSkipped++
			continue
		}
		duplicates[taskKey(rec.Title, due)] = true
		summary.TasksImported++
	}
}

func (s *importService) recordItemError(summary *ImportSummary, kind, item string, err error) {
	s.log.Warn("import write failed, continuing", "entity", kind, "item", item, "error", err)
	summary.Errors = append(summary.Errors, ImportError{
		Kind:     ErrorKindDatabase,
		Severity: SeverityMedium,
		Message:  fmt.Sprintf("failed to import %s %q: %v", kind, item, err),
		Item:     item,
	})
}

func hasHighSeverity(errs []ImportError) bool {
	for _, e := range errs {
		if e.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

func importedClassNames(decoded *codec.Decoded, tasks []codec.TaskRecord) []string {
	var names []string
	seen := map[string]bool{}
	if decoded != nil {
		for _, cl := range decoded.Classes {
			if name := strings.TrimSpace(cl.Name); name != "" && !seen[nameKey(name)] {
				seen[nameKey(name)] = true
				names = append(names, name)
			}
		}
	}
	for _, rec := range tasks {
		if name := strings.TrimSpace(rec.Class); name != "" && !seen[nameKey(name)] {
			seen[nameKey(name)] = true
			names = append(names, name)
		}
	}
	return names
}

func importedTypeNames(decoded *codec.Decoded, tasks []codec.TaskRecord) []string {
	var names []string
	seen := map[string]bool{}
	if decoded != nil {
		for _, tt := range decoded.TaskTypes {
			if name := strings.TrimSpace(tt.Name); name != "" && !seen[nameKey(name)] {
				seen[nameKey(name)] = true
				names = append(names, name)
			}
		}
	}
	for _, rec := range tasks {
		if name := strings.TrimSpace(rec.TaskType); name != "" && !seen[nameKey(name)] {
			seen[nameKey(name)] = true
			names = append(names, name)
		}
	}
	return names
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func taskKey(title string, due *time.Time) string {
	key := nameKey(title)
	if due != nil {
		key += "|" + due.Format("2006-01-02")
	}
	return key
}

// stagePercent maps record i of total onto the [start, end) slice of
// the overall progress bar; stages must stay monotonic end to end.
func stagePercent(start, end, i, total int) int {
	if total <= 0 {
		return start
	}
	p := start + (end-start)*i/total
	if p < start {
		p = start
	}
	if p >= end {
		p = end - 1
	}
	return p
}
