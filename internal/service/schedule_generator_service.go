package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/events"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

// Caller identifies who is asking for a schedule.
type Caller struct {
	UserID string
	Role   models.UserRole
}

type catalogProvider interface {
	LoadTerm(ctx context.Context, token, id string) (*models.CatalogSnapshot, error)
	LoadCourses(ctx context.Context, courseIDs []string) (*models.CatalogSnapshot, error)
}

type eventQueue interface {
	TryEnqueue(job jobs.Job) error
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	MaxCandidates     int
	SearchTimeout     time.Duration
	Workers           int
	ParallelThreshold int
}

// ScheduleGeneratorService loads the catalog, resolves constraints and runs the search engine.
type ScheduleGeneratorService struct {
	catalog   catalogProvider
	engine    *scheduler.Engine
	validator *validator.Validate
	metrics   *MetricsService
	events    eventQueue
	logger    *zap.Logger
}

// NewScheduleGeneratorService wires generator dependencies.
func NewScheduleGeneratorService(
	catalog catalogProvider,
	validate *validator.Validate,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := scheduler.NewEngine(scheduler.Options{
		MaxCandidates:     cfg.MaxCandidates,
		Workers:           cfg.Workers,
		ParallelThreshold: cfg.ParallelThreshold,
	}, cfg.SearchTimeout)
	return &ScheduleGeneratorService{
		catalog:   catalog,
		engine:    engine,
		validator: validate,
		metrics:   metrics,
		logger:    logger,
	}
}

// WithEvents makes the service enqueue a summary event after every generation.
func (s *ScheduleGeneratorService) WithEvents(queue eventQueue) *ScheduleGeneratorService {
	s.events = queue
	return s
}

// generation is one engine run together with what produced it.
type generation struct {
	mode     string
	result   *scheduler.Result
	response dto.GenerateScheduleResponse
	terms    []models.Term
	termID   string
}

// Generate builds every conflict-free schedule for a class within a term.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, caller Caller, req dto.GenerateScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	gen, err := s.generateClass(ctx, caller, req)
	if err != nil {
		return nil, s.fail(dto.ModeClass, caller, err)
	}
	s.record(caller, gen)
	return &gen.response, nil
}

// GenerateOther builds schedules over a free selection of courses from published terms.
func (s *ScheduleGeneratorService) GenerateOther(ctx context.Context, caller Caller, req dto.GenerateOtherScheduleRequest) (*dto.GenerateScheduleResponse, error) {
	gen, err := s.generateOther(ctx, caller, req)
	if err != nil {
		return nil, s.fail(dto.ModeOther, caller, err)
	}
	s.record(caller, gen)
	return &gen.response, nil
}

func (s *ScheduleGeneratorService) generateClass(ctx context.Context, caller Caller, req dto.GenerateScheduleRequest) (*generation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule generation payload")
	}
	constraints := scheduler.Constraints{
		ExcludedDays:          req.ExcludedDays,
		ElectiveCourseIDs:     req.ElectiveCourseIDs,
		ExcludedCoreCourseIDs: req.ExcludedCoreCourseIDs,
	}
	if _, err := constraints.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	snap, err := s.catalog.LoadTerm(ctx, req.TermToken, req.TermID)
	s.metrics.ObserveCatalogLoad("term", time.Since(start))
	if err != nil {
		return nil, loadError(err)
	}

	catalog := scheduler.NewCatalog(snap)
	ref := scheduler.TermRef{Token: req.TermToken, ID: req.TermID}
	plan, err := catalog.BuildClassPlan(scheduler.ClassRequest{
		Term:             ref,
		ClassID:          req.ClassID,
		Constraints:      constraints,
		AllowUnpublished: caller.Role.CanSeeUnpublished(),
	})
	if err != nil {
		return nil, err
	}

	gen, err := s.run(ctx, dto.ModeClass, catalog, plan)
	if err != nil {
		return nil, err
	}
	gen.terms = snap.Terms
	if term, ok := catalog.Term(ref); ok {
		gen.termID = term.ID
	}
	return gen, nil
}

func (s *ScheduleGeneratorService) generateOther(ctx context.Context, caller Caller, req dto.GenerateOtherScheduleRequest) (*generation, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid schedule generation payload")
	}
	if _, err := scheduler.ParseDaySet(req.ExcludedDays); err != nil {
		return nil, err
	}

	start := time.Now()
	snap, err := s.catalog.LoadCourses(ctx, req.CourseIDs)
	s.metrics.ObserveCatalogLoad("courses", time.Since(start))
	if err != nil {
		return nil, loadError(err)
	}

	catalog := scheduler.NewCatalog(snap)
	plan, err := catalog.BuildCourseSetPlan(scheduler.CourseSetRequest{
		CourseIDs:        req.CourseIDs,
		ExcludedDays:     req.ExcludedDays,
		AllowUnpublished: caller.Role.CanSeeUnpublished(),
	})
	if err != nil {
		return nil, err
	}

	gen, err := s.run(ctx, dto.ModeOther, catalog, plan)
	if err != nil {
		return nil, err
	}
	gen.terms = snap.Terms
	return gen, nil
}

func (s *ScheduleGeneratorService) run(ctx context.Context, mode string, catalog *scheduler.Catalog, plan *scheduler.Plan) (*generation, error) {
	result, err := s.engine.Run(ctx, catalog, plan)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, appErrors.WithCause(appErrors.ErrCanceled, err)
		}
		return nil, err
	}
	return &generation{
		mode:     mode,
		result:   result,
		response: result.Response(uuid.NewString(), mode),
	}, nil
}

func (s *ScheduleGeneratorService) record(caller Caller, gen *generation) {
	resp := gen.response
	s.metrics.ObserveGeneration(gen.mode, string(resp.Status), resp.Count, resp.Stats.NodesVisited, gen.result.Duration)
	s.logger.Info("schedule generated",
		zap.String("request_id", resp.RequestID),
		zap.String("mode", gen.mode),
		zap.String("status", string(resp.Status)),
		zap.Int("count", resp.Count),
		zap.Int("components", resp.Stats.Components),
		zap.Int64("nodes", resp.Stats.NodesVisited),
		zap.Int("workers", resp.Stats.Workers),
		zap.Duration("duration", gen.result.Duration),
	)
	s.publish(caller, gen)
}

func (s *ScheduleGeneratorService) publish(caller Caller, gen *generation) {
	if s.events == nil {
		return
	}
	resp := gen.response
	event := events.ScheduleGenerated{
		ID:         uuid.NewString(),
		Type:       events.TypeScheduleGenerated,
		RequestID:  resp.RequestID,
		Mode:       gen.mode,
		Status:     string(resp.Status),
		TermID:     gen.termID,
		UserID:     caller.UserID,
		Candidates: resp.Count,
		Truncated:  resp.Truncated,
		Components: resp.Stats.Components,
		DurationMs: resp.Stats.DurationMs,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.events.TryEnqueue(jobs.Job{ID: event.ID, Type: event.Type, Payload: event}); err != nil {
		s.metrics.ObserveEvent("dropped")
		s.logger.Warn("schedule event not queued", zap.String("request_id", resp.RequestID), zap.Error(err))
	}
}

func (s *ScheduleGeneratorService) fail(mode string, caller Caller, err error) error {
	appErr := appErrors.FromError(err)
	s.metrics.ObserveGenerationError(mode, appErr.Code)

	fields := []zap.Field{zap.String("mode", mode), zap.String("user_id", caller.UserID), zap.String("code", appErr.Code)}
	if appErr.Field != "" {
		fields = append(fields, zap.String("field", appErr.Field))
	}
	switch {
	case errors.Is(err, scheduler.ErrUnpublished):
		s.logger.Warn("schedule generation rejected", append(fields, zap.String("reason", "term_unpublished"))...)
	case appErr.Status >= 500:
		s.logger.Error("schedule generation failed", append(fields, zap.Error(err))...)
	default:
		s.logger.Debug("schedule generation rejected", append(fields, zap.Error(err))...)
	}
	return err
}

func loadError(err error) error {
	if errors.Is(err, context.Canceled) {
		return appErrors.WithCause(appErrors.ErrCanceled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.WithCause(appErrors.ErrSearchTimeout, err)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load catalog")
}
