package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type termRepository interface {
	List(ctx context.Context, filter models.TermFilter) ([]models.Term, int, error)
}

type termCatalogLoader interface {
	LoadTerm(ctx context.Context, token, id string) (*models.CatalogSnapshot, error)
}

// TermList is a cached page of terms.
type TermList struct {
	Terms      []models.Term     `json:"terms"`
	Pagination models.Pagination `json:"pagination"`
}

// TermService serves the read-only catalog browse endpoints.
type TermService struct {
	repo    termRepository
	catalog termCatalogLoader
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewTermService creates a new term service instance.
func NewTermService(repo termRepository, catalog termCatalogLoader, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *TermService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TermService{repo: repo, catalog: catalog, cache: cache, metrics: metrics, logger: logger}
}

// List returns paginated terms. Callers without staff rights only see published terms.
// The boolean reports a cache hit.
func (s *TermService) List(ctx context.Context, caller Caller, filter models.TermFilter) (*TermList, bool, error) {
	filter.PublishedOnly = filter.PublishedOnly || !caller.Role.CanSeeUnpublished()
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	visibility := "all"
	if filter.PublishedOnly {
		visibility = "published"
	}
	key := CacheKey("terms", visibility, fmt.Sprint(filter.Page), fmt.Sprint(filter.PageSize))

	var cached TermList
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	terms, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list terms")
	}
	if terms == nil {
		terms = []models.Term{}
	}
	list := &TermList{
		Terms:      terms,
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total},
	}
	s.cache.Set(ctx, key, list, 0)
	return list, false, nil
}

// Catalog returns the classes, courses, components and sessions of one term.
func (s *TermService) Catalog(ctx context.Context, caller Caller, token string) (*models.TermCatalog, bool, error) {
	if token == "" {
		return nil, false, appErrors.Invalid("token", "term token is required")
	}

	key := CacheKey("catalog", "term", token)
	var view models.TermCatalog
	hit := s.cache.Get(ctx, key, &view)
	if !hit {
		start := time.Now()
		snap, err := s.catalog.LoadTerm(ctx, token, "")
		s.metrics.ObserveCatalogLoad("browse", time.Since(start))
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load term catalog")
		}
		if len(snap.Terms) == 0 {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "term not found")
		}
		view = buildTermCatalog(snap)
		s.cache.Set(ctx, key, view, 0)
	}

	if !view.Term.Published && !caller.Role.CanSeeUnpublished() {
		s.logger.Warn("term catalog rejected", zap.String("token", token), zap.String("user_id", caller.UserID), zap.String("reason", "term_unpublished"))
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "term not found")
	}
	return &view, hit, nil
}

func buildTermCatalog(snap *models.CatalogSnapshot) models.TermCatalog {
	sessions := make(map[string][]models.Session)
	for _, session := range snap.Sessions {
		sessions[session.ComponentID] = append(sessions[session.ComponentID], session)
	}
	components := make(map[string][]models.ComponentCatalogEntry)
	for _, component := range snap.Components {
		entry := models.ComponentCatalogEntry{Component: component, Sessions: sessions[component.ID]}
		if entry.Sessions == nil {
			entry.Sessions = []models.Session{}
		}
		components[component.CourseID] = append(components[component.CourseID], entry)
	}
	courses := make(map[string][]models.CourseCatalogEntry)
	for _, course := range snap.Courses {
		entry := models.CourseCatalogEntry{Course: course, Components: components[course.ID]}
		if entry.Components == nil {
			entry.Components = []models.ComponentCatalogEntry{}
		}
		courses[course.ClassID] = append(courses[course.ClassID], entry)
	}

	view := models.TermCatalog{Term: snap.Terms[0], Classes: make([]models.ClassCatalogEntry, 0, len(snap.Classes))}
	for _, class := range snap.Classes {
		entry := models.ClassCatalogEntry{ClassSection: class, Courses: courses[class.ID]}
		if entry.Courses == nil {
			entry.Courses = []models.CourseCatalogEntry{}
		}
		view.Classes = append(view.Classes, entry)
	}
	return view
}
