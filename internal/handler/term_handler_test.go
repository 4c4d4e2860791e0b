package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/service"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

type termBrowserMock struct {
	filter models.TermFilter
	token  string
	hit    bool
	err    error
}

func (m *termBrowserMock) List(_ context.Context, _ service.Caller, filter models.TermFilter) (*service.TermList, bool, error) {
	m.filter = filter
	if m.err != nil {
		return nil, false, m.err
	}
	return &service.TermList{
		Terms:      []models.Term{{ID: "term-1", Token: "fall-24", Published: true}},
		Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1},
	}, m.hit, nil
}

func (m *termBrowserMock) Catalog(_ context.Context, _ service.Caller, token string) (*models.TermCatalog, bool, error) {
	m.token = token
	if m.err != nil {
		return nil, false, m.err
	}
	return &models.TermCatalog{Term: models.Term{ID: "term-1", Token: token}, Classes: []models.ClassCatalogEntry{}}, m.hit, nil
}

func newTermRouter(svc termBrowser) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewTermHandler(svc)
	router := gin.New()
	router.Use(internalmiddleware.WithResponseMeta())
	router.GET("/terms", handler.List)
	router.GET("/terms/:token/catalog", handler.Catalog)
	return router
}

func TestTermListPaginationAndCacheMeta(t *testing.T) {
	svc := &termBrowserMock{hit: true}
	router := newTermRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/terms?page=2&page_size=5", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.filter.Page)
	assert.Equal(t, 5, svc.filter.PageSize)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	var body struct {
		Data       []models.Term          `json:"data"`
		Pagination models.Pagination      `json:"pagination"`
		Meta       map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "fall-24", body.Data[0].Token)
	assert.Equal(t, 1, body.Pagination.TotalCount)
	assert.Equal(t, true, body.Meta["cache_hit"])
}

func TestTermListIgnoresMalformedPaging(t *testing.T) {
	svc := &termBrowserMock{}
	router := newTermRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/terms?page=abc", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, svc.filter.Page)
	assert.Equal(t, 20, svc.filter.PageSize)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
}

func TestTermCatalogErrors(t *testing.T) {
	router := newTermRouter(&termBrowserMock{err: appErrors.Clone(appErrors.ErrNotFound, "term not found")})
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/terms/spring-25/catalog", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	router = newTermRouter(&termBrowserMock{err: errors.New("db down")})
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/terms/spring-25/catalog", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestTermCatalogSuccess(t *testing.T) {
	svc := &termBrowserMock{}
	router := newTermRouter(svc)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/terms/fall-24/catalog", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "fall-24", svc.token)
	assert.Contains(t, w.Body.String(), `"token":"fall-24"`)
}
