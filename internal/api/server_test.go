package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/newsloom/newsloom/internal/ingest"
	"github.com/newsloom/newsloom/internal/model"
	"github.com/newsloom/newsloom/internal/query"
	"github.com/newsloom/newsloom/internal/search"
)

type mockIngest struct {
	mock.Mock
}

func (m *mockIngest) CreateArticles(ctx context.Context, inputs []ingest.ArticleInput) ([]model.Article, int, error) {
	args := m.Called(ctx, inputs)
	articles, _ := args.Get(0).([]model.Article)
	return articles, args.Int(1), args.Error(2)
}

func (m *mockIngest) BulkCreateArticlesWithComments(ctx context.Context, records []model.ArticleRecord) (ingest.Result, error) {
	args := m.Called(ctx, records)
	res, _ := args.Get(0).(ingest.Result)
	return res, args.Error(1)
}

type mockQuery struct {
	mock.Mock
}

func (m *mockQuery) FindAll(ctx context.Context, f query.Filter) (query.Page, error) {
	args := m.Called(ctx, f)
	page, _ := args.Get(0).(query.Page)
	return page, args.Error(1)
}

func (m *mockQuery) RecentArticles(ctx context.Context) (query.Page, error) {
	args := m.Called(ctx)
	page, _ := args.Get(0).(query.Page)
	return page, args.Error(1)
}

type mockSearcher struct {
	mock.Mock
}

func (m *mockSearcher) SearchByTitle(ctx context.Context, word string) ([]search.Document, error) {
	args := m.Called(ctx, word)
	docs, _ := args.Get(0).([]search.Document)
	return docs, args.Error(1)
}

type mockCrawler struct {
	mock.Mock
}

func (m *mockCrawler) ExtractArticles(ctx context.Context) ([]model.ArticleRecord, error) {
	args := m.Called(ctx)
	records, _ := args.Get(0).([]model.ArticleRecord)
	return records, args.Error(1)
}

type fixture struct {
	ingest  *mockIngest
	query   *mockQuery
	search  *mockSearcher
	crawler *mockCrawler
	server  *Server
}

func newFixture(ready func(ctx context.Context) error) *fixture {
	f := &fixture{
		ingest:  &mockIngest{},
		query:   &mockQuery{},
		search:  &mockSearcher{},
		crawler: &mockCrawler{},
	}
	f.server = New(Config{RequestTimeout: 5 * time.Second}, zap.NewNop(),
		f.ingest, f.query, f.search, f.crawler, ready)
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	rec := f.do(http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReportsProbeFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(func(context.Context) error { return errors.New("pool closed") })
	rec := f.do(http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListArticlesParsesQuery(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.query.On("FindAll", mock.Anything, query.Filter{
		Search:  "go",
		Source:  "example.com",
		Page:    2,
		Limit:   5,
		SortAsc: true,
	}).Return(query.Page{
		Items: []model.Article{{ID: 1, Title: "A"}},
		Total: 6, Page: 2, Limit: 5, TotalPages: 2,
	}, nil).Once()

	rec := f.do(http.MethodGet, "/v1/articles?search=go&source=example.com&page=2&limit=5&sort=asc", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page query.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 6, page.Total)
	require.Len(t, page.Items, 1)

	f.query.AssertExpectations(t)
}

func TestListArticlesSortIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.query.On("FindAll", mock.Anything, query.Filter{SortAsc: true}).
		Return(query.Page{}, nil).Once()
	f.query.On("FindAll", mock.Anything, query.Filter{SortAsc: false}).
		Return(query.Page{}, nil).Twice()

	rec := f.do(http.MethodGet, "/v1/articles?sort=ASC", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/articles?sort=DESC", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/v1/articles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	f.query.AssertExpectations(t)
}

func TestRecentArticles(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.query.On("RecentArticles", mock.Anything).
		Return(query.Page{
			Items: []model.Article{{ID: 3, Title: "Recent"}},
			Total: 1, Page: 1, Limit: 30, TotalPages: 1,
		}, nil).Once()

	rec := f.do(http.MethodGet, "/v1/articles/recent", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var page query.Page
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Items, 1)
	require.Equal(t, "Recent", page.Items[0].Title)
	require.Equal(t, 30, page.Limit)
}

func TestCreateArticles(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.ingest.On("CreateArticles", mock.Anything, []ingest.ArticleInput{
		{Title: "A", URL: "https://example.com/a"},
	}).Return([]model.Article{{ID: 1, Title: "A"}}, 1, nil).Once()

	rec := f.do(http.MethodPost, "/v1/articles",
		`[{"title":"A","url":"https://example.com/a"}]`)
	require.Equal(t, http.StatusCreated, rec.Code)

	f.ingest.AssertExpectations(t)
}

func TestCreateArticlesRejectsInvalidBatch(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.ingest.On("CreateArticles", mock.Anything, mock.Anything).
		Return(nil, 0, ingest.ErrValidation).Once()

	rec := f.do(http.MethodPost, "/v1/articles", `[{"title":"","url":""}]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateArticlesRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/v1/articles", `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.ingest.AssertNotCalled(t, "CreateArticles", mock.Anything, mock.Anything)
}

func TestSearchArticles(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.search.On("SearchByTitle", mock.Anything, "rust").
		Return([]search.Document{{ID: "1", Title: "Rust 2.0"}}, nil).Once()

	rec := f.do(http.MethodPost, "/v1/articles/search", `{"word":"rust"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var docs []search.Document
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
}

func TestSearchArticlesRequiresWord(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	rec := f.do(http.MethodPost, "/v1/articles/search", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	f.search.AssertNotCalled(t, "SearchByTitle", mock.Anything, mock.Anything)
}

func TestScrapeRunsInBackgroundAndRejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	done := make(chan struct{})

	f := newFixture(nil)
	f.crawler.On("ExtractArticles", mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return([]model.ArticleRecord{{Title: "A", URL: "https://example.com/a"}}, nil).Once()
	f.ingest.On("BulkCreateArticlesWithComments", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { close(done) }).
		Return(ingest.Result{ArticlesCreated: 1}, nil).Once()

	rec := f.do(http.MethodPost, "/v1/scrape", "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	// The first run is still holding the slot.
	rec = f.do(http.MethodPost, "/v1/scrape", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("background scrape never reached ingestion")
	}
	f.crawler.AssertExpectations(t)
	f.ingest.AssertExpectations(t)
}
