package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	httpadapter "github.com/couchcryptid/rni-data-etl/internal/adapter/http"
	"github.com/couchcryptid/rni-data-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/rni-data-etl/internal/domain"
	"github.com/couchcryptid/rni-data-etl/internal/observability"
	"github.com/couchcryptid/rni-data-etl/internal/pipeline"
	"github.com/couchcryptid/rni-data-etl/internal/report"
	"github.com/couchcryptid/rni-data-etl/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// --- mocks ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type memRepo struct {
	stored   []domain.Record
	writeErr error
}

func (m *memRepo) Load(_ context.Context) ([]domain.Record, error) {
	return append([]domain.Record(nil), m.stored...), nil
}

func (m *memRepo) Replace(_ context.Context, records []domain.Record) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.stored = records
	return nil
}

type failingIngester struct{ err error }

func (f failingIngester) Ingest(context.Context, []pipeline.Upload, domain.Metadata) (pipeline.Result, error) {
	return pipeline.Result{}, f.err
}

// --- helpers ---

var loadedAt = time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

const maxUpload = 1 << 20

type fixture struct {
	srv   *httpadapter.Server
	store *store.Store
	repo  *memRepo
}

func newFixture(t *testing.T, seed ...domain.Record) *fixture {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	repo := &memRepo{stored: seed}
	st := store.New(repo, clockwork.NewFakeClockAt(loadedAt), slog.Default(), metrics)
	require.NoError(t, st.Load(context.Background()))

	p := pipeline.New(xlsx.Reader{}, st, nil, slog.Default(), metrics, 0, 2)
	api := httpadapter.NewAPI(p, st, maxUpload, slog.Default())
	return &fixture{
		srv:   httpadapter.NewServer(":0", st, api, slog.Default()),
		store: st,
		repo:  repo,
	}
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func ptr[T any](v T) *T { return &v }

func reading(locality, province string, day int, clock string, v float64) domain.Record {
	d := civil.Date{Year: 2024, Month: time.March, Day: day}
	tm, err := civil.ParseTime(clock)
	if err != nil {
		panic(err)
	}
	return domain.Record{
		CCTE:       "CCTE Norte",
		Province:   province,
		Locality:   locality,
		CaseNumber: "EXP-1",
		SourceFile: strings.ToLower(locality) + ".xlsx",
		Date:       &d,
		Time:       &tm,
		Result:     ptr(v),
		Lat:        ptr(26.07),
		Lon:        ptr(65.97),
		LoadedAt:   loadedAt.Add(-time.Duration(day) * time.Hour),
	}
}

// measurementSheet builds a workbook whose header is on the first row.
func measurementSheet(t *testing.T, header []any, rows ...[]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	all := append([][]any{header}, rows...)
	for i, r := range all {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		row := r
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

type part struct {
	name string
	data []byte
}

func ingestRequest(t *testing.T, fields map[string]string, files ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		w, err := mw.CreateFormFile("files", f.name)
		require.NoError(t, err)
		_, err = w.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/ingest", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

var submission = map[string]string{
	"ccte":        "CCTE Norte",
	"province":    "Salta",
	"locality":    "Cafayate",
	"case_number": "EXP-2024-0117",
}

// --- health ---

func TestHealthzReturns200(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyzReflectsChecker(t *testing.T) {
	api := httpadapter.NewAPI(failingIngester{}, newFixture(t).store, maxUpload, slog.Default())

	ready := httpadapter.NewServer(":0", &mockReadiness{}, api, slog.Default())
	rec := httptest.NewRecorder()
	ready.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	notReady := httpadapter.NewServer(":0", &mockReadiness{err: errors.New("master store not loaded")}, api, slog.Default())
	rec = httptest.NewRecorder()
	notReady.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

// --- ingest ---

var sheetHeader = []any{"Fecha", "Hora", "Resultado con incertidumbre (V/m)", "Sonda utilizada"}

func TestIngest(t *testing.T) {
	f := newFixture(t)
	good := measurementSheet(t, sheetHeader,
		[]any{"15/03/2024", "09:00:00", "1,5", "EF-1"},
		[]any{"15/03/2024", "09:30:00", "2,5", "EF-1"},
	)
	noDate := measurementSheet(t, []any{"Hora", "Resultado", "Sonda"}, []any{"09:00", "1", "EF-1"})

	rec := f.do(t, ingestRequest(t, submission,
		part{"cafayate_01.xlsx", good},
		part{"sin_fecha.xlsx", noDate},
		part{"notes.txt", []byte("not a workbook")},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[pipeline.Result](t, rec)
	assert.Equal(t, 2, res.RecordsAdded)
	require.Len(t, res.Summaries, 1)
	assert.Equal(t, "cafayate_01.xlsx", res.Summaries[0].Filename)
	assert.Equal(t, "EXP-2024-0117", res.Summaries[0].CaseNumber)
	assert.Equal(t, ptr(2.5), res.Summaries[0].MaxResult)
	require.Len(t, res.Warnings, 2)
	assert.Equal(t, "sin_fecha.xlsx", res.Warnings[0].File)
	assert.Equal(t, domain.FieldDate, res.Warnings[0].Field)
	assert.Equal(t, "notes.txt", res.Warnings[1].File)

	records := f.store.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "Cafayate", records[0].Locality)
	assert.Equal(t, loadedAt, records[0].LoadedAt)
	assert.Len(t, f.repo.stored, 2)
}

func TestIngest_PersistFailureKeepsRecords(t *testing.T) {
	f := newFixture(t)
	f.repo.writeErr = errors.New("read-only filesystem")
	good := measurementSheet(t, sheetHeader, []any{"15/03/2024", "09:00:00", "1,5", "EF-1"})

	rec := f.do(t, ingestRequest(t, submission, part{"a.xlsx", good}))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[map[string]any](t, rec)
	assert.Contains(t, body["persist_error"], "read-only filesystem")
	assert.EqualValues(t, 1, body["records_added"])
	assert.Equal(t, 1, f.store.Len())
}

func TestIngest_BadRequests(t *testing.T) {
	f := newFixture(t)
	good := measurementSheet(t, sheetHeader, []any{"15/03/2024", "09:00:00", "1,5", "EF-1"})

	tests := []struct {
		name string
		req  *http.Request
		want int
	}{
		{
			name: "no files",
			req:  ingestRequest(t, submission),
			want: http.StatusBadRequest,
		},
		{
			name: "missing locality",
			req:  ingestRequest(t, map[string]string{"ccte": "CCTE Norte"}, part{"a.xlsx", good}),
			want: http.StatusBadRequest,
		},
		{
			name: "not multipart",
			req:  httptest.NewRequest(http.MethodPost, "/api/v1/ingest", strings.NewReader("{}")),
			want: http.StatusBadRequest,
		},
		{
			name: "too large",
			req:  ingestRequest(t, submission, part{"big.xlsx", bytes.Repeat([]byte("x"), maxUpload+1)}),
			want: http.StatusRequestEntityTooLarge,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
	assert.Zero(t, f.store.Len())
}

func TestIngest_UnexpectedError(t *testing.T) {
	st := newFixture(t).store
	api := httpadapter.NewAPI(failingIngester{err: context.Canceled}, st, maxUpload, slog.Default())
	srv := httpadapter.NewServer(":0", st, api, slog.Default())

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, ingestRequest(t, submission, part{"a.xlsx", []byte("x")}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

// --- localities ---

func TestListLocalities(t *testing.T) {
	f := newFixture(t,
		reading("Tilcara", "Jujuy", 2, "10:00:00", 1),
		reading("Cafayate", "Salta", 1, "09:00:00", 2),
		reading("Cafayate", "Salta", 3, "09:00:00", 3),
	)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/localities", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]struct {
		Locality     string    `json:"locality"`
		LastModified time.Time `json:"last_modified"`
	}](t, rec)
	require.Len(t, got, 2)
	assert.Equal(t, "Cafayate", got[0].Locality)
	assert.True(t, got[0].LastModified.Equal(loadedAt.Add(-time.Hour)))
	assert.Equal(t, "Tilcara", got[1].Locality)
}

func TestDeleteLocality(t *testing.T) {
	f := newFixture(t,
		reading("Cafayate", "Salta", 1, "09:00:00", 2),
		reading("San Antonio de los Cobres", "Salta", 1, "10:00:00", 3),
		reading("Cafayate", "Salta", 2, "09:00:00", 4),
	)

	rec := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/localities/Cafayate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["affected"])
	assert.Equal(t, []string{"San Antonio de los Cobres"}, f.store.Localities())

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/localities/San%20Antonio%20de%20los%20Cobres", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.repo.stored)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/localities/Cafayate", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, body["affected"])
	assert.Equal(t, "Cafayate", body["locality"])
	assert.NotContains(t, body, "error")
}

func TestEditLocality(t *testing.T) {
	f := newFixture(t,
		reading("Cafayte", "Salta", 1, "09:00:00", 2),
		reading("Cachi", "Salta", 1, "10:00:00", 3),
	)

	body := `{"ccte":"CCTE Norte","province":"Salta","locality":" Cafayate ","case_number":"EXP-9"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/localities/Cafayte", strings.NewReader(body))
	rec := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	records := f.store.Records()
	assert.Equal(t, "Cafayate", records[0].Locality)
	assert.Equal(t, "EXP-9", records[0].CaseNumber)
	assert.Equal(t, loadedAt, records[0].LoadedAt)
	assert.Equal(t, "Cachi", records[1].Locality)
}

func TestEditLocality_Errors(t *testing.T) {
	f := newFixture(t, reading("Cachi", "Salta", 1, "10:00:00", 3))

	tests := []struct {
		name, path, body string
		want             int
	}{
		{"malformed body", "/api/v1/localities/Cachi", `{"locality":`, http.StatusBadRequest},
		{"unknown field", "/api/v1/localities/Cachi", `{"locality":"X","town":"Y"}`, http.StatusBadRequest},
		{"blank locality", "/api/v1/localities/Cachi", `{"locality":"  "}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, httptest.NewRequest(http.MethodPut, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, []string{"Cachi"}, f.store.Localities())
}

func TestEditLocality_NoMatchIsNoOp(t *testing.T) {
	f := newFixture(t, reading("Cachi", "Salta", 1, "10:00:00", 3))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/localities/Molinos", strings.NewReader(`{"locality":"Seclantás"}`))
	rec := f.do(t, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["affected"])
	assert.Equal(t, []string{"Cachi"}, f.store.Localities())
	assert.Len(t, f.repo.stored, 1)
}

func TestDeleteLocality_PersistFailure(t *testing.T) {
	f := newFixture(t, reading("Cachi", "Salta", 1, "10:00:00", 3))
	f.repo.writeErr = errors.New("disk full")

	rec := f.do(t, httptest.NewRequest(http.MethodDelete, "/api/v1/localities/Cachi", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode[map[string]any](t, rec)["persist_error"], "disk full")
	assert.Zero(t, f.store.Len())
}

// --- reports ---

func reportFixture(t *testing.T) *fixture {
	return newFixture(t,
		reading("Cafayate", "Salta", 1, "09:00:00", 2),
		reading("Cafayate", "Salta", 1, "11:00:00", 6),
		reading("Tilcara", "Jujuy", 2, "10:00:00", 1),
	)
}

func TestReports_Localities(t *testing.T) {
	f := reportFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/localities?province=Salta", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[[]report.LocalitySummary](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "Cafayate", got[0].Locality)
	assert.Equal(t, 2, got[0].Measurements)
	assert.Equal(t, "02:00:00", got[0].DurationText)
	assert.Equal(t, ptr(6.0), got[0].MaxResult)
}

func TestReports_Highlight(t *testing.T) {
	f := reportFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/highlight", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	peak := decode[report.Peak](t, rec)
	assert.Equal(t, 6.0, peak.Result)
	assert.Equal(t, "Cafayate", peak.Locality)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/highlight?year=1999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReports_Shapes(t *testing.T) {
	f := reportFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/daily?year=2024", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]report.Day](t, rec), 2)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/monthly", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]report.Month](t, rec), 1)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/cases", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	cases := decode[[]report.CaseSummary](t, rec)
	require.Len(t, cases, 1)
	assert.Equal(t, 3, cases[0].Points)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/points?locality=Tilcara", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	points := decode[[]report.Point](t, rec)
	require.Len(t, points, 1)
	assert.Equal(t, -26.07, points[0].Lat)
	assert.Equal(t, -65.97, points[0].Lon)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/facets", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	facets := decode[report.Facets](t, rec)
	assert.Equal(t, []string{"Jujuy", "Salta"}, facets.Provinces)
	assert.Equal(t, []int{2024}, facets.Years)
}

func TestReports_InvalidYear(t *testing.T) {
	f := reportFixture(t)
	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/localities?year=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReports_ExportLocalities(t *testing.T) {
	f := reportFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/reports/localities.xlsx", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "resumen_localidades.xlsx")

	wb, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Resumen")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "CCTE", rows[0][0])
}
