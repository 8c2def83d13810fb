package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/rni-data-etl/internal/adapter/xlsx"
	"github.com/couchcryptid/rni-data-etl/internal/domain"
	"github.com/couchcryptid/rni-data-etl/internal/pipeline"
	"github.com/couchcryptid/rni-data-etl/internal/report"
	"github.com/couchcryptid/rni-data-etl/internal/store"
)

// multipartMemory is how much of an upload is buffered in memory before
// spilling to temporary files.
const multipartMemory = 8 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Ingester normalizes uploaded spreadsheets into the master store.
type Ingester interface {
	Ingest(ctx context.Context, uploads []pipeline.Upload, meta domain.Metadata) (pipeline.Result, error)
}

// MasterStore is the read and locality-maintenance surface of the store.
type MasterStore interface {
	Records() []domain.Record
	Localities() []string
	LastModified(locality string) (time.Time, bool)
	DeleteLocality(ctx context.Context, locality string) (int, error)
	EditLocality(ctx context.Context, current string, upd store.LocalityUpdate) (int, error)
}

// API serves the /api/v1 routes.
type API struct {
	ingester       Ingester
	store          MasterStore
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewAPI creates the API handlers. Request bodies on the ingest route are
// capped at maxUploadBytes.
func NewAPI(ingester Ingester, st MasterStore, maxUploadBytes int64, logger *slog.Logger) *API {
	return &API{
		ingester:       ingester,
		store:          st,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

func (a *API) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/ingest", a.handleIngest)

	mux.HandleFunc("GET /api/v1/localities", a.handleListLocalities)
	mux.HandleFunc("DELETE /api/v1/localities/{locality}", a.handleDeleteLocality)
	mux.HandleFunc("PUT /api/v1/localities/{locality}", a.handleEditLocality)

	mux.HandleFunc("GET /api/v1/reports/localities", a.report(func(rs []domain.Record) (any, bool) {
		return report.LocalitySummaries(rs), true
	}))
	mux.HandleFunc("GET /api/v1/reports/daily", a.report(func(rs []domain.Record) (any, bool) {
		return report.DailyBreakdown(rs), true
	}))
	mux.HandleFunc("GET /api/v1/reports/monthly", a.report(func(rs []domain.Record) (any, bool) {
		return report.MonthlyBreakdown(rs), true
	}))
	mux.HandleFunc("GET /api/v1/reports/cases", a.report(func(rs []domain.Record) (any, bool) {
		return report.CaseSummaries(rs), true
	}))
	mux.HandleFunc("GET /api/v1/reports/points", a.report(func(rs []domain.Record) (any, bool) {
		return report.MapPoints(rs), true
	}))
	mux.HandleFunc("GET /api/v1/reports/facets", a.report(func(rs []domain.Record) (any, bool) {
		return report.FacetsOf(rs), true
	}))
	mux.HandleFunc("GET /api/v1/reports/highlight", a.report(func(rs []domain.Record) (any, bool) {
		return report.Highlight(rs)
	}))
	mux.HandleFunc("GET /api/v1/reports/localities.xlsx", a.handleExportLocalities)
}

type ingestResponse struct {
	pipeline.Result
	PersistError string `json:"persist_error,omitempty"`
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck // temp file cleanup

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, `no files in form field "files"`)
		return
	}

	meta := domain.Metadata{
		CCTE:       strings.TrimSpace(r.FormValue("ccte")),
		Province:   strings.TrimSpace(r.FormValue("province")),
		Locality:   strings.TrimSpace(r.FormValue("locality")),
		CaseNumber: strings.TrimSpace(r.FormValue("case_number")),
	}
	if meta.Locality == "" {
		writeError(w, http.StatusBadRequest, "locality is required")
		return
	}

	uploads := make([]pipeline.Upload, len(headers))
	for i, fh := range headers {
		uploads[i] = pipeline.Upload{
			Name: filepath.Base(fh.Filename),
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}

	res, err := a.ingester.Ingest(r.Context(), uploads, meta)
	resp := ingestResponse{Result: res}
	if err != nil {
		if !errors.Is(err, store.ErrPersist) {
			a.logger.Error("ingest failed", "error", err)
			writeError(w, http.StatusInternalServerError, "ingest failed")
			return
		}
		resp.PersistError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

type localityInfo struct {
	Locality     string     `json:"locality"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

func (a *API) handleListLocalities(w http.ResponseWriter, _ *http.Request) {
	names := a.store.Localities()
	out := make([]localityInfo, len(names))
	for i, name := range names {
		out[i] = localityInfo{Locality: name}
		if ts, ok := a.store.LastModified(name); ok {
			out[i].LastModified = &ts
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// mutationResponse reports how many rows a locality mutation touched. Zero
// means no row carried the locality and nothing was written.
type mutationResponse struct {
	Locality     string `json:"locality"`
	Affected     int    `json:"affected"`
	PersistError string `json:"persist_error,omitempty"`
}

func (a *API) handleDeleteLocality(w http.ResponseWriter, r *http.Request) {
	locality := r.PathValue("locality")
	n, err := a.store.DeleteLocality(r.Context(), locality)
	a.writeMutation(w, locality, n, err)
}

func (a *API) handleEditLocality(w http.ResponseWriter, r *http.Request) {
	var upd store.LocalityUpdate
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	upd.CCTE = strings.TrimSpace(upd.CCTE)
	upd.Province = strings.TrimSpace(upd.Province)
	upd.Locality = strings.TrimSpace(upd.Locality)
	upd.CaseNumber = strings.TrimSpace(upd.CaseNumber)
	if upd.Locality == "" {
		writeError(w, http.StatusBadRequest, "locality is required")
		return
	}

	current := r.PathValue("locality")
	n, err := a.store.EditLocality(r.Context(), current, upd)
	a.writeMutation(w, current, n, err)
}

func (a *API) writeMutation(w http.ResponseWriter, locality string, n int, err error) {
	resp := mutationResponse{Locality: locality, Affected: n}
	if err != nil {
		if !errors.Is(err, store.ErrPersist) {
			a.logger.Error("locality mutation failed", "locality", locality, "error", err)
			writeError(w, http.StatusInternalServerError, "mutation failed")
			return
		}
		resp.PersistError = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// report adapts an aggregation over the filtered records into a handler.
// build returns false when there is nothing to report.
func (a *API) report(build func([]domain.Record) (any, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		v, ok := build(f.Apply(a.store.Records()))
		if !ok {
			writeError(w, http.StatusNotFound, "no readings match the filter")
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func (a *API) handleExportLocalities(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var buf bytes.Buffer
	summaries := report.LocalitySummaries(f.Apply(a.store.Records()))
	if err := xlsx.WriteLocalitySummaries(&buf, summaries); err != nil {
		a.logger.Error("locality export failed", "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="resumen_localidades.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w) //nolint:errcheck // client may have gone away
}

func parseFilter(r *http.Request) (report.Filter, error) {
	q := r.URL.Query()
	f := report.Filter{
		CCTE:     q.Get("ccte"),
		Province: q.Get("province"),
		Locality: q.Get("locality"),
	}
	if y := q.Get("year"); y != "" {
		n, err := strconv.Atoi(y)
		if err != nil || n < 1 {
			return report.Filter{}, errors.New("invalid year " + strconv.Quote(y))
		}
		f.Year = n
	}
	return f, nil
}
