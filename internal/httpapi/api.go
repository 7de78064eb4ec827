// Package httpapi exposes the image pipeline over HTTP.
//
// Routes:
//
//	GET  /healthz       liveness probe
//	POST /v1/process    multipart: "operation" field, optional "settings"
//	                    JSON field, one or more "images" file parts
//	POST /v1/annotate   multipart: one "image" file part
//
// Errors are JSON bodies {"error": "...", "kind": "..."}: 400 for malformed
// requests, 422 for requests the pipeline rejects, 500 otherwise. Per-image
// failures inside a processed batch are reported on the item, not as an
// error status.
package httpapi

import (
	"encoding/base64"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ironsheep/image-pipeline-mcp/internal/annotate"
	"github.com/ironsheep/image-pipeline-mcp/internal/pipeline"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultMaxUpload bounds the multipart body of a request.
const DefaultMaxUpload = 256 << 20

// multipartMemory is how much of a multipart body is held in memory before
// spilling parts to temporary files.
const multipartMemory = 32 << 20

// API serves pipeline requests.
type API struct {
	runner    *pipeline.Runner
	version   string
	maxUpload int64
	log       *zap.Logger
}

// New creates an API over runner. A nil logger discards logs.
func New(runner *pipeline.Runner, version string, log *zap.Logger) *API {
	if log == nil {
		log = zap.NewNop()
	}
	return &API{runner: runner, version: version, maxUpload: DefaultMaxUpload, log: log}
}

// Handler returns the routed handler.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(a.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.healthz)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/process", a.process)
		r.Post("/annotate", a.annotate)
	})
	return r
}

type errorBody struct {
	Error string             `json:"error"`
	Kind  pipeline.ErrorKind `json:"kind,omitempty"`
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("failed to write response", zap.Error(err))
	}
}

func (a *API) badRequest(w http.ResponseWriter, msg string) {
	a.writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// writeError maps err to a status by its kind.
func (a *API) writeError(w http.ResponseWriter, err error) {
	kind := pipeline.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case pipeline.KindInvalidSettings, pipeline.KindUnsupportedOperation:
		status = http.StatusUnprocessableEntity
	}
	a.writeJSON(w, status, errorBody{Error: err.Error(), Kind: kind})
}

func (a *API) healthz(w http.ResponseWriter, r *http.Request) {
	cfg := a.runner.Config()
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       a.version,
		"max_batch":     cfg.MaxBatch,
		"max_in_flight": cfg.MaxInFlight,
		"operations":    pipeline.Operations,
	})
}

type processItem struct {
	Index  int                       `json:"index"`
	Name   string                    `json:"name"`
	Result *pipeline.ProcessedResult `json:"result,omitempty"`
	Data   string                    `json:"data,omitempty"`
	Kind   pipeline.ErrorKind        `json:"kind,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

type processResponse struct {
	RequestID string             `json:"request_id"`
	Batch     string             `json:"batch"`
	Operation pipeline.Operation `json:"operation"`
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Items     []processItem      `json:"items"`
}

func (a *API) process(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		a.badRequest(w, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := pipeline.Request{
		Operation: pipeline.Operation(r.FormValue("operation")),
		Settings:  pipeline.DefaultSettings(),
	}
	if raw := r.FormValue("settings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &req.Settings); err != nil {
			a.badRequest(w, fmt.Sprintf("invalid settings: %v", err))
			return
		}
	}
	describe, _ := strconv.ParseBool(r.FormValue("describe"))

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		a.badRequest(w, `no "images" parts`)
		return
	}
	if limit := a.runner.Config().MaxBatch; len(files) > limit {
		a.writeError(w, fmt.Errorf("%w: %d images, limit is %d", pipeline.ErrBatchTooLarge, len(files), limit))
		return
	}

	sources := make([]pipeline.Source, len(files))
	for i, fh := range files {
		src, err := readSource(fh, describe)
		if err != nil {
			a.badRequest(w, err.Error())
			return
		}
		sources[i] = src
	}

	batch, err := a.runner.Run(r.Context(), sources, req)
	if err != nil {
		a.writeError(w, err)
		return
	}

	resp := processResponse{
		RequestID: GetRequestID(r.Context()),
		Batch:     batch.ID,
		Operation: batch.Operation,
		Succeeded: batch.Succeeded(),
		Failed:    batch.Failed(),
		Items:     make([]processItem, len(batch.Outcomes)),
	}
	for i, o := range batch.Outcomes {
		item := processItem{Index: o.Index, Name: o.Name, Result: o.Result, Kind: o.Kind, Error: o.Error}
		if o.OK() {
			item.Data = base64.StdEncoding.EncodeToString(o.Result.Data)
		}
		resp.Items[i] = item
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func readSource(fh *multipart.FileHeader, describe bool) (pipeline.Source, error) {
	data, err := readPart(fh)
	if err != nil {
		return pipeline.Source{}, err
	}
	src := pipeline.Source{Name: fh.Filename, Data: data}
	if ct := fh.Header.Get("Content-Type"); strings.HasPrefix(ct, "image/") {
		src.MIMEType = ct
	}
	if describe {
		ann := annotate.DescribeBytes(fh.Filename, data)
		src.Annotation = &ann
	}
	return src, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read part %s: %w", fh.Filename, err)
	}
	return data, nil
}

type annotateResponse struct {
	RequestID    string                `json:"request_id"`
	Name         string                `json:"name"`
	Size         string                `json:"size"`
	Annotation   annotate.Annotation   `json:"annotation"`
	Verification annotate.Verification `json:"verification"`
}

func (a *API) annotate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.maxUpload)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		a.badRequest(w, fmt.Sprintf("invalid multipart body: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["image"]
	if len(files) != 1 {
		a.badRequest(w, `expected exactly one "image" part`)
		return
	}
	data, err := readPart(files[0])
	if err != nil {
		a.badRequest(w, err.Error())
		return
	}

	a.writeJSON(w, http.StatusOK, annotateResponse{
		RequestID:    GetRequestID(r.Context()),
		Name:         files[0].Filename,
		Size:         annotate.FormatFileSize(int64(len(data))),
		Annotation:   annotate.DescribeBytes(files[0].Filename, data),
		Verification: annotate.VerifyBytes(data),
	})
}
