// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"io"
	"net/http"
	"strings"
)

// maxMultipartMemory bounds how much of an upload is buffered in memory
// before spilling to disk.
const maxMultipartMemory = 8 << 20

// DatasetsHandler handles dataset upload and report requests.
type DatasetsHandler struct {
	deps Dependencies
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(deps Dependencies) *DatasetsHandler {
	return &DatasetsHandler{deps: deps}
}

// HandleDatasets handles POST /datasets requests.
func (h *DatasetsHandler) HandleDatasets(w http.ResponseWriter, r *http.Request) {
	const op = "api.upload_dataset"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	name, body, cleanup, err := uploadBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	defer cleanup()

	summary, duplicate, err := h.deps.Upload(r.Context(), name, body)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, summary)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

// uploadBody extracts the dataset bytes and name from either a multipart
// form with a "file" field or a raw request body with the name passed as
// the "name" query parameter.
func uploadBody(r *http.Request) (string, io.Reader, func(), error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
			return "", nil, func() {}, err
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, func() {}, err
		}
		return header.Filename, file, func() { _ = file.Close() }, nil
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
	}
	return name, r.Body, func() {}, nil
}

// HandleDataset handles GET /datasets/{id} and its report subresources.
func (h *DatasetsHandler) HandleDataset(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/datasets/")
	id, sub, _ := strings.Cut(path, "/")
	if id == "" || strings.Contains(sub, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	switch sub {
	case "":
		h.handleSummary(w, r, id)
	case "quality":
		h.handleQuality(w, r, id)
	case "anomalies":
		h.handleAnomalies(w, r, id)
	case "recommendations":
		h.handleRecommendations(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (h *DatasetsHandler) handleSummary(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_dataset"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	summary, err := h.deps.Dataset(r.Context(), id)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *DatasetsHandler) handleQuality(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_quality"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	report, err := h.deps.Quality(r.Context(), id)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *DatasetsHandler) handleAnomalies(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.get_anomalies"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	report, err := h.deps.Anomalies(r.Context(), id)
	if err != nil {
		writeDomainError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *DatasetsHandler) handleRecommendations(w http.ResponseWriter, r *http.Request, id string) {
	const op = "api.recommendations"
	switch r.Method {
	case http.MethodPost:
		ok, err := h.deps.RequestRecommendations(r.Context(), id)
		if err != nil {
			writeDomainError(w, op, err)
			return
		}
		if !ok {
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
			return
		}
		writeJSON(w, http.StatusAccepted, enqueueResponse{Status: "accepted"})
	case http.MethodGet:
		set, err := h.deps.Recommendations(r.Context(), id)
		if err != nil {
			writeDomainError(w, op, err)
			return
		}
		writeJSON(w, http.StatusOK, set)
	default:
		http.NotFound(w, r)
	}
}
