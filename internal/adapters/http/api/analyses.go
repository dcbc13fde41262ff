package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	service "github.com/okian/shotlab/internal/app"
	"github.com/okian/shotlab/internal/domain/report"
)

type batchRequest struct {
	Items []service.AnalysisJob `json:"items"`
}

type batchItemResponse struct {
	Index  int            `json:"index"`
	JobID  string         `json:"job_id,omitempty"`
	Report *report.Report `json:"report,omitempty"`
	Error  *errorResponse `json:"error,omitempty"`
}

type batchResponse struct {
	Results   []batchItemResponse `json:"results"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// AnalysesHandler serves the analysis routes.
type AnalysesHandler struct {
	deps          Dependencies
	maxBodyBytes  int64
	singleTimeout time.Duration
	batchTimeout  time.Duration
}

// NewAnalysesHandler creates a new analyses handler. Non-positive timeouts
// leave the pipeline bounded only by the request context.
func NewAnalysesHandler(deps Dependencies, maxBodyBytes int64, singleTimeout, batchTimeout time.Duration) *AnalysesHandler {
	return &AnalysesHandler{deps: deps, maxBodyBytes: maxBodyBytes, singleTimeout: singleTimeout, batchTimeout: batchTimeout}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// HandlePostAnalysis handles POST /v1/analyses.
func (h *AnalysesHandler) HandlePostAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_analysis"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var body service.AnalysisJob
	if err := h.decode(w, r, &body); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	req, err := body.Request()
	if err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}

	ctx, cancel := withTimeout(r.Context(), h.singleTimeout)
	defer cancel()
	rep, err := h.deps.Analyze(ctx, req)
	if err != nil {
		writeClassified(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// HandlePostBatch handles POST /v1/analyses/batch. Per-item failures are
// reported inline with a 200; only an unusable batch fails as a whole.
func (h *AnalysesHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	var body batchRequest
	if err := h.decode(w, r, &body); err != nil {
		writeClassified(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(body.Items) == 0 {
		writeClassified(w, WrapKind(op, ErrBadRequest, fmt.Errorf("items must not be empty")))
		return
	}

	// Items that fail to decode are answered directly; the rest are
	// submitted together and merged back by index.
	resp := batchResponse{Results: make([]batchItemResponse, len(body.Items))}
	var reqs []service.AnalysisRequest
	var positions []int
	for i, item := range body.Items {
		resp.Results[i].Index = i
		req, err := item.Request()
		if err != nil {
			resp.Results[i].Error = itemError(WrapKind(op, ErrBadRequest, err))
			continue
		}
		reqs = append(reqs, req)
		positions = append(positions, i)
	}

	if len(reqs) > 0 {
		ctx, cancel := withTimeout(r.Context(), h.batchTimeout)
		defer cancel()
		results, err := h.deps.AnalyzeBatch(ctx, reqs)
		if err != nil {
			writeClassified(w, err)
			return
		}
		for k, res := range results {
			slot := &resp.Results[positions[k]]
			slot.JobID = res.JobID
			if res.Err != nil {
				slot.Error = itemError(res.Err)
				continue
			}
			rep := res.Report
			slot.Report = &rep
		}
	}

	for _, res := range resp.Results {
		if res.Error != nil {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AnalysesHandler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func itemError(err error) *errorResponse {
	_, code := classify(err)
	return &errorResponse{Code: code, Message: err.Error()}
}
