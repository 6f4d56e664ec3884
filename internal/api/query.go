package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/salesql/salesql/internal/pipeline"
	"github.com/salesql/salesql/internal/query"
)

const codeInvalidRequest = "INVALID_REQUEST"

// queryRequest accepts both request shapes used by existing clients.
type queryRequest struct {
	Query                string `json:"query"`
	NaturalLanguageQuery string `json:"natural_language_query"`
	MaxRows              int    `json:"max_rows"`
}

func (r queryRequest) question() string {
	if strings.TrimSpace(r.Query) != "" {
		return r.Query
	}
	return r.NaturalLanguageQuery
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	request, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	if deps.Service == nil {
		message := "query service is not configured"
		writeJSON(w, http.StatusNotImplemented, pipeline.Response{
			Data:      []query.Row{},
			Error:     &message,
			ErrorCode: "QUERY_NOT_CONFIGURED",
		})
		return
	}

	response := deps.Service.Run(r.Context(), pipeline.Request{
		Question: request.question(),
		MaxRows:  request.MaxRows,
	})
	writeJSON(w, http.StatusOK, response)
}

func handleTranslate(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	request, ok := decodeQueryRequest(w, r)
	if !ok {
		return
	}
	if deps.Service == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "TRANSLATE_NOT_CONFIGURED", "query translation is not configured", false, nil)
		return
	}

	translation := deps.Service.Translate(r.Context(), request.question())
	var errText *string
	if translation.Err != nil {
		text := translation.Err.Error()
		errText = &text
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    translation.OK(),
		"sql_query":  translation.SQL,
		"source":     translation.Source,
		"provider":   translation.Provider,
		"model":      translation.Model,
		"error":      errText,
		"error_code": translation.ErrorCode,
	})
}

// decodeQueryRequest answers invalid bodies with a 400 in the query response
// shape and reports whether decoding succeeded.
func decodeQueryRequest(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var request queryRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		message := "invalid request body: " + err.Error()
		writeJSON(w, http.StatusBadRequest, pipeline.Response{
			Data:      []query.Row{},
			Error:     &message,
			ErrorCode: codeInvalidRequest,
		})
		return queryRequest{}, false
	}
	if request.MaxRows < 0 {
		message := "max_rows must be >= 0"
		writeJSON(w, http.StatusBadRequest, pipeline.Response{
			Data:      []query.Row{},
			Error:     &message,
			ErrorCode: codeInvalidRequest,
		})
		return queryRequest{}, false
	}
	return request, true
}
