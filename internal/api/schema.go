package api

import (
	"net/http"

	"github.com/salesql/salesql/internal/schemactx"
)

func handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"schema":  schemactx.Describe(),
		"context": schemactx.Context(),
	})
}

func handleTables(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"tables":  schemactx.Tables(),
	})
}
