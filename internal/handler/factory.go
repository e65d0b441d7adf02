package handler

import (
	"net/http"

	"inkwell/internal/httputil"
	"inkwell/internal/service"
)

// writePage writes a factory list result with its pagination metadata.
func writePage[T any](w http.ResponseWriter, page *service.Page[T]) {
	httputil.WriteList(w, page.Items, len(page.Items), page.CurrentPage, page.TotalPages, page.Total)
}

// writeDeleted is the response of every factory delete.
func writeDeleted(w http.ResponseWriter) {
	httputil.WriteMessage(w, http.StatusOK, "Data deleted successfully")
}
