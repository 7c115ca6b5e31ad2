package main

import (
	"net/http"
	"strconv"

	"github.com/farxc/carbon_footprint/internal/emissions"
)

func parseLimit(r *http.Request, fallback, max int) int {
	limit := fallback
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	return min(limit, max)
}

func parseBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}

// parseRange reads the optional from/to month bounds. Validation happens
// in the report service.
func parseRange(r *http.Request) emissions.Range {
	return emissions.Range{
		From: r.URL.Query().Get("from"),
		To:   r.URL.Query().Get("to"),
	}
}
