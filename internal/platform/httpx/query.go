package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// QueryString returns the trimmed query value.
func QueryString(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}

// QueryInt parses an integer query value, falling back to def.
func QueryInt(r *http.Request, key string, def int) int {
	raw := QueryString(r, key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// QueryInt64 parses an optional positive int64 query value.
func QueryInt64(r *http.Request, key string) *int64 {
	raw := QueryString(r, key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return nil
	}
	return &v
}

// QueryDate parses an optional YYYY-MM-DD query value.
func QueryDate(r *http.Request, key string) *time.Time {
	raw := QueryString(r, key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil
	}
	return &t
}
