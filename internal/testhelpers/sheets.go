// Package testhelpers provides a fake spreadsheet values endpoint for tests.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// FakeSheets serves GET /{spreadsheetId}/values/{table}?key=... from in-memory tables.
type FakeSheets struct {
	*httptest.Server

	SpreadsheetID string
	APIKey        string

	mu       sync.Mutex
	tables   map[string][][]string
	statuses map[string]int
	requests map[string]int
}

// NewFakeSheets starts a fake endpoint and closes it when the test ends.
func NewFakeSheets(t *testing.T, spreadsheetID, apiKey string) *FakeSheets {
	t.Helper()
	f := &FakeSheets{
		SpreadsheetID: spreadsheetID,
		APIKey:        apiKey,
		tables:        make(map[string][][]string),
		statuses:      make(map[string]int),
		requests:      make(map[string]int),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

// SetTable serves values for table.
func (f *FakeSheets) SetTable(table string, values [][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[table] = values
	delete(f.statuses, table)
}

// FailTable makes every request for table answer with status.
func (f *FakeSheets) FailTable(table string, status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[table] = status
}

// Requests returns how many times table was requested.
func (f *FakeSheets) Requests(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[table]
}

func (f *FakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 3)
	if r.Method != http.MethodGet || len(parts) != 3 || parts[0] != f.SpreadsheetID || parts[1] != "values" {
		http.NotFound(w, r)
		return
	}
	if r.URL.Query().Get("key") != f.APIKey {
		writeStatus(w, http.StatusForbidden, "The caller does not have permission")
		return
	}
	table := parts[2]

	f.mu.Lock()
	f.requests[table]++
	status, failing := f.statuses[table]
	values, ok := f.tables[table]
	f.mu.Unlock()

	switch {
	case failing:
		writeStatus(w, status, http.StatusText(status))
	case !ok:
		writeStatus(w, http.StatusBadRequest, "Unable to parse range: "+table)
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"range":          table + "!A1:Z1000",
			"majorDimension": "ROWS",
			"values":         values,
		})
	}
}

func writeStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"code": status, "message": message},
	})
}
