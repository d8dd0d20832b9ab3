package rest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/crossedpaths/crossedpaths/server/internal/store"
)

// Backend error codes: Postgres SQLSTATEs passed through, plus the gateway's own
// schema-cache codes.
const (
	codeUndefinedTable    = "42P01"
	codeUndefinedFunction = "42883"
	codeTableNotInCache   = "PGRST205"
	codeRoutineNotInCache = "PGRST202"
)

// apiError is the backend's JSON error body.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e apiError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// check turns a transport error or non-2xx response into a classified store.Error.
func check(resource string, resp *resty.Response, err error) error {
	if err != nil {
		return &store.Error{Class: store.Other, Resource: resource, Err: err}
	}
	if resp.IsSuccess() {
		return nil
	}
	var body apiError
	if jerr := json.Unmarshal(resp.Body(), &body); jerr != nil || (body.Code == "" && body.Message == "") {
		body.Message = fmt.Sprintf("status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return &store.Error{
		Class:    classify(body, resp.StatusCode()),
		Code:     body.Code,
		Resource: resource,
		Err:      body,
	}
}

func classify(e apiError, status int) store.Class {
	switch e.Code {
	case codeUndefinedTable, codeTableNotInCache:
		return store.SchemaMissing
	case codeUndefinedFunction, codeRoutineNotInCache:
		return store.RoutineMissing
	case "":
	default:
		return store.Other
	}
	// Older gateways omit the code; fall back to the message.
	if status != http.StatusNotFound && status != http.StatusBadRequest {
		return store.Other
	}
	msg := strings.ToLower(e.Message)
	switch {
	case strings.Contains(msg, "could not find the function"),
		strings.Contains(msg, "function") && strings.Contains(msg, "does not exist"):
		return store.RoutineMissing
	case strings.Contains(msg, "could not find the table"),
		strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"):
		return store.SchemaMissing
	}
	return store.Other
}
