// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.
// Write endpoints accept both form-encoded bodies (the HTMX add form) and
// JSON bodies (scripts and tests), so parsing goes through one body parser.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"txview/internal/core"
)

// maxBodyBytes bounds write request bodies.
const maxBodyBytes = 64 << 10

const (
	defaultDiagnosticsLimit = 50
	maxDiagnosticsLimit     = 500
	maxSearchTermLen        = 200
)

// FieldError reports a form field that could not be read.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]interface{}
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once, capped at maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body == nil {
		return p
	}
	p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if p.err == nil && len(p.body) > maxBodyBytes {
		p.err = errors.New("request body too large")
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if strings.HasPrefix(p.contentType, "application/json") || p.body[0] == '{' {
		p.jsonData = make(map[string]interface{})
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// ParseTransactionForm reads the add form into a create payload.
//
// Only the amount is checked: it has to be a number for the store to accept
// it. The other fields are passed through as entered.
func ParseTransactionForm(r *http.Request) (core.NewTransaction, error) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		return core.NewTransaction{}, fmt.Errorf("parse request body: %w", err)
	}

	amount, err := core.ParseAmount(p.Get("amount"))
	if err != nil {
		return core.NewTransaction{}, &FieldError{Field: "amount", Message: "must be a number"}
	}

	return core.NewTransaction{
		Date:        p.Get("date"),
		Description: p.Get("description"),
		Category:    p.Get("category"),
		Amount:      amount,
	}, nil
}

// ParseSearchTerm reads the q parameter. Whitespace is part of the term and
// is kept as typed; only control characters are dropped.
func ParseSearchTerm(query url.Values) (string, error) {
	term := stripControl(query.Get("q"))
	if utf8.RuneCountInString(term) > maxSearchTermLen {
		return "", &FieldError{Field: "q", Message: fmt.Sprintf("must be at most %d characters", maxSearchTermLen)}
	}
	return term, nil
}

// ParseLimit reads the limit parameter, falling back to the default when
// missing or invalid and clamping to the maximum.
func ParseLimit(query url.Values) int {
	v := strings.TrimSpace(query.Get("limit"))
	if v == "" {
		return defaultDiagnosticsLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultDiagnosticsLimit
	}
	if n > maxDiagnosticsLimit {
		return maxDiagnosticsLimit
	}
	return n
}
