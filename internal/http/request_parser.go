// Package http provides the JSON API over the ledger facade.
//
// This file implements utilities for parsing and validating request data:
// period query parameters, path ids and request bodies.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"gagyebu/internal/core"
)

// maxBodyBytes caps request bodies; ledger entries are tiny.
const maxBodyBytes = 64 << 10

// MonthParams holds parsed year/month values from request parameters.
type MonthParams struct {
	Year  int
	Month int
}

// ParamError reports a query or path parameter that could not be parsed.
type ParamError struct {
	Name  string
	Value string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s parameter %q", e.Name, e.Value)
}

// ParseMonthParams extracts year and month from query parameters, using the
// current date for whichever is absent. Present but malformed values are an
// error rather than a silent fallback.
func ParseMonthParams(query url.Values, now time.Time) (MonthParams, error) {
	params := MonthParams{
		Year:  now.Year(),
		Month: int(now.Month()),
	}

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return MonthParams{}, &ParamError{Name: "year", Value: v}
		}
		params.Year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return MonthParams{}, &ParamError{Name: "month", Value: v}
		}
		params.Month = m
	}

	return params, nil
}

// ParseYearParam extracts the year, defaulting to the current one.
func ParseYearParam(query url.Values, now time.Time) (int, error) {
	p, err := ParseMonthParams(url.Values{"year": query["year"]}, now)
	return p.Year, err
}

// ParseTypeParam reads the type parameter, defaulting to expense.
func ParseTypeParam(query url.Values) (core.TxType, error) {
	v := strings.TrimSpace(query.Get("type"))
	if v == "" {
		return core.Expense, nil
	}
	tt, err := core.ParseTxType(v)
	if err != nil {
		return "", &ParamError{Name: "type", Value: v}
	}
	return tt, nil
}

// ParseIDParam reads a positive integer path value.
func ParseIDParam(r *http.Request, name string) (int64, error) {
	v := r.PathValue(name)
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ParamError{Name: name, Value: v}
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads at most maxBodyBytes once and stores them for subsequent parsing.
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

	body := bytes.TrimSpace(p.body)
	if len(body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if body[0] == '{' {
		// Numbers stay json.Number so amounts keep their exact digits.
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(body))
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

// Secret returns the value exactly as sent. Passwords must not be trimmed
// or filtered, or a stored hash would stop matching what the user typed.
func (p *RequestBodyParser) Secret(key string) string {
	if p.jsonData != nil {
		s, _ := p.jsonData[key].(string)
		return s
	}
	if p.formData != nil {
		return p.formData.Get(key)
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

// Date reads key as a YYYY-MM-DD date. An absent value gives the zero date,
// which the ledger reports as an unselected day.
func (p *RequestBodyParser) Date(key string) (core.Date, error) {
	v := p.Get(key)
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: key, Err: err}
	}
	return d, nil
}

// Type reads key as a transaction type.
func (p *RequestBodyParser) Type(key string) (core.TxType, error) {
	tt, err := core.ParseTxType(p.Get(key))
	if err != nil {
		return "", &core.ValidationError{Field: key, Err: err}
	}
	return tt, nil
}

// Int reads key as an integer, or def when absent.
func (p *RequestBodyParser) Int(key string, def int) (int, error) {
	v := p.Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &core.ValidationError{Field: key, Err: core.ErrInvalidPeriod}
	}
	return n, nil
}

// stringValue converts a decoded JSON value to string.
func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
