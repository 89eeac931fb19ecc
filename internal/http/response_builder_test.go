package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gagyebu/internal/auth"
	"gagyebu/internal/core"
	"gagyebu/internal/storage"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/1").
		JSON(map[string]int{"id": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("Location") != "/api/goals/1" {
		t.Errorf("custom header not written")
	}
	if w.Body.String() != `{"id":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Status(http.StatusNoContent).Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("expected empty 204, got %d %q", w.Code, w.Body.String())
	}
}

func TestResponseBuilder_EncodingFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().JSON(map[string]any{"bad": make(chan int)}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for unencodable body, got %d", w.Code)
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		err   error
		code  int
		field string
	}{
		{&core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}, http.StatusUnprocessableEntity, "amount"},
		{fmt.Errorf("wrapped: %w", &core.ValidationError{Field: "date", Err: core.ErrMissingDate}), http.StatusUnprocessableEntity, "date"},
		{&ParamError{Name: "month", Value: "13"}, http.StatusBadRequest, ""},
		{storage.ErrDuplicateGoal, http.StatusConflict, ""},
		{storage.ErrDuplicateUser, http.StatusConflict, ""},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized, ""},
		{storage.ErrNotFound, http.StatusNotFound, ""},
		{fmt.Errorf("%w: expired", auth.ErrInvalidToken), http.StatusUnauthorized, ""},
		{errors.New("disk full"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		ErrorFor(tt.err).Write(w)
		if w.Code != tt.code {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.code)
			continue
		}
		var body ErrorBody
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("%v: decode: %v", tt.err, err)
		}
		if body.Field != tt.field || body.Error == "" {
			t.Errorf("%v: unexpected body %+v", tt.err, body)
		}
		if tt.code == http.StatusInternalServerError && body.Error != "internal error" {
			t.Errorf("internal errors must not leak details, got %q", body.Error)
		}
	}
}
