package core

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateCredentials(t *testing.T) {
	tests := []struct {
		username, password string
		field              string
		err                error
	}{
		{"minsu", "correct horse", "", nil},
		{"가계부_주인", "12345678", "", nil},
		{"", "12345678", "username", ErrEmptyUsername},
		{"min su", "12345678", "username", ErrInvalidUsername},
		{strings.Repeat("가", MaxUsernameLen+1), "12345678", "username", ErrInvalidUsername},
		{"minsu", "short", "password", ErrShortPassword},
		{"minsu", strings.Repeat("비", 25), "password", ErrLongPassword},
	}
	for _, tt := range tests {
		err := ValidateCredentials(tt.username, tt.password)
		if tt.err == nil {
			if err != nil {
				t.Fatalf("%q: unexpected error %v", tt.username, err)
			}
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) || verr.Field != tt.field || !errors.Is(err, tt.err) {
			t.Fatalf("%q/%q: got %v, want %s %v", tt.username, tt.password, err, tt.field, tt.err)
		}
	}
}

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  Minsu \n"); got != "Minsu" {
		t.Fatalf("got %q", got)
	}
}
