package validation

import (
	"errors"
	"strings"
	"testing"
)

type articlePayload struct {
	Title   string `validate:"required,max=200"`
	Content string `validate:"required"`
}

func TestValidateAcceptsWellFormedPayload(t *testing.T) {
	validator := New()

	err := validator.Validate(articlePayload{Title: "Hello", Content: "World"})
	if err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestValidateRejectsMissingFields(t *testing.T) {
	validator := New()

	err := validator.Validate(articlePayload{})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), "Title") || !strings.Contains(err.Error(), "Content") {
		t.Fatalf("expected both fields in detail, got %q", err.Error())
	}
}

func TestValidateRejectsOverlongTitle(t *testing.T) {
	validator := New()

	err := validator.Validate(articlePayload{
		Title:   strings.Repeat("x", 201),
		Content: "body",
	})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if !strings.Contains(err.Error(), `"max"`) {
		t.Fatalf("expected max tag in detail, got %q", err.Error())
	}
}
