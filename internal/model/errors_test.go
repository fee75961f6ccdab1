package model_test

import (
	"net/http"
	"testing"

	"github.com/amine-CS96/seo-expert/internal/model"
)

func TestNewAuditErrorFillsDefaults(t *testing.T) {
	t.Parallel()

	e := model.NewAuditError(model.KindTimeout, "")
	if e.Message == "" {
		t.Error("expected a default message")
	}
	if len(e.Suggestions) == 0 {
		t.Error("expected suggestions for a known kind")
	}

	e = model.NewAuditError("", "boom")
	if e.Kind != model.KindGeneralError {
		t.Errorf("Kind = %q, want GENERAL_ERROR", e.Kind)
	}
	if e.Message != "boom" {
		t.Errorf("Message = %q", e.Message)
	}
}

func TestSuggestionsForUnknownKindFallsBack(t *testing.T) {
	t.Parallel()

	got := model.SuggestionsFor(model.ErrorKind("SOMETHING_NEW"))
	generic := model.SuggestionsFor(model.KindGeneralError)
	if len(got) != len(generic) {
		t.Fatalf("fallback suggestions = %v, want generic set", got)
	}
}

func TestKindFromStatus(t *testing.T) {
	t.Parallel()

	cases := map[int]model.ErrorKind{
		http.StatusBadRequest:          model.KindInvalidURL,
		http.StatusNotFound:            model.KindPageNotFound,
		http.StatusUnauthorized:        model.KindAccessDenied,
		http.StatusForbidden:           model.KindAccessForbidden,
		http.StatusRequestTimeout:      model.KindTimeout,
		http.StatusGatewayTimeout:      model.KindTimeout,
		http.StatusInternalServerError: model.KindServerError,
		http.StatusBadGateway:          model.KindServerError,
		http.StatusTeapot:              model.KindGeneralError,
	}
	for status, want := range cases {
		if got := model.KindFromStatus(status); got != want {
			t.Errorf("KindFromStatus(%d) = %q, want %q", status, got, want)
		}
	}
}
