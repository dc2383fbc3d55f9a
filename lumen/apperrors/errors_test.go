package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{Unauthorized, http.StatusUnauthorized},
		{Forbidden, http.StatusForbidden},
		{NotFound, http.StatusNotFound},
		{BadRequest, http.StatusBadRequest},
		{Internal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		got := New(c.kind, DomainChat, "").HTTPStatus()
		if got != c.want {
			t.Errorf("kind %s: expected status %d, got %d", c.kind, c.want, got)
		}
	}
}

func TestErrorString(t *testing.T) {
	err := New(Forbidden, DomainChat, "not your chat")
	if err.Error() != "forbidden:chat: not your chat" {
		t.Errorf("unexpected error string %q", err.Error())
	}
}

func TestNormalizePassesThroughTyped(t *testing.T) {
	typed := New(NotFound, DomainChat, "chat not found")
	wrapped := fmt.Errorf("handler: %w", typed)
	got := Normalize(wrapped)
	if got.Kind != NotFound || got.Domain != DomainChat {
		t.Errorf("expected not_found:chat, got %s:%s", got.Kind, got.Domain)
	}
}

func TestNormalizeDowngradesUnknown(t *testing.T) {
	got := Normalize(errors.New("pq: connection reset"))
	if got.Kind != BadRequest || got.Domain != DomainDatabase {
		t.Errorf("expected bad_request:database, got %s:%s", got.Kind, got.Domain)
	}
	if got.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", got.HTTPStatus())
	}
	// The internal detail must not appear in the client-facing message.
	if got.Msg == "pq: connection reset" {
		t.Errorf("internal error leaked into message")
	}
}
