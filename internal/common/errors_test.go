package common

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestErrorIsMatchesWrappedCode(t *testing.T) {
	err := fmt.Errorf("load: %w", NewError(CodeNotFound, "application not found", sql.ErrNoRows))
	if !Is(err, CodeNotFound) {
		t.Fatalf("expected not found code, got %v", err)
	}
	if Is(err, CodeConflict) {
		t.Fatal("unexpected conflict code")
	}
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatal("expected cause to be preserved")
	}
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	if code := CodeOf(errors.New("boom")); code != CodeInternal {
		t.Fatalf("expected internal, got %s", code)
	}
	if code := CodeOf(NewValidationError("invalid", map[string]string{"stage": "unknown"})); code != CodeValidation {
		t.Fatalf("expected validation, got %s", code)
	}
}

func TestDetailIncludesCauseStack(t *testing.T) {
	err := fmt.Errorf("transition: %w", NewError(CodeInternal, "failed to load application", sql.ErrConnDone))
	detail := Detail(err)
	if !strings.HasPrefix(detail, "transition: failed to load application: sql: connection is already closed") {
		t.Fatalf("expected message chain first, got %q", detail)
	}
	if !strings.Contains(detail, "stack trace") || !strings.Contains(detail, "common.NewError") {
		t.Fatalf("expected stack of the wrapped cause, got %q", detail)
	}
	if Detail(nil) != "" {
		t.Fatal("expected empty detail for nil")
	}
	if got := Detail(NewValidationError("invalid", nil)); got != "invalid" {
		t.Fatalf("expected plain message without cause, got %q", got)
	}
}

func TestParseUUID(t *testing.T) {
	id := NewUUID()
	parsed, err := ParseUUID(" " + id.String() + " ")
	if err != nil {
		t.Fatalf("parse uuid: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected %s, got %s", id, parsed)
	}
	if _, err := ParseUUID("not-a-uuid"); err == nil {
		t.Fatal("expected parse error")
	}
}
