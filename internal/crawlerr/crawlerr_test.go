package crawlerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessageDefaultsToTerse(t *testing.T) {
	restore := verboseLog
	verboseLog = func() bool { return false }
	defer func() { verboseLog = restore }()

	root := errors.New("connection refused")
	wrapped := fmt.Errorf("dial tcp: %w", root)
	ce := New(KindSessionError, "fetchNext", wrapped).WithURL("https://example.com")

	msg := ce.Error()
	if !strings.Contains(msg, "session-error") || !strings.Contains(msg, "fetchNext") {
		t.Fatalf("expected kind and op in message, got %q", msg)
	}
	if strings.Contains(msg, "->") {
		t.Errorf("terse mode should not render the unwrap chain, got %q", msg)
	}
}

func TestErrorMessageVerboseRendersUnwrapChain(t *testing.T) {
	restore := verboseLog
	verboseLog = func() bool { return true }
	defer func() { verboseLog = restore }()

	root := errors.New("connection refused")
	wrapped := fmt.Errorf("dial tcp: %w", root)
	ce := New(KindSessionError, "fetchNext", wrapped)

	msg := ce.Error()
	if !strings.Contains(msg, "connection refused") || !strings.Contains(msg, "dial tcp") {
		t.Fatalf("expected both chain layers in verbose message, got %q", msg)
	}
	if !strings.Contains(msg, "->") {
		t.Errorf("verbose mode should join unwrap layers with ->, got %q", msg)
	}
}

func TestKindOfAndIsCritical(t *testing.T) {
	err := New(KindCritical, "markHandled", errors.New("boom"))
	if KindOf(err) != KindCritical {
		t.Fatalf("expected KindCritical, got %v", KindOf(err))
	}
	if !IsCritical(err) {
		t.Error("expected IsCritical to be true")
	}
	if IsCritical(errors.New("plain")) {
		t.Error("a plain error should never be critical")
	}
}

func TestTagUserOriginIsIdempotent(t *testing.T) {
	base := errors.New("handler blew up")
	tagged := TagUserOrigin("requestHandler", base)
	if !IsUserOrigin(tagged) {
		t.Fatal("expected tagged error to be user-origin")
	}

	retagged := TagUserOrigin("errorHandler", tagged)
	if retagged != tagged {
		t.Error("TagUserOrigin should be a no-op on an already-tagged error")
	}
}

func TestUnwrapReachesRootError(t *testing.T) {
	root := errors.New("root cause")
	ce := New(KindNonRetryable, "parse", root)
	if !errors.Is(ce, root) {
		t.Error("errors.Is should see through CrawlError.Unwrap to the root cause")
	}
}
