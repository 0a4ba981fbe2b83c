package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openlauncher/plugin-go/pkg/protocol"
)

var allKinds = []Kind{
	KindUnknown,
	KindAuthenticationRequired,
	KindBackendNotAvailable,
	KindBackendTimeout,
	KindBackendError,
	KindTooManyRequests,
	KindUnknownBackendResponse,
	KindInvalidCredentials,
	KindNetworkError,
	KindProtocolViolation,
	KindTemporaryBlocked,
	KindBanned,
	KindAccessDenied,
	KindFailedParsingManifest,
	KindTooManyMessagesSent,
	KindIncoherentLastMessage,
	KindMessageNotFound,
	KindImportInProgress,
}

func TestWireRoundTripPreservesKind(t *testing.T) {
	for _, kind := range allKinds {
		t.Run(fmt.Sprintf("kind_%d", kind.Code()), func(t *testing.T) {
			src := New(kind)
			got := FromWire(ToWire(src))
			if got.Kind != kind {
				t.Errorf("round trip gave kind %v, want %v", got.Kind, kind)
			}
			if got.Message != src.Message {
				t.Errorf("round trip gave message %q, want %q", got.Message, src.Message)
			}
		})
	}
}

func TestCodesArePairwiseDistinct(t *testing.T) {
	seen := make(map[int]Kind)
	for _, kind := range allKinds {
		if prev, dup := seen[kind.Code()]; dup {
			t.Errorf("kinds %v and %v share code %d", prev, kind, kind.Code())
		}
		seen[kind.Code()] = kind
	}
}

func TestToWireNeverLeaksInternalText(t *testing.T) {
	err := errors.New("pointer dereference at 0xdeadbeef")
	obj := ToWire(err)

	if obj.Code != 0 {
		t.Errorf("Code = %d, want 0", obj.Code)
	}
	if obj.Message != "Unknown error" {
		t.Errorf("Message = %q, want generic unknown-error text", obj.Message)
	}
}

func TestToWireKeepsApplicationErrorDetail(t *testing.T) {
	obj := ToWire(NewWithData(KindInvalidCredentials, map[string]string{"hint": "expired"}))

	if obj.Code != 100 {
		t.Errorf("Code = %d, want 100", obj.Code)
	}
	if obj.Message != "Invalid credentials" {
		t.Errorf("Message = %q", obj.Message)
	}
	if obj.Data == nil {
		t.Error("Data dropped")
	}
}

func TestToWireUnwrapsWrappedApplicationErrors(t *testing.T) {
	wrapped := fmt.Errorf("fetching library: %w", BackendTimeout())
	if obj := ToWire(wrapped); obj.Code != 3 {
		t.Errorf("Code = %d, want 3", obj.Code)
	}
}

func TestFromWireUnknownCode(t *testing.T) {
	got := FromWire(&protocol.ErrorObject{Code: 9999, Message: "future failure"})
	if got.Kind != KindUnknown {
		t.Errorf("Kind = %v, want KindUnknown", got.Kind)
	}
	if got.Message != "future failure" {
		t.Errorf("Message = %q, peer message should be kept", got.Message)
	}
}

func TestApplicationErrorIs(t *testing.T) {
	err := fmt.Errorf("auth step: %w", InvalidCredentials())
	if !errors.Is(err, InvalidCredentials()) {
		t.Error("errors.Is failed to match kind")
	}
	if errors.Is(err, Banned()) {
		t.Error("errors.Is matched a different kind")
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Method: "get_owned_games", Timeout: 5 * time.Second}
	want := "call get_owned_games timed out after 5s"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !IsTimeout(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsTimeout(wrapped) = false, want true")
	}
	if IsTimeout(errors.New("other")) {
		t.Error("IsTimeout(other) = true, want false")
	}
}
