package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRedactKeys(t *testing.T) {
	params := json.RawMessage(`{"stored_credentials":{"token":"secret"},"locale":"en"}`)
	out := Redact(params, SensitiveKeys("stored_credentials"))

	if strings.Contains(out, "secret") {
		t.Fatalf("sensitive value leaked: %s", out)
	}
	if !strings.Contains(out, `"locale":"en"`) {
		t.Errorf("non-sensitive value dropped: %s", out)
	}
	if !strings.Contains(out, RedactedValue) {
		t.Errorf("missing redaction marker: %s", out)
	}
}

func TestRedactAll(t *testing.T) {
	params := json.RawMessage(`{"credentials":"secret","cookies":["a","b"]}`)
	out := Redact(params, SensitiveAll())

	if strings.Contains(out, "secret") || strings.Contains(out, `"a"`) {
		t.Fatalf("sensitive value leaked: %s", out)
	}
}

func TestRedactNothingSensitive(t *testing.T) {
	params := json.RawMessage(`{"game_id":"17"}`)
	if out := Redact(params, Sensitive{}); out != `{"game_id":"17"}` {
		t.Errorf("Redact() = %s", out)
	}
}

func TestRedactUnparsableSensitiveParams(t *testing.T) {
	// When the bag cannot be parsed the whole thing is replaced; values are
	// never passed through on a parse failure.
	out := Redact(json.RawMessage(`["secret"]`), SensitiveAll())
	if out != RedactedValue {
		t.Errorf("Redact() = %s, want %s", out, RedactedValue)
	}
}

func TestRedactOutboundValues(t *testing.T) {
	out := Redact(map[string]any{"credentials": "secret"}, SensitiveKeys("credentials"))
	if strings.Contains(out, "secret") {
		t.Fatalf("sensitive value leaked: %s", out)
	}
}
