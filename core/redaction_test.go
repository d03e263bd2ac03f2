package core

import "testing"

func TestRedactSensitiveMapPreservesTraceabilityMetadata(t *testing.T) {
	redacted := RedactSensitiveMap(map[string]any{
		"trace_id":      "trace_1",
		"request_id":    "req_1",
		"user_id":       "usr_1",
		"access_token":  "secret-token",
		"authorization": "Bearer secret-token",
		"nested":        map[string]any{"refresh_token": "refresh", "trace_id": "trace_nested"},
		"events":        []any{map[string]any{"api_key": "key_1"}, map[string]any{"external_id": "ext_1"}},
		"password":      "hunter2",
	})

	if redacted["trace_id"] != "trace_1" || redacted["user_id"] != "usr_1" {
		t.Fatalf("expected traceability keys to remain visible, got %#v", redacted)
	}
	if redacted["access_token"] != RedactedValue || redacted["password"] != RedactedValue {
		t.Fatalf("expected credentials to be redacted, got %#v", redacted)
	}
	nested, ok := redacted["nested"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested redacted map")
	}
	if nested["refresh_token"] != RedactedValue {
		t.Fatalf("expected nested refresh_token to be redacted, got %#v", nested["refresh_token"])
	}
	events := redacted["events"].([]any)
	if events[0].(map[string]any)["api_key"] != RedactedValue {
		t.Fatalf("expected api_key inside list to be redacted")
	}
	if events[1].(map[string]any)["external_id"] != "ext_1" {
		t.Fatalf("expected external_id inside list to stay visible")
	}
}

func TestRedactSensitiveMapEmptyInput(t *testing.T) {
	if got := RedactSensitiveMap(nil); got == nil || len(got) != 0 {
		t.Fatalf("expected empty map, got %#v", got)
	}
}
