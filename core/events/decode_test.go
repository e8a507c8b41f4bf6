package events

import (
	"encoding/json"
	"testing"
)

func TestDecodeDataAcceptsMapping(t *testing.T) {
	payload := map[string]any{"callConnectionId": "call-1"}

	data := DecodeData(payload)

	if data["callConnectionId"] != "call-1" {
		t.Fatalf("expected mapping to pass through, got %v", data)
	}
}

func TestDecodeDataAcceptsStringMapping(t *testing.T) {
	data := DecodeData(map[string]string{"tone": "five"})

	if data["tone"] != "five" {
		t.Fatalf("expected string mapping to widen, got %v", data)
	}
}

func TestDecodeDataAcceptsJSONString(t *testing.T) {
	data := DecodeData(`{"tone":"pound","sequenceId":3}`)

	if data["tone"] != "pound" {
		t.Fatalf("expected JSON string to decode, got %v", data)
	}
	if Int(data, "sequenceId") != 3 {
		t.Fatalf("expected sequenceId 3, got %d", Int(data, "sequenceId"))
	}
}

func TestDecodeDataAcceptsRawBytes(t *testing.T) {
	data := DecodeData([]byte(`{"status":"connected"}`))

	if data["status"] != "connected" {
		t.Fatalf("expected raw bytes to decode, got %v", data)
	}
}

func TestDecodeDataAcceptsRawMessage(t *testing.T) {
	data := DecodeData(json.RawMessage(`{"status":"connected"}`))

	if data["status"] != "connected" {
		t.Fatalf("expected raw message to decode, got %v", data)
	}
}

func TestDecodeDataAcceptsAttributeShapedValue(t *testing.T) {
	payload := struct {
		CallConnectionID string `json:"callConnectionId"`
	}{CallConnectionID: "call-9"}

	data := DecodeData(payload)

	if data["callConnectionId"] != "call-9" {
		t.Fatalf("expected struct payload to decode, got %v", data)
	}
}

func TestDecodeDataNeverFails(t *testing.T) {
	for name, payload := range map[string]any{
		"nil":            nil,
		"garbage string": "not json at all",
		"garbage bytes":  []byte{0xff, 0xfe},
		"scalar":         42,
		"channel":        make(chan int),
		"json scalar":    `"just a string"`,
		"nil mapping":    map[string]any(nil),
	} {
		data := DecodeData(payload)
		if data == nil {
			t.Fatalf("%s: expected non-nil mapping", name)
		}
		if len(data) != 0 {
			t.Fatalf("%s: expected empty mapping, got %v", name, data)
		}
	}
}

func TestCallConnectionIDProbesPayloadShapes(t *testing.T) {
	for name, envelope := range map[string]Envelope{
		"camel case": {Data: map[string]any{"callConnectionId": "call-1"}},
		"snake case": {Data: map[string]any{"call_connection_id": "call-1"}},
		"nested data": {Data: map[string]any{
			"data": map[string]any{"callConnectionId": "call-1"},
		}},
		"header fallback": {
			Data:             map[string]any{},
			CallConnectionID: "call-1",
		},
	} {
		if got := CallConnectionID(envelope); got != "call-1" {
			t.Fatalf("%s: expected call-1, got %q", name, got)
		}
	}
}

func TestCallConnectionIDPrefersPayloadOverHeader(t *testing.T) {
	envelope := Envelope{
		Data:             map[string]any{"callConnectionId": "payload-id"},
		CallConnectionID: "header-id",
	}

	if got := CallConnectionID(envelope); got != "payload-id" {
		t.Fatalf("expected payload id to win, got %q", got)
	}
}

func TestCallConnectionIDEmptyWhenUnresolvable(t *testing.T) {
	if got := CallConnectionID(Envelope{Data: map[string]any{}}); got != "" {
		t.Fatalf("expected empty id, got %q", got)
	}
}

func TestEmbeddedKindResolvesOriginalType(t *testing.T) {
	envelope := Envelope{Data: map[string]any{"eventType": "call.connected"}}

	if got := EmbeddedKind(envelope); got != KindCallConnected {
		t.Fatalf("expected embedded kind call.connected, got %q", got)
	}
}

func TestDisconnectKindsCoverFailureTerminals(t *testing.T) {
	for _, kind := range []Kind{KindCallDisconnected, KindCreateCallFailed, KindAnswerCallFailed} {
		if !IsDisconnectKind(kind) {
			t.Fatalf("expected %q to classify as disconnect", kind)
		}
	}
	if IsDisconnectKind(KindCallConnected) || !IsConnectKind(KindCallConnected) {
		t.Fatalf("expected call.connected to classify as connect only")
	}
}
