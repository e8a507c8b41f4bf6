package events

// Payload keys under which providers are known to carry the correlation key.
// Webhook payloads use lowerCamelCase; API-synthesized payloads use
// snake_case; some providers nest the signaling body under "data".
var callConnectionIDKeys = []string{
	"callConnectionId",
	"call_connection_id",
	"callConnectionID",
}

// CallConnectionID resolves the correlation key for an envelope. It probes
// the known payload shapes, then a nested "data" object, and finally falls
// back to the transport-supplied header value. Returns "" when the envelope
// cannot be correlated.
func CallConnectionID(envelope Envelope) string {
	if id := callConnectionIDFromData(envelope.Data); id != "" {
		return id
	}

	if nested, ok := envelope.Data["data"].(map[string]any); ok {
		if id := callConnectionIDFromData(nested); id != "" {
			return id
		}
	}

	return envelope.CallConnectionID
}

func callConnectionIDFromData(data map[string]any) string {
	for _, key := range callConnectionIDKeys {
		if id := String(data, key); id != "" {
			return id
		}
	}
	return ""
}

// EmbeddedKind resolves the original event kind wrapped inside a meta
// webhook envelope. Returns "" when the payload carries none.
func EmbeddedKind(envelope Envelope) Kind {
	if kind := String(envelope.Data, "eventType"); kind != "" {
		return Kind(kind)
	}
	if kind := String(envelope.Data, "event_type"); kind != "" {
		return Kind(kind)
	}
	if nested, ok := envelope.Data["data"].(map[string]any); ok {
		if kind := String(nested, "eventType"); kind != "" {
			return Kind(kind)
		}
	}
	return ""
}
