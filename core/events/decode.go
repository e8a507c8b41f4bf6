package events

import "encoding/json"

// DecodeData converts an opaque payload into a mapping. It is total: it
// accepts a mapping, a JSON string, raw bytes, or any value that survives a
// JSON round-trip, and returns an empty mapping for everything else. It
// never panics and never returns nil.
func DecodeData(payload any) map[string]any {
	switch p := payload.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		if p == nil {
			return map[string]any{}
		}
		return p
	case map[string]string:
		data := make(map[string]any, len(p))
		for k, v := range p {
			data[k] = v
		}
		return data
	case string:
		return decodeJSONBytes([]byte(p))
	case []byte:
		return decodeJSONBytes(p)
	case json.RawMessage:
		return decodeJSONBytes(p)
	default:
		// Structs and pointers to structs are accepted through a JSON
		// round-trip so attribute-shaped payloads decode like mappings do.
		raw, err := json.Marshal(payload)
		if err != nil {
			return map[string]any{}
		}
		return decodeJSONBytes(raw)
	}
}

func decodeJSONBytes(raw []byte) map[string]any {
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil || data == nil {
		return map[string]any{}
	}
	return data
}

// String pulls a string field out of a payload mapping, tolerating absent or
// differently-typed values.
func String(data map[string]any, key string) string {
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}

// Int pulls an integer field out of a payload mapping. JSON numbers arrive
// as float64; both representations are accepted. Returns 0 when absent.
func Int(data map[string]any, key string) int {
	switch value := data[key].(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case json.Number:
		if n, err := value.Int64(); err == nil {
			return int(n)
		}
	}
	return 0
}
