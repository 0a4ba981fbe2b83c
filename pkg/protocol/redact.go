package protocol

import "encoding/json"

// RedactedValue replaces sensitive parameter values before any log emission.
const RedactedValue = "****"

// Sensitive declares which parameters of a method carry credentials or
// tokens. The zero value marks nothing as sensitive.
type Sensitive struct {
	// All redacts every parameter.
	All bool
	// Keys redacts the named parameters only.
	Keys []string
}

// SensitiveAll marks every parameter of a method as sensitive.
func SensitiveAll() Sensitive { return Sensitive{All: true} }

// SensitiveKeys marks the named parameters as sensitive.
func SensitiveKeys(keys ...string) Sensitive { return Sensitive{Keys: keys} }

func (s Sensitive) empty() bool { return !s.All && len(s.Keys) == 0 }

// Redact returns a loggable rendering of params with sensitive values
// replaced. It never returns the original values for sensitive fields, even
// when the params cannot be parsed.
func Redact(params any, s Sensitive) string {
	raw, ok := params.(json.RawMessage)
	if !ok {
		data, err := json.Marshal(params)
		if err != nil {
			return RedactedValue
		}
		raw = data
	}
	if len(raw) == 0 {
		return "{}"
	}
	if s.empty() {
		return string(raw)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		// Not a keyed bag; nothing can be selectively kept.
		return RedactedValue
	}
	if s.All {
		for k := range m {
			m[k] = RedactedValue
		}
	} else {
		for _, k := range s.Keys {
			if _, present := m[k]; present {
				m[k] = RedactedValue
			}
		}
	}
	out, err := json.Marshal(m)
	if err != nil {
		return RedactedValue
	}
	return string(out)
}
