package telemetry

import "strings"

// redactedFieldSubstrings are matched case-insensitively against a JSONL
// record's field names (spec.md §4.4: "Fields whose name matches any of
// {auth_token, password, secret, api_key, *token*, *secret*}").
//
// Grounded on r3e-network-service_layer's infrastructure/redaction
// Redactor.isSecretField, adapted from a configurable blocklist to the
// fixed set spec.md names.
var redactedFieldSubstrings = []string{
	"auth_token",
	"password",
	"secret",
	"api_key",
	"token",
}

const redactedPlaceholder = "***REDACTED***"

func isRedactedField(name string) bool {
	lower := strings.ToLower(name)
	for _, substr := range redactedFieldSubstrings {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}

// redactFields returns a shallow copy of fields with any key matching the
// redaction set replaced by a placeholder. Nested maps are redacted
// recursively; other value types pass through unchanged.
func redactFields(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		switch {
		case isRedactedField(k):
			out[k] = redactedPlaceholder
		default:
			if nested, ok := v.(map[string]interface{}); ok {
				out[k] = redactFields(nested)
			} else {
				out[k] = v
			}
		}
	}
	return out
}
