package masking

import "strings"

const maskToken = "****"

// contactKeys are metadata keys whose values identify a person.
var contactKeys = map[string]struct{}{
	"email":  {},
	"emails": {},
	"phone":  {},
}

// MaskEmail keeps the first character of the local part and the domain.
func MaskEmail(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	local, domain, ok := strings.Cut(trimmed, "@")
	if !ok || local == "" {
		return MaskSecret(trimmed)
	}
	return local[:1] + maskToken + "@" + domain
}

// MaskSecret redacts a value while keeping a minimal suffix.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 4 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskContacts returns a copy of input with contact values masked, recursing into maps.
func MaskContacts(input map[string]any) map[string]any {
	if len(input) == 0 {
		return nil
	}

	masked := make(map[string]any, len(input))
	for key, value := range input {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if _, ok := contactKeys[strings.ToLower(trimmedKey)]; ok {
			masked[trimmedKey] = maskValue(value)
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			masked[trimmedKey] = MaskContacts(nested)
			continue
		}
		masked[trimmedKey] = value
	}

	if len(masked) == 0 {
		return nil
	}
	return masked
}

func maskValue(value any) any {
	switch cast := value.(type) {
	case string:
		if strings.Contains(cast, "@") {
			return MaskEmail(cast)
		}
		return MaskSecret(cast)
	case []string:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item))
		}
		return out
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, maskValue(item))
		}
		return out
	default:
		return value
	}
}
