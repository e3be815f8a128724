package webhook

import (
	"net/url"
	"strings"
)

// BuildURL renders the final endpoint URL for a dispatch.
//
// Every {key} placeholder in the template is replaced with pathParams[key];
// placeholders without a matching param are left verbatim. When addURLEvents
// is set, the event name is appended as an event= query parameter. When the
// type filter is non-empty and the payload carries a matching messageType,
// that type is appended as messageType=.
func BuildURL(template, event string, data map[string]any, pathParams map[string]string, addURLEvents bool, typeFilter []string) string {
	result := template
	for key, value := range pathParams {
		result = strings.ReplaceAll(result, "{"+key+"}", value)
	}

	if addURLEvents {
		result += querySeparator(result) + "event=" + url.QueryEscape(event)
	}

	if len(typeFilter) > 0 {
		if messageType, ok := messageTypeOf(data); ok && containsType(typeFilter, messageType) {
			result += querySeparator(result) + "messageType=" + url.QueryEscape(messageType)
		}
	}

	return result
}

func querySeparator(u string) string {
	if strings.Contains(u, "?") {
		return "&"
	}
	return "?"
}

func messageTypeOf(data map[string]any) (string, bool) {
	value, ok := data["messageType"]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func containsType(types []string, t string) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
