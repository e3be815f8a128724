package webhook

import "strings"

// messagePrefix marks message-category events ("message.received" etc.)
const messagePrefix = "message."

// ShouldExclude decides whether an event is suppressed for a subscription
// before any delivery record is created.
//
// excludeMessages suppresses every message-category event. A non-empty type
// filter suppresses message events whose messageType is present in the
// payload but not in the filter; a payload without a messageType passes.
func ShouldExclude(event string, data map[string]any, excludeMessages bool, typeFilter []string) bool {
	isMessage := strings.HasPrefix(event, messagePrefix)

	if excludeMessages && isMessage {
		return true
	}

	if len(typeFilter) > 0 && isMessage {
		if messageType, ok := messageTypeOf(data); ok && !containsType(typeFilter, messageType) {
			return true
		}
	}

	return false
}
