package config

import (
	"strings"
)

func envFlag(key string) bool {
	v := strings.ToLower(strings.TrimSpace(env.GetString(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y" || v == "on"
}

// SingleDeviceSession makes the websocket AUTH handshake evict a user's
// sockets that come from a different (ip, client agent) pair.
//
// Set via env:
// - SINGLE_DEVICE_SESSION=true
func SingleDeviceSession() bool {
	return envFlag("SINGLE_DEVICE_SESSION")
}

// StrictOrderTransitions rejects order status moves that go backwards or
// leave PAID. Without it any target status is accepted.
//
// Set via env:
// - STRICT_ORDER_TRANSITIONS=true
func StrictOrderTransitions() bool {
	return envFlag("STRICT_ORDER_TRANSITIONS")
}

// NotifyOutboxEnabled stores order notifications in order_event_records inside
// the order transaction; the dispatcher delivers them with retries.
//
// Set via env:
// - NOTIFY_OUTBOX_ENABLED=true
func NotifyOutboxEnabled() bool {
	return envFlag("NOTIFY_OUTBOX_ENABLED")
}

// PubSubRelayEnabled publishes outbox events to the ORDER_EVENTS_TOPIC instead
// of the local registry, so every instance behind the load balancer sees them.
//
// Set via env:
// - ORDER_EVENTS_PUBSUB=true
func PubSubRelayEnabled() bool {
	return envFlag("ORDER_EVENTS_PUBSUB")
}

// Env: ENABLE_REPORT_CACHE
func ReportCacheEnabled() bool {
	return envFlag("ENABLE_REPORT_CACHE")
}
