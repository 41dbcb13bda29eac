package protocol

// Relay event names published on the bus.
const (
	EventInboundReceived = "relay.inbound"
	EventOutboundSent    = "relay.sent"
	EventPollError       = "relay.poll_error"
	EventSendError       = "relay.send_error"
	EventStorageError    = "relay.storage_error"
)

// MCP notification method and logger used to surface inbound messages to hosts.
const (
	NotificationLogMessage = "notifications/message"
	NotificationLogger     = "telegram"
)
