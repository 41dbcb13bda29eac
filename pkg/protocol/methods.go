package protocol

// ProtocolVersion is bumped whenever tool names or argument shapes change.
const ProtocolVersion = 1

// ServerName is the MCP implementation name advertised to hosts.
const ServerName = "tgrelay"

// MCP tool names exposed to the host.
const (
	ToolSendMessage = "send_telegram_message"
	ToolGetMessages = "get_telegram_messages"
	ToolStatus      = "telegram_status"
)

// Tool argument keys.
const (
	ArgMessage = "message"
	ArgCount   = "count"
)

// DefaultFetchCount is used when get_telegram_messages gets no positive count.
const DefaultFetchCount = 10
