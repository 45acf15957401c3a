package bridge

import "time"

// ProtocolVersion is the MCP protocol revision sent during initialization.
const ProtocolVersion = "2024-11-05"

// Default values used when the corresponding Option is not set.
const (
	DefaultRequestTimeout  = 30 * time.Second
	DefaultStopGracePeriod = 5 * time.Second
	DefaultClientName      = "mcp-bridge-go"
	DefaultClientVersion   = "1.0.0"
)
