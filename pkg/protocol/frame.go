package protocol

// ProtocolVersion is the wire protocol version reported on /health and in
// the connect handshake. Bump whenever a frame shape changes incompatibly.
const ProtocolVersion = 1

// Frame kinds, per the connect/request/response/event envelope.
const (
	KindConnect  = "connect"
	KindHello    = "hello"
	KindRequest  = "request"
	KindResponse = "response"
	KindEvent    = "event"
)

// ConnectFrame is the first frame a client sends on a new WebSocket
// connection, carrying whatever credential the handshake accepts
// (loopback connections may omit Token entirely).
type ConnectFrame struct {
	Kind  string `json:"kind"`
	Token string `json:"token,omitempty"`
	APIKey string `json:"api_key,omitempty"`
}

// HelloFrame is the server's reply to a successful connect, echoing the
// protocol version and a server-assigned connection ID.
type HelloFrame struct {
	Kind            string `json:"kind"`
	ProtocolVersion int    `json:"protocol_version"`
	ConnectionID    string `json:"connection_id"`
}

// RequestFrame carries one RPC call. ID is chosen by the client and
// echoed on the matching ResponseFrame; IdempotencyKey, when set,
// deduplicates retried requests within the server's TTL window.
type RequestFrame struct {
	Kind           string      `json:"kind"`
	ID             string      `json:"id"`
	Method         string      `json:"method"`
	Params         interface{} `json:"params,omitempty"`
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
}

// ResponseFrame answers one RequestFrame by matching ID.
type ResponseFrame struct {
	Kind   string      `json:"kind"`
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody is the wire shape of a failed response, keyed by one of the
// public error codes (invalid_request, unavailable, not_found, conflict,
// unauthenticated, timeout, internal).
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventFrame is a server-initiated push, broadcast to every connected
// client or addressed to one via Seq/Name conventions understood by the
// caller. Seq is a monotonically increasing broadcast sequence number,
// scoped to the server process, used by clients to detect gaps.
type EventFrame struct {
	Kind    string      `json:"kind"`
	Seq     uint64      `json:"seq"`
	Name    string      `json:"name"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewEvent builds an EventFrame with Kind pre-filled; Seq is assigned by
// the broadcaster.
func NewEvent(name string, payload interface{}) *EventFrame {
	return &EventFrame{Kind: KindEvent, Name: name, Payload: payload}
}
