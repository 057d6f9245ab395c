package types

// Reason is a peer-facing error code sent in JSON-RPC error responses and
// delete notifications.
type Reason struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var (
	ReasonInvalidMethod             = Reason{Code: 1001, Message: "Invalid method"}
	ReasonInvalidUpdateRequest      = Reason{Code: 1003, Message: "Invalid update request"}
	ReasonInvalidExtendRequest      = Reason{Code: 1004, Message: "Invalid extend request"}
	ReasonUnauthorizedMethod        = Reason{Code: 3001, Message: "Unauthorized method"}
	ReasonUnauthorizedUpdateRequest = Reason{Code: 3003, Message: "Unauthorized update request"}
	ReasonUnauthorizedExtendRequest = Reason{Code: 3004, Message: "Unauthorized extend request"}
	ReasonUserDisconnected          = Reason{Code: 6000, Message: "User disconnected"}
	ReasonNoSessionForTopic         = Reason{Code: 7001, Message: "No matching session"}
	ReasonNoPairingForTopic         = Reason{Code: 7002, Message: "No matching pairing"}
	ReasonMethodNotFound            = Reason{Code: -32601, Message: "Method not found"}
	ReasonInvalidParams             = Reason{Code: -32602, Message: "Invalid params"}
	ReasonInternalError             = Reason{Code: -32603, Message: "Internal error"}
)
