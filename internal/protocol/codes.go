// Package protocol defines the wire-level request/response codes shared
// between the session dispatcher and the client CLI (spec §6), plus a thin
// helper layer combining internal/frame and internal/objcodec into
// whole-message send/receive calls.
package protocol

// Request codes (spec §6, R01–R09).
const (
	ReqLogin1        uint64 = 1
	ReqLogin2        uint64 = 2
	ReqListUsers     uint64 = 3
	ReqListMessages  uint64 = 4
	ReqSendMsg       uint64 = 5
	ReqReadMsg       uint64 = 6
	ReqDeleteMessage uint64 = 7
	ReqDeleteAccount uint64 = 8
	ReqPing          uint64 = 9
)

// Response codes (spec §6, E01–E06).
const (
	RespUserExisting    uint64 = 101
	RespUserNotExisting uint64 = 102
	RespLoginSuccess    uint64 = 103
	RespLoginFailed     uint64 = 104
	RespListUsers       uint64 = 105
	RespListMessages    uint64 = 106
)
