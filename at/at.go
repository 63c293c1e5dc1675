package at

const (
	// Line control
	CR         = '\r'
	LF         = '\n'
	Terminator = "\n"

	// Commands
	CmdCheckAlive = "AT"
	CmdID         = "AT+ID"
	CmdKey        = "AT+KEY"

	// Identifier and key names used as command arguments
	IDDevEui  = "DevEui"
	IDAppEui  = "AppEui"
	KeyAppKey = "APPKEY"

	// Replies
	ReplyPrefix = "+AT: " // shortest reply prefix in the dialect
	OK          = "OK"
	ErrorOpen   = "ERROR("
	ErrorClose  = ")"
)

type ResponseType int

const (
	TypeReply   ResponseType = iota // +XX: <body>
	TypeError                       // +XX: ERROR(<code>)
	TypeUnknown                     // anything without a reply prefix
)

func (t ResponseType) String() string {
	switch t {
	case TypeReply:
		return "reply"
	case TypeError:
		return "error"
	default:
		return "unknown"
	}
}
