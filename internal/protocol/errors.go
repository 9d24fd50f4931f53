package protocol

// Error codes carried by ErrorMsg.
const (
	ErrBadRequest          = "E_BAD_REQUEST"
	ErrProtoVersion        = "E_PROTO_VERSION"
	ErrUsernameInvalid     = "E_USERNAME_INVALID"
	ErrUsernameTaken       = "E_USERNAME_TAKEN"
	ErrUnauthorized        = "E_UNAUTHORIZED"
	ErrQueueFull           = "E_QUEUE_FULL"
	ErrInstanceUnavailable = "E_INSTANCE_UNAVAILABLE"
	ErrInternal            = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:          {},
	ErrProtoVersion:        {},
	ErrUsernameInvalid:     {},
	ErrUsernameTaken:       {},
	ErrUnauthorized:        {},
	ErrQueueFull:           {},
	ErrInstanceUnavailable: {},
	ErrInternal:            {},
}

// IsKnownCode reports whether code is one of the error codes above.
func IsKnownCode(code string) bool {
	_, ok := knownCodes[code]
	return ok
}
