package errs

import "net/http"

const (
	ServerInternalError = 500

	ArgsError           = 1001
	NotFoundError       = 1004
	RateLimitError      = 1029
	AuthenticationError = 1501
	TokenExpiredError   = 1502
	StorageError        = 1601
)

var (
	ErrInternal       = NewCodeError(ServerInternalError, "ServerInternalError")
	ErrArgs           = NewCodeError(ArgsError, "ArgsError")
	ErrNotFound       = NewCodeError(NotFoundError, "NotFoundError")
	ErrRateLimit      = NewCodeError(RateLimitError, "RateLimitError")
	ErrAuthentication = NewCodeError(AuthenticationError, "AuthenticationError")
	ErrTokenExpired   = NewCodeError(TokenExpiredError, "TokenExpiredError")
	ErrStorage        = NewCodeError(StorageError, "StorageError")
)

func init() {
	// an expired token is still an authentication failure
	_ = DefaultCodeRelation.Add(AuthenticationError, TokenExpiredError)
}

type codeMeta struct {
	status int
	name   string
}

var codeTable = map[int]codeMeta{
	ArgsError:           {http.StatusBadRequest, "VALIDATION_ERROR"},
	NotFoundError:       {http.StatusNotFound, "NOT_FOUND"},
	RateLimitError:      {http.StatusTooManyRequests, "RATE_LIMITED"},
	AuthenticationError: {http.StatusUnauthorized, "UNAUTHORIZED"},
	TokenExpiredError:   {http.StatusUnauthorized, "UNAUTHORIZED"},
	StorageError:        {http.StatusInternalServerError, "STORAGE_ERROR"},
	ServerInternalError: {http.StatusInternalServerError, "INTERNAL_ERROR"},
}

// Envelope is the JSON body returned for every failed API call.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

// HTTPStatus maps err to a response status. Errors without a code are 500.
func HTTPStatus(err error) int {
	status, _ := lookup(err)
	return status
}

// Response builds the status and envelope for err.
func Response(err error) (int, Envelope) {
	status, name := lookup(err)
	msg := "Internal server error"
	if ce, ok := AsCode(err); ok && status < http.StatusInternalServerError {
		msg = ce.Msg
		if ce.Detail != "" {
			msg = ce.Detail
		}
	} else if ok && ce.Code == StorageError {
		msg = "Failed to store message"
	}
	return status, Envelope{Success: false, Message: msg, Error: name}
}

func lookup(err error) (int, string) {
	ce, ok := AsCode(err)
	if !ok {
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
	if m, ok := codeTable[ce.Code]; ok {
		return m.status, m.name
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}
