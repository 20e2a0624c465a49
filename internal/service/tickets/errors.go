package tickets

import "errors"

var (
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidStatus    = errors.New("invalid ticket status transition")
)
