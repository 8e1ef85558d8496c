package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	ErrMalformedEnvelope = fmt.Errorf("malformed envelope")
	ErrUnknownMsgType    = fmt.Errorf("unknown msg_type")

	ErrUserNotFound = fmt.Errorf("user not found")
	ErrRoomNotFound = fmt.Errorf("room not found")

	ErrAccountAlreadyExists = fmt.Errorf("account already exists")
	ErrInvalidCredentials   = fmt.Errorf("invalid credentials")

	ErrSessionClosed = fmt.Errorf("session closed")
)
