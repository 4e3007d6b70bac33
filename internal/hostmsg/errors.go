package hostmsg

import (
	"errors"
	"fmt"
)

var ErrEmptyMessage = errors.New("empty message")

type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown host message type %q", e.Type)
}

type MissingFieldError struct {
	MessageType string
	Field       string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field %s in message type %s", e.Field, e.MessageType)
}

type InvalidFieldError struct {
	MessageType string
	Field       string
	Reason      string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("invalid field %s in message type %s: %s", e.Field, e.MessageType, e.Reason)
}
