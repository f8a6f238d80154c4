// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package z21

import (
	"errors"
	"fmt"
)

// Decode failures. Dispatch wraps these in InvalidMessage.Reason; test them
// with errors.Is.
var (
	ErrTruncatedFrame   = errors.New("truncated frame")
	ErrLengthMismatch   = errors.New("length mismatch")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrPayloadLength    = errors.New("invalid payload length")
	ErrFieldValue       = errors.New("invalid field value")
)

// ErrInvalidCommand is matched by every *InvalidCommandError.
var ErrInvalidCommand = errors.New("invalid command")

// ErrUnknownCommand is returned by ParseCommand for bytes that are a well-formed
// frame but not a command this package can send.
var ErrUnknownCommand = errors.New("unknown command")

// InvalidCommandError reports a command parameter outside the range the wire
// format can carry.
type InvalidCommandError struct {
	Command string
	Field   string
	Value   int
	Reason  string
}

// Error implements the error interface
func (e *InvalidCommandError) Error() string {
	return fmt.Sprintf("%s: invalid %s %d: %s", e.Command, e.Field, e.Value, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidCommand) match.
func (e *InvalidCommandError) Is(target error) bool {
	return target == ErrInvalidCommand
}

func invalidCommand(command, field string, value int, reason string) *InvalidCommandError {
	return &InvalidCommandError{Command: command, Field: field, Value: value, Reason: reason}
}
