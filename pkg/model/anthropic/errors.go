// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package anthropic

import (
	"errors"
	"fmt"
)

var (
	// ErrToolAlreadyOpen is returned when a tool_use block starts while
	// another one is still being assembled. The open block is kept.
	ErrToolAlreadyOpen = errors.New("tool_use block started while another is open")

	// ErrUnknownEvent is returned for stream payloads whose type (or delta
	// type) is not modeled. Stream consumers log and skip them.
	ErrUnknownEvent = errors.New("unknown stream event")
)

// TransportError is a network or I/O failure talking to the provider,
// including a body read that fails mid-stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("anthropic %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a response the provider considers a failure: a non-2xx
// status, an error event inside a stream, or a body that does not decode.
type ProtocolError struct {
	StatusCode int
	Body       string

	// ErrorType and Message are set when the provider returned a
	// structured error object.
	ErrorType string
	Message   string

	Err error
}

func (e *ProtocolError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("anthropic API error (status %d, %s): %s", e.StatusCode, e.ErrorType, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("anthropic API error (status %d): %v", e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("anthropic API error (status %d): %s", e.StatusCode, e.Body)
	}
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsProtocol reports whether err is (or wraps) a ProtocolError.
func IsProtocol(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
