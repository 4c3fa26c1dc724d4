// Copyright 2024 rplc Authors
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

// Package api implements the control socket: a length-prefixed
// request/response protocol served over a local stream endpoint, letting
// an operator or sibling process query liveness, identity, and per
// thread jitter statistics without touching the process image.
package api // import "github.com/rplcgo/rplc/api"

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Version is the wire protocol version every Request and Response
// carries, so either side can detect a future incompatible change
// before trusting the payload.
const Version = "2.0"

// Request is one method call. Params is left as raw JSON so each
// handler decodes (or rejects) its own shape.
type Request struct {
	Version string          `json:"version"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is returned for every Request. Exactly one of Result or Error
// is set.
type Response struct {
	Version string          `json:"version"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-friendly error shape: a numeric class a client can
// switch on, plus a human-readable message.
type Error struct {
	Code    int16  `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string { return fmt.Sprintf("%d: %s", e.Code, e.Message) }

// Known error codes, following JSON-RPC 2.0's reserved error-code
// ranges since the wire payload carries that same version tag.
const (
	ErrInvalidRequest     int16 = -32600
	ErrUnknownMethod      int16 = -32601
	ErrInvalidParams      int16 = -32602
	ErrInternal           int16 = -32603
	ErrUnsupportedVersion int16 = -32000
)

// maxFrameSize bounds a single frame's payload, guarding against a
// corrupt or hostile length prefix turning into an unbounded allocation.
const maxFrameSize = 16 << 20

// writeFrame writes one frame: a single zero byte, a 4-byte
// little-endian length, then payload. The leading zero byte lets a
// future revision multiplex control bytes without breaking this
// version's framing.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxFrameSize {
		return fmt.Errorf("api: frame too large (%d bytes)", len(payload))
	}
	header := make([]byte, 5)
	header[0] = 0
	binary.LittleEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one frame written by writeFrame. io.EOF is returned
// unmodified when the peer closes between frames (a clean end of a
// request/response sequence, not an error).
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if header[0] != 0 {
		return nil, fmt.Errorf("api: invalid frame header byte %d", header[0])
	}
	n := binary.LittleEndian.Uint32(header[1:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("api: frame too large (%d bytes)", n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
