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

// Package apiclient is a thin client for the control socket served by
// package api, used by cmd/rplcctl and by tests that want to exercise a
// running controller without depending on its internals.
package apiclient // import "github.com/rplcgo/rplc/apiclient"

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"
)

// Client holds one open connection to a control socket. It is not safe
// for concurrent use by multiple goroutines; open one Client per caller.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Dial connects to the control socket at path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, timeout: 2 * time.Second}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// wireVersion mirrors api.Version without importing package api, keeping
// this client usable against any server speaking the same wire shape.
const wireVersion = "2.0"

// wireError mirrors api.Error without importing package api, keeping
// this client usable against any server speaking the same wire shape.
type wireError struct {
	Code    int16  `json:"code"`
	Message string `json:"message"`
}

func (e *wireError) Error() string { return fmt.Sprintf("%d: %s", e.Code, e.Message) }

type wireResponse struct {
	Version string          `json:"version"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *wireError      `json:"error,omitempty"`
}

// Call sends one method call with the given params (nil for none) and
// decodes the result into out (nil to discard it).
func (c *Client) Call(method string, params, out any) error {
	reqBody := struct {
		Version string `json:"version"`
		Method  string `json:"method"`
		Params  any    `json:"params,omitempty"`
	}{Version: wireVersion, Method: method, Params: params}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}
	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	if err := writeFrame(c.conn, body); err != nil {
		return err
	}
	respBody, err := readFrame(c.conn)
	if err != nil {
		return err
	}
	var resp wireResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return err
	}
	if resp.Version != wireVersion {
		return fmt.Errorf("apiclient: unsupported response version %q", resp.Version)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if out != nil && len(resp.Result) > 0 {
		return json.Unmarshal(resp.Result, out)
	}
	return nil
}

func writeFrame(w io.Writer, payload []byte) error {
	header := make([]byte, 5)
	binary.LittleEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 5)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if header[0] != 0 {
		return nil, fmt.Errorf("apiclient: invalid frame header byte %d", header[0])
	}
	n := binary.LittleEndian.Uint32(header[1:])
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
