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

package api

import (
	"encoding/json"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"fortio.org/log"
	"github.com/google/uuid"

	"github.com/rplcgo/rplc/eapi"
	"github.com/rplcgo/rplc/fnet"
	"github.com/rplcgo/rplc/tasks"
)

// MaxConnections bounds how many API clients are served concurrently;
// a connection past this limit waits for a pool slot rather than being
// refused.
const MaxConnections = 10

// DefaultTimeout bounds each individual read/write on a connection.
const DefaultTimeout = 1 * time.Second

// Info is the static identity reported by the "info" method.
type Info struct {
	SystemName  string `json:"system_name"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

// Server serves the control API over a Unix domain socket, backed by a
// tasks.Runtime for status/registry data.
type Server struct {
	info  Info
	rt    *tasks.Runtime
	pid   int
	start time.Time

	listener net.Listener
	sockPath string

	sem chan struct{} // MaxConnections-sized pool token bucket

	actions *eapi.Handlers // nil unless the event-bus variant is enabled
}

// EnableActions wires the "action" method (the event-bus transport
// variant) into this server's dispatch table.
func (s *Server) EnableActions(h *eapi.Handlers) { s.actions = h }

// NewServer constructs a control API server. It does not start listening
// until Serve is called.
func NewServer(info Info, rt *tasks.Runtime) *Server {
	return &Server{
		info:  info,
		rt:    rt,
		pid:   os.Getpid(),
		start: time.Now(),
		sem:   make(chan struct{}, MaxConnections),
	}
}

// Serve binds sockPath (removing any stale socket file first) and spawns
// a Service thread on rt that accepts connections until the controller
// shuts down. It returns the bound socket path.
func (s *Server) Serve(sockPath string) string {
	_ = os.Remove(sockPath)
	listener, addr := fnet.Listen("rplc-api", sockPath)
	if listener == nil {
		log.Critf("control API: unable to bind %s", sockPath)
		return ""
	}
	s.listener = listener
	s.sockPath = fnet.GetPort(addr)

	s.rt.SpawnService("api", func() {
		defer listener.Close()
		var wg sync.WaitGroup
		for {
			conn, err := listener.Accept()
			if err != nil {
				if s.rt.Status() <= tasks.Stopping {
					break
				}
				log.Errf("control API accept: %v", err)
				continue
			}
			connID := uuid.NewString()
			s.sem <- struct{}{}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { <-s.sem }()
				log.Debugf("control API connection %s opened", connID)
				if err := s.handleConn(conn); err != nil && err != io.EOF {
					log.Errf("control API connection %s: %v", connID, err)
				}
				log.Debugf("control API connection %s closed", connID)
			}()
		}
		wg.Wait()
	})
	return s.sockPath
}

// Close stops accepting new connections and removes the socket file.
func (s *Server) Close() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.sockPath != "" {
		_ = os.Remove(s.sockPath)
	}
}

// handleConn serves a sequence of request/response exchanges on one
// connection until the peer closes it or a framing error occurs.
func (s *Server) handleConn(conn net.Conn) error {
	defer conn.Close()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(DefaultTimeout))
		payload, err := readFrame(conn)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		var req Request
		if jsonErr := json.Unmarshal(payload, &req); jsonErr != nil {
			resp := Response{Version: Version, Error: &Error{Code: ErrInvalidRequest, Message: jsonErr.Error()}}
			if wErr := s.reply(conn, resp); wErr != nil {
				return wErr
			}
			continue
		}
		if req.Version != Version {
			resp := errorResponse(ErrUnsupportedVersion, "unsupported version: "+req.Version)
			if wErr := s.reply(conn, resp); wErr != nil {
				return wErr
			}
			continue
		}
		resp := s.dispatch(req)
		_ = conn.SetWriteDeadline(time.Now().Add(DefaultTimeout))
		if err := s.reply(conn, resp); err != nil {
			return err
		}
	}
}

func (s *Server) reply(conn net.Conn, resp Response) error {
	body, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return writeFrame(conn, body)
}

// dispatch resolves and runs one method call.
func (s *Server) dispatch(req Request) Response {
	if len(req.Params) > 0 && string(req.Params) != "null" {
		switch req.Method {
		case "test", "info", "thread_stats.get", "thread_stats.reset":
			return errorResponse(ErrInvalidParams, "method takes no parameters")
		}
	}
	switch req.Method {
	case "test":
		return okResponse(nil)
	case "info":
		return okResponse(s.currentInfo())
	case "thread_stats.get":
		return okResponse(s.rt.Registry.AllThreadInfo())
	case "thread_stats.reset":
		s.rt.Registry.ResetStats()
		return okResponse(nil)
	case "action":
		return s.dispatchAction(req.Params)
	default:
		return errorResponse(ErrUnknownMethod, req.Method)
	}
}

// dispatchAction decodes an eapi.Action and runs it to completion on the
// action worker pool before replying, matching the original's blocking
// semantics (the call doesn't return until running/completed events have
// both been published).
func (s *Server) dispatchAction(params json.RawMessage) Response {
	if s.actions == nil {
		return errorResponse(ErrUnknownMethod, "action")
	}
	if len(params) == 0 {
		return errorResponse(ErrInvalidParams, "action requires a payload")
	}
	var action eapi.Action
	if err := json.Unmarshal(params, &action); err != nil {
		return errorResponse(ErrInvalidParams, err.Error())
	}
	if err := s.actions.HandleAction(action); err != nil {
		return errorResponse(ErrInternal, err.Error())
	}
	return okResponse(nil)
}

// PlcInfo is the payload of the "info" method.
type PlcInfo struct {
	SystemName  string  `json:"system_name"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     string  `json:"version"`
	Status      int16   `json:"status"`
	PID         int     `json:"pid"`
	Uptime      float64 `json:"uptime_seconds"`
}

func (s *Server) currentInfo() PlcInfo {
	return PlcInfo{
		SystemName:  s.info.SystemName,
		Name:        s.info.Name,
		Description: s.info.Description,
		Version:     s.info.Version,
		Status:      int16(s.rt.Status()),
		PID:         s.pid,
		Uptime:      time.Since(s.start).Seconds(),
	}
}

func okResponse(v any) Response {
	if v == nil {
		return Response{Version: Version}
	}
	body, err := json.Marshal(v)
	if err != nil {
		return errorResponse(ErrInternal, err.Error())
	}
	return Response{Version: Version, Result: body}
}

func errorResponse(code int16, message string) Response {
	return Response{Version: Version, Error: &Error{Code: code, Message: message}}
}
