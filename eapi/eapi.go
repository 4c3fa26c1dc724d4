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

// Package eapi is the event-bus variant of the control API: instead of
// a plain request/response method table, it adds an
// "action" method that decodes an item identifier plus parameters,
// dispatches to a registered handler on a dedicated blocking worker
// pool, and publishes running/completed/failed lifecycle events for
// every invocation.
package eapi // import "github.com/rplcgo/rplc/eapi"

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fortio.org/log"
	"github.com/google/uuid"
)

// Publisher delivers one event payload under topic. Implementations
// must not block indefinitely: a bus reconnect or a full outbound queue
// should drop or buffer internally rather than stall an action worker.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Action is one action invocation: an item identifier (the OID in the
// original bus terminology) plus opaque parameters the handler decodes
// itself.
type Action struct {
	OID    string          `json:"oid"`
	Params json.RawMessage `json:"params,omitempty"`
}

// ActionHandlerFunc mutates the process image (or whatever the action
// targets) and returns an optional result payload.
type ActionHandlerFunc func(*Action) (json.RawMessage, error)

// EventStatus is the lifecycle stage reported for one action.
type EventStatus string

const (
	EventRunning   EventStatus = "running"
	EventCompleted EventStatus = "completed"
	EventFailed    EventStatus = "failed"
)

// Event is published once per status transition of one action
// invocation.
type Event struct {
	OID          string          `json:"oid"`
	InvocationID string          `json:"invocation_id"`
	Status       EventStatus     `json:"status"`
	Result       json.RawMessage `json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
	Timestamp    float64         `json:"t"`
}

func actionTopic(oid string) string { return "action." + oid }

// Handlers is the action dispatch table plus the blocking worker pool
// that runs them. The zero value is not usable; construct with
// NewHandlers.
type Handlers struct {
	mu       sync.Mutex
	handlers map[string]ActionHandlerFunc

	publisher Publisher
	pool      chan struct{}
}

// NewHandlers constructs a Handlers bound to publisher and sized for
// poolSize concurrent in-flight actions: a dedicated blocking worker
// pool sized once at process start.
func NewHandlers(publisher Publisher, poolSize int) *Handlers {
	if poolSize <= 0 {
		poolSize = 1
	}
	return &Handlers{
		handlers:  make(map[string]ActionHandlerFunc),
		publisher: publisher,
		pool:      make(chan struct{}, poolSize),
	}
}

// AppendActionHandler registers f for oid. It panics on a duplicate
// registration: the handler table is write-once per identifier.
func (h *Handlers) AppendActionHandler(oid string, f ActionHandlerFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, dup := h.handlers[oid]; dup {
		panic(fmt.Sprintf("action handler for %s is already registered", oid))
	}
	h.handlers[oid] = f
}

func (h *Handlers) lookup(oid string) (ActionHandlerFunc, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, ok := h.handlers[oid]
	return f, ok
}

// HandleAction runs one action synchronously: it blocks for a free pool
// slot, publishes "running", invokes the registered handler, then
// publishes "completed" or "failed". It blocks its caller for the
// duration of the handler; the control API's "action" method calls it
// directly and replies once it returns.
func (h *Handlers) HandleAction(action Action) error {
	handler, ok := h.lookup(action.OID)
	if !ok {
		return fmt.Errorf("action handler for %s not registered", action.OID)
	}

	h.pool <- struct{}{}
	defer func() { <-h.pool }()

	invocationID := uuid.NewString()
	topic := actionTopic(action.OID)
	h.publish(topic, Event{OID: action.OID, InvocationID: invocationID, Status: EventRunning, Timestamp: nowSeconds()})

	result, err := handler(&action)
	if err != nil {
		h.publish(topic, Event{OID: action.OID, InvocationID: invocationID, Status: EventFailed, Error: err.Error(), Timestamp: nowSeconds()})
		return err
	}
	h.publish(topic, Event{OID: action.OID, InvocationID: invocationID, Status: EventCompleted, Result: result, Timestamp: nowSeconds()})
	return nil
}

func (h *Handlers) publish(topic string, ev Event) {
	if h.publisher == nil {
		log.Warnf("eapi: action event for %s orphaned, no publisher registered", ev.OID)
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Errf("eapi: failed to encode event for %s: %v", ev.OID, err)
		return
	}
	if err := h.publisher.Publish(topic, payload); err != nil {
		log.Errf("eapi: publish for %s failed: %v", ev.OID, err)
	}
}

func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}
