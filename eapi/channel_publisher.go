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

package eapi

import "fmt"

// Published is one message handed to a ChannelPublisher.
type Published struct {
	Topic   string
	Payload []byte
}

// ChannelPublisher is an in-process Publisher backed by a buffered
// channel, used where there is no external bus connection: standalone
// deployments, and tests exercising HandleAction without a broker.
type ChannelPublisher struct {
	ch chan Published
}

// NewChannelPublisher returns a ChannelPublisher with the given channel
// capacity. On a full channel Publish blocks the caller (the action
// worker) until a consumer drains Events; no event is dropped, since
// action completion events must not be lost.
func NewChannelPublisher(capacity int) *ChannelPublisher {
	if capacity <= 0 {
		capacity = 1000
	}
	return &ChannelPublisher{ch: make(chan Published, capacity)}
}

// Publish implements Publisher.
func (c *ChannelPublisher) Publish(topic string, payload []byte) error {
	if c.ch == nil {
		return fmt.Errorf("eapi: channel publisher not initialized")
	}
	c.ch <- Published{Topic: topic, Payload: payload}
	return nil
}

// Events exposes the receive side for a consumer goroutine to drain.
func (c *ChannelPublisher) Events() <-chan Published { return c.ch }
