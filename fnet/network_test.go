// Copyright 2017-2023 Fortio Authors
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

package fnet

import (
	"testing"

	"fortio.org/log"
)

func TestNormalizePort(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		output string
	}{
		{"port number only", "8080", ":8080"},
		{"IPv4 host:port", "10.10.10.1:8080", "10.10.10.1:8080"},
		{"IPv6 [host]:port", "[2001:db1::1]:8080", "[2001:db1::1]:8080"},
	}

	for _, tc := range tests {
		port := NormalizePort(tc.input)
		if port != tc.output {
			t.Errorf("Test case %s failed to normalize port %s\n\texpected: %s\n\t  actual: %s",
				tc.name, tc.input, tc.output, port)
		}
	}
}

func TestListen(t *testing.T) {
	l, a := Listen("test listen", "0")
	if l == nil || a == nil {
		t.Fatalf("Unexpected nil in Listen() %v %v", l, a)
	}
	defer l.Close() // nolint: gas
	if GetPort(a) == "0" {
		t.Errorf("Unexpected 0 port after listen %+v", a)
	}
}

func TestListenFailure(t *testing.T) {
	l1, a1 := Listen("test listen1", "0")
	if l1 == nil || a1 == nil {
		t.Fatalf("Unexpected nil in Listen() %v %v", l1, a1)
	}
	defer l1.Close()
	busyPort := GetPort(a1)
	l, a := Listen("this should fail", busyPort)
	if l != nil || a != nil {
		t.Errorf("listen on already bound port %s should error, got %v %v", busyPort, l, a)
	}
}

func TestGetUniqueUnixDomainPath(t *testing.T) {
	p1 := GetUniqueUnixDomainPath("rplc-test")
	p2 := GetUniqueUnixDomainPath("rplc-test")
	if p1 == p2 {
		t.Errorf("GetUniqueUnixDomainPath returned the same path twice: %s", p1)
	}
}

// --- max logging for tests

func init() {
	log.SetLogLevel(log.Debug)
}
