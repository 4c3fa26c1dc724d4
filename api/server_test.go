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
	"path/filepath"
	"testing"
	"time"

	"github.com/rplcgo/rplc/apiclient"
	"github.com/rplcgo/rplc/tasks"
)

func newTestServer(t *testing.T) (*Server, *tasks.Runtime, string) {
	t.Helper()
	rt := tasks.New()
	rt.Init()
	srv := NewServer(Info{SystemName: "unit-test", Name: "srv", Description: "d", Version: "v0"}, rt)
	sockPath := filepath.Join(t.TempDir(), "test.plcsock")
	got := srv.Serve(sockPath)
	if got != sockPath {
		t.Fatalf("Serve returned %q, want %q", got, sockPath)
	}
	t.Cleanup(srv.Close)
	return srv, rt, sockPath
}

func dialTestServer(t *testing.T, sockPath string) *apiclient.Client {
	t.Helper()
	var client *apiclient.Client
	var err error
	for i := 0; i < 50; i++ {
		client, err = apiclient.Dial(sockPath)
		if err == nil {
			return client
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("dialing %s: %v", sockPath, err)
	return nil
}

func TestServerTestMethod(t *testing.T) {
	_, _, sockPath := newTestServer(t)
	client := dialTestServer(t, sockPath)
	defer client.Close()

	if err := client.Call("test", nil, nil); err != nil {
		t.Fatalf("test call: %v", err)
	}
}

func TestServerInfoMethod(t *testing.T) {
	_, _, sockPath := newTestServer(t)
	client := dialTestServer(t, sockPath)
	defer client.Close()

	var info PlcInfo
	if err := client.Call("info", nil, &info); err != nil {
		t.Fatalf("info call: %v", err)
	}
	if info.SystemName != "unit-test" || info.Name != "srv" {
		t.Fatalf("got %+v", info)
	}
}

func TestServerThreadStatsGetAndReset(t *testing.T) {
	_, rt, sockPath := newTestServer(t)
	rt.Registry.Register("Pprog0", tasks.Program)
	rt.Registry.ReportJitter("Pprog0", 42)

	client := dialTestServer(t, sockPath)
	defer client.Close()

	var stats map[string]*tasks.ThreadInfo
	if err := client.Call("thread_stats.get", nil, &stats); err != nil {
		t.Fatalf("thread_stats.get: %v", err)
	}
	if stats["Pprog0"] == nil || stats["Pprog0"].Iters != 1 {
		t.Fatalf("got %+v, want a Pprog0 entry with 1 iteration", stats)
	}

	if err := client.Call("thread_stats.reset", nil, nil); err != nil {
		t.Fatalf("thread_stats.reset: %v", err)
	}
	if info := rt.Registry.ThreadInfo("Pprog0"); info != nil {
		t.Fatalf("expected stats cleared after reset, got %+v", info)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	_, _, sockPath := newTestServer(t)
	client := dialTestServer(t, sockPath)
	defer client.Close()

	err := client.Call("bogus", nil, nil)
	if err == nil {
		t.Fatal("expected an error for an unknown method")
	}
}

func TestServerRejectsParamsOnParameterlessMethod(t *testing.T) {
	_, _, sockPath := newTestServer(t)
	client := dialTestServer(t, sockPath)
	defer client.Close()

	err := client.Call("test", map[string]int{"x": 1}, nil)
	if err == nil {
		t.Fatal("expected an invalid_params error")
	}
}

func TestServerActionWithoutHandlersRegistered(t *testing.T) {
	_, _, sockPath := newTestServer(t)
	client := dialTestServer(t, sockPath)
	defer client.Close()

	err := client.Call("action", map[string]string{"oid": "x"}, nil)
	if err == nil {
		t.Fatal("expected an error when no action handlers are wired in")
	}
}
