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

// Command rplcctl is a control-socket client: test, info, stat, reset
// and list subcommands against one or more running controllers. The
// systemd-oriented register/unregister/start/stop/restart/status
// subcommands of the original client are out of scope here; they belong
// to a separate process-supervisor CLI.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fortio.org/cli"
	"fortio.org/log"

	"github.com/rplcgo/rplc/apiclient"
)

func main() {
	varDir := flag.String("var-dir", defaultVarDir(), "directory containing *.plcsock control sockets")

	cli.ProgramName = "rplcctl"
	cli.ArgsHelp = "command [name]\n\tcommands: list, test NAME, info NAME, stat NAME, reset NAME"
	cli.MinArgs = 1
	cli.MaxArgs = 2
	cli.Main() // parses flags, handles -version/-help/usage errors

	args := flag.Args()

	var err error
	switch args[0] {
	case "list":
		err = runList(*varDir)
	case "test", "info", "stat", "reset":
		if len(args) != 2 {
			cli.ErrUsage("Error: %q needs a controller name argument", args[0])
		}
		err = runPlcCommand(*varDir, args[0], args[1])
	default:
		cli.ErrUsage("Error: unknown command %q", args[0])
	}
	if err != nil {
		log.Errf("%v", err)
		os.Exit(1)
	}
}

func defaultVarDir() string {
	if d := os.Getenv("PLC_VAR_DIR"); d != "" {
		return d
	}
	return filepath.Join(os.TempDir(), "rplc")
}

// runList scans varDir for *.plcsock sockets, matching the original
// client's directory-scan approach to discovering running controllers.
func runList(varDir string) error {
	entries, err := os.ReadDir(varDir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", varDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".plcsock") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".plcsock")
		sockPath := filepath.Join(varDir, e.Name())
		client, err := apiclient.Dial(sockPath)
		if err != nil {
			fmt.Printf("%-20s unreachable: %v\n", name, err)
			continue
		}
		var info plcInfo
		callErr := client.Call("info", nil, &info)
		client.Close()
		if callErr != nil {
			fmt.Printf("%-20s error: %v\n", name, callErr)
			continue
		}
		fmt.Printf("%-20s status=%-13s pid=%-8d uptime=%.0fs\n", name, statusName(info.Status), info.PID, info.Uptime)
	}
	return nil
}

func runPlcCommand(varDir, command, name string) error {
	sockPath := filepath.Join(varDir, name+".plcsock")
	if _, err := os.Stat(sockPath); err != nil {
		return fmt.Errorf("no API socket for %s, is it running? (%w)", name, err)
	}
	client, err := apiclient.Dial(sockPath)
	if err != nil {
		return err
	}
	defer client.Close()

	switch command {
	case "test":
		if err := client.Call("test", nil, nil); err != nil {
			return err
		}
		fmt.Println("ok")
	case "info":
		var info plcInfo
		if err := client.Call("info", nil, &info); err != nil {
			return err
		}
		printInfo(info)
	case "stat":
		var stats map[string]*threadInfo
		if err := client.Call("thread_stats.get", nil, &stats); err != nil {
			return err
		}
		printStats(name, stats)
	case "reset":
		if err := client.Call("thread_stats.reset", nil, nil); err != nil {
			return err
		}
		fmt.Println("ok")
	}
	return nil
}

type plcInfo struct {
	SystemName  string  `json:"system_name"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Version     string  `json:"version"`
	Status      int16   `json:"status"`
	PID         int     `json:"pid"`
	Uptime      float64 `json:"uptime_seconds"`
}

type threadInfo struct {
	Iters      uint32 `json:"iters"`
	JitterMin  uint16 `json:"jitter_min"`
	JitterMax  uint16 `json:"jitter_max"`
	JitterLast uint16 `json:"jitter_last"`
	JitterAvg  uint16 `json:"jitter_avg"`
}

func printInfo(info plcInfo) {
	fmt.Printf("name:        %s\n", info.Name)
	fmt.Printf("description: %s\n", info.Description)
	fmt.Printf("version:     %s\n", info.Version)
	fmt.Printf("status:      %s\n", statusName(info.Status))
	fmt.Printf("pid:         %d\n", info.PID)
	fmt.Printf("uptime:      %.1fs\n", info.Uptime)
}

func printStats(name string, stats map[string]*threadInfo) {
	fmt.Printf("%-16s %8s %8s %8s %8s %8s\n", "thread", "iters", "min", "max", "last", "avg")
	for n, s := range stats {
		if s == nil {
			fmt.Printf("%-16s %8s %8s %8s %8s %8s\n", n, "-", "-", "-", "-", "-")
			continue
		}
		fmt.Printf("%-16s %8d %8d %8d %8d %8d\n", n, s.Iters, s.JitterMin, s.JitterMax, s.JitterLast, s.JitterAvg)
	}
	extra := extendedThreadInfo(name)
	if len(extra) > 0 {
		b, _ := json.MarshalIndent(extra, "", "  ")
		fmt.Println(string(b))
	}
}

func statusName(s int16) string {
	switch s {
	case 0:
		return "INACTIVE"
	case 1:
		return "STARTING"
	case 2:
		return "SYNCING"
	case 3:
		return "PREPARING"
	case 100:
		return "ACTIVE"
	case -1:
		return "STOPPING"
	case -2:
		return "STOP_SYNCING"
	case -100:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
