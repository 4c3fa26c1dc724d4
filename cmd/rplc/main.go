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

// Command rplc is a runnable shell for a PLC controller built on package
// tasks: it wires up configuration, the control API, and a minimal
// demonstration Input/Program/Output loop set. Real deployments import
// the library packages directly and register their own loops; this
// binary exists so the runtime kernel can be exercised end to end.
package main

import (
	"flag"
	"os"

	"fortio.org/cli"
	"fortio.org/log"

	"github.com/rplcgo/rplc/api"
	"github.com/rplcgo/rplc/builder"
	"github.com/rplcgo/rplc/procimage"
	"github.com/rplcgo/rplc/tasks"
	"github.com/rplcgo/rplc/version"
)

// context is the demonstration process image: a handful of scalar
// fields a real deployment would instead generate from its own
// configuration.
type context struct {
	Counter    int64
	LastInput  float64
	LastOutput float64
}

func main() {
	os.Exit(Main())
}

// Main runs the controller to completion and returns its exit code. It
// is split out from main so a testscript harness can invoke it as a
// subprocess-simulating binary entry point.
func Main() int {
	cfg := builder.DefaultConfig("rplc-demo", "rplc quickstart controller")
	if err := builder.Load(&cfg); err != nil {
		log.Critf("configuration error: %v", err)
		return 1
	}
	builder.RegisterFlags(flag.CommandLine, &cfg)
	dyn := builder.RegisterDynamic(flag.CommandLine)

	cli.ProgramName = "rplc"
	cli.ArgsHelp = "" // a controller binary takes no positional arguments
	cli.MinArgs = 0
	cli.MaxArgs = 0
	cli.Main() // parses flags, handles -version/-help, exits on usage error

	if err := cfg.Validate(); err != nil {
		log.Critf("configuration error: %v", err)
		return 1
	}
	if err := os.MkdirAll(cfg.VarDir, 0o755); err != nil {
		log.Critf("unable to create var dir %s: %v", cfg.VarDir, err)
		return 1
	}

	log.Infof("%s starting (version %s)", cfg.Name, version.Short())

	img := procimage.New[context]()
	rt := tasks.New()
	rt.Init()
	rt.SpawnStatsAutoReset(dyn.StatsResetEvery.Get)

	server := api.NewServer(api.Info{
		SystemName:  hostname(),
		Name:        cfg.Name,
		Description: cfg.Description,
		Version:     version.Short(),
	}, rt)
	server.Serve(cfg.SocketPath())
	defer server.Close()

	rt.SpawnInputLoop("in0", tasks.LoopParams{Period: demoInputPeriod}, func() {
		sample := readDemoInput()
		procimage.Write(img, func(c *context) {
			c.LastInput = sample
		})
	})

	rt.SpawnProgramLoop("prog0", tasks.LoopParams{Period: demoProgramPeriod}, func() {
		procimage.Write(img, func(c *context) {
			c.Counter++
			c.LastOutput = c.LastInput * 2
		})
	})

	rt.SpawnOutputLoop("out0", tasks.LoopParams{Period: demoOutputPeriod}, func() {
		value := procimage.Read(img, func(c *context) float64 { return c.LastOutput })
		writeDemoOutput(value)
	})

	rt.OnShutdown(func() {
		log.Infof("%s shutdown hook: final counter %v", cfg.Name,
			procimage.Read(img, func(c *context) int64 { return c.Counter }))
	})

	writePidFile(cfg.PidFilePath())
	defer os.Remove(cfg.PidFilePath())

	rt.Run(tasks.RunOptions{
		StopTimeout: cfg.StopTimeoutDuration(),
	})
	return 0
}
