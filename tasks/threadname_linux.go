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

//go:build linux

package tasks

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// setThreadNamePlatform sets the kernel's 16-byte (incl. NUL) comm name
// for the calling OS thread via PR_SET_NAME.
func setThreadNamePlatform(name string) {
	buf := make([]byte, 16)
	copy(buf, name)
	_ = unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}
