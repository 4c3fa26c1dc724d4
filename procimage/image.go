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

// Package procimage holds the single, process-wide, readers/writer-locked
// record that Program bodies mutate and Input/Output bodies synchronize
// with the outside world. The runtime does not enforce the
// locking discipline; Image only supplies the primitives so every caller
// follows the same one.
package procimage // import "github.com/rplcgo/rplc/procimage"

import (
	"encoding/gob"
	"os"
	"sync"

	"fortio.org/log"
)

// Image wraps a value of type T behind a sync.RWMutex. T is generated,
// application-specific state (field values addressed by generated
// paths); Image itself is oblivious to its shape.
//
// Contract (not enforced; documented for the loop bodies that callers
// hand to the composers in package tasks):
//   - Program bodies call Write for the whole tick.
//   - Output bodies call Read only around the copy-out.
//   - Input bodies do blocking I/O outside any lock, then call Write
//     briefly to commit.
//   - API/server bodies call Read to serialize a snapshot, never while
//     doing I/O.
type Image[T any] struct {
	mu    sync.RWMutex
	value T
}

// New returns an Image holding the zero value of T: the image starts
// default-initialized.
func New[T any]() *Image[T] {
	return &Image[T]{}
}

// Read runs f with a read lock held and returns f's result. f must not
// retain pointers into *T that escape beyond the call, and must not
// perform blocking I/O while holding the lock.
func Read[T any, R any](img *Image[T], f func(*T) R) R {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return f(&img.value)
}

// Write runs f with a write lock held. Used by Program bodies for a
// whole tick and by Input bodies for the brief post-I/O commit.
func Write[T any](img *Image[T], f func(*T)) {
	img.mu.Lock()
	defer img.mu.Unlock()
	f(&img.value)
}

// Snapshot returns a shallow copy of the current value under a read
// lock. Safe for types with no reference fields; callers with nested
// slices/maps in T should instead use Read with their own deep-copy
// logic.
func (img *Image[T]) Snapshot() T {
	img.mu.RLock()
	defer img.mu.RUnlock()
	return img.value
}

// Save gob-encodes a read-locked snapshot of the image to path,
// supporting the optional "context snapshot at process boundaries"
// feature: a generic replication mechanism is out of scope, but this
// one opt-in save/restore path is not.
func Save[T any](img *Image[T], path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	img.mu.RLock()
	defer img.mu.RUnlock()
	if err := gob.NewEncoder(f).Encode(&img.value); err != nil {
		return err
	}
	log.Infof("process image snapshot written to %s", path)
	return nil
}

// Load gob-decodes path into the image under a write lock, replacing
// its current value entirely. It is meant to run once, before Init,
// while no Program/Output thread is yet reading the image.
func Load[T any](img *Image[T], path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	img.mu.Lock()
	defer img.mu.Unlock()
	if err := gob.NewDecoder(f).Decode(&img.value); err != nil {
		return err
	}
	log.Infof("process image snapshot restored from %s", path)
	return nil
}
