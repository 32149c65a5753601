// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

package lifecycle

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_ShuttingDownDefaultsFalse(t *testing.T) {
	m := NewManager()
	if m.ShuttingDown() {
		t.Fatal("expected fresh manager to not be shutting down")
	}
	m.BeginShutdown()
	if !m.ShuttingDown() {
		t.Fatal("expected ShuttingDown to be true after BeginShutdown")
	}
}

func TestManager_TrackTaskAndWait(t *testing.T) {
	m := NewManager()
	var ran atomic.Bool
	m.TrackTask(func() {
		time.Sleep(10 * time.Millisecond)
		ran.Store(true)
	})
	m.Wait(time.Second)
	if !ran.Load() {
		t.Fatal("expected tracked task to complete before Wait returns")
	}
}

func TestManager_WaitTimesOut(t *testing.T) {
	m := NewManager()
	block := make(chan struct{})
	defer close(block)
	m.TrackTask(func() {
		<-block
	})

	start := time.Now()
	m.Wait(20 * time.Millisecond)
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Fatalf("expected Wait to return promptly on timeout, took %v", elapsed)
	}
}
