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

// Package clock provides an injectable notion of "now" so tests can control
// delays, not_before timestamps, and sidecar timestamps deterministically.
package clock

import "time"

// Clock abstracts wall-clock access.
type Clock interface {
	Now() time.Time
}

// Real returns the system clock.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Fixed returns a Clock that always reports t, useful for deterministic tests.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T }

// Mutable is a test clock whose value can be advanced between calls.
type Mutable struct {
	t time.Time
}

func NewMutable(t time.Time) *Mutable { return &Mutable{t: t} }

func (m *Mutable) Now() time.Time { return m.t }

func (m *Mutable) Advance(d time.Duration) { m.t = m.t.Add(d) }

func (m *Mutable) Set(t time.Time) { m.t = t }
