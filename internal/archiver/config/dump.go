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

package config

import (
	"encoding/json"

	"gopkg.in/yaml.v3"

	"ticketarchiver/internal/archiver/redact"
)

// RedactedDump marshals settings to YAML, round-trips through a
// generic map, and scrubs secret-bearing keys via redact.Map, for the
// archiverctl dump-config subcommand.
func RedactedDump(s Settings) (string, error) {
	raw, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}

	var asMap map[string]any
	if err := yaml.Unmarshal(raw, &asMap); err != nil {
		return "", err
	}

	redacted := redact.Map(jsonify(asMap).(map[string]any))

	out, err := yaml.Marshal(redacted)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// jsonify normalizes yaml.v3's map[string]interface{} decode tree
// (which can contain map[interface{}]interface{} in edge cases and
// uses native int/float types) into the map[string]any shape
// redact.Map expects, by round-tripping through encoding/json.
func jsonify(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
