// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SubjectFence is one declared subject in the static policy file.
type SubjectFence struct {
	AllowedPublishers  []string          `yaml:"allowed_publishers"`
	AllowedSubscribers []string          `yaml:"allowed_subscribers"`
	Labels             map[string]string `yaml:"labels"`
}

// PolicyFile is the declarative static subject fence: `{subjects: {<name>: {...}}}`.
type PolicyFile struct {
	Subjects map[string]SubjectFence `yaml:"subjects"`
}

// LoadPolicyFile parses the static policy fence YAML from path.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if pf.Subjects == nil {
		pf.Subjects = map[string]SubjectFence{}
	}
	return &pf, nil
}

// Mtime returns the last-modified time of the policy file, or the zero
// value if it cannot be stat'd; the policy reloader uses this to detect
// changes without re-parsing on every poll.
func Mtime(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return fi.ModTime().UnixNano(), nil
}
