// Copyright 2017 Google Inc. All Rights Reserved.
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

package cmd

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mattn/go-shellwords"
	"gopkg.in/yaml.v2"
)

// ParseFlagFile sets flags from the file at path, then parses the command
// line again so that its flags take precedence over the file's.
//
// A file ending in .yaml or .yml holds a mapping from flag name to value.
// Any other file holds flags as they would be written on a command line.
func ParseFlagFile(path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = parseYAML(file)
	default:
		err = parseFlags(string(file))
	}
	if err != nil {
		return err
	}

	// Call flag.Parse() again so that command line flags
	// can override flags provided in the provided flag file.
	flag.Parse()
	return nil
}

func parseFlags(contents string) error {
	p := shellwords.NewParser()
	p.ParseEnv = true
	args, err := p.Parse(contents)
	if err != nil {
		return err
	}
	return flag.CommandLine.Parse(args)
}

func parseYAML(contents []byte) error {
	var values map[string]interface{}
	if err := yaml.UnmarshalStrict(contents, &values); err != nil {
		return err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if flag.Lookup(name) == nil {
			return fmt.Errorf("flag provided but not defined: -%s", name)
		}
		if err := flag.Set(name, fmt.Sprint(values[name])); err != nil {
			return fmt.Errorf("flag %s: %v", name, err)
		}
	}
	return nil
}
