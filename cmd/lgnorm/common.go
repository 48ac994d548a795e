// Copyright (C) 2025 Nippon Telegraph and Telephone Corporation.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or
// implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	cmdNormalize = "normalize"
	cmdRPKI      = "rpki"
	cmdValidate  = "validate"
	cmdConfig    = "config"
	cmdExample   = "example"
	cmdShow      = "show"
	cmdVersion   = "version"
)

// formatAge renders an age in seconds the way uptimes are shown.
func formatAge(age int) string {
	u := uint64(age)
	if age < 0 {
		u = uint64(-age)
	}
	secs := u % 60
	u /= 60
	mins := u % 60
	u /= 60
	hours := u % 24
	days := u / 24

	if days == 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, mins, secs)
	}
	return fmt.Sprintf("%dd ", days) + fmt.Sprintf("%02d:%02d:%02d", hours, mins, secs)
}

func formatAsPath(path []int) string {
	if len(path) == 0 {
		return "i"
	}
	l := make([]string, 0, len(path))
	for _, as := range path {
		l = append(l, strconv.Itoa(as))
	}
	return strings.Join(l, " ")
}

func printJSON(w io.Writer, v interface{}) error {
	j, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(j))
	return nil
}

// parseASN accepts "13335" as well as "AS13335".
func parseASN(s string) (int, error) {
	t := strings.TrimPrefix(strings.ToUpper(s), "AS")
	asn, err := strconv.ParseUint(t, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid as number %q", s)
	}
	return int(asn), nil
}
