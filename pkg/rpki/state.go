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

// Package rpki implements the route origin validation lookups used to
// annotate looking glass routes with an RPKI state.
package rpki

import (
	"fmt"
	"strings"
)

// ValidationState is the numeric RPKI state carried by a route record.
// The numbering is part of the wire contract with the presentation layer.
type ValidationState int

const (
	VALIDATION_STATE_INVALID ValidationState = iota
	VALIDATION_STATE_VALID
	VALIDATION_STATE_NOT_FOUND
	VALIDATION_STATE_UNVERIFIED
)

func (s ValidationState) String() string {
	switch s {
	case VALIDATION_STATE_INVALID:
		return "invalid"
	case VALIDATION_STATE_VALID:
		return "valid"
	case VALIDATION_STATE_NOT_FOUND:
		return "unknown"
	case VALIDATION_STATE_UNVERIFIED:
		return "unverified"
	}
	return fmt.Sprintf("ValidationState(%d)", int(s))
}

// IsDefined reports whether s is one of the four known states.
func (s ValidationState) IsDefined() bool {
	return s >= VALIDATION_STATE_INVALID && s <= VALIDATION_STATE_UNVERIFIED
}

// ParseValidationState maps the state names used by RPKI validators
// ("Valid", "Invalid", "NotFound") to a ValidationState. Anything else is
// unverified.
func ParseValidationState(s string) ValidationState {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "")) {
	case "valid":
		return VALIDATION_STATE_VALID
	case "invalid":
		return VALIDATION_STATE_INVALID
	case "notfound", "unknown":
		return VALIDATION_STATE_NOT_FOUND
	}
	return VALIDATION_STATE_UNVERIFIED
}
