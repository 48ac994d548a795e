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

package table

import (
	"errors"
	"fmt"
)

// ErrValidation is wrapped by every structural validation failure.
var ErrValidation = errors.New("validation failed")

// ValidationError names the first field of a raw response that did not
// have the expected shape.
type ValidationError struct {
	VRF    string
	Route  int // index into the raw routes, -1 for table level fields
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	var where string
	if e.VRF != "" {
		where = fmt.Sprintf("vrf %q ", e.VRF)
	}
	if e.Route >= 0 {
		where += fmt.Sprintf("route %d ", e.Route)
	}
	return fmt.Sprintf("%sfield %q: %s", where, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func newValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Route:  -1,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}
