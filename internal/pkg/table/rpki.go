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
	"context"
	"fmt"

	"github.com/osrg/lookingglass/pkg/log"
	"github.com/osrg/lookingglass/pkg/rpki"
)

type RpkiMode int

const (
	RPKI_MODE_DISABLED RpkiMode = iota
	RPKI_MODE_ROUTER
	RPKI_MODE_EXTERNAL
)

func (m RpkiMode) String() string {
	switch m {
	case RPKI_MODE_DISABLED:
		return "disabled"
	case RPKI_MODE_ROUTER:
		return "router"
	case RPKI_MODE_EXTERNAL:
		return "external"
	}
	return fmt.Sprintf("RpkiMode(%d)", int(m))
}

// ParseRpkiMode never fails: anything but "router" or "external" turns
// RPKI resolution off and the device value is passed through.
func ParseRpkiMode(s string) RpkiMode {
	switch s {
	case "router":
		return RPKI_MODE_ROUTER
	case "external":
		return RPKI_MODE_EXTERNAL
	}
	return RPKI_MODE_DISABLED
}

type RpkiResolver struct {
	mode      RpkiMode
	validator rpki.Validator
	logger    log.Logger
}

func NewRpkiResolver(mode RpkiMode, v rpki.Validator, logger log.Logger) (*RpkiResolver, error) {
	if mode == RPKI_MODE_EXTERNAL && v == nil {
		return nil, fmt.Errorf("external rpki mode needs a validator")
	}
	if logger == nil {
		logger = log.NewDefaultLogger()
	}
	return &RpkiResolver{
		mode:      mode,
		validator: v,
		logger:    logger,
	}, nil
}

func (r *RpkiResolver) Mode() RpkiMode {
	return r.mode
}

// Resolve returns the RPKI state of a route. upstream is the state the
// device reported and is returned whenever no lookup is due.
func (r *RpkiResolver) Resolve(ctx context.Context, prefix string, asPath []int, upstream rpki.ValidationState) rpki.ValidationState {
	if r.mode != RPKI_MODE_EXTERNAL {
		return upstream
	}
	if len(asPath) == 0 {
		// locally originated, there is no origin AS to validate
		return rpki.VALIDATION_STATE_UNVERIFIED
	}
	asn := asPath[len(asPath)-1]

	net, err := parseNetwork(prefix)
	if err != nil {
		r.logger.Debug("unparsable prefix, rpki state unverified",
			log.Fields{
				"Topic":  "rpki",
				"Prefix": prefix,
				"Error":  err,
			})
		return rpki.VALIDATION_STATE_UNVERIFIED
	}
	if !isGlobal(net) {
		return upstream
	}
	return r.validator.Validate(ctx, net.String(), asn)
}
