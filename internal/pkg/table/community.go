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
	"fmt"
	"regexp"
)

type CommunityMode int

const (
	COMMUNITY_MODE_PERMIT CommunityMode = iota
	COMMUNITY_MODE_DENY
)

func (m CommunityMode) String() string {
	switch m {
	case COMMUNITY_MODE_PERMIT:
		return "permit"
	case COMMUNITY_MODE_DENY:
		return "deny"
	}
	return fmt.Sprintf("CommunityMode(%d)", int(m))
}

func ParseCommunityMode(s string) (CommunityMode, error) {
	switch s {
	case "permit":
		return COMMUNITY_MODE_PERMIT, nil
	case "deny":
		return COMMUNITY_MODE_DENY, nil
	}
	return COMMUNITY_MODE_DENY, fmt.Errorf("invalid community mode %q (permit|deny)", s)
}

// CommunityPolicy decides which communities of a route are shown.
// Patterns are anchored at the beginning of the community only, so "65:"
// matches "65:100".
type CommunityPolicy struct {
	mode CommunityMode
	list []*regexp.Regexp
}

func NewCommunityPolicy(mode CommunityMode, items []string) (*CommunityPolicy, error) {
	if mode != COMMUNITY_MODE_PERMIT && mode != COMMUNITY_MODE_DENY {
		return nil, fmt.Errorf("invalid community mode %s", mode)
	}
	list := make([]*regexp.Regexp, 0, len(items))
	for _, x := range items {
		exp, err := regexp.Compile("^(?:" + x + ")")
		if err != nil {
			return nil, fmt.Errorf("invalid community pattern %q: %w", x, err)
		}
		list = append(list, exp)
	}
	return &CommunityPolicy{
		mode: mode,
		list: list,
	}, nil
}

func (p *CommunityPolicy) Mode() CommunityMode {
	return p.mode
}

func (p *CommunityPolicy) match(comm string) bool {
	for _, exp := range p.list {
		if exp.MatchString(comm) {
			return true
		}
	}
	return false
}

// Permit reports whether comm survives the policy.
func (p *CommunityPolicy) Permit(comm string) bool {
	switch p.mode {
	case COMMUNITY_MODE_PERMIT:
		return p.match(comm)
	case COMMUNITY_MODE_DENY:
		return !p.match(comm)
	}
	return false
}

// Filter returns the permitted communities in their original order.
func (p *CommunityPolicy) Filter(comms []string) []string {
	l := make([]string, 0, len(comms))
	for _, c := range comms {
		if p.Permit(c) {
			l = append(l, c)
		}
	}
	return l
}
