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

package rpki

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	radix "github.com/armon/go-radix"
)

type ROA struct {
	Prefix netip.Prefix
	MaxLen uint8
	AS     uint32
	Src    string
}

func NewROA(prefix netip.Prefix, maxLen uint8, as uint32, src string) *ROA {
	return &ROA{
		Prefix: prefix.Masked(),
		MaxLen: maxLen,
		AS:     as,
		Src:    src,
	}
}

func (r *ROA) Equal(roa *ROA) bool {
	return r.MaxLen == roa.MaxLen && r.Src == roa.Src && r.AS == roa.AS
}

func (r *ROA) String() string {
	return fmt.Sprintf("%s-%d AS%d", r.Prefix, r.MaxLen, r.AS)
}

type roaBucket struct {
	Prefix  netip.Prefix
	entries []*ROA
}

// ROATable validates origins against a locally loaded set of ROAs. It
// implements Lookuper and never touches the network.
type ROATable struct {
	mu   sync.RWMutex
	roas map[bool]*radix.Tree
}

func NewROATable() *ROATable {
	return &ROATable{
		roas: map[bool]*radix.Tree{
			true:  radix.New(),
			false: radix.New(),
		},
	}
}

// radixKey renders the first bits of addr as a string of '0' and '1' so
// that covering prefixes are string prefixes of each other.
func radixKey(addr netip.Addr, bits int) string {
	var buffer bytes.Buffer
	for _, b := range addr.AsSlice() {
		fmt.Fprintf(&buffer, "%08b", b)
	}
	return buffer.String()[:bits]
}

func (rt *ROATable) roa2tree(p netip.Prefix) (*radix.Tree, string) {
	return rt.roas[p.Addr().Is4()], radixKey(p.Addr(), p.Bits())
}

func (rt *ROATable) Add(roa *ROA) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	tree, key := rt.roa2tree(roa.Prefix)
	b, _ := tree.Get(key)
	var bucket *roaBucket
	if b == nil {
		bucket = &roaBucket{
			Prefix:  roa.Prefix,
			entries: make([]*ROA, 0),
		}
		tree.Insert(key, bucket)
	} else {
		bucket = b.(*roaBucket)
		for _, r := range bucket.entries {
			if r.Equal(roa) {
				return
			}
		}
	}
	bucket.entries = append(bucket.entries, roa)
}

// Delete removes roa and reports whether it was present.
func (rt *ROATable) Delete(roa *ROA) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	tree, key := rt.roa2tree(roa.Prefix)
	b, _ := tree.Get(key)
	if b == nil {
		return false
	}
	bucket := b.(*roaBucket)
	newEntries := make([]*ROA, 0, len(bucket.entries))
	for _, r := range bucket.entries {
		if !r.Equal(roa) {
			newEntries = append(newEntries, r)
		}
	}
	if len(newEntries) == len(bucket.entries) {
		return false
	}
	bucket.entries = newEntries
	if len(newEntries) == 0 {
		tree.Delete(key)
	}
	return true
}

// Len returns the number of ROAs in the table.
func (rt *ROATable) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	n := 0
	for _, tree := range rt.roas {
		tree.Walk(func(s string, v interface{}) bool {
			n += len(v.(*roaBucket).entries)
			return false
		})
	}
	return n
}

// List returns all ROAs ordered by prefix, then max length, then AS.
func (rt *ROATable) List() []*ROA {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	l := make([]*ROA, 0)
	for _, is4 := range []bool{true, false} {
		rt.roas[is4].Walk(func(s string, v interface{}) bool {
			var roaList roas
			roaList = append(roaList, v.(*roaBucket).entries...)
			sort.Sort(roaList)
			l = append(l, roaList...)
			return false
		})
	}
	return l
}

// Lookup classifies the origin asn of prefix against the covering ROAs.
func (rt *ROATable) Lookup(_ context.Context, prefix string, asn uint32) (ValidationState, error) {
	p, err := netip.ParsePrefix(prefix)
	if err != nil {
		return VALIDATION_STATE_UNVERIFIED, err
	}
	p = p.Masked()

	rt.mu.RLock()
	defer rt.mu.RUnlock()

	tree, key := rt.roa2tree(p)
	if _, _, ok := tree.LongestPrefix(key); !ok {
		return VALIDATION_STATE_NOT_FOUND, nil
	}

	prefixLen := uint8(p.Bits())
	var matched, unmatchedAs, unmatchedLength int
	tree.WalkPath(key, func(k string, v interface{}) bool {
		for _, r := range v.(*roaBucket).entries {
			if prefixLen <= r.MaxLen {
				if r.AS != 0 && r.AS == asn {
					matched++
				} else {
					unmatchedAs++
				}
			} else {
				unmatchedLength++
			}
		}
		return false
	})

	switch {
	case matched != 0:
		return VALIDATION_STATE_VALID, nil
	case unmatchedAs != 0, unmatchedLength != 0:
		return VALIDATION_STATE_INVALID, nil
	}
	return VALIDATION_STATE_NOT_FOUND, nil
}

type roas []*ROA

func (r roas) Len() int {
	return len(r)
}

func (r roas) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}

func (r roas) Less(i, j int) bool {
	r1 := r[i]
	r2 := r[j]

	if r1.MaxLen != r2.MaxLen {
		return r1.MaxLen < r2.MaxLen
	}
	return r1.AS < r2.AS
}

type roaFileEntry struct {
	Prefix    string          `json:"prefix"`
	MaxLength int             `json:"maxLength"`
	ASN       json.RawMessage `json:"asn"`
}

type roaFile struct {
	ROAs []roaFileEntry `json:"roas"`
}

func parseROAASN(raw json.RawMessage) (uint32, error) {
	var n uint32
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("invalid asn %s", string(raw))
	}
	s = strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(s)), "AS")
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid asn %q", s)
	}
	return uint32(v), nil
}

// ReadROAs loads a validator JSON export ({"roas": [...]}) into the table,
// tagging every entry with src. It returns the number of ROAs read.
func (rt *ROATable) ReadROAs(r io.Reader, src string) (int, error) {
	var f roaFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return 0, fmt.Errorf("failed to decode roa export: %w", err)
	}
	for i, e := range f.ROAs {
		p, err := netip.ParsePrefix(e.Prefix)
		if err != nil {
			return i, fmt.Errorf("roa %d: %w", i, err)
		}
		as, err := parseROAASN(e.ASN)
		if err != nil {
			return i, fmt.Errorf("roa %d: %w", i, err)
		}
		maxLen := e.MaxLength
		if maxLen == 0 {
			maxLen = p.Bits()
		}
		if maxLen < p.Bits() || maxLen > p.Addr().BitLen() {
			return i, fmt.Errorf("roa %d: max length %d out of range for %s", i, maxLen, p)
		}
		rt.Add(NewROA(p, uint8(maxLen), as, src))
	}
	return len(f.ROAs), nil
}

// LoadROAFile reads a ROA export from path.
func LoadROAFile(path string) (*ROATable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rt := NewROATable()
	if _, err := rt.ReadROAs(f, path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rt, nil
}
