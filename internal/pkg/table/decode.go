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
	"encoding/json"
	"fmt"
	"io"
)

func decodeDocument(r io.Reader) (interface{}, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode route table: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("failed to decode route table: trailing data")
	}
	return doc, nil
}

func rawTableFrom(doc interface{}) (*RawTable, error) {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return nil, newValidationError("", "expected object, got %s", kindOf(doc))
	}
	f := &fieldReader{raw: RawRoute(m)}
	t := &RawTable{
		VRF:           f.getString("vrf"),
		WinningWeight: f.getString("winning_weight"),
	}
	items := f.getList("routes")
	if f.err != nil {
		f.err.VRF = t.VRF
		return nil, f.err
	}
	if _, ok := m["count"]; ok {
		n := f.getInt("count")
		if f.err != nil {
			f.err.VRF = t.VRF
			return nil, f.err
		}
		t.Count = &n
	}
	t.Routes = make([]RawRoute, 0, len(items))
	for i, item := range items {
		r, ok := item.(map[string]interface{})
		if !ok {
			return nil, &ValidationError{
				VRF:    t.VRF,
				Route:  i,
				Field:  "routes",
				Reason: fmt.Sprintf("expected object, got %s", kindOf(item)),
			}
		}
		t.Routes = append(t.Routes, RawRoute(r))
	}
	return t, nil
}

// DecodeRawTable reads one raw table document. JSON numbers are kept as
// json.Number so that integer fields can be checked strictly.
func DecodeRawTable(r io.Reader) (*RawTable, error) {
	doc, err := decodeDocument(r)
	if err != nil {
		return nil, err
	}
	return rawTableFrom(doc)
}

// DecodeRawTables reads either a single raw table document or a list of
// them.
func DecodeRawTables(r io.Reader) ([]*RawTable, error) {
	doc, err := decodeDocument(r)
	if err != nil {
		return nil, err
	}
	docs, ok := doc.([]interface{})
	if !ok {
		docs = []interface{}{doc}
	}
	l := make([]*RawTable, 0, len(docs))
	for _, d := range docs {
		t, err := rawTableFrom(d)
		if err != nil {
			return nil, err
		}
		l = append(l, t)
	}
	return l, nil
}
