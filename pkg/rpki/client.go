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
	"net/http"
	"strings"
)

const DefaultURL = "https://rpki.cloudflare.com/api/graphql"

// Client queries a GraphQL RPKI validation endpoint such as the one
// operated by Cloudflare.
type Client struct {
	url  string
	http *http.Client
}

// NewClient returns a Client for url. A nil httpClient means
// http.DefaultClient; request deadlines come from the context.
func NewClient(url string, httpClient *http.Client) *Client {
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		url:  url,
		http: httpClient,
	}
}

type graphQLRequest struct {
	Query string `json:"query"`
}

type graphQLResponse struct {
	Data struct {
		Validation *struct {
			State string `json:"state"`
		} `json:"validation"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func validationQuery(prefix string, asn uint32) string {
	return fmt.Sprintf("query GetValidation { validation(prefix: %q, asn: %d) { state } }", prefix, asn)
}

func (c *Client) Lookup(ctx context.Context, prefix string, asn uint32) (ValidationState, error) {
	body, err := json.Marshal(&graphQLRequest{Query: validationQuery(prefix, asn)})
	if err != nil {
		return VALIDATION_STATE_UNVERIFIED, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return VALIDATION_STATE_UNVERIFIED, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return VALIDATION_STATE_UNVERIFIED, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return VALIDATION_STATE_UNVERIFIED, fmt.Errorf("rpki lookup for %s AS%d: unexpected status %s", prefix, asn, resp.Status)
	}

	var r graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return VALIDATION_STATE_UNVERIFIED, fmt.Errorf("rpki lookup for %s AS%d: %w", prefix, asn, err)
	}
	if len(r.Errors) > 0 {
		msgs := make([]string, 0, len(r.Errors))
		for _, e := range r.Errors {
			msgs = append(msgs, e.Message)
		}
		return VALIDATION_STATE_UNVERIFIED, fmt.Errorf("rpki lookup for %s AS%d: %s", prefix, asn, strings.Join(msgs, "; "))
	}
	if r.Data.Validation == nil {
		return VALIDATION_STATE_UNVERIFIED, fmt.Errorf("rpki lookup for %s AS%d: no validation in response", prefix, asn)
	}
	return ParseValidationState(r.Data.Validation.State), nil
}
