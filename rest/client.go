// Copyright 2026 The Tandem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tandem-run/tandem"
)

// LogInfo is a batch of output records, together with the tag to pass to
// the next Log call to receive only newer records.
type LogInfo struct {
	Etag    string
	Records []tandem.LogRecord
}

// Client reads the status API.
type Client struct {
	base   string // URI to root of tree on server
	client *http.Client
}

func (c *Client) url(name string) string {
	if name == "" {
		return c.base + "/processes"
	}
	return c.base + "/processes/" + url.PathEscape(name)
}

// poll issues an HTTP GET against the URL.  If etag is not empty the
// request is conditional, and a positive wait asks the server to hold it
// until the value changes.  The return values are the new Etag and any
// error.  If the value did not change, the returned etag will be "", but
// the error will be nil.
func (c *Client) poll(ctx context.Context, url string, etag string, wait int, v interface{}) (string, error) {
	req, e := http.NewRequestWithContext(ctx, "GET", url, nil)
	if e != nil {
		return "", e
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
		if wait > 0 {
			req.Header.Set(PollTimeHeader, strconv.Itoa(wait))
		}
	}
	res, e := c.client.Do(req)
	if e != nil {
		return "", e
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotModified {
		return "", nil
	}
	body, e := io.ReadAll(res.Body)
	if e != nil {
		return "", e
	}
	if res.StatusCode != http.StatusOK {
		err := &Error{}
		if json.Unmarshal(body, err) != nil || err.Code == 0 {
			err = &Error{Code: res.StatusCode, Message: strings.TrimSpace(res.Status)}
		}
		return "", err
	}
	if e := json.Unmarshal(body, v); e != nil {
		return "", e
	}
	return res.Header.Get("Etag"), nil
}

func (c *Client) Supervisor(ctx context.Context) (*SupervisorInfo, error) {
	v := &SupervisorInfo{}
	if _, e := c.poll(ctx, c.base+"/supervisor", "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

// Processes returns the configured process names, in configuration order.
func (c *Client) Processes(ctx context.Context) ([]string, error) {
	v := []string{}
	if _, e := c.poll(ctx, c.url(""), "", 0, &v); e != nil {
		return nil, e
	}
	return v, nil
}

func (c *Client) Process(ctx context.Context, name string) (*ProcessInfo, error) {
	v := &ProcessInfo{}
	if _, e := c.poll(ctx, c.url(name), "", 0, v); e != nil {
		return nil, e
	}
	return v, nil
}

// Log returns the output the server still keeps for the named process.
// last is nil or the result of a previous call.  If nothing was added since
// last, last itself is returned; otherwise the result holds every kept
// record, including those last already had, so callers wanting only new
// ones skip records whose Id is not above the last one they saw.  With a
// previous result and a positive wait, the server holds the request until
// new output arrives or wait elapses.
func (c *Client) Log(ctx context.Context, name string, last *LogInfo, wait time.Duration) (*LogInfo, error) {
	otag := ""
	secs := 0
	if last != nil {
		otag = last.Etag
		secs = int(wait / time.Second)
	}
	v := &LogInfo{}
	etag, e := c.poll(ctx, c.url(name)+"/log", otag, secs, &v.Records)
	if e != nil {
		return nil, e
	}
	if etag == "" {
		return last, nil
	}
	v.Etag = etag
	return v, nil
}

// NewClient returns a Client for the API rooted at baseURI, e.g.
// "http://127.0.0.1:8321".  hc may be nil to use a default client; it may
// also be adjusted to support additional options such as TLS.
func NewClient(baseURI string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		base:   strings.TrimRight(baseURI, "/"),
		client: hc,
	}
}
