// Package client is a thin REST client for the downstream entity API. It
// covers the handful of calls the integration adapter needs: schema fetch,
// single and bulk upsert, read-by-GUID, and delete.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"
)

// SchemaProperty describes one field of a remote entity schema.
type SchemaProperty struct {
	Type string `json:"type"`
	Size int    `json:"size"`
}

// Schema maps field name to its remote definition.
type Schema map[string]SchemaProperty

// Client talks to the downstream entity API. All request bodies and
// responses are JSON.
type Client struct {
	baseURL string
	http    *retryablehttp.Client
}

// Option is a functional option for the Client.
type Option func(c *Client)

// OptHTTPClient sets the underlying HTTP client.
func OptHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = h }
}

// OptRetryMax sets how many times a failed HTTP request is retried at the
// transport level. The adapter layers its own record-level retry on top, so
// this defaults to 0.
func OptRetryMax(n int) Option {
	return func(c *Client) { c.http.RetryMax = n }
}

// OptTimeout sets the per-request timeout.
func OptTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.HTTPClient.Timeout = d }
}

// New creates a Client against baseURL. baseURL should include any API
// prefix, e.g. "http://host:port/1.0/".
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, errors.Wrap(err, "parsing base URL")
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	hc := retryablehttp.NewClient()
	hc.RetryMax = 0
	hc.Logger = nil
	c := &Client{
		baseURL: baseURL,
		http:    hc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Schema fetches the remote schema for entity, returning the property map
// from the schema document.
func (c *Client) Schema(ctx context.Context, entity string) (Schema, error) {
	var doc struct {
		Properties Schema `json:"properties"`
	}
	err := c.do(ctx, "GET", entity+"/Schema", nil, &doc)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching schema for %s", entity)
	}
	return doc.Properties, nil
}

// Upsert creates or updates a single record, returning the response body as
// a map. The caller is responsible for checking the body for the expected
// identity fields.
func (c *Client) Upsert(ctx context.Context, entity string, rec map[string]interface{}) (map[string]interface{}, error) {
	var resp map[string]interface{}
	err := c.do(ctx, "PUT", entity, rec, &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "upserting %s", entity)
	}
	return resp, nil
}

// UpsertBulk creates or updates a batch of records in one call, returning
// one response object per input record.
func (c *Client) UpsertBulk(ctx context.Context, entity string, recs []map[string]interface{}) ([]map[string]interface{}, error) {
	var resp []map[string]interface{}
	err := c.do(ctx, "PUT", entity+"s", recs, &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "bulk upserting %s", entity)
	}
	return resp, nil
}

// EntityByGUID reads a single record by its GUID.
func (c *Client) EntityByGUID(ctx context.Context, entity, guid string) (map[string]interface{}, error) {
	var resp map[string]interface{}
	err := c.do(ctx, "GET", entity+"/"+url.PathEscape(guid), nil, &resp)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s by GUID %s", entity, guid)
	}
	return resp, nil
}

// Delete removes a record by its numeric ID.
func (c *Client) Delete(ctx context.Context, entity string, id int64) error {
	err := c.do(ctx, "DELETE", fmt.Sprintf("%s/%d", entity, id), nil, nil)
	return errors.Wrapf(err, "deleting %s %d", entity, id)
}

func (c *Client) do(ctx context.Context, method, path string, body, into interface{}) error {
	var rdr *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshaling request body")
		}
		rdr = bytes.NewReader(data)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := retryablehttp.NewRequest(method, c.baseURL+path, rdr)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "executing request")
	}
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("status %d: %s", resp.StatusCode, data)
	}
	if into == nil {
		return nil
	}
	if err := json.Unmarshal(data, into); err != nil {
		return errors.Wrapf(err, "unmarshaling response %q", data)
	}
	return nil
}
