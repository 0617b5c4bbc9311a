package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/estensen/contract-activity/internal/models"
)

const DefaultTimeout = 30 * time.Second

var (
	ErrFetch           = errors.New("explorer fetch failed")
	ErrInvalidResponse = errors.New("invalid explorer response")
)

// FetchError covers network failures, timeouts and non-2xx responses.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: received non-OK status code: %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrFetch}
	}
	return []error{ErrFetch, e.Err}
}

// Query identifies one page of contract activity.
type Query struct {
	BaseURL         string
	ContractAddress string
	Shape           models.SourceShape
	TokenStandard   string
}

// URL returns the endpoint for the query's shape.
func (q Query) URL() string {
	if q.Shape == models.GeneralTransaction {
		return TransactionsURL(q.BaseURL, q.ContractAddress)
	}
	return TransfersURL(q.BaseURL, q.ContractAddress, q.TokenStandard)
}

// API fetches raw explorer records.
type API interface {
	FetchItems(ctx context.Context, q Query) ([]models.Record, error)
}

// Client is a Blockscout v2 API client.
type Client struct {
	fetchFunc func(ctx context.Context, url string) (*http.Response, error)
}

// NewClient returns a Client whose requests are bounded by timeout.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := &http.Client{Timeout: timeout}
	return &Client{
		fetchFunc: func(ctx context.Context, url string) (*http.Response, error) {
			return fetchResponse(ctx, httpClient, url)
		},
	}
}

// TransfersURL builds the token-transfers endpoint, filtered by token standard when set.
func TransfersURL(baseURL, contract, tokenStandard string) string {
	u := fmt.Sprintf("%s/api/v2/tokens/%s/transfers", strings.TrimRight(baseURL, "/"), contract)
	if tokenStandard != "" {
		u += "?" + url.Values{"type": {tokenStandard}}.Encode()
	}
	return u
}

// TransactionsURL builds the address-transactions endpoint.
func TransactionsURL(baseURL, contract string) string {
	return fmt.Sprintf("%s/api/v2/addresses/%s/transactions", strings.TrimRight(baseURL, "/"), contract)
}

// FetchItems performs one GET and returns the decoded "items" array.
// An empty array is returned as an empty, non-nil slice.
func (c *Client) FetchItems(ctx context.Context, q Query) ([]models.Record, error) {
	u := q.URL()

	resp, err := c.fetchFunc(ctx, u)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, &FetchError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	records, err := decodeItems(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	return records, nil
}

// fetchResponse performs an HTTP GET request and rejects non-2xx responses.
func fetchResponse(ctx context.Context, client *http.Client, u string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the transport can reuse the connection.
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode}
	}

	return resp, nil
}

type page struct {
	Items []json.RawMessage `json:"items"`
}

// decodeItems extracts the items array. A body without "items" yields no
// records. Items that are not JSON objects are kept as nil records so the
// parser can report them by index.
func decodeItems(body io.Reader) ([]models.Record, error) {
	if body == nil {
		return nil, fmt.Errorf("%w: response body is empty", ErrInvalidResponse)
	}

	var p page
	if err := json.NewDecoder(body).Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: error decoding response body: %v", ErrInvalidResponse, err)
	}

	records := make([]models.Record, 0, len(p.Items))
	for _, raw := range p.Items {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()

		var rec models.Record
		if err := dec.Decode(&rec); err != nil {
			rec = nil
		}
		records = append(records, rec)
	}
	return records, nil
}
