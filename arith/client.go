package arith

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zephyrtronium/calcpipe"
)

// Client is a calcpipe.Arithmetic served by a Handler at URL. It is safe for
// concurrent use.
type Client struct {
	// URL is the root URL of the arithmetic service.
	URL string
	// APIKey is sent in the Api-Key header if it is not empty.
	APIKey string
	// HTTP sends requests. If nil, http.DefaultClient is used. Set a timeout
	// on it to bound each individual call.
	HTTP *http.Client
}

var _ calcpipe.Arithmetic = (*Client)(nil)

// Compute asks the service for a op b. A division-by-zero response wraps
// calcpipe.ErrDivisionByZero and an unsupported-operation response wraps
// calcpipe.ErrUnsupported. Every other failure wraps calcpipe.ErrUnavailable,
// and also the context's error if the context ended.
func (c *Client) Compute(ctx context.Context, a float64, op calcpipe.Operation, b float64) (float64, error) {
	na, nb := Number(a), Number(b)
	body, err := json.Marshal(Request{A: &na, B: &nb, Operation: op.String()})
	if err != nil {
		return 0, fmt.Errorf("%w: encoding request: %v", calcpipe.ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.URL, "/")+"/calculate", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", calcpipe.ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Api-Key", c.APIKey)
	}
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("%w: %w", calcpipe.ErrUnavailable, ctx.Err())
		}
		return 0, fmt.Errorf("%w: %v", calcpipe.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	rb, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("%w: reading response: %v", calcpipe.ErrUnavailable, err)
	}
	if resp.StatusCode == http.StatusOK {
		var r Response
		if err := json.Unmarshal(rb, &r); err != nil {
			return 0, fmt.Errorf("%w: decoding response: %v", calcpipe.ErrUnavailable, err)
		}
		return float64(r.Result), nil
	}
	var e ErrorResponse
	if err := json.Unmarshal(rb, &e); err != nil || e.Code == "" {
		return 0, fmt.Errorf("%w: status %d", calcpipe.ErrUnavailable, resp.StatusCode)
	}
	switch e.Code {
	case CodeDivisionByZero:
		return 0, fmt.Errorf("%w: %s", calcpipe.ErrDivisionByZero, e.Error)
	case CodeUnsupported:
		return 0, fmt.Errorf("%w: %s", calcpipe.ErrUnsupported, e.Error)
	default:
		return 0, fmt.Errorf("%w: status %d: %s: %s", calcpipe.ErrUnavailable, resp.StatusCode, e.Code, e.Error)
	}
}
