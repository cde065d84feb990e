package service

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

// RemoteError is a failure reported by an evaluation service.
type RemoteError struct {
	// Kind is the kind of failure. It is KindNone for a request the service
	// could not decode.
	Kind calcpipe.Kind
	// Message is the service's description of the failure.
	Message string
	// Pos is the 1-based column of the token that caused the failure, or 0.
	Pos int
	// Status is the HTTP status of the response.
	Status int
}

func (err *RemoteError) Error() string {
	return fmt.Sprintf("evaluation service: %v (status %d): %s", err.Kind, err.Status, err.Message)
}

// Client evaluates expressions with a remote Handler. It is safe for
// concurrent use.
type Client struct {
	// URL is the root URL of the evaluation service.
	URL string
	// APIKey is sent in the Api-Key header if it is not empty.
	APIKey string
	// HTTP sends requests. If nil, http.DefaultClient is used.
	HTTP *http.Client
}

// Evaluate asks the service for the value of expr. Failures the service
// describes are returned as *RemoteError.
func (c *Client) Evaluate(ctx context.Context, expr string) (float64, error) {
	body, err := json.Marshal(EvaluateRequest{Expression: expr})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.URL, "/")+"/evaluate", bytes.NewReader(body))
	if err != nil {
		return 0, err
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
		return 0, fmt.Errorf("calling evaluation service: %w", err)
	}
	defer resp.Body.Close()
	rb, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("reading evaluation response: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		var r EvaluateResponse
		if err := json.Unmarshal(rb, &r); err != nil {
			return 0, fmt.Errorf("decoding evaluation response: %w", err)
		}
		return float64(r.Result), nil
	}
	var e ErrorResponse
	if err := json.Unmarshal(rb, &e); err != nil {
		return 0, &RemoteError{Message: strings.TrimSpace(string(rb)), Status: resp.StatusCode}
	}
	return 0, &RemoteError{
		Kind:    calcpipe.ParseKind(e.Kind),
		Message: e.Error,
		Pos:     e.Pos,
		Status:  resp.StatusCode,
	}
}
