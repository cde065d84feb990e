package arith

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/zephyrtronium/calcpipe"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	h.AddRoutes(&r.RouterGroup)
	return r
}

func post(t *testing.T, r http.Handler, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCalculate(t *testing.T) {
	cases := []struct {
		name string
		body string
		want float64
	}{
		{"add", `{"a":2,"b":3,"operation":"ADD"}`, 5},
		{"sub", `{"a":2,"b":3,"operation":"SUBTRACT"}`, -1},
		{"mul", `{"a":2,"b":3,"operation":"MULTIPLY"}`, 6},
		{"div", `{"a":3,"b":2,"operation":"DIVIDE"}`, 1.5},
		{"zeros", `{"a":0,"b":0,"operation":"ADD"}`, 0},
		{"inf", `{"a":"+Inf","b":1,"operation":"ADD"}`, math.Inf(1)},
	}
	r := newRouter(&Handler{})
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := post(t, r, c.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, c.want, float64(resp.Result))
		})
	}
}

func TestCalculateErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"div-zero", `{"a":1,"b":0,"operation":"DIVIDE"}`, http.StatusBadRequest, CodeDivisionByZero},
		{"unsupported", `{"a":1,"b":2,"operation":"POW"}`, http.StatusBadRequest, CodeUnsupported},
		{"missing-b", `{"a":1,"operation":"ADD"}`, http.StatusBadRequest, CodeBadRequest},
		{"missing-op", `{"a":1,"b":2}`, http.StatusBadRequest, CodeBadRequest},
		{"not-json", `1 + 2`, http.StatusBadRequest, CodeBadRequest},
		{"bad-number", `{"a":"lots","b":2,"operation":"ADD"}`, http.StatusBadRequest, CodeBadRequest},
	}
	r := newRouter(&Handler{})
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := post(t, r, c.body)
			require.Equal(t, c.status, w.Code)
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.Equal(t, c.code, resp.Code)
			require.NotEmpty(t, resp.Error)
		})
	}
}

func TestCalculateInternal(t *testing.T) {
	broken := calcpipe.ArithmeticFunc(func(ctx context.Context, a float64, op calcpipe.Operation, b float64) (float64, error) {
		return 0, errors.New("disk on fire")
	})
	w := post(t, newRouter(&Handler{Arith: broken}), `{"a":1,"b":2,"operation":"ADD"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, CodeInternal, resp.Code)
}

func TestCalculateAPIKey(t *testing.T) {
	r := newRouter(&Handler{APIKeys: []string{"secret"}})
	w := post(t, r, `{"a":1,"b":2,"operation":"ADD"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	w = post(t, r, `{"a":1,"b":2,"operation":"ADD"}`, "Api-Key", "secret")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCalculateEmptyBody(t *testing.T) {
	w := post(t, newRouter(&Handler{}), "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNumberJSON(t *testing.T) {
	cases := []struct {
		n    Number
		json string
	}{
		{1.5, `1.5`},
		{-2, `-2`},
		{Number(math.Inf(1)), `"+Inf"`},
		{Number(math.Inf(-1)), `"-Inf"`},
		{Number(math.NaN()), `"NaN"`},
	}
	for _, c := range cases {
		b, err := json.Marshal(c.n)
		require.NoError(t, err)
		require.Equal(t, c.json, string(b))
		var n Number
		require.NoError(t, json.Unmarshal(b, &n))
		if math.IsNaN(float64(c.n)) {
			require.True(t, math.IsNaN(float64(n)))
			continue
		}
		require.Equal(t, c.n, n)
	}
	var n Number
	require.Error(t, json.Unmarshal([]byte(`"many"`), &n))
	require.Error(t, json.Unmarshal([]byte(`true`), &n))
}

func newClient(t *testing.T, h *Handler) *Client {
	srv := httptest.NewServer(newRouter(h))
	t.Cleanup(srv.Close)
	return &Client{URL: srv.URL, APIKey: "k", HTTP: srv.Client()}
}

func TestClient(t *testing.T) {
	c := newClient(t, &Handler{APIKeys: []string{"k"}})
	cases := []struct {
		a, b float64
		op   calcpipe.Operation
		want float64
	}{
		{2, 3, calcpipe.Add, 5},
		{2, 3, calcpipe.Subtract, -1},
		{2, 3, calcpipe.Multiply, 6},
		{3, 2, calcpipe.Divide, 1.5},
		{math.MaxFloat64, 10, calcpipe.Multiply, math.Inf(1)},
	}
	for _, tc := range cases {
		r, err := c.Compute(context.Background(), tc.a, tc.op, tc.b)
		require.NoError(t, err)
		require.Equal(t, tc.want, r)
	}
}

func TestClientErrors(t *testing.T) {
	c := newClient(t, &Handler{APIKeys: []string{"k"}})

	_, err := c.Compute(context.Background(), 1, calcpipe.Divide, 0)
	require.ErrorIs(t, err, calcpipe.ErrDivisionByZero)

	_, err = c.Compute(context.Background(), 1, calcpipe.Operation(9), 0)
	require.ErrorIs(t, err, calcpipe.ErrUnsupported)

	c.APIKey = "wrong"
	_, err = c.Compute(context.Background(), 1, calcpipe.Add, 1)
	require.ErrorIs(t, err, calcpipe.ErrUnavailable)
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := &Client{URL: url}
	_, err := c.Compute(context.Background(), 1, calcpipe.Add, 1)
	require.ErrorIs(t, err, calcpipe.ErrUnavailable)
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	c := &Client{URL: srv.URL, HTTP: srv.Client()}
	_, err := c.Compute(context.Background(), 1, calcpipe.Add, 1)
	require.ErrorIs(t, err, calcpipe.ErrUnavailable)
	require.Contains(t, err.Error(), "503")
}

func TestClientDeadline(t *testing.T) {
	c := newClient(t, &Handler{Delay: time.Second})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Compute(ctx, 1, calcpipe.Add, 1)
	require.ErrorIs(t, err, calcpipe.ErrUnavailable)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPipelineOverHTTP(t *testing.T) {
	var calls atomic.Int32
	counting := calcpipe.ArithmeticFunc(func(ctx context.Context, a float64, op calcpipe.Operation, b float64) (float64, error) {
		calls.Add(1)
		return calcpipe.Local.Compute(ctx, a, op, b)
	})
	c := newClient(t, &Handler{Arith: counting})

	r, err := calcpipe.EvalString(context.Background(), "(2 + 3) * 4 - 8 / 2", c)
	require.NoError(t, err)
	require.Equal(t, 16.0, r)
	require.EqualValues(t, 4, calls.Load())

	_, err = calcpipe.EvalString(context.Background(), "5 / (1 - 1)", c)
	var dz *calcpipe.DivisionByZeroError
	require.ErrorAs(t, err, &dz)
	require.Equal(t, calcpipe.KindDivisionByZero, calcpipe.KindOf(err))
}
