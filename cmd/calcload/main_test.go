package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/zephyrtronium/calcpipe"
	"github.com/zephyrtronium/calcpipe/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"malformed", &service.RemoteError{Kind: calcpipe.KindMalformed, Status: http.StatusBadRequest}, "MALFORMED_EXPRESSION"},
		{"div-zero", &service.RemoteError{Kind: calcpipe.KindDivisionByZero, Status: http.StatusBadRequest}, "DIVISION_BY_ZERO"},
		{"service", &service.RemoteError{Kind: calcpipe.KindService, Status: http.StatusBadGateway}, "ARITHMETIC_SERVICE_ERROR"},
		{"rejected", &service.RemoteError{Status: http.StatusUnauthorized}, "HTTP_401"},
		{"wrapped", errors.Join(errors.New("outer"), &service.RemoteError{Kind: calcpipe.KindInternal}), "INTERNAL_ERROR"},
		{"transport", errors.New("connection refused"), "TRANSPORT"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, classify(c.err))
		})
	}
}

func TestSummary(t *testing.T) {
	outcomes := []outcome{
		{dur: 10 * time.Millisecond},
		{dur: 20 * time.Millisecond},
		{err: &service.RemoteError{Kind: calcpipe.KindDivisionByZero}, dur: 30 * time.Millisecond},
		{err: errors.New("connection refused"), dur: 40 * time.Millisecond},
		{err: &service.RemoteError{Status: http.StatusUnauthorized}},
	}
	var (
		s  summary
		wg sync.WaitGroup
	)
	for _, o := range outcomes {
		wg.Add(1)
		go func(o outcome) {
			defer wg.Done()
			s.add(o)
		}(o)
	}
	wg.Wait()

	var b strings.Builder
	s.print(&b, time.Second)
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 5)
	require.Equal(t, "5 requests in 1s: 2 succeeded, 3 failed", lines[0])
	require.Equal(t, "mean latency 20ms, max 40ms", lines[1])
	require.Equal(t, []string{"DIVISION_BY_ZERO", "1"}, strings.Fields(lines[2]))
	require.Equal(t, []string{"HTTP_401", "1"}, strings.Fields(lines[3]))
	require.Equal(t, []string{"TRANSPORT", "1"}, strings.Fields(lines[4]))
}

func TestSummaryEmpty(t *testing.T) {
	var (
		s summary
		b strings.Builder
	)
	s.print(&b, 0)
	require.Equal(t, "0 requests in 0s: 0 succeeded, 0 failed\n", b.String())
}

func TestEvaluateAgainstService(t *testing.T) {
	r := gin.New()
	h := &service.Handler{}
	h.AddRoutes(&r.RouterGroup)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	c := &service.Client{URL: srv.URL, HTTP: srv.Client()}

	o := evaluate(c, "3 * 4 - 2")
	require.NoError(t, o.err)

	o = evaluate(c, "3 / 0")
	require.Error(t, o.err)
	require.Equal(t, "DIVISION_BY_ZERO", classify(o.err))

	var s summary
	s.add(evaluate(c, "1 + 1"))
	s.add(evaluate(c, "(1"))
	require.Equal(t, 1, s.ok)
	require.Equal(t, 1, s.failed)
	require.Equal(t, map[string]int{"MALFORMED_EXPRESSION": 1}, s.kinds)
}
