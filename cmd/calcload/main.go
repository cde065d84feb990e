// Command calcload sends generated expressions to an evaluation service and
// reports how they fared.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/zephyrtronium/calcpipe"
	"github.com/zephyrtronium/calcpipe/gen"
	"github.com/zephyrtronium/calcpipe/internal/logging"
	"github.com/zephyrtronium/calcpipe/service"
)

func main() {
	var (
		url, apiKey, level string
		requests, workers  int
		length             int
		timeout            time.Duration
		seed               int64
	)
	flag.StringVar(&url, "url", "http://localhost:8080", "evaluation service URL")
	flag.StringVar(&apiKey, "api-key", "", "API key for the evaluation service")
	flag.IntVar(&requests, "n", 100, "number of expressions to evaluate")
	flag.IntVar(&workers, "workers", 8, "number of concurrent requests")
	flag.IntVar(&length, "length", gen.DefaultLength, "expression length in terms")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "time limit for each request")
	flag.Int64Var(&seed, "seed", 0, "random seed (0 for the current time)")
	flag.StringVar(&level, "log-level", "info", "log level")
	flag.Parse()
	logging.Init(logging.Config{Level: level})
	if workers < 1 {
		workers = 1
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	c := &service.Client{URL: url, APIKey: apiKey, HTTP: &http.Client{Timeout: timeout}}
	r := rand.New(rand.NewSource(seed))
	exprs := make(chan string)
	go func() {
		defer close(exprs)
		for i := 0; i < requests; i++ {
			exprs <- gen.Expression(r, length)
		}
	}()

	var (
		wg  sync.WaitGroup
		sum summary
	)
	start := time.Now()
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range exprs {
				sum.add(evaluate(c, e))
			}
		}()
	}
	wg.Wait()
	sum.print(os.Stdout, time.Since(start))
	if sum.failed > 0 {
		os.Exit(1)
	}
}

// outcome is the result of one request.
type outcome struct {
	err error
	dur time.Duration
}

func evaluate(c *service.Client, e string) outcome {
	start := time.Now()
	r, err := c.Evaluate(context.Background(), e)
	dur := time.Since(start)
	if err != nil {
		slog.Error(fmt.Sprintf("generated %s and failed to evaluate it in %d ms", e, dur.Milliseconds()),
			slog.String("kind", classify(err)),
			slog.String("error", err.Error()),
		)
		return outcome{err: err, dur: dur}
	}
	slog.Info(fmt.Sprintf("generated %s and evaluated its value as %g in %d ms", e, r, dur.Milliseconds()))
	return outcome{dur: dur}
}

// classify names the kind of a failed request. A failure the service
// described is named by its error kind. Otherwise the name is the HTTP status,
// or TRANSPORT if no response arrived.
func classify(err error) string {
	var re *service.RemoteError
	if !errors.As(err, &re) {
		return "TRANSPORT"
	}
	if re.Kind == calcpipe.KindNone {
		return "HTTP_" + strconv.Itoa(re.Status)
	}
	return re.Kind.String()
}

// summary counts outcomes. It is safe for concurrent use.
type summary struct {
	mu      sync.Mutex
	ok      int
	failed  int
	kinds   map[string]int
	total   time.Duration
	slowest time.Duration
}

func (s *summary) add(o outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total += o.dur
	s.slowest = max(s.slowest, o.dur)
	if o.err == nil {
		s.ok++
		return
	}
	s.failed++
	if s.kinds == nil {
		s.kinds = make(map[string]int)
	}
	s.kinds[classify(o.err)]++
}

func (s *summary) print(w io.Writer, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.ok + s.failed
	fmt.Fprintf(w, "%d requests in %v: %d succeeded, %d failed\n", n, elapsed.Round(time.Millisecond), s.ok, s.failed)
	if n > 0 {
		fmt.Fprintf(w, "mean latency %v, max %v\n", (s.total / time.Duration(n)).Round(time.Microsecond), s.slowest.Round(time.Microsecond))
	}
	kinds := make([]string, 0, len(s.kinds))
	for k := range s.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-26s %d\n", k, s.kinds[k])
	}
}
