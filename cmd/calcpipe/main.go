package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/zephyrtronium/calcpipe"
	"github.com/zephyrtronium/calcpipe/arith"
)

func main() {
	log.SetFlags(0)
	var (
		inname, verb, remote string
		nl, echo, verbose    bool
		timeout              time.Duration
	)
	flag.StringVar(&inname, "in", "", "input file (default stdin if no args given)")
	flag.StringVar(&verb, "fmt", "%g", "result formatting string")
	flag.BoolVar(&nl, "n", false, "evaluate separate input lines as separate expressions")
	flag.BoolVar(&echo, "echo", false, "print postfix forms")
	flag.StringVar(&remote, "remote", "", "URL of an arithmetic service to use instead of computing locally")
	flag.DurationVar(&timeout, "timeout", 0, "time limit for each expression (0 for none)")
	flag.BoolVar(&verbose, "v", false, "log each pipeline stage to stderr")
	flag.Parse()

	var in io.Reader
	f, err := infile(inname, flag.NArg() == 0)
	if err != nil {
		log.Fatal(err)
	}
	if f != nil {
		in = f
		defer f.Close()
	}
	var srcs []string
	if in != nil {
		srcs, err = read(in, nl)
		if err != nil {
			log.Fatal(err)
		}
	}
	srcs = append(srcs, flag.Args()...)

	p := calcpipe.Pipeline{Arith: calcpipe.Local}
	if remote != "" {
		p.Arith = &arith.Client{URL: remote, HTTP: &http.Client{}}
	}
	if verbose {
		p.Log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	verb += "\n"
	failed := false
	for _, src := range srcs {
		if echo {
			post, err := calcpipe.ToPostfix(calcpipe.Tokenize(src))
			if err == nil {
				fmt.Printf("%v : ", calcpipe.FormatTokens(post))
			}
		}
		r, err := eval(&p, src, timeout)
		if err != nil {
			fmt.Printf("%v: %v\n", calcpipe.KindOf(err), err)
			failed = true
			continue
		}
		fmt.Printf(verb, r)
	}
	if failed {
		os.Exit(1)
	}
}

func eval(p *calcpipe.Pipeline, src string, timeout time.Duration) (float64, error) {
	ctx := context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Eval(ctx, src)
}

// read collects expressions from in: one per non-blank line if nl, otherwise
// the entire input as one.
func read(in io.Reader, nl bool) ([]string, error) {
	if !nl {
		b, err := io.ReadAll(in)
		if err != nil {
			return nil, err
		}
		return []string{string(b)}, nil
	}
	var r []string
	s := bufio.NewScanner(in)
	s.Buffer(nil, 1<<24)
	for s.Scan() {
		if strings.TrimSpace(s.Text()) == "" {
			continue
		}
		r = append(r, s.Text())
	}
	return r, s.Err()
}

func infile(inname string, std bool) (io.ReadCloser, error) {
	switch {
	case inname != "" && inname != "-":
		return os.Open(inname)
	case inname == "-", std:
		return io.NopCloser(os.Stdin), nil
	}
	return nil, nil
}
