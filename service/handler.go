// Package service serves expression evaluation over HTTP.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zephyrtronium/calcpipe"
	"github.com/zephyrtronium/calcpipe/arith"
	"github.com/zephyrtronium/calcpipe/gen"
	"github.com/zephyrtronium/calcpipe/history"
	"github.com/zephyrtronium/calcpipe/internal/middleware"
)

// KindBadRequest is the error kind of a request body that could not be
// decoded. It is not a calcpipe.Kind.
const KindBadRequest = "BAD_REQUEST"

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
	maxGenerateLength   = 1 << 16
)

// History is an evaluation history that can be listed.
type History interface {
	history.Recorder
	Recent(ctx context.Context, limit int) ([]history.Entry, error)
}

// Handler serves evaluations. Its exported fields must not be modified after
// AddRoutes is called.
type Handler struct {
	// Arith computes operations. If nil, calcpipe.Local is used.
	Arith calcpipe.Arithmetic
	// Timeout bounds each evaluation including retries. Zero means no bound
	// other than the request's own context.
	Timeout time.Duration
	// Retry is the policy for evaluations that fail with KindService.
	Retry Retry
	// History records every evaluation if it is not nil.
	History History
	// APIKeys, if not empty, restricts every endpoint except the health
	// check to requests carrying one of the keys.
	APIKeys []string

	mu  sync.Mutex
	rng *rand.Rand
}

// EvaluateRequest is the body of POST /evaluate and POST /tokenize.
type EvaluateRequest struct {
	Expression string `json:"expression"`
}

// EvaluateResponse is the body of a successful evaluation.
type EvaluateResponse struct {
	Result arith.Number `json:"result"`
}

// ErrorResponse describes a failed request. Kind is the name of a
// calcpipe.Kind or KindBadRequest. Pos is the 1-based column of the token
// that caused the failure, when there is one.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Pos   int    `json:"pos,omitempty"`
}

// TokenizeResponse is the body of a successful tokenization.
type TokenizeResponse struct {
	Tokens  []Token `json:"tokens"`
	Postfix []Token `json:"postfix"`
}

// Token is the encoding of a calcpipe.Token that allows non-finite values.
type Token struct {
	Type     string        `json:"type"`
	Value    *arith.Number `json:"value,omitempty"`
	Operator string        `json:"operator,omitempty"`
	Pos      int           `json:"pos"`
}

// GenerateResponse is the body of GET /generate.
type GenerateResponse struct {
	Expression string `json:"expression"`
}

// HistoryEntry is one item of GET /history.
type HistoryEntry struct {
	Expression string       `json:"expression"`
	Result     arith.Number `json:"result"`
	Kind       string       `json:"kind,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMS float64      `json:"durationMs"`
	At         time.Time    `json:"at"`
}

// AddRoutes registers the evaluation endpoints on rg.
func (h *Handler) AddRoutes(rg *gin.RouterGroup) {
	rg.GET("/", middleware.HealthCheck)
	g := rg.Group("/", middleware.APIKey(h.APIKeys))
	g.POST("/evaluate", middleware.RequirePayload(), h.evaluate)
	g.POST("/tokenize", middleware.RequirePayload(), h.tokenize)
	g.GET("/generate", h.generate)
	g.GET("/history", h.history)
}

func (h *Handler) evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: KindBadRequest})
		return
	}
	ctx := c.Request.Context()
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}
	a := h.Arith
	if a == nil {
		a = calcpipe.Local
	}
	p := calcpipe.Pipeline{Arith: a, Log: slog.Default()}

	start := time.Now()
	var r float64
	err := h.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		r, err = p.Eval(ctx, req.Expression)
		return err
	})
	dur := time.Since(start)
	h.record(c.Request.Context(), req.Expression, r, err, start, dur)

	if err != nil {
		status, resp := describe(err)
		slog.Info("evaluation failed",
			slog.String("expression", req.Expression),
			slog.String("kind", resp.Kind),
			slog.String("error", err.Error()),
		)
		c.JSON(status, resp)
		return
	}
	slog.Info("evaluated",
		slog.String("expression", req.Expression),
		slog.Float64("result", r),
		slog.Duration("duration", dur),
	)
	c.JSON(http.StatusOK, EvaluateResponse{Result: arith.Number(r)})
}

// describe maps an evaluation error to its status and descriptor.
func describe(err error) (int, ErrorResponse) {
	kind := calcpipe.KindOf(err)
	resp := ErrorResponse{Error: err.Error(), Kind: kind.String()}
	var ie calcpipe.InputError
	if errors.As(err, &ie) {
		resp.Pos = ie.Pos()
	}
	switch {
	case kind == calcpipe.KindMalformed, kind == calcpipe.KindDivisionByZero:
		return http.StatusBadRequest, resp
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, resp
	case kind == calcpipe.KindService:
		return http.StatusBadGateway, resp
	default:
		resp.Kind = calcpipe.KindInternal.String()
		return http.StatusInternalServerError, resp
	}
}

// record saves the outcome of an evaluation. Failures are logged only.
func (h *Handler) record(ctx context.Context, expr string, r float64, err error, start time.Time, dur time.Duration) {
	if h.History == nil {
		return
	}
	e := history.Entry{
		Expression: expr,
		Result:     r,
		Duration:   dur,
		At:         start,
	}
	if err != nil {
		e.Result = 0
		e.Kind = calcpipe.KindOf(err)
		e.Error = err.Error()
	}
	if err := h.History.Record(context.WithoutCancel(ctx), e); err != nil {
		slog.Error("recording evaluation", slog.String("expression", expr), slog.String("error", err.Error()))
	}
}

func (h *Handler) tokenize(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: KindBadRequest})
		return
	}
	toks := calcpipe.Tokenize(req.Expression)
	post, err := calcpipe.ToPostfix(toks)
	if err != nil {
		status, resp := describe(err)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, TokenizeResponse{Tokens: tokens(toks), Postfix: tokens(post)})
}

func tokens(toks []calcpipe.Token) []Token {
	r := make([]Token, len(toks))
	for i, t := range toks {
		r[i].Pos = t.Pos()
		if t.Kind() == calcpipe.TokenOp {
			r[i].Type = "operator"
			r[i].Operator = string(t.Symbol())
			continue
		}
		v := arith.Number(t.Value())
		r[i].Type = "number"
		r[i].Value = &v
	}
	return r
}

func (h *Handler) generate(c *gin.Context) {
	n := gen.DefaultLength
	if s := c.Query("length"); s != "" {
		var err error
		n, err = strconv.Atoi(s)
		if err != nil || n < 1 || n > maxGenerateLength {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid length " + strconv.Quote(s), Kind: KindBadRequest})
			return
		}
	}
	h.mu.Lock()
	if h.rng == nil {
		h.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e := gen.Expression(h.rng, n)
	h.mu.Unlock()
	c.JSON(http.StatusOK, GenerateResponse{Expression: e})
}

func (h *Handler) history(c *gin.Context) {
	if h.History == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "no history is kept", Kind: KindBadRequest})
		return
	}
	limit := defaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		var err error
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit " + strconv.Quote(s), Kind: KindBadRequest})
			return
		}
		limit = min(limit, maxHistoryLimit)
	}
	entries, err := h.History.Recent(c.Request.Context(), limit)
	if err != nil {
		slog.Error("reading history", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "could not read history", Kind: calcpipe.KindInternal.String()})
		return
	}
	r := make([]HistoryEntry, len(entries))
	for i, e := range entries {
		r[i] = HistoryEntry{
			Expression: e.Expression,
			Result:     arith.Number(e.Result),
			Error:      e.Error,
			DurationMS: float64(e.Duration) / float64(time.Millisecond),
			At:         e.At,
		}
		if e.Kind != calcpipe.KindNone {
			r[i].Kind = e.Kind.String()
		}
	}
	c.JSON(http.StatusOK, gin.H{"entries": r})
}
