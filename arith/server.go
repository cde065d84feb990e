// Package arith serves an Arithmetic capability over HTTP and provides the
// client that evaluators use to reach it.
package arith

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zephyrtronium/calcpipe"
	"github.com/zephyrtronium/calcpipe/internal/middleware"
)

// Error codes in failure responses.
const (
	CodeDivisionByZero = "DIVISION_BY_ZERO"
	CodeUnsupported    = "UNSUPPORTED_OPERATION"
	CodeBadRequest     = "BAD_REQUEST"
	CodeCanceled       = "CANCELED"
	CodeInternal       = "INTERNAL"
)

// Request is the body of POST /calculate.
type Request struct {
	A         *Number `json:"a" binding:"required"`
	B         *Number `json:"b" binding:"required"`
	Operation string  `json:"operation" binding:"required"`
}

// Response is the body of a successful calculation.
type Response struct {
	Result Number `json:"result"`
}

// ErrorResponse is the body of a failed calculation.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Handler serves calculations.
type Handler struct {
	// Arith performs the operations. If nil, calcpipe.Local is used.
	Arith calcpipe.Arithmetic
	// Delay is added before every operation.
	Delay time.Duration
	// APIKeys, if not empty, restricts calculations to requests carrying one
	// of the keys.
	APIKeys []string
}

// AddRoutes registers the calculation endpoint on rg.
func (h *Handler) AddRoutes(rg *gin.RouterGroup) {
	rg.POST("/calculate",
		middleware.APIKey(h.APIKeys),
		middleware.RequirePayload(),
		h.calculate,
	)
}

func (h *Handler) calculate(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Debug("invalid calculate request", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeBadRequest})
		return
	}
	op, err := calcpipe.ParseOperation(req.Operation)
	if err != nil {
		slog.Error("unsupported operation", slog.String("operation", req.Operation))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeUnsupported})
		return
	}
	a, b := float64(*req.A), float64(*req.B)
	slog.Info("calculate", slog.String("operation", op.String()), slog.Float64("a", a), slog.Float64("b", b))

	ctx := c.Request.Context()
	if h.Delay > 0 {
		t := time.NewTimer(h.Delay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: ctx.Err().Error(), Code: CodeCanceled})
			return
		}
	}

	arith := h.Arith
	if arith == nil {
		arith = calcpipe.Local
	}
	r, err := arith.Compute(ctx, a, op, b)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, Response{Result: Number(r)})
	case errors.Is(err, calcpipe.ErrDivisionByZero):
		slog.Error("division by zero", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeDivisionByZero})
	case errors.Is(err, calcpipe.ErrUnsupported):
		slog.Error("unsupported operation", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeUnsupported})
	default:
		slog.Error("unexpected error in calculation", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "unexpected error: " + err.Error(), Code: CodeInternal})
	}
}
