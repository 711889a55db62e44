package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// debugErrors exposes internal error details in 500 responses.
var debugErrors bool

// SetDebug toggles exposure of internal error details.
func SetDebug(on bool) { debugErrors = on }

// JSONResponse defines the uniform structure for successful API responses.
type JSONResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data"`
	Meta    interface{} `json:"meta,omitempty"`
}

type errorBody struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	Error        string              `json:"error,omitempty"`
	Errors       map[string][]string `json:"errors,omitempty"`
	RequiresAuth bool                `json:"requires_auth,omitempty"`
	Trace        string              `json:"trace,omitempty"`
}

// PageMeta describes a paginated listing.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	LastPage    int   `json:"last_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
}

// NewPageMeta computes the last page from total and page size.
func NewPageMeta(page, perPage int, total int64) PageMeta {
	last := int((total + int64(perPage) - 1) / int64(perPage))
	if last < 1 {
		last = 1
	}
	return PageMeta{CurrentPage: page, LastPage: last, PerPage: perPage, Total: total}
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	ctx.JSON(http.StatusOK, JSONResponse{Success: true, Data: data})
}

// SuccessWithMeta returns data together with listing metadata.
func SuccessWithMeta(ctx *gin.Context, data, meta interface{}) {
	ctx.JSON(http.StatusOK, JSONResponse{Success: true, Data: data, Meta: meta})
}

// Created answers 201 with the new resource.
func Created(ctx *gin.Context, message string, data interface{}) {
	ctx.JSON(http.StatusCreated, JSONResponse{Success: true, Message: message, Data: data})
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code, message string) {
	ctx.AbortWithStatusJSON(status, errorBody{Success: false, Message: message, Error: code})
}

// RequiresAuth answers 401 with requires_auth so thin clients can open a login prompt.
func RequiresAuth(ctx *gin.Context, message string) {
	if message == "" {
		message = "Authentication required"
	}
	ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorBody{
		Success:      false,
		Message:      message,
		Error:        CodeUnauthenticated,
		RequiresAuth: true,
	})
}

// Fail maps err onto the error envelope. Internal errors are logged and hidden unless debug is on.
func Fail(ctx *gin.Context, err error) {
	status, code := StatusOf(err)
	body := errorBody{Success: false, Message: err.Error(), Error: code}

	var verr *ValidationError
	if errors.As(err, &verr) {
		body.Message = ErrValidation.Error()
		body.Errors = verr.Fields
	}
	if status == http.StatusInternalServerError {
		Sugar.Errorw("request failed", "path", ctx.Request.URL.Path, "err", err)
		body.Message = "Internal server error"
		if debugErrors {
			body.Trace = err.Error()
		}
	}
	ctx.AbortWithStatusJSON(status, body)
}
