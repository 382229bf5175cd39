package handler

import (
	"fmt"
	"net/http"

	"go-dine-api/common"
	"go-dine-api/logger"
)

// ErrorHandlingMiddleware adapts a handler that returns *common.AppError. A
// panic in next is logged and answered with a 500.
func ErrorHandlingMiddleware(next func(http.ResponseWriter, *http.Request) *common.AppError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				logger.Log.WithField("path", r.URL.Path).Errorf("Recovered from panic: %v", p)
				common.NewAppError(http.StatusInternalServerError, "Internal server error", fmt.Errorf("panic: %v", p)).Send(w)
			}
		}()

		if err := next(w, r); err != nil {
			err.Send(w)
		}
	}
}

// NotFound answers unknown routes with the JSON error shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	common.NewAppError(http.StatusNotFound, "Resource not found", nil).Send(w)
}
