package middleware

import (
	"fmt"
	"net/http"

	"github.com/flakex/marketplace-billing/api/responses"
	pkgerrors "github.com/flakex/marketplace-billing/pkg/errors"
	"github.com/flakex/marketplace-billing/pkg/logger"
)

// Recoverer turns a panicking billing handler into a 500 envelope. The
// response is only written when the handler had not started one, and
// http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				err := fmt.Errorf("panic: %v", recovered)
				ctx := r.Context()
				if logg != nil {
					ctx = logg.WithFields(ctx, map[string]any{
						"panic":           fmt.Sprint(recovered),
						"method":          r.Method,
						"path":            r.URL.Path,
						"response_begun":  rec.status != 0,
						"idempotency_key": r.Header.Get("Idempotency-Key") != "",
					})
					logg.Error(ctx, "panic.recovered", err)
				}
				if rec.status != 0 {
					return
				}
				responses.WriteError(ctx, nil, rec, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "billing request failed"))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
