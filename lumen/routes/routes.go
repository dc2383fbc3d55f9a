// lumen/routes/routes.go
package routes

import (
	"encoding/json"
	"net/http"

	"lumen/lumen/apperrors"
	"lumen/lumen/middlewares"
	"lumen/lumen/utils/logging"

	"go.uber.org/zap"
)

// handleJSON wraps a handler returning (result, error). Typed errors map
// to their HTTP status; anything else is logged and normalized so the
// client never sees internals. A nil result writes 204.
func handleJSON(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			appErr := apperrors.Normalize(err)
			if appErr.Err != nil {
				logging.ErrorLogger.Error("request failed",
					zap.String("path", r.URL.Path),
					zap.Error(appErr.Err),
				)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(appErr.HTTPStatus())
			json.NewEncoder(w).Encode(map[string]string{"error": appErr.Error()})
			return
		}
		if res == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(res)
	}
}

func callerID(r *http.Request) (int, error) {
	id, ok := r.Context().Value(middlewares.UserIDKey).(int)
	if !ok {
		return 0, apperrors.New(apperrors.Unauthorized, apperrors.DomainAuth, "missing session")
	}
	return id, nil
}
