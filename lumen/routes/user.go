// lumen/routes/user.go
package routes

import (
	"encoding/json"
	"net/http"

	"lumen/lumen/apperrors"
	"lumen/lumen/config"
	"lumen/lumen/controllers"
	"lumen/lumen/middlewares"
	"lumen/lumen/types"

	"github.com/go-chi/chi/v5"
)

func UserRoutes(ctrl *controllers.UserController, cfg config.Config) chi.Router {
	r := chi.NewRouter()

	r.Group(func(gr chi.Router) {
		gr.Use(middlewares.AuthMiddleware(cfg))

		gr.Get("/me", handleJSON(func(r *http.Request) (any, error) {
			id, err := callerID(r)
			if err != nil {
				return nil, err
			}
			return ctrl.GetUser(r.Context(), id)
		}))

		gr.Put("/me", handleJSON(func(r *http.Request) (any, error) {
			id, err := callerID(r)
			if err != nil {
				return nil, err
			}
			var req types.UpdateUserRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				return nil, apperrors.Wrap(err, apperrors.BadRequest, apperrors.DomainAuth, "invalid body")
			}
			return ctrl.UpdateUser(r.Context(), id, req.Username, req.Email, req.FullName, req.ImageURL)
		}))
	})

	return r
}
