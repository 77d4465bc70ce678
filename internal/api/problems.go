package api

import (
	"net/http"

	"github.com/ambientwx/ambientwx/internal/api/middleware"
	"github.com/ambientwx/ambientwx/internal/api/models"
)

func methodNotAllowed(r *http.Request) *models.Problem {
	return models.NewProblem(
		models.ProblemTypeValidation,
		"Method not allowed",
		http.StatusMethodNotAllowed,
		middleware.GetRequestID(r.Context()),
	).WithDetail(r.Method + " is not supported on " + r.URL.Path)
}
