package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/maison-mobility/maison-gate/platform/go/auth"
	"github.com/maison-mobility/maison-gate/platform/go/problem"
	"github.com/maison-mobility/maison-gate/platform/go/session"
)

var errNotAuthenticated = errors.New("authenticated session required")

// ContractValidator validates API requests against the OpenAPI document.
// Must run after the session middleware: secured operations accept a bearer token or a
// session cookie, and both end up as the session Store on the context.
func ContractValidator(doc *openapi3.T, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if doc.Components != nil {
		names := make([]string, 0, len(doc.Components.SecuritySchemes))
		for name := range doc.Components.SecuritySchemes {
			names = append(names, name)
		}
		logger.Info("loaded security schemes", zap.Strings("names", names))
	}

	return oapimiddleware.OapiRequestValidatorWithOptions(doc, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: AuthenticateContract,
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			switch statusCode {
			case http.StatusUnauthorized, http.StatusForbidden:
				problem.Unauthorized(w, message)
			case http.StatusNotFound:
				problem.Write(w, problem.New(http.StatusNotFound, "Not found", message, problem.TypeNotFound))
			default:
				problem.BadRequest(w, message, nil)
			}
		},
		SilenceServersWarning: true,
	})
}

// AuthenticateContract satisfies operations declaring bearerAuth or sessionCookie security.
func AuthenticateContract(ctx context.Context, input *openapi3filter.AuthenticationInput) error {
	if input == nil || input.RequestValidationInput == nil || input.RequestValidationInput.Request == nil {
		return errors.New("no request in validation input")
	}
	r := input.RequestValidationInput.Request

	switch input.SecuritySchemeName {
	case "bearerAuth":
		if _, ok := auth.ExtractBearerToken(r); !ok {
			return auth.ErrMissingToken
		}
	case "sessionCookie":
		if _, err := r.Cookie(session.CookieName); err != nil {
			return errNotAuthenticated
		}
	default:
		return input.NewError(errors.New("unsupported security scheme"))
	}

	if !session.Current(r.Context()).IsAuthenticated() {
		return errNotAuthenticated
	}
	return nil
}
