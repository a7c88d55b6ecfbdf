package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	legacyrouter "github.com/getkin/kin-openapi/routers/legacy"

	"github.com/frahmantamala/qr-document/internal"
	"github.com/frahmantamala/qr-document/internal/transport"
)

// LoadOpenAPI parses and validates an OpenAPI 3 document.
func LoadOpenAPI(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return doc, nil
}

// RequestValidator rejects requests that do not match the described
// parameters and bodies. Paths the document does not describe pass through.
func RequestValidator(doc *openapi3.T, logger *slog.Logger) (func(http.Handler) http.Handler, error) {
	router, err := legacyrouter.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	base := transport.NewBaseHandler(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := router.FindRoute(r)
			if err != nil {
				var routeErr *routers.RouteError
				if errors.As(err, &routeErr) {
					next.ServeHTTP(w, r)
					return
				}
				base.HandleError(w, r, internal.NewInternalError("route lookup failed", err))
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				base.HandleError(w, r, requestError(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}, nil
}

func requestError(err error) *internal.AppError {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		field := "body"
		if reqErr.Parameter != nil {
			field = reqErr.Parameter.Name
		}
		return internal.NewValidationFieldError(field, reqErr.Error(), internal.ErrCodeValidationFailed).WithCause(err)
	}
	return internal.NewValidationError("request does not match the API description", internal.ErrCodeValidationFailed).WithCause(err)
}
