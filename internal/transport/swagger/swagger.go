package swagger

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

const DefaultDocURL = "/openapi.yml"

// Handler serves the Swagger UI for the document at docURL.
func Handler(docURL string) http.Handler {
	if docURL == "" {
		docURL = DefaultDocURL
	}
	return httpSwagger.Handler(
		httpSwagger.URL(docURL),
		httpSwagger.DocExpansion("list"),
	)
}
