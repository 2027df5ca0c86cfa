package api

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

// Validator checks outgoing requests against the blog API OpenAPI document
type Validator struct {
	router routers.Router
}

// NewValidator loads the document at specPath. Its servers are replaced by
// baseURL so routes match whatever deployment the client points at.
func NewValidator(specPath, baseURL string) (*Validator, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI spec: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI spec: %w", err)
	}

	doc.Servers = openapi3.Servers{{URL: baseURL}}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create OpenAPI router: %w", err)
	}

	return &Validator{router: router}, nil
}

// ValidateRequest validates req without consuming its body
func (v *Validator) ValidateRequest(ctx context.Context, req *http.Request, body []byte) error {
	clone := req.Clone(ctx)
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
	} else {
		clone.Body = http.NoBody
	}

	route, pathParams, err := v.router.FindRoute(clone)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrInvalidRequest, req.Method, req.URL.Path, err)
	}

	input := &openapi3filter.RequestValidationInput{
		Request:    clone,
		PathParams: pathParams,
		Route:      route,
		Options: &openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
	}
	if err := openapi3filter.ValidateRequest(ctx, input); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
