package http

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/go-chi/chi/v5"
)

//go:embed openapi.yaml
var rawSpec []byte

// LoadSpec parses and validates the embedded OpenAPI document.
func LoadSpec(ctx context.Context) (*openapi3.T, error) {
	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(rawSpec)
	if err != nil {
		return nil, fmt.Errorf("openapi: load document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("openapi: invalid document: %w", err)
	}
	return doc, nil
}

// validated checks the request against the operation chi matched before
// calling next. Requests outside the document pass through.
func (s *Server) validated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rctx := chi.RouteContext(r.Context())
		if rctx == nil || s.doc == nil {
			next(w, r)
			return
		}

		pattern := rctx.RoutePattern()
		if pattern != "/" {
			pattern = strings.TrimSuffix(pattern, "/")
		}
		item := s.doc.Paths.Find(pattern)
		if item == nil {
			next(w, r)
			return
		}
		op := item.GetOperation(r.Method)
		if op == nil {
			next(w, r)
			return
		}

		params := make(map[string]string, len(rctx.URLParams.Keys))
		for i, k := range rctx.URLParams.Keys {
			params[k] = rctx.URLParams.Values[i]
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: params,
			Route: &routers.Route{
				Spec:      s.doc,
				Path:      pattern,
				PathItem:  item,
				Method:    r.Method,
				Operation: op,
			},
			Options: &openapi3filter.Options{MultiError: false},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			s.logger.Warn("request rejected by schema", "path", r.URL.Path, "err", err)
			writeError(w, http.StatusBadRequest, requestErrorMessage(err))
			return
		}
		next(w, r)
	}
}

func requestErrorMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Parameter != nil {
			return fmt.Sprintf("invalid parameter %q", reqErr.Parameter.Name)
		}
		if reqErr.RequestBody != nil {
			return "invalid request body"
		}
	}
	return "invalid request"
}
