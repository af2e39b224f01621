package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the mailbox API to be called from any origin. Preflight
// requests are answered here, before routing.
var CORS func(http.Handler) http.Handler = cors.Handler(cors.Options{
	AllowedOrigins: []string{"*"},
	AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
	AllowedHeaders: []string{"Content-Type", "Authorization", "X-Secret"},
	MaxAge:         86400,
})
