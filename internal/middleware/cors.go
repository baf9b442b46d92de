package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// CORS restricts browsers to origins. With no origins configured every
// origin is allowed but credentials are not.
func CORS(origins []string, log *zap.Logger) func(http.Handler) http.Handler {
	if len(origins) > 0 {
		log.Info("Loaded CORS origins", zap.Strings("origins", origins))
		return cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           86400,
		})
	}

	log.Warn("No CORS_ORIGINS set, allowing all origins (credentials disabled)")
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}
