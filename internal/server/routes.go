package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func SetupRoutes(filings *FilingService) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", filings.Home)
	r.Get("/search", filings.Search)
	r.Get("/submissions", filings.ListSubmissions)
	r.Post("/upload", filings.Upload)
	r.Post("/ingest", filings.Ingest)
	r.Get("/summary/{cik}", filings.Summarize)
	r.Get("/healthz", filings.Health)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
