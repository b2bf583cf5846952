package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestJobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_jobs_total",
		Help: "Ingestion jobs by terminal outcome.",
	}, []string{"outcome"})

	chunksStoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ingest_chunks_stored_total",
		Help: "Chunks written to the vector store.",
	})

	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_requests_total",
		Help: "Search requests by mode.",
	}, []string{"mode"})
)
