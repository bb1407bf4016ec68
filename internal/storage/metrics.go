package storage

import "github.com/prometheus/client_golang/prometheus"

var (
	// storedBlobs counts successful blob writes per backend.
	storedBlobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_blobs_stored_total",
			Help: "Total number of blobs stored, by backend.",
		},
		[]string{"backend"},
	)

	// fallbacks counts uploads that silently fell back from the object
	// backend to the relay backend. The fallback is invisible to callers,
	// so this counter is the main way to notice a misbehaving bucket.
	fallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storage_object_fallbacks_total",
			Help: "Uploads that fell back from the object backend to the relay backend.",
		},
	)

	// resolveHits counts which step of the retrieval-resolution chain
	// satisfied a request.
	resolveHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_resolve_hits_total",
			Help: "Requests resolved, by resolution step.",
		},
		[]string{"step"},
	)
)

func init() {
	prometheus.MustRegister(storedBlobs, fallbacks, resolveHits)
}
