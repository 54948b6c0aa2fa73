package main

import (
	"io"
	"net/http"
	"runtime/coverage"

	"github.com/go-logr/logr"
	"k8s.io/klog/v2"
)

// startCoverageServer serves the coverage counters and metadata of a binary built with -cover, so that end-to-end
// tests can collect coverage from a running bugit process. It binds to addr in the background.
func startCoverageServer(addr string) {
	log := klog.Background().WithName("coverage")

	go func() {
		log.Info("Starting private admin server", "address", addr)
		if err := http.ListenAndServe(addr, coverageMux(log)); err != nil {
			log.Error(err, "Admin server failed")
		}
	}()
}

func coverageMux(log logr.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /_debug/coverage/download", coverageHandler(log, "coverage.out", coverage.WriteCounters))
	mux.HandleFunc("GET /_debug/coverage/meta/download", coverageHandler(log, "coverage.meta", coverage.WriteMeta))
	return mux
}

func coverageHandler(log logr.Logger, filename string, write func(io.Writer) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("Received request to download coverage data", "file", filename)

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

		if err := write(w); err != nil {
			log.Error(err, "Error writing coverage data to response", "file", filename)
		}
	}
}
