package ingest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// maxUpload bounds the workbook accepted by the admin endpoint.
const maxUpload = 64 << 20

// ImportHandler runs an ingestion from an uploaded workbook. onDone runs
// after every run that wrote to the store, even a failed one.
func ImportHandler(runner *Runner, logger *slog.Logger, onDone func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		if err := r.ParseMultipartForm(maxUpload); err != nil {
			http.Error(w, "Expected a multipart form with a workbook in \"file\"", http.StatusBadRequest)
			return
		}

		mode := ModeUpsert
		if v := r.FormValue("mode"); v != "" {
			m, err := ParseMode(v)
			if err != nil || m == ModeFixture {
				http.Error(w, "mode must be reload or upsert", http.StatusBadRequest)
				return
			}
			mode = m
		}
		profile := ImportProfile
		if v := r.FormValue("profile"); v != "" {
			p, err := ProfileByName(v)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			profile = p
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "Missing workbook in \"file\"", http.StatusBadRequest)
			return
		}
		defer file.Close()

		wb, err := ReadWorkbook(file)
		if err != nil {
			http.Error(w, "Unreadable workbook", http.StatusBadRequest)
			return
		}
		defer wb.Close()

		rep, err := runner.Run(r.Context(), wb, Options{Mode: mode, Profile: profile})
		if errors.Is(err, ErrRunInProgress) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		if onDone != nil {
			onDone()
		}
		if err != nil {
			logger.Error("import failed", "mode", mode, "error", err)
			http.Error(w, "Import failed: "+err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rep)
	}
}
