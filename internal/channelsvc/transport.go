package channelsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/joshuamhtsang/sine/internal/propagation"
)

// computeTimeout bounds a single compute request; once it elapses the
// caller gets a 504 rather than hanging on an engine that has wedged.
const computeTimeout = 5 * time.Second

// NewMux builds the http.Handler exposing svc's operations.
func NewMux(svc *Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", svc.handleHealth)
	mux.HandleFunc("/scene/load", svc.handleLoadScene)
	mux.HandleFunc("/compute/single", svc.handleComputeSingle)
	mux.HandleFunc("/compute/batch", svc.handleComputeBatch)
	mux.HandleFunc("/compute/sinr", svc.handleComputeSINR)
	mux.HandleFunc("/api/mcs-tables/", svc.handleRegisterMCSTable)
	mux.HandleFunc("/api/transmission/state", svc.handleTransmissionState)

	return timeoutHandler(mux, computeTimeout)
}

// timeoutWriter buffers a handler's response so a request that overruns
// the compute deadline can be answered with 504 instead; the late writes
// land in the buffer and are discarded.
type timeoutWriter struct {
	header http.Header
	body   bytes.Buffer
	code   int
}

func (w *timeoutWriter) Header() http.Header { return w.header }

func (w *timeoutWriter) WriteHeader(code int) {
	if w.code == 0 {
		w.code = code
	}
}

func (w *timeoutWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

// timeoutHandler bounds every request by d. Unlike http.TimeoutHandler,
// which answers 503, an overrun yields a 504, keeping 503 reserved for
// an unavailable engine.
func timeoutHandler(next http.Handler, d time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), d)
		defer cancel()

		tw := &timeoutWriter{header: make(http.Header)}
		done := make(chan struct{})
		go func() {
			next.ServeHTTP(tw, r.WithContext(ctx))
			close(done)
		}()

		select {
		case <-done:
			for k, v := range tw.header {
				w.Header()[k] = v
			}
			code := tw.code
			if code == 0 {
				code = http.StatusOK
			}
			w.WriteHeader(code)
			_, _ = w.Write(tw.body.Bytes())
		case <-ctx.Done():
			writeError(w, http.StatusGatewayTimeout, errors.New("channelsvc: compute timeout"))
		}
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// statusForError maps a channel-computation error to its HTTP status:
// 409 for a scene-reload conflict, 503 for an
// engine that isn't wired or hasn't loaded a scene yet, 400 for any other
// request-shape or policy error (unknown antenna pattern, forced engine
// mismatch, unregistered MCS table).
func statusForError(err error) int {
	switch {
	case errors.Is(err, propagation.ErrSceneReloadUnsupported):
		return http.StatusConflict
	case errors.Is(err, propagation.ErrEngineUnavailable), errors.Is(err, propagation.ErrSceneNotLoaded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, errors.New("channelsvc: method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, s.Health())
}

func (s *Service) handleLoadScene(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("channelsvc: method not allowed"))
		return
	}
	var req LoadSceneRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.LoadScene(req); err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Service) handleComputeSingle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("channelsvc: method not allowed"))
		return
	}
	var req ComputeSingleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.observeComputeSingle(req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleComputeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("channelsvc: method not allowed"))
		return
	}
	var req ComputeBatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ComputeBatch(req))
}

func (s *Service) handleComputeSINR(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("channelsvc: method not allowed"))
		return
	}
	var req ComputeSINRRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.observeComputeSINR(req)
	if err != nil {
		writeError(w, statusForError(err), err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Service) handleRegisterMCSTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, errors.New("channelsvc: method not allowed"))
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/mcs-tables/")
	if name == "" {
		writeError(w, http.StatusBadRequest, errors.New("channelsvc: mcs table name required"))
		return
	}
	var req RegisterMCSTableRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.RegisterMCSTable(name, req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleTransmissionState(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		gen, active := s.State.Snapshot()
		writeJSON(w, http.StatusOK, TransmissionStateResponse{Generation: gen, State: active})
	case http.MethodPost:
		var req UpdateTransmissionStateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		gen := s.State.Update(req.Updates)
		_, active := s.State.Snapshot()
		writeJSON(w, http.StatusOK, TransmissionStateResponse{Generation: gen, State: active})
	default:
		writeError(w, http.StatusMethodNotAllowed, errors.New("channelsvc: method not allowed"))
	}
}
