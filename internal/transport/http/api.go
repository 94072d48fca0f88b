package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// API exposes the attempt lifecycle over REST. The caller's identity comes
// from the X-User-ID header; session/token mechanics live in front of this
// service, which only needs the resolved user id for ownership checks.
type API struct {
	service *app.AttemptService
}

func NewAPI(service *app.AttemptService) *API {
	return &API{service: service}
}

// Router wires the REST routes plus the health probe.
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/quizzes/{quizID}/attempts", a.startAttempt).Methods(http.MethodPost)
	api.HandleFunc("/attempts/{attemptID}", a.getAttempt).Methods(http.MethodGet)
	api.HandleFunc("/attempts/{attemptID}/answers", a.recordProgress).Methods(http.MethodPut)
	api.HandleFunc("/attempts/{attemptID}/submit", a.finalize).Methods(http.MethodPost)
	api.HandleFunc("/attempts/{attemptID}/result", a.getResult).Methods(http.MethodGet)
	api.HandleFunc("/my/attempts", a.listAttempts).Methods(http.MethodGet)
	return r
}

type answersRequest struct {
	Answers map[string]any `json:"answers"`
}

type attemptHistoryResponse struct {
	Attempts []domain.Attempt `json:"attempts"`
	Stats    domain.UserStats `json:"stats"`
}

func (a *API) startAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	quizID := mux.Vars(r)["quizID"]

	attempt, err := a.service.StartAttempt(r.Context(), userID, quizID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) getAttempt(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	attempt, err := a.service.GetAttempt(r.Context(), mux.Vars(r)["attemptID"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) recordProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid answers payload", http.StatusBadRequest)
		return
	}
	attempt, err := a.service.RecordProgress(r.Context(), mux.Vars(r)["attemptID"], userID, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) finalize(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid answers payload", http.StatusBadRequest)
		return
	}
	result, err := a.service.Finalize(r.Context(), mux.Vars(r)["attemptID"], userID, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) getResult(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	result, err := a.service.GetResult(r.Context(), mux.Vars(r)["attemptID"], userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) listAttempts(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	attempts, err := a.service.ListUserAttempts(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := a.service.StatsForUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attemptHistoryResponse{Attempts: attempts, Stats: stats})
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		http.Error(w, "missing X-User-ID header", http.StatusUnauthorized)
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrResultNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotAttemptOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAttemptCompleted):
		// Double submit: the attempt was already finalized, never re-scored.
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidQuiz):
		status = http.StatusUnprocessableEntity
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
