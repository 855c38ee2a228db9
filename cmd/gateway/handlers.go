package main

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/pacetrack/gateway/internal/clients/classifier"
	"github.com/pacetrack/gateway/internal/clients/engagement"
	"github.com/pacetrack/gateway/internal/clients/identity"
	"github.com/pacetrack/gateway/internal/clients/training"
	"github.com/pacetrack/gateway/internal/errors"
	"github.com/pacetrack/gateway/internal/httputil"
	"github.com/pacetrack/gateway/internal/logging"
	"github.com/pacetrack/gateway/internal/orchestrator"
	"github.com/pacetrack/gateway/internal/trust"
)

// maxBodyBytes bounds inbound request bodies.
const maxBodyBytes = 1 << 20

// handlers holds the gateway's route handlers and their backend adapters.
type handlers struct {
	identity     *identity.Client
	trainings    *training.Client
	engagement   *engagement.Client
	classifier   *classifier.Client
	orchestrator *orchestrator.Orchestrator
	logger       *logging.Logger
}

// =============================================================================
// Training
// =============================================================================

// submitTraining runs the training-submission workflow.
func (h *handlers) submitTraining(w http.ResponseWriter, r *http.Request) {
	var sub training.Submission
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&sub); err != nil {
		httputil.WriteError(w, errors.BadRequest("Request body must be valid JSON"))
		return
	}

	result, err := h.orchestrator.SubmitTraining(r.Context(), sub)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *handlers) getTraining(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.trainings.Get(r.Context(), mux.Vars(r)["id"]))
}

func (h *handlers) trainingsByUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.trainings.ListByUser(r.Context(), mux.Vars(r)["id"]))
}

func (h *handlers) weeklyTrainingsByUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.trainings.WeeklyByUser(r.Context(), mux.Vars(r)["id"]))
}

// =============================================================================
// Users
// =============================================================================

func (h *handlers) createUser(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusCreated)(h.identity.CreateUser(r.Context(), body))
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK)(h.identity.Login(r.Context(), body))
}

func (h *handlers) getUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.identity.GetUser(r.Context(), mux.Vars(r)["id"]))
}

func (h *handlers) updateUser(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK)(h.identity.UpdateUser(r.Context(), mux.Vars(r)["id"], body))
}

func (h *handlers) addFriend(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusCreated)(h.identity.AddFriend(r.Context(), mux.Vars(r)["id"]))
}

func (h *handlers) listFriends(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.identity.ListFriends(r.Context()))
}

func (h *handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.identity.ListEvents(r.Context()))
}

func (h *handlers) listBadges(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.identity.ListBadges(r.Context()))
}

func (h *handlers) userBadges(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.identity.UserBadges(r.Context(), mux.Vars(r)["id"]))
}

// =============================================================================
// Engagement
// =============================================================================

func (h *handlers) createEngagementLog(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusCreated)(h.engagement.CreateLog(r.Context(), body))
}

func (h *handlers) listEngagementLogs(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.engagement.ListLogs(r.Context(), pageFromQuery(r)))
}

func (h *handlers) engagementLogsByUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.engagement.LogsByUser(r.Context(), mux.Vars(r)["id"], pageFromQuery(r)))
}

func (h *handlers) engagementStatsByUser(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.engagement.StatsByUser(r.Context(), mux.Vars(r)["id"]))
}

func (h *handlers) engagementStatsByViews(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.engagement.StatsByViews(r.Context()))
}

func (h *handlers) engagementAnalyticsByUser(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	h.respond(w, r, http.StatusOK)(h.engagement.AnalyticsByUser(r.Context(), mux.Vars(r)["id"], days))
}

// =============================================================================
// Chatbot
// =============================================================================

func (h *handlers) classify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.WriteError(w, errors.BadRequest("Request body must be valid JSON"))
		return
	}

	// The classification backend receives the verified caller id, never a
	// caller-chosen one.
	tc, _ := trust.FromContext(r.Context())
	h.respond(w, r, http.StatusOK)(h.classifier.Classify(r.Context(), req.Question, tc.CallerID))
}

func (h *handlers) classifierStats(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.classifier.StatsByUser(r.Context(), mux.Vars(r)["id"]))
}

func (h *handlers) classifierWeeklyStats(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))
	h.respond(w, r, http.StatusOK)(h.classifier.WeeklyStatsByUser(r.Context(), mux.Vars(r)["id"], days))
}

func (h *handlers) classifierCategories(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, http.StatusOK)(h.classifier.Categories(r.Context()))
}

// =============================================================================
// Helpers
// =============================================================================

// respond writes a pass-through result or its taxonomy error.
func (h *handlers) respond(w http.ResponseWriter, r *http.Request, status int) func(json.RawMessage, error) {
	return func(body json.RawMessage, err error) {
		if err != nil {
			h.logger.WithContext(r.Context()).WithError(err).Warn("Upstream call failed")
			httputil.WriteError(w, err)
			return
		}
		if len(body) == 0 {
			w.WriteHeader(status)
			return
		}
		httputil.WriteJSON(w, status, body)
	}
}

// readBody reads a bounded JSON body for forwarding.
func (h *handlers) readBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		httputil.WriteError(w, errors.BadRequest("Unable to read request body"))
		return nil, false
	}
	if len(body) > 0 && !json.Valid(body) {
		httputil.WriteError(w, errors.BadRequest("Request body must be valid JSON"))
		return nil, false
	}
	return body, true
}

// pageFromQuery extracts limit/offset paging parameters.
func pageFromQuery(r *http.Request) engagement.Page {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	return engagement.Page{Limit: limit, Offset: offset}
}
