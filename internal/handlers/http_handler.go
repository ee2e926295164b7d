package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"
	"unibox/internal/models"
	"unibox/internal/services"
	"unibox/internal/utils"

	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	dispatch   *services.DispatchService
	scheduler  *services.SchedulerService
	inbox      *services.InboxService
	drainLimit int
}

func NewHTTPHandler(
	dispatch *services.DispatchService,
	scheduler *services.SchedulerService,
	inbox *services.InboxService,
	drainLimit int,
) *HTTPHandler {
	return &HTTPHandler{
		dispatch:   dispatch,
		scheduler:  scheduler,
		inbox:      inbox,
		drainLimit: drainLimit,
	}
}

// @Summary Send or schedule an outbound message
// @Description Send a message to a contact or thread over SMS or WhatsApp, optionally scheduled for later
// @Tags messages
// @Accept json
// @Produce json
// @Param request body models.SendMessageRequest true "Message details"
// @Success 200 {object} models.APIResponse
// @Success 201 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /send [post]
func (h *HTTPHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("decoding /send request: %v", err)
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("invalid JSON body"))
		return
	}

	outcome, err := h.dispatch.Send(r.Context(), AuthFromContext(r.Context()), &req)
	if err != nil {
		utils.LogError("send failed: %v", err)
		models.RespondWithError(w, err)
		return
	}

	status := http.StatusOK
	message := "message sent"
	if outcome.Scheduled {
		status = http.StatusCreated
		message = "message scheduled"
	}
	models.RespondWithJSON(w, status, models.NewSuccessResponse(message,
		map[string]interface{}{"message": outcome.Message}))
}

// @Summary Run the scheduled-message drain
// @Description Dispatch every currently-due scheduled message, up to the batch limit
// @Tags schedule
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /schedule/run [get]
func (h *HTTPHandler) RunSchedule(w http.ResponseWriter, r *http.Request) {
	report, err := h.scheduler.DrainDue(r.Context(), time.Now().UTC(), h.drainLimit)
	if err != nil {
		utils.LogError("drain failed: %v", err)
		models.RespondWithError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("drain complete", report))
}

// @Summary List threads
// @Description List the tenant's threads, most recently active first
// @Tags threads
// @Produce json
// @Param unread query bool false "Only threads with unread messages"
// @Param scheduled query bool false "Only threads with scheduled messages"
// @Param channel query string false "Filter by channel (sms|whatsapp)"
// @Param search query string false "Match contact name, phone or message body"
// @Param limit query int false "Max threads to return (default 50)"
// @Success 200 {object} models.APIResponse
// @Router /threads [get]
func (h *HTTPHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	filter := models.ThreadFilter{
		Unread:    q.Get("unread") == "true",
		Scheduled: q.Get("scheduled") == "true",
		Channel:   q.Get("channel"),
		Search:    q.Get("search"),
		Limit:     limit,
	}
	if filter.Channel != "" && !models.ValidChannel(filter.Channel) {
		models.RespondWithError(w, models.ErrInvalidRequest)
		return
	}

	threads, err := h.inbox.ListThreads(AuthFromContext(r.Context()).TenantID, filter)
	if err != nil {
		utils.LogError("listing threads: %v", err)
		models.RespondWithError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("threads",
		map[string]interface{}{"threads": threads}))
}

// @Summary Get a thread with its messages
// @Tags threads
// @Produce json
// @Param threadId path string true "Thread id"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /threads/{threadId} [get]
func (h *HTTPHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["threadId"]
	detail, err := h.inbox.GetThread(AuthFromContext(r.Context()).TenantID, threadID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			utils.LogError("getting thread: %v", err)
		}
		models.RespondWithError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("thread", detail))
}

// @Summary Get the contact-and-notes sidebar for a thread
// @Tags threads
// @Produce json
// @Param threadId path string true "Thread id"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /threads/{threadId}/sidebar [get]
func (h *HTTPHandler) GetSidebar(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["threadId"]
	sidebar, err := h.inbox.GetSidebar(AuthFromContext(r.Context()).TenantID, threadID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			utils.LogError("getting sidebar: %v", err)
		}
		models.RespondWithError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("sidebar", sidebar))
}

// @Summary Mark every message in a thread as read
// @Tags threads
// @Produce json
// @Param threadId path string true "Thread id"
// @Success 200 {object} models.APIResponse
// @Failure 404 {object} models.APIResponse
// @Router /threads/{threadId}/read [post]
func (h *HTTPHandler) MarkThreadRead(w http.ResponseWriter, r *http.Request) {
	threadID := mux.Vars(r)["threadId"]
	thread, err := h.inbox.MarkThreadRead(AuthFromContext(r.Context()).TenantID, threadID)
	if err != nil {
		models.RespondWithError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("thread marked read",
		map[string]interface{}{"thread": thread}))
}

// @Summary Create a note on a thread
// @Tags notes
// @Accept json
// @Produce json
// @Param request body models.CreateNoteRequest true "Note details"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.APIResponse
// @Router /notes [post]
func (h *HTTPHandler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var req models.CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.RespondWithJSON(w, http.StatusBadRequest, models.NewErrorResponse("invalid JSON body"))
		return
	}

	note, err := h.inbox.CreateNote(AuthFromContext(r.Context()), &req)
	if err != nil {
		models.RespondWithError(w, err)
		return
	}
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("note created",
		map[string]interface{}{"note": note}))
}

// @Summary Service health
// @Tags health
// @Produce json
// @Success 200 {object} models.APIResponse
// @Router /health [get]
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	models.RespondWithJSON(w, http.StatusOK, models.NewSuccessResponse("ok", nil))
}
