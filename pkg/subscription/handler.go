package subscription

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/percal/percal/internal/auth"
	"github.com/percal/percal/internal/rest"
	log "github.com/sirupsen/logrus"
)

type SubscriptionDto struct {
	Email     string   `json:"email"`
	Calendars []string `json:"calendars"`
	Frequency string   `json:"frequency"`
	Upcoming  int      `json:"upcomingEvents"`
}

type addCalendarRequest struct {
	Link string `json:"calendar-link"`
}

type changeFrequencyRequest struct {
	Frequency string `json:"frequency"`
}

type Handler struct {
	service Service
}

func NewHandler(s Service) *Handler {
	return &Handler{s}
}

func (h *Handler) AddCalendar(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	currentUser, err := auth.CurrentUser(r.Context())
	if err != nil {
		http.Error(w, "unable to retrieve current user", http.StatusUnauthorized)
		return
	}

	var req addCalendarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := h.service.AddCalendar(r.Context(), currentUser.ID, currentUser.Email, req.Link)
	if err != nil {
		if errors.Is(err, ErrInvalidFeed) {
			writeError(w, http.StatusBadRequest, "Calendar link is not from an accepted provider")
			return
		}
		if errors.Is(err, ErrTooManyCalendars) {
			writeError(w, http.StatusBadRequest, "Subscription limit reached")
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(toSubscriptionDto(sub)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) ChangeFrequency(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	currentUser, err := auth.CurrentUser(r.Context())
	if err != nil {
		http.Error(w, "unable to retrieve current user", http.StatusUnauthorized)
		return
	}

	var req changeFrequencyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	sub, err := h.service.ChangeFrequency(r.Context(), currentUser.ID, req.Frequency)
	if err != nil {
		if errors.Is(err, ErrBadFrequency) {
			writeError(w, http.StatusBadRequest, "Unknown frequency")
			return
		}
		if errors.Is(err, ErrNotSubscribed) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(toSubscriptionDto(sub)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	currentUser, err := auth.CurrentUser(r.Context())
	if err != nil {
		http.Error(w, "unable to retrieve current user", http.StatusUnauthorized)
		return
	}

	sub, err := h.service.GetSubscription(r.Context(), currentUser.ID)
	if err != nil {
		if errors.Is(err, ErrNotSubscribed) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(toSubscriptionDto(sub)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// TriggerDueSyncs is the manual counterpart of the cron schedule, for
// operators who want to kick the current interval off by hand.
func (h *Handler) TriggerDueSyncs(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RunDueSyncs(r.Context()); err != nil {
		log.Errorf("failed to run due syncs: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(rest.ErrorResponse{Error: message}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toSubscriptionDto(sub *UserSubscription) SubscriptionDto {
	return SubscriptionDto{
		Email:     sub.Email,
		Calendars: sub.Calendars,
		Frequency: sub.Frequency(),
		Upcoming:  len(sub.Upcoming),
	}
}
