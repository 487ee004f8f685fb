package feed

// HTTP handlers for the feed service.
//
// All routes expect x-user-id forwarded by the Gateway; job routes also need
// x-device-id, which keys the dismissed set.
//
// Routes:
//
//	GET  /feed/jobs?lat=&lng=&radius=          → load and rank the job feed
//	GET  /feed/jobs/current?radius=            → re-filter the held feed, no refetch
//	POST /feed/jobs/refresh?lat=&lng=&radius=  → pull-to-refresh: reset dismissals, reload
//	POST /feed/jobs/{id}/dismiss               → swipe a job away
//	GET  /feed/offers?lat=&lng=&radius=        → producer's offer feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"lidacacau/feed-service/internal/geo"
	"lidacacau/feed-service/internal/ranking"
)

// ─── Response types ──────────────────────────────────────────────────────────

// feedResponse is the JSON envelope of every feed route.
type feedResponse struct {
	Radius string `json:"radius"`
	Total  int    `json:"total"`
	Items  any    `json:"items"`
}

// ─── Handler ─────────────────────────────────────────────────────────────────

// Handler exposes a Service over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler returns a configured Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts all feed routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/feed/jobs", h.handleJobs)
	mux.HandleFunc("/feed/jobs/", h.handleJobAction)
	mux.HandleFunc("/feed/offers", h.handleOffers)
}

// ─── Route dispatch ──────────────────────────────────────────────────────────

// handleJobs handles GET /feed/jobs
func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.loadJobs(w, r, false)
}

// handleJobAction handles /feed/jobs/current, /feed/jobs/refresh and
// /feed/jobs/{id}/dismiss
func (h *Handler) handleJobAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(parts) == 3 && parts[2] == "current":
		if r.Method != http.MethodGet {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.currentJobs(w, r)
	case len(parts) == 3 && parts[2] == "refresh":
		if r.Method != http.MethodPost {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.loadJobs(w, r, true)
	case len(parts) == 4 && parts[3] == "dismiss":
		if r.Method != http.MethodPost {
			jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.dismiss(w, r, parts[2])
	default:
		jsonError(w, "invalid path", http.StatusNotFound)
	}
}

// handleOffers handles GET /feed/offers
func (h *Handler) handleOffers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.loadOffers(w, r)
}

// ─── Individual handlers ─────────────────────────────────────────────────────

func (h *Handler) loadJobs(w http.ResponseWriter, r *http.Request, refresh bool) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}
	deviceID := r.Header.Get("x-device-id")
	if deviceID == "" {
		jsonError(w, "missing x-device-id header", http.StatusBadRequest)
		return
	}

	loc, radius, err := parseFeedQuery(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	req := JobFeedRequest{UserID: userID, DeviceID: deviceID, Location: loc, Radius: radius}
	load := h.svc.JobFeed
	if refresh {
		load = h.svc.Refresh
	}
	jobs, err := load(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, feedResponse{Radius: radius.String(), Total: len(jobs), Items: jobs})
}

func (h *Handler) currentJobs(w http.ResponseWriter, r *http.Request) {
	deviceID := r.Header.Get("x-device-id")
	if deviceID == "" {
		jsonError(w, "missing x-device-id header", http.StatusBadRequest)
		return
	}
	radius, err := ranking.ParseRadius(r.URL.Query().Get("radius"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	jobs, err := h.svc.CurrentJobs(deviceID, radius)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, feedResponse{Radius: radius.String(), Total: len(jobs), Items: jobs})
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request, jobID string) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}
	deviceID := r.Header.Get("x-device-id")
	if deviceID == "" {
		jsonError(w, "missing x-device-id header", http.StatusBadRequest)
		return
	}
	// jobs.id is a uuid column.
	if _, err := uuid.Parse(jobID); err != nil {
		jsonError(w, fmt.Sprintf("invalid job id %q", jobID), http.StatusBadRequest)
		return
	}

	err := h.svc.Dismiss(r.Context(), DismissRequest{UserID: userID, DeviceID: deviceID, JobID: jobID})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, map[string]string{"status": "dismissed", "jobId": jobID})
}

func (h *Handler) loadOffers(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("x-user-id")
	if userID == "" {
		jsonError(w, "missing x-user-id header", http.StatusUnauthorized)
		return
	}

	loc, radius, err := parseFeedQuery(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	offers, err := h.svc.OfferFeed(r.Context(), OfferFeedRequest{ProducerID: userID, Location: loc, Radius: radius})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, feedResponse{Radius: radius.String(), Total: len(offers), Items: offers})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// parseFeedQuery reads lat, lng and radius. The location is nil unless both
// lat and lng are present.
func parseFeedQuery(r *http.Request) (*geo.Coordinate, ranking.Radius, error) {
	q := r.URL.Query()

	radius, err := ranking.ParseRadius(q.Get("radius"))
	if err != nil {
		return nil, 0, err
	}

	latStr, lngStr := q.Get("lat"), q.Get("lng")
	if latStr == "" || lngStr == "" {
		return nil, radius, nil
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || lat < -90 || lat > 90 {
		return nil, 0, fmt.Errorf("invalid lat %q", latStr)
	}
	lng, err := strconv.ParseFloat(lngStr, 64)
	if err != nil || lng < -180 || lng > 180 {
		return nil, 0, fmt.Errorf("invalid lng %q", lngStr)
	}
	return &geo.Coordinate{Latitude: lat, Longitude: lng}, radius, nil
}

func writeServiceError(w http.ResponseWriter, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, ErrNoSession):
		jsonError(w, err.Error(), http.StatusNotFound)
	default:
		log.Printf("[feed] unexpected error: %v", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
