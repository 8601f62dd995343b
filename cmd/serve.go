package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"hygienefix/internal/bootstrap/logging"
	"hygienefix/internal/errs"
	"hygienefix/internal/ports"
	"hygienefix/internal/usecase/directory"
	"hygienefix/internal/usecase/pipeline"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API (pipeline trigger + lookup endpoints)",
	RunE: withApp(func(cmd *cobra.Command, services appServices) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		addr, _ := cmd.Flags().GetString("addr")
		addr = strings.TrimSpace(addr)
		if addr == "" {
			addr = services.App.Config.Server.Addr
		}

		server := &http.Server{
			Addr: addr,
			Handler: newServeHandler(services.PipelineSvc, services.DirectorySvc, serveAuthConfig{
				CronSecret:       services.App.Config.Server.CronSecret,
				DefaultMaxRating: services.App.Config.Pipeline.DefaultMaxRating,
			}),
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		logging.Info(ctx, "api server started", slog.String("addr", addr))

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error(ctx, "api server failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "serve api")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (default from config)")
}

type serveAuthConfig struct {
	CronSecret       string
	DefaultMaxRating int
}

type pipelineRunner interface {
	Run(ctx context.Context, in pipeline.RunInput) (pipeline.Stats, error)
}

type directoryLookups interface {
	Search(ctx context.Context, in directory.SearchInput) ([]ports.Establishment, error)
	Lookup(ctx context.Context, fhrsid int64) (directory.Lookup, error)
	RatingCounts(ctx context.Context) (map[string]int64, error)
	Subscribe(ctx context.Context, in directory.SubscribeInput) error
	Unsubscribe(ctx context.Context, email string) error
}

type serveHTTPHandler struct {
	pipeline  pipelineRunner
	directory directoryLookups
	auth      serveAuthConfig
}

// errorLogResponseCap bounds the error log echoed to the trigger caller;
// the full log lives on the run record.
const errorLogResponseCap = 20

func newServeHandler(pipelineSvc pipelineRunner, directorySvc directoryLookups, auth serveAuthConfig) http.Handler {
	h := &serveHTTPHandler{
		pipeline:  pipelineSvc,
		directory: directorySvc,
		auth:      auth,
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		// GET alias for cron schedulers that cannot send POST.
		r.Post("/pipeline/run", h.handlePipelineRun)
		r.Get("/pipeline/run", h.handlePipelineRun)

		r.Get("/search", h.handleSearch)
		r.Get("/establishments/{fhrsid}", h.handleEstablishment)
		r.Get("/ratings-data", h.handleRatingsData)
		r.Post("/subscribe", h.handleSubscribe)
		r.Post("/unsubscribe", h.handleUnsubscribe)
	})
	return r
}

type pipelineStatsResponse struct {
	TotalFetched      int      `json:"totalFetched"`
	NewEstablishments int      `json:"newEstablishments"`
	RatingChanges     int      `json:"ratingChanges"`
	Errors            int      `json:"errors"`
	ErrorLog          []string `json:"errorLog,omitempty"`
}

type pipelineRunResponse struct {
	Success bool                  `json:"success"`
	DryRun  bool                  `json:"dryRun"`
	Stats   pipelineStatsResponse `json:"stats"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func (h *serveHTTPHandler) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	// Configuration failure is distinct from authorization failure: a
	// missing secret is a 500 before any work begins.
	if h.auth.CronSecret == "" {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "cron secret not configured"})
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+h.auth.CronSecret {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	query := r.URL.Query()
	dryRun := query.Get("dryRun") == "true"

	maxRating := h.auth.DefaultMaxRating
	if raw := query.Get("maxRating"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid maxRating"})
			return
		}
		maxRating = parsed
	}

	stats, err := h.pipeline.Run(r.Context(), pipeline.RunInput{
		RunType:   pipeline.RunTypeDaily,
		MaxRating: maxRating,
		DryRun:    dryRun,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "pipeline failed", Message: err.Error()})
		return
	}

	resp := pipelineRunResponse{
		Success: true,
		DryRun:  dryRun,
		Stats: pipelineStatsResponse{
			TotalFetched:      stats.TotalFetched,
			NewEstablishments: stats.NewEstablishments,
			RatingChanges:     stats.RatingChanges,
			Errors:            stats.Errors,
		},
	}
	if stats.Errors > 0 {
		capped := stats.ErrorLog
		if len(capped) > errorLogResponseCap {
			capped = capped[:errorLogResponseCap]
		}
		resp.Stats.ErrorLog = capped
	}

	writeJSON(w, http.StatusOK, resp)
}

type establishmentResponse struct {
	FHRSID              int64    `json:"fhrsid"`
	BusinessName        string   `json:"businessName"`
	BusinessType        string   `json:"businessType,omitempty"`
	RatingValue         string   `json:"ratingValue"`
	RatingDate          string   `json:"ratingDate,omitempty"`
	AddressLine1        string   `json:"addressLine1,omitempty"`
	AddressLine2        string   `json:"addressLine2,omitempty"`
	AddressLine3        string   `json:"addressLine3,omitempty"`
	Postcode            string   `json:"postcode,omitempty"`
	LocalAuthorityName  string   `json:"localAuthorityName,omitempty"`
	LocalAuthorityEmail string   `json:"localAuthorityEmail,omitempty"`
	HygieneScore        *int     `json:"hygieneScore"`
	StructuralScore     *int     `json:"structuralScore"`
	ManagementScore     *int     `json:"managementScore"`
	Latitude            *float64 `json:"latitude,omitempty"`
	Longitude           *float64 `json:"longitude,omitempty"`
	LastUpdatedAt       string   `json:"lastUpdatedAt,omitempty"`
}

func mapEstablishmentResponse(est ports.Establishment) establishmentResponse {
	return establishmentResponse{
		FHRSID:              est.FHRSID,
		BusinessName:        est.BusinessName,
		BusinessType:        est.BusinessType,
		RatingValue:         est.RatingValue,
		RatingDate:          est.RatingDate,
		AddressLine1:        est.AddressLine1,
		AddressLine2:        est.AddressLine2,
		AddressLine3:        est.AddressLine3,
		Postcode:            est.Postcode,
		LocalAuthorityName:  est.LocalAuthorityName,
		LocalAuthorityEmail: est.LocalAuthorityEmail,
		HygieneScore:        est.HygieneScore,
		StructuralScore:     est.StructuralScore,
		ManagementScore:     est.ManagementScore,
		Latitude:            est.Latitude,
		Longitude:           est.Longitude,
		LastUpdatedAt:       est.LastUpdatedAt,
	}
}

func (h *serveHTTPHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	searchType := query.Get("type")
	if searchType == "" {
		searchType = directory.SearchTypePostcode
	}

	in := directory.SearchInput{
		Query:          query.Get("q"),
		Type:           searchType,
		LocalAuthority: query.Get("authority"),
	}
	if page, err := strconv.Atoi(query.Get("page")); err == nil {
		in.Page = page
	}
	if raw := query.Get("maxRating"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			in.MaxRating = &parsed
		}
	}

	rows, err := h.directory.Search(r.Context(), in)
	if err != nil {
		if errors.Is(err, directory.ErrQueryTooShort) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "search failed"})
		return
	}

	out := make([]establishmentResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapEstablishmentResponse(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"establishments": out})
}

func (h *serveHTTPHandler) handleEstablishment(w http.ResponseWriter, r *http.Request) {
	fhrsid, err := strconv.ParseInt(chi.URLParam(r, "fhrsid"), 10, 64)
	if err != nil || fhrsid <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid FHRSID"})
		return
	}

	lookup, err := h.directory.Lookup(r.Context(), fhrsid)
	if err != nil {
		if errors.Is(err, ports.ErrEstablishmentNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "establishment not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "lookup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"establishment": mapEstablishmentResponse(lookup.Establishment),
		"jurisdiction":  lookup.Jurisdiction,
	})
}

func (h *serveHTTPHandler) handleRatingsData(w http.ResponseWriter, r *http.Request) {
	counts, err := h.directory.RatingCounts(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to fetch ratings data"})
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

type subscribeRequest struct {
	Email        string `json:"email"`
	FHRSID       *int64 `json:"fhrsid,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
}

func (h *serveHTTPHandler) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	err := h.directory.Subscribe(r.Context(), directory.SubscribeInput{
		Email:        req.Email,
		FHRSID:       req.FHRSID,
		BusinessName: req.BusinessName,
		Source:       "website",
	})
	if err != nil {
		if errors.Is(err, directory.ErrInvalidEmail) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to subscribe"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Subscribed successfully"})
}

func (h *serveHTTPHandler) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	if err := h.directory.Unsubscribe(r.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, directory.ErrInvalidEmail):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		case errors.Is(err, ports.ErrSubscriberNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "subscriber not found"})
		default:
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to unsubscribe"})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Unsubscribed"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
