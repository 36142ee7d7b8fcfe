// Package handler exposes the attendance orchestrator over HTTP. It stays
// thin: decode, delegate, translate errors.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mssola/useragent"

	"presentia/internal/attendance"
	"presentia/internal/location"
	"presentia/internal/platform/middleware"
	"presentia/internal/platform/ratelimit"
	"presentia/internal/proof"
	"presentia/internal/registry"
	"presentia/internal/registry/models"
	id "presentia/pkg/domain"
	dErrors "presentia/pkg/domain-errors"
	"presentia/pkg/platform/httputil"
	"presentia/pkg/platform/middleware/metadata"
)

// Handler handles enrollment and attendance endpoints.
type Handler struct {
	service *attendance.Service
	limits  *ratelimit.Middleware
	logger  *slog.Logger
}

type Option func(*Handler)

// WithRateLimits enforces per-IP budgets on the registered routes.
func WithRateLimits(limits *ratelimit.Middleware) Option {
	return func(h *Handler) { h.limits = limits }
}

func New(service *attendance.Service, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{service: service, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the attendance routes on the chi router. Biometric routes
// get a tighter budget than the pre-flight lookup.
func (h *Handler) Register(r chi.Router) {
	biometric := h.limit(ratelimit.ClassBiometric)
	read := h.limit(ratelimit.ClassRead)

	r.With(biometric).Post("/enroll", h.handleEnroll)
	r.With(biometric).Post("/attendance", h.handleMarkAttendance)
	r.With(biometric).Post("/attendance/verify", h.handleVerifyProof)
	r.With(read).Get("/uniqueness", h.handleUniquenessStatus)
}

func (h *Handler) limit(class ratelimit.Class) func(http.Handler) http.Handler {
	if h.limits == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.limits.Limit(class)
}

type sampleRequest struct {
	Type string `json:"type"`
	Data []byte `json:"data"`
}

type enrollRequest struct {
	OwnerID string          `json:"owner_id"`
	OrgID   string          `json:"org_id"`
	Samples []sampleRequest `json:"samples"`
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	owner, err := id.ParseOwnerID(req.OwnerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	org, err := id.ParseOrgID(req.OrgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	samples := make([]attendance.BiometricSample, 0, len(req.Samples))
	for _, s := range req.Samples {
		biometricType, err := id.ParseBiometricType(s.Type)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		samples = append(samples, attendance.BiometricSample{Type: biometricType, Data: s.Data})
	}

	results, err := h.service.Enroll(ctx, attendance.EnrollParams{
		Owner:    owner,
		Org:      org,
		Samples:  samples,
		Metadata: enrollmentMetadata(r),
	})
	if err != nil {
		h.writeDomainError(w, r, err, "enrollment failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]any{"enrollments": results})
}

type signalsRequest struct {
	GPS *struct {
		Lat          float64 `json:"lat"`
		Lng          float64 `json:"lng"`
		AccuracyM    float64 `json:"accuracy_m"`
		MockLocation bool    `json:"mock_location"`
	} `json:"gps,omitempty"`
	WiFi *struct {
		Networks []struct {
			BSSID string  `json:"bssid"`
			SSID  string  `json:"ssid"`
			RSSI  float64 `json:"rssi"`
		} `json:"networks"`
	} `json:"wifi,omitempty"`
	IP *struct {
		Addr string `json:"addr"`
	} `json:"ip,omitempty"`
}

type markRequest struct {
	OwnerID       string         `json:"owner_id"`
	OrgID         string         `json:"org_id"`
	BiometricType string         `json:"biometric_type"`
	Sample        []byte         `json:"sample"`
	Signals       signalsRequest `json:"signals"`
}

func (h *Handler) handleMarkAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req markRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	owner, err := id.ParseOwnerID(req.OwnerID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	org, err := id.ParseOrgID(req.OrgID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	biometricType, err := id.ParseBiometricType(req.BiometricType)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	attendanceProof, err := h.service.MarkAttendance(ctx, attendance.MarkParams{
		Owner:   owner,
		Org:     org,
		Type:    biometricType,
		Sample:  req.Sample,
		Signals: buildSignals(r, req.Signals),
	})
	if err != nil {
		h.writeDomainError(w, r, err, "attendance marking failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, attendanceProof)
}

func (h *Handler) handleVerifyProof(w http.ResponseWriter, r *http.Request) {
	var p proof.AttendanceProof
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid proof body"))
		return
	}
	valid, err := h.service.VerifyAttendanceProof(r.Context(), &p)
	if err != nil {
		h.writeDomainError(w, r, err, "proof verification failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

func (h *Handler) handleUniquenessStatus(w http.ResponseWriter, r *http.Request) {
	commitmentHash := r.URL.Query().Get("commitment")
	if commitmentHash == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "commitment query parameter is required"))
		return
	}
	biometricType, err := id.ParseBiometricType(r.URL.Query().Get("type"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	existing, err := h.service.GetUniquenessStatus(r.Context(), commitmentHash, biometricType)
	if err != nil {
		h.writeDomainError(w, r, err, "uniqueness lookup failed")
		return
	}
	if existing == nil {
		httputil.WriteJSON(w, http.StatusOK, map[string]bool{"registered": false})
		return
	}
	// Expose only what the pre-flight UI needs; the record itself stays
	// server-side.
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"registered":    true,
		"organization":  existing.OrgID.String(),
		"registered_at": existing.Metadata.RegisteredAt.Format(time.RFC3339),
	})
}

// writeDomainError maps orchestrator errors onto transport responses without
// leaking biometric content.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	ctx := r.Context()

	var locationErr *attendance.LocationRejectedError
	if errors.As(err, &locationErr) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeRejected, locationErr.Error()))
		return
	}
	var commitDup *registry.BiometricDuplicateError
	if errors.As(err, &commitDup) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, commitDup.Error()))
		return
	}
	var nullDup *registry.NullifierDuplicateError
	if errors.As(err, &nullDup) {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeConflict, nullDup.Error()))
		return
	}

	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, logMsg,
			"request_id", middleware.GetRequestID(ctx), "error", err.Error())
	}
	httputil.WriteError(w, err)
}

// enrollmentMetadata derives registration metadata from the request: device
// from the X-Device-Id header, platform parsed from the User-Agent.
func enrollmentMetadata(r *http.Request) models.Metadata {
	ua := useragent.New(metadata.GetUserAgent(r.Context()))
	platform := ua.OSInfo().Name
	if ua.Mobile() {
		platform += " mobile"
	}
	return models.Metadata{
		DeviceID: r.Header.Get("X-Device-Id"),
		Platform: platform,
	}
}

// buildSignals converts the request payload, filling the IP signal from the
// connection metadata when the client did not report one.
func buildSignals(r *http.Request, req signalsRequest) location.Signals {
	signals := location.Signals{Timestamp: time.Now()}
	if req.GPS != nil {
		signals.GPS = &location.GPSSignal{
			Point:        location.Point{Lat: req.GPS.Lat, Lng: req.GPS.Lng},
			AccuracyM:    req.GPS.AccuracyM,
			MockLocation: req.GPS.MockLocation,
		}
	}
	if req.WiFi != nil {
		wifi := &location.WiFiSignal{}
		for _, n := range req.WiFi.Networks {
			wifi.Networks = append(wifi.Networks, location.WiFiNetwork{
				BSSID: n.BSSID, SSID: n.SSID, RSSI: n.RSSI,
			})
		}
		signals.WiFi = wifi
	}
	switch {
	case req.IP != nil:
		signals.IP = &location.IPSignal{Addr: req.IP.Addr}
	default:
		if addr := metadata.GetClientIP(r.Context()); addr != "" {
			signals.IP = &location.IPSignal{Addr: addr}
		}
	}
	return signals
}
