/*
handlers.go - HTTP API handlers for the vacation desk

PURPOSE:
  Exposes the identity provider, the session gate and the request
  lifecycle controller via REST API. Handles HTTP request/response and
  JSON serialization; every rule lives in the vacation and auth packages.

ENDPOINTS:
  Auth (public):
    POST   /api/auth/signup                       Register + create profile + sign in
    POST   /api/auth/signin                       Password sign-in
    POST   /api/auth/signout                      Revoke the bearer session
    GET    /api/session                           Current view state

  Dashboard (bearer + profile):
    GET    /api/dashboard                         Profile, balance, both request lists
    GET    /api/compensation/defaults             Pre-filled compensation form

  Requests (bearer + profile):
    POST   /api/vacation-requests                 Submit vacation request
    POST   /api/vacation-requests/{id}/cancel     Cancel pending vacation request
    POST   /api/compensation-requests             Submit compensation request
    POST   /api/compensation-requests/{id}/cancel Cancel pending compensation request

  Previews (public):
    GET    /api/business-days?start=&end=         Business days in a range
    GET    /api/compensation/quote?days=&rate=    days x rate

  Scenarios (-dev only):
    GET    /api/scenarios                         List demo scenarios
    POST   /api/scenarios/load                    Seed demo accounts

REQUEST FLOW:
  1. Parse HTTP request
  2. Resolve the viewer (RequireViewer)
  3. Call the controller, which validates, persists and refreshes
  4. Serialize the refreshed dashboard
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors ({error, field})
  - 401: Not signed in, invalid credentials
  - 403: Signed in but profile unavailable
  - 404: Request not found (or not yours)
  - 409: Not pending, submission in flight, email taken
  - 500: Backend errors, message passed through

SEE ALSO:
  - dto.go: Request/response data structures
  - session.go: Bearer session middleware
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/vacation-desk/auth"
	"github.com/warp/vacation-desk/generic"
	"github.com/warp/vacation-desk/vacation"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Auth       *auth.Provider
	Gate       *vacation.Gate
	Controller *vacation.Controller

	// Store is used directly only by demo scenarios.
	Store vacation.Store

	DevMode bool

	validate *validator.Validate
}

// NewHandler wires a handler. The gate subscribes to provider events.
func NewHandler(provider *auth.Provider, store vacation.Store, controller *vacation.Controller) *Handler {
	return &Handler{
		Auth:       provider,
		Gate:       vacation.NewGate(provider, store),
		Controller: controller,
		Store:      store,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// AUTH HANDLERS
// =============================================================================

// SignUp registers an identity, creates its profile with the defaults and
// signs the new user in.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.check(req); err != nil {
		h.fail(w, err)
		return
	}

	identity, err := h.Auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}

	// A missing profile is not fatal here: the gate reports the session as
	// profile_unavailable and the user can still sign out.
	if _, err := h.Controller.CreateProfile(r.Context(), vacation.UserID(identity.ID), identity.Email, req.FullName); err != nil {
		log.Printf("[api] create profile for %s failed: %v", identity.ID, err)
	}

	resp := SignUpResponse{
		User:    IdentityDTO{ID: identity.ID, Email: identity.Email},
		Message: "Account created successfully!",
	}
	sess, err := h.Auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		log.Printf("[api] sign in after sign up for %s failed: %v", identity.ID, err)
	} else {
		resp.Session = toSessionDTO(sess)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// SignIn exchanges email and password for a bearer session.
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.check(req); err != nil {
		h.fail(w, err)
		return
	}

	sess, err := h.Auth.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(sess))
}

// SignOut revokes the caller's session. Always 204.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.SignOut(r.Context(), bearerToken(r)); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSession reports which view the bearer token reaches.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	view, err := h.Gate.Enter(r.Context(), bearerToken(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	dto := ViewDTO{State: string(view.State)}
	if view.Viewer != nil {
		dto.Email = view.Viewer.Session.Email
		if view.Viewer.Profile != nil {
			p := toProfileDTO(*view.Viewer.Profile)
			dto.Profile = &p
		}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// GetDashboard returns the caller's profile, balance and request history.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	dash, err := h.Controller.Refresh(r.Context(), viewer.UserID())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(dash))
}

// GetCompensationDefaults returns the compensation form pre-filled with the
// caller's rate.
func (h *Handler) GetCompensationDefaults(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	prefill, err := h.Controller.CompensationDefaults(r.Context(), viewer.UserID())
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompensationDefaultsDTO{
		DaysToSell:    prefill.Form.DaysToSell,
		RatePerDay:    prefill.Form.RatePerDay,
		MaxDaysToSell: prefill.MaxDaysToSell.InexactFloat64(),
	})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// SubmitVacationRequest creates a pending vacation request.
func (h *Handler) SubmitVacationRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitVacationRequest
	if !h.decode(w, r, &req) {
		return
	}
	viewer := viewerFrom(r.Context())

	created, dash, err := h.Controller.SubmitVacation(r.Context(), viewer.UserID(), vacation.VacationForm{
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
	})
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, VacationSubmitResponse{
		Request:   toVacationRequestDTO(*created),
		Dashboard: toDashboardDTO(dash),
	})
}

// CancelVacationRequest cancels one of the caller's pending vacation requests.
func (h *Handler) CancelVacationRequest(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	dash, err := h.Controller.CancelVacation(r.Context(), viewer.UserID(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(dash))
}

// SubmitCompensationRequest creates a pending compensation request. Without
// rate_per_day the profile's default rate is used.
func (h *Handler) SubmitCompensationRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitCompensationRequest
	if !h.decode(w, r, &req) {
		return
	}
	viewer := viewerFrom(r.Context())

	form := vacation.CompensationForm{
		DaysToSell: string(req.DaysToSell),
		Notes:      req.Notes,
	}
	if req.RatePerDay != nil {
		form.RatePerDay = string(*req.RatePerDay)
	} else {
		defaults, err := h.Controller.CompensationDefaults(r.Context(), viewer.UserID())
		if err != nil {
			h.fail(w, err)
			return
		}
		form.RatePerDay = defaults.Form.RatePerDay
	}

	created, dash, err := h.Controller.SubmitCompensation(r.Context(), viewer.UserID(), form)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CompensationSubmitResponse{
		Request:   toCompensationRequestDTO(*created),
		Dashboard: toDashboardDTO(dash),
	})
}

// CancelCompensationRequest cancels one of the caller's pending compensation requests.
func (h *Handler) CancelCompensationRequest(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	dash, err := h.Controller.CancelCompensation(r.Context(), viewer.UserID(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(dash))
}

// =============================================================================
// PREVIEW HANDLERS
// =============================================================================

// PreviewBusinessDays counts Mon-Fri days in [start, end].
func (h *Handler) PreviewBusinessDays(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	writeJSON(w, http.StatusOK, BusinessDaysDTO{
		Start:        start,
		End:          end,
		BusinessDays: vacation.PreviewBusinessDays(start, end),
	})
}

// QuoteCompensation previews a payout.
func (h *Handler) QuoteCompensation(w http.ResponseWriter, r *http.Request) {
	total := vacation.QuoteCompensation(r.URL.Query().Get("days"), r.URL.Query().Get("rate"))
	writeJSON(w, http.StatusOK, CompensationQuoteDTO{
		TotalAmount:  total.InexactFloat64(),
		TotalDisplay: total.StringFixed(2),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body, answering 400 itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// check runs the struct tags and turns the first failure into a
// ValidationError with a user-facing message.
func (h *Handler) check(v any) error {
	err := h.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", generic.ErrInvalidInput, err)
	}
	fe := verrs[0]
	field := jsonField(fe.Field())
	switch fe.Tag() {
	case "required":
		return generic.NewValidationError(field, "Please fill in all fields")
	case "email":
		return generic.NewValidationError(field, "Please enter a valid email address")
	case "min":
		return generic.NewValidationError(field, "Password should be at least %s characters", fe.Param())
	case "max":
		return generic.NewValidationError(field, "Password should be at most %s characters", fe.Param())
	default:
		return generic.NewValidationError(field, "Invalid %s", field)
	}
}

func jsonField(name string) string {
	switch name {
	case "FullName":
		return "full_name"
	case "Email":
		return "email"
	case "Password":
		return "password"
	}
	return name
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, generic.ErrUnauthenticated), errors.Is(err, generic.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, generic.ErrProfileUnavailable):
		return http.StatusForbidden
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// codeFor gives clients a stable machine-readable reason.
func codeFor(err error) string {
	switch {
	case errors.Is(err, generic.ErrInvalidInput), errors.Is(err, generic.ErrInvalidPeriod):
		return "invalid_input"
	case errors.Is(err, generic.ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, generic.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, generic.ErrProfileUnavailable):
		return "profile_unavailable"
	case errors.Is(err, generic.ErrNotFound):
		return "not_found"
	case errors.Is(err, generic.ErrConcurrentModification):
		return "concurrent_modification"
	case errors.Is(err, generic.ErrNotPending):
		return "not_pending"
	case errors.Is(err, generic.ErrSubmissionInFlight):
		return "in_flight"
	case errors.Is(err, generic.ErrEmailTaken):
		return "email_taken"
	}
	return "backend_error"
}

// fail writes err as an ErrorResponse. Backend messages are passed through.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	resp := ErrorResponse{Error: err.Error(), Code: codeFor(err)}

	var verr *generic.ValidationError
	if errors.As(err, &verr) {
		resp.Error = verr.Message
		resp.Field = verr.Field
	}
	if status == http.StatusInternalServerError {
		log.Printf("[api] backend error: %v", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
