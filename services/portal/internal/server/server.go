package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ncapportal/internal/ratelimit"
	"ncapportal/internal/util"
	"ncapportal/pkg/domain"
	"ncapportal/services/portal/internal/app"
	"ncapportal/services/portal/internal/assistant"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	Assistant                *assistant.Assistant
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	SearchRateLimitPerMinute int
	ChatRateLimitPerMinute   int
	MaxUploadBytes           int64
	TrustedProxyCIDRs        []string
}

// Server exposes the portal HTTP endpoints.
type Server struct {
	app            *app.App
	assistant      *assistant.Assistant
	mux            *http.ServeMux
	maxUploadBytes int64
	trustedProxies *util.TrustedProxies
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
	searchLimiter  *ratelimit.FixedWindowLimiter
	chatLimiter    *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	searchLimit := cfg.SearchRateLimitPerMinute
	if searchLimit <= 0 {
		searchLimit = 30
	}
	chatLimit := cfg.ChatRateLimitPerMinute
	if chatLimit <= 0 {
		chatLimit = 10
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "ncap:portal:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	searchLimiter, err := newLimiter("search", searchLimit)
	if err != nil {
		return nil, err
	}
	chatLimiter, err := newLimiter("chat", chatLimit)
	if err != nil {
		return nil, err
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 5 << 20
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxy CIDRs: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		assistant:      cfg.Assistant,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUpload,
		trustedProxies: trustedProxies,
		signupLimiter:  signupLimiter,
		loginLimiter:   loginLimiter,
		searchLimiter:  searchLimiter,
		chatLimiter:    chatLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// vehicles
	s.mux.Handle("/api/vehicles", s.authenticated(s.handleVehicles))
	s.mux.Handle("/api/vehicles/", s.authenticated(s.handleVehicleByID))

	// violations
	s.mux.HandleFunc("/api/violations/search", s.handleSearch)
	s.mux.Handle("/api/violations", s.authenticated(s.handleViolations))
	s.mux.Handle("/api/violations/", s.authenticated(s.handleViolationByID))

	// appeals
	s.mux.Handle("/api/appeals/", s.authenticated(s.handleAppealByID))

	// admin
	s.mux.Handle("/api/admin/appeals", s.adminOnly(s.handleAdminAppeals))
	s.mux.Handle("/api/admin/appeals/", s.adminOnly(s.handleAdminAppealByID))

	// assistant
	s.mux.Handle("/api/chat", s.authenticated(s.handleChat))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "portal.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// adminOnly resolves the caller's persisted role; the allow-list is consulted
// only once at signup, so a role check here is the actual security boundary.
func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "portal.admin.authorize", "fail", "reason", "missing_or_invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != domain.RoleAdmin {
			s.audit(r, "portal.admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.audit(r, "portal.admin.authorize", "success", "user_id", user.ID)
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

// auth handlers
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many signup attempts") {
		s.audit(r, "portal.signup", "rate_limited")
		return
	}
	var req signupRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "portal.signup", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.SignUp(req.Name, req.Email, req.Password)
	if err != nil {
		s.audit(r, "portal.signup", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "portal.signup", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "portal.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "portal.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "portal.login", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "portal.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		s.audit(r, "portal.logout", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "portal.logout", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// /api/vehicles
func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		vehicles, err := s.app.ListMyVehicles(user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": vehicles,
			"count": len(vehicles),
		})
	case http.MethodPost:
		var req app.VehicleInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		vehicle, err := s.app.AddVehicle(user, req)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, vehicle)
	default:
		methodNotAllowed(w)
	}
}

// /api/vehicles/{id}
func (s *Server) handleVehicleByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/vehicles/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPatch:
		var req app.VehicleInput
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		vehicle, err := s.app.UpdateVehicle(user, id, req)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, vehicle)
	case http.MethodDelete:
		if err := s.app.DeleteVehicle(user, id); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

// /api/violations/search — public plate lookup.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.searchLimiter, "too many search requests") {
		return
	}
	result, err := s.app.SearchByPlate(r.Context(), r.URL.Query().Get("plate"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// /api/violations
func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		violations, err := s.app.MyViolations(r.Context(), user)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": violations,
			"count": len(violations),
		})
	case http.MethodPost:
		s.handleUploadViolation(w, r, user)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUploadViolation(w http.ResponseWriter, r *http.Request, user domain.User) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes*4)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	fine := 0
	if v := r.FormValue("fine"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "fine must be an integer")
			return
		}
		fine = n
	}
	in := app.ViolationInput{
		PlateNumber:   r.FormValue("plateNumber"),
		ViolationType: r.FormValue("violationType"),
		Location:      r.FormValue("location"),
		Date:          r.FormValue("date"),
		Fine:          fine,
		Notes:         r.FormValue("notes"),
	}
	if lat, lng := r.FormValue("lat"), r.FormValue("lng"); lat != "" && lng != "" {
		latF, errLat := strconv.ParseFloat(lat, 64)
		lngF, errLng := strconv.ParseFloat(lng, 64)
		if errLat != nil || errLng != nil {
			writeError(w, http.StatusBadRequest, "lat and lng must be numbers")
			return
		}
		in.Coordinates = &domain.Coordinates{Lat: latF, Lng: lngF}
	}

	var files []app.EvidenceFile
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["evidence"] {
			f, err := header.Open()
			if err != nil {
				writeError(w, http.StatusBadRequest, "unreadable evidence file")
				return
			}
			defer f.Close()
			files = append(files, app.EvidenceFile{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Reader:      f,
			})
		}
	}

	violation, err := s.app.UploadViolation(r.Context(), user, in, files)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, violation)
}

// /api/violations/{id}, /api/violations/{id}/pay, /{id}/analysis, /{id}/appeal
func (s *Server) handleViolationByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/violations/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		switch parts[1] {
		case "pay":
			s.handlePay(w, r, user, id)
		case "analysis":
			s.handleAnalysis(w, r, user, id)
		case "appeal":
			s.handleSubmitAppeal(w, r, user, id)
		default:
			http.NotFound(w, r)
		}
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	violation, err := s.app.GetViolation(r.Context(), user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, violation)
}

func (s *Server) handlePay(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	violation, err := s.app.SettlePayment(r.Context(), user, id)
	if err != nil {
		s.audit(r, "portal.payment", "fail", "violation_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "portal.payment", "success", "user_id", user.ID, "violation_id", id)
	writeJSON(w, http.StatusOK, violation)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	result, err := s.app.Analyze(r.Context(), user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSubmitAppeal(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req appealRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	appeal, err := s.app.SubmitAppeal(r.Context(), user, id, req.Notes, req.Analysis)
	if err != nil {
		s.audit(r, "portal.appeal.submit", "fail", "violation_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "portal.appeal.submit", "success", "user_id", user.ID, "appeal_id", appeal.ID)
	writeJSON(w, http.StatusCreated, appeal)
}

// /api/appeals/{id}
func (s *Server) handleAppealByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/appeals/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	appeal, err := s.app.GetAppeal(user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appeal)
}

// admin handlers
func (s *Server) handleAdminAppeals(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	appeals, stats, err := s.app.AdminListAppeals(r.URL.Query().Get("status"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": appeals,
		"count": len(appeals),
		"stats": stats,
	})
}

// /api/admin/appeals/{id} and /api/admin/appeals/{id}/decision
func (s *Server) handleAdminAppealByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/appeals/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "decision" {
			http.NotFound(w, r)
			return
		}
		s.handleDecision(w, r, user, id)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	appeal, err := s.app.GetAppeal(user, id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appeal)
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req decisionRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	appeal, err := s.app.AdminDecide(id, req.Decision)
	if err != nil {
		s.audit(r, "portal.appeal.decision", "fail", "appeal_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "portal.appeal.decision", "success", "user_id", user.ID, "appeal_id", id, "decision", req.Decision)
	writeJSON(w, http.StatusOK, appeal)
}

// /api/chat
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.chatLimiter, "too many chat requests") {
		return
	}
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reply, err := s.assistant.Reply(r.Context(), req.Messages)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Content: reply})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type appealRequest struct {
	Notes    string                 `json:"notes"`
	Analysis *domain.AnalysisResult `json:"analysisResult,omitempty"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
}

type chatRequest struct {
	Messages []domain.ChatMessage `json:"messages"`
}

type chatResponse struct {
	Content string `json:"content"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application sentinels onto HTTP statuses. Unknown errors
// stay opaque to the client.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrAlreadyAppealed):
		writeError(w, http.StatusConflict, "this violation already has an appeal")
	case errors.Is(err, app.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, assistant.ErrBadConversation):
		writeError(w, http.StatusBadRequest, assistant.ErrBadConversation.Error())
	case errors.Is(err, assistant.ErrRetryable):
		writeError(w, http.StatusServiceUnavailable, assistant.ErrRetryable.Error())
	default:
		slog.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
