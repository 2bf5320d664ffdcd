package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"ncapportal/pkg/domain"
	"ncapportal/services/portal/internal/app"
	"ncapportal/services/portal/internal/assistant"
	"ncapportal/services/portal/internal/store"
)

type stubObjects struct {
	objects map[string][]byte
}

func (s *stubObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.objects[key] = b
	return nil
}

func (s *stubObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	b, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %q", key)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (s *stubObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.local/" + key, nil
}

func (s *stubObjects) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

type stubGenerator struct {
	reply string
	err   error
}

func (g *stubGenerator) GenerateChat(context.Context, string, []domain.ChatMessage) (string, error) {
	return g.reply, g.err
}

func newTestServer(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()
	mr := miniredis.RunT(t)
	a, err := app.New(app.Config{
		Store:       store.NewMemoryStore(),
		Sessions:    store.NewJWTSessionStore("test-secret", time.Hour),
		Objects:     &stubObjects{objects: map[string][]byte{}},
		AdminEmails: []string{"admin@lgu.gov.ph"},
		Rand:        rand.New(rand.NewSource(9)),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	cfg := Config{
		App:       a,
		Assistant: assistant.New(&stubGenerator{reply: "Magbayad sa loob ng 7 araw."}),
		RedisAddr: mr.Addr(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	fields := map[string]json.RawMessage{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &fields)
	}
	return resp, fields
}

func signUpHTTP(t *testing.T, base, name, email string) string {
	t.Helper()
	resp, fields := doJSON(t, http.MethodPost, base+"/api/auth/signup", "", map[string]string{
		"name": name, "email": email, "password": "s3cret-pass",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup %s: status %d", email, resp.StatusCode)
	}
	var token string
	if err := json.Unmarshal(fields["token"], &token); err != nil || token == "" {
		t.Fatalf("signup %s: no token in response", email)
	}
	return token
}

func uploadViolation(t *testing.T, base, token, plate string) domain.Violation {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, value := range map[string]string{
		"plateNumber":   plate,
		"violationType": "Overspeeding",
		"location":      "C5, Pasig",
		"date":          "2024-05-10",
		"fine":          "1000",
	} {
		if err := mw.WriteField(field, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("evidence", "ticket.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("jpegdata")); err != nil {
		t.Fatalf("write file: %v", err)
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, base+"/api/violations", &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("upload status %d: %s", resp.StatusCode, body)
	}
	var violation domain.Violation
	if err := json.NewDecoder(resp.Body).Decode(&violation); err != nil {
		t.Fatalf("decode violation: %v", err)
	}
	return violation
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAuthFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signUpHTTP(t, ts.URL, "Juan", "juan@example.com")

	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/users/me", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status = %d", resp.StatusCode)
	}
	var role string
	_ = json.Unmarshal(fields["role"], &role)
	if role != "citizen" {
		t.Fatalf("role = %q, want citizen", role)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/users/me", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me status = %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/auth/login", "", map[string]string{
		"email": "juan@example.com", "password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", resp.StatusCode)
	}
}

func TestAdminMiddleware(t *testing.T) {
	ts := newTestServer(t, nil)
	citizenToken := signUpHTTP(t, ts.URL, "Juan", "juan@example.com")
	adminToken := signUpHTTP(t, ts.URL, "Admin", "admin@lgu.gov.ph")

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/api/admin/appeals", citizenToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("citizen admin access status = %d, want 403", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/admin/appeals", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin access status = %d, want 200", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/admin/appeals", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous admin access status = %d, want 401", resp.StatusCode)
	}
}

func TestPlateSearchNormalization(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signUpHTTP(t, ts.URL, "Juan", "juan@example.com")
	uploadViolation(t, ts.URL, token, " abc 1234 ")

	resp, err := http.Get(ts.URL + "/api/violations/search?plate=abc1234")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search status = %d", resp.StatusCode)
	}
	var result struct {
		PlateNumber string             `json:"plateNumber"`
		Violations  []domain.Violation `json:"violations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if result.PlateNumber != "ABC1234" || len(result.Violations) != 1 {
		t.Fatalf("search result = %+v", result)
	}
	if len(result.Violations[0].FileURLs) != 0 {
		// presigned URLs are only minted on the detail endpoint
		t.Fatalf("search leaked file URLs: %v", result.Violations[0].FileURLs)
	}
}

func TestViolationDetailAndPayment(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signUpHTTP(t, ts.URL, "Juan", "juan@example.com")
	violation := uploadViolation(t, ts.URL, token, "XYZ-789")

	resp, fields := doJSON(t, http.MethodGet, ts.URL+"/api/violations/"+violation.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("detail status = %d", resp.StatusCode)
	}
	var urls []string
	_ = json.Unmarshal(fields["fileUrls"], &urls)
	if len(urls) != 1 || !strings.HasPrefix(urls[0], "https://objects.local/violations/") {
		t.Fatalf("fileUrls = %v", urls)
	}

	resp, fields = doJSON(t, http.MethodPost, ts.URL+"/api/violations/"+violation.ID+"/pay", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pay status = %d", resp.StatusCode)
	}
	var status string
	_ = json.Unmarshal(fields["status"], &status)
	if status != "paid" {
		t.Fatalf("status after payment = %q", status)
	}

	// repeat payment is a no-op success
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/violations/"+violation.ID+"/pay", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("repeat pay status = %d", resp.StatusCode)
	}
}

func TestAppealOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signUpHTTP(t, ts.URL, "Juan", "juan@example.com")
	adminToken := signUpHTTP(t, ts.URL, "Admin", "admin@lgu.gov.ph")
	violation := uploadViolation(t, ts.URL, token, "abc 1234")

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/violations/"+violation.ID+"/analysis", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("analysis status = %d", resp.StatusCode)
	}
	var analysis domain.AnalysisResult
	raw, _ := json.Marshal(fields)
	if err := json.Unmarshal(raw, &analysis); err != nil {
		t.Fatalf("decode analysis: %v", err)
	}
	if analysis.Confidence < 70 || analysis.Confidence > 99 {
		t.Fatalf("confidence = %d", analysis.Confidence)
	}

	resp, fields = doJSON(t, http.MethodPost, ts.URL+"/api/violations/"+violation.ID+"/appeal", token, map[string]any{
		"notes":          "Hindi ako ang nagmamaneho noon.",
		"analysisResult": analysis,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("appeal status = %d: %s", resp.StatusCode, fields["error"])
	}
	var appealID string
	_ = json.Unmarshal(fields["id"], &appealID)
	if appealID == "" {
		t.Fatal("appeal response missing id")
	}

	// duplicate submission conflicts
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/violations/"+violation.ID+"/appeal", token, map[string]any{
		"analysisResult": analysis,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate appeal status = %d, want 409", resp.StatusCode)
	}

	// owner can read the appeal
	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/api/appeals/"+appealID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("appeal read status = %d", resp.StatusCode)
	}

	// admin approves, violation is dismissed
	resp, fields = doJSON(t, http.MethodPost, ts.URL+"/api/admin/appeals/"+appealID+"/decision", adminToken, map[string]string{"decision": "approved"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("decision status = %d: %s", resp.StatusCode, fields["error"])
	}
	resp, fields = doJSON(t, http.MethodGet, ts.URL+"/api/violations/"+violation.ID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("violation read status = %d", resp.StatusCode)
	}
	var status string
	_ = json.Unmarshal(fields["status"], &status)
	if status != "dismissed" {
		t.Fatalf("violation status = %q, want dismissed", status)
	}

	// terminal appeal rejects further decisions
	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/admin/appeals/"+appealID+"/decision", adminToken, map[string]string{"decision": "denied"})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("re-decision status = %d, want 409", resp.StatusCode)
	}
}

func TestSignupRateLimit(t *testing.T) {
	ts := newTestServer(t, func(cfg *Config) {
		cfg.SignupRateLimitPerMinute = 2
	})
	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
			"name": "Juan", "email": fmt.Sprintf("user%d@example.com", i), "password": "s3cret-pass",
		})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("signup %d status = %d", i, resp.StatusCode)
		}
	}
	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/api/auth/signup", "", map[string]string{
		"name": "Juan", "email": "user3@example.com", "password": "s3cret-pass",
	})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("limited signup status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "60" {
		t.Fatalf("Retry-After = %q", resp.Header.Get("Retry-After"))
	}
}

func TestChat(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signUpHTTP(t, ts.URL, "Juan", "juan@example.com")

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/chat", token, map[string]any{
		"messages": []map[string]string{{"role": "user", "content": "Paano mag-appeal?"}},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat status = %d", resp.StatusCode)
	}
	var content string
	_ = json.Unmarshal(fields["content"], &content)
	if content == "" {
		t.Fatal("chat response missing content")
	}

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/api/chat", token, map[string]any{
		"messages": []map[string]string{{"role": "assistant", "content": "hi"}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad history status = %d, want 400", resp.StatusCode)
	}
}

func TestVehicleEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	token := signUpHTTP(t, ts.URL, "Juan", "juan@example.com")

	resp, fields := doJSON(t, http.MethodPost, ts.URL+"/api/vehicles", token, map[string]string{
		"plateNumber": "abc 1234", "type": "Sedan", "brand": "Toyota",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add vehicle status = %d", resp.StatusCode)
	}
	var vehicleID, plate string
	_ = json.Unmarshal(fields["id"], &vehicleID)
	_ = json.Unmarshal(fields["plateNumber"], &plate)
	if plate != "ABC1234" {
		t.Fatalf("plate = %q, want ABC1234", plate)
	}

	resp, fields = doJSON(t, http.MethodGet, ts.URL+"/api/vehicles", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list vehicles status = %d", resp.StatusCode)
	}
	var count int
	_ = json.Unmarshal(fields["count"], &count)
	if count != 1 {
		t.Fatalf("vehicle count = %d", count)
	}

	resp, _ = doJSON(t, http.MethodDelete, ts.URL+"/api/vehicles/"+vehicleID, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete vehicle status = %d", resp.StatusCode)
	}
}
