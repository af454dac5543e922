package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/lunaticom/campaign-builder/internal/apperr"
	"github.com/lunaticom/campaign-builder/internal/campaign"
	"github.com/lunaticom/campaign-builder/internal/config"
	"github.com/lunaticom/campaign-builder/internal/document"
	"github.com/lunaticom/campaign-builder/internal/imgbb"
	"github.com/lunaticom/campaign-builder/internal/proof"
	"github.com/lunaticom/campaign-builder/internal/ratelimit"
	"github.com/lunaticom/campaign-builder/internal/template"
	"github.com/lunaticom/campaign-builder/internal/webhook"
)

const sportHTML = `<h1>{{Titolo}}</h1><div>{{Descrizione}}</div><a href="{{Link_img_header}}"><img src="{{Immagine_URL}}"></a>`

// memTemplates implements template.Store for testing
type memTemplates map[string]string

func (m memTemplates) Load(ctx context.Context, name string) (*template.Template, error) {
	html, ok := m[name]
	if !ok {
		return nil, template.ErrNotFound
	}
	return &template.Template{Name: name, HTML: html}, nil
}

// mockUploader implements ImageUploader for testing
type mockUploader struct {
	err  error
	name string
}

func (m *mockUploader) Upload(ctx context.Context, imageBase64, name string) (*imgbb.Upload, error) {
	if m.err != nil {
		return nil, m.err
	}
	if imageBase64 == "" {
		return nil, apperr.Validation("imageBase64 required")
	}
	m.name = name
	return &imgbb.Upload{
		URL:        "https://i.ibb.co/abc/" + name + ".png",
		DisplayURL: "https://ibb.co/abc",
		DeleteURL:  "https://ibb.co/abc/delete",
	}, nil
}

// mockHook implements Submitter for testing
type mockHook struct {
	err       error
	submitted []campaign.Record
}

func (m *mockHook) Submit(ctx context.Context, rec campaign.Record) (*webhook.Payload, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.submitted = append(m.submitted, rec)
	return webhook.NewPayload(rec, "", time.Now()), nil
}

// mockProof implements ProofSender for testing
type mockProof struct {
	sent []*proof.Message
}

func (m *mockProof) Send(ctx context.Context, msg *proof.Message) (string, error) {
	m.sent = append(m.sent, msg)
	return "<proof-1@example.com>", nil
}

type testEnv struct {
	server   *Server
	uploader *mockUploader
	hook     *mockHook
	proof    *mockProof
}

func setupTestServer(apiKey string) *testEnv {
	return setupTestServerWith(&config.APIConfig{ListenAddr: ":8080", APIKey: apiKey, MaxBodyBytes: 1 << 20}, nil)
}

func setupTestServerWith(cfg *config.APIConfig, admin TemplateAdmin) *testEnv {
	env := &testEnv{
		uploader: &mockUploader{},
		hook:     &mockHook{},
		proof:    &mockProof{},
	}
	now := func() time.Time { return time.Date(2024, 5, 17, 10, 0, 0, 0, time.UTC) }

	svc := Services{
		Generator:          document.NewGenerator(memTemplates{"sport": sportHTML}, document.WithClock(now)),
		Images:             env.uploader,
		Hook:               env.hook,
		Proof:              env.proof,
		CollapseBlankLines: true,
		Version:            "test",
	}
	if admin != nil {
		svc.Templates = admin
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.server = NewServer(cfg, svc, logger)
	return env
}

func doRequest(s *Server, method, path, body, apiKey string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	env := setupTestServer("secret")

	w := doRequest(env.server, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want %q", resp.Status, "ok")
	}
	if resp.Version != "test" {
		t.Errorf("Version = %q, want %q", resp.Version, "test")
	}
	if resp.Templates != nil {
		t.Errorf("Templates = %v, want nil without template admin", *resp.Templates)
	}
}

func TestAuthMiddleware(t *testing.T) {
	env := setupTestServer("secret")
	body := `{"body":"hi"}`

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"no key", "", "", http.StatusUnauthorized},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer secret", http.StatusOK},
		{"x-api-key", "X-API-Key", "secret", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/preview", bytes.NewBufferString(body))
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			env.server.router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("Status = %d, want %d. Body: %s", w.Code, tt.want, w.Body.String())
			}
			if tt.want == http.StatusUnauthorized {
				if resp := decodeError(t, w); resp.Error != "Unauthorized" {
					t.Errorf("Error = %q, want Unauthorized", resp.Error)
				}
			}
		})
	}
}

func TestAuthMiddleware_Hash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hashed-secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("GenerateFromPassword() error = %v", err)
	}
	env := setupTestServerWith(&config.APIConfig{APIKeyHash: string(hash)}, nil)

	if w := doRequest(env.server, "POST", "/api/v1/preview", `{}`, "hashed-secret"); w.Code != http.StatusOK {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doRequest(env.server, "POST", "/api/v1/preview", `{}`, "other"); w.Code != http.StatusUnauthorized {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	env := setupTestServer("")

	w := doRequest(env.server, "GET", "/api/v1/preview", "", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
	if resp := decodeError(t, w); resp.Error != "Method not allowed" {
		t.Errorf("Error = %q", resp.Error)
	}

	w = doRequest(env.server, "GET", "/nope", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestPreviewEndpoint(t *testing.T) {
	env := setupTestServer("")

	body := `{"text":"**Hi**\n\n\nthere","body":"a & b","terms":""}`
	w := doRequest(env.server, "POST", "/api/v1/preview", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp PreviewResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.HTML != "<strong>Hi</strong><br>there<br>" {
		t.Errorf("HTML = %q", resp.HTML)
	}
	if resp.BodyHTML != "a &amp; b<br>" {
		t.Errorf("BodyHTML = %q", resp.BodyHTML)
	}
	if resp.TermsHTML != "<br>" {
		t.Errorf("TermsHTML = %q, want <br>", resp.TermsHTML)
	}
}

func TestPreviewEndpoint_InvalidJSON(t *testing.T) {
	env := setupTestServer("")

	w := doRequest(env.server, "POST", "/api/v1/preview", `{"text":`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if resp := decodeError(t, w); resp.Error != "Invalid request body" {
		t.Errorf("Error = %q", resp.Error)
	}
}

func TestGenerateHTMLEndpoint(t *testing.T) {
	env := setupTestServer("")

	body := `{
		"subject": "Big <Match>",
		"templateType": "sport",
		"body": "**Win** now",
		"imageLink": "https://i.ibb.co/x.png",
		"cta_link": "https://bet.example/promo",
		"fileName": "Weekend Promo"
	}`
	w := doRequest(env.server, "POST", "/api/v1/generate-html", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if ct := w.Header().Get("Content-Type"); ct != document.ContentTypeHTML {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="Weekend_Promo.html"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	got := w.Body.String()
	for _, want := range []string{
		"<h1>Big &lt;Match&gt;</h1>",
		"<strong>Win</strong> now",
		`<img src="https://i.ibb.co/x.png">`,
		`<a href="https://bet.example/promo">`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("body missing %q:\n%s", want, got)
		}
	}
}

func TestGenerateHTMLEndpoint_Errors(t *testing.T) {
	env := setupTestServer("")

	tests := []struct {
		name    string
		body    string
		status  int
		message string
	}{
		{
			name:    "missing image",
			body:    `{"templateType":"SPORT"}`,
			status:  http.StatusBadRequest,
			message: "image_url is required (upload the image first)",
		},
		{
			name:   "unknown type",
			body:   `{"templateType":"POKER","image_url":"https://x/y.png"}`,
			status: http.StatusBadRequest,
		},
		{
			name:    "template missing",
			body:    `{"templateType":"BINGO","image_url":"https://x/y.png"}`,
			status:  http.StatusInternalServerError,
			message: "template not found: bingo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(env.server, "POST", "/api/v1/generate-html", tt.body, "")
			if w.Code != tt.status {
				t.Fatalf("Status = %d, want %d. Body: %s", w.Code, tt.status, w.Body.String())
			}
			resp := decodeError(t, w)
			if tt.message != "" && resp.Error != tt.message {
				t.Errorf("Error = %q, want %q", resp.Error, tt.message)
			}
		})
	}
}

func TestGenerateBriefEndpoint(t *testing.T) {
	env := setupTestServer("")

	body := `{"subject":"Hello","templateType":"casino","body":"**Bold** text"}`
	w := doRequest(env.server, "POST", "/api/v1/generate-brief", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	if ct := w.Header().Get("Content-Type"); ct != document.ContentTypeText {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="CASINO_2024-05-17_brief.txt"` {
		t.Errorf("Content-Disposition = %q", cd)
	}

	got := w.Body.String()
	if !strings.HasPrefix(got, "CAMPAIGN BRIEF") {
		t.Errorf("brief does not start with header:\n%s", got)
	}
	if !strings.Contains(got, "Bold text") || strings.Contains(got, "**") {
		t.Errorf("brief body not stripped:\n%s", got)
	}
}

func TestUploadImageEndpoint(t *testing.T) {
	env := setupTestServer("")

	w := doRequest(env.server, "POST", "/api/v1/upload-image", `{"imageBase64":"aGVsbG8=","name":"hero"}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp UploadImageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.URL != "https://i.ibb.co/abc/hero.png" {
		t.Errorf("URL = %q", resp.URL)
	}
	if env.uploader.name != "hero" {
		t.Errorf("uploader name = %q, want hero", env.uploader.name)
	}

	w = doRequest(env.server, "POST", "/api/v1/upload-image", `{}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty image Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestUploadImageEndpoint_UpstreamFailure(t *testing.T) {
	env := setupTestServer("")
	env.uploader.err = apperr.Upstream("ImgBB upload failed", map[string]any{"status_code": 400})

	w := doRequest(env.server, "POST", "/api/v1/upload-image", `{"imageBase64":"aGVsbG8="}`, "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("Status = %d, want %d", w.Code, http.StatusBadGateway)
	}

	resp := decodeError(t, w)
	if resp.Error != "ImgBB upload failed" {
		t.Errorf("Error = %q", resp.Error)
	}
	details, ok := resp.Details.(map[string]any)
	if !ok {
		t.Fatalf("Details = %#v, want object", resp.Details)
	}
	if details["status_code"] != float64(400) {
		t.Errorf("Details[status_code] = %v", details["status_code"])
	}
}

func TestSubmitEndpoint(t *testing.T) {
	env := setupTestServer("")

	body := `{"subject":"Hi","templateType":"lottery","image_url":"https://x/y.png","imageClickLink":"https://land"}`
	w := doRequest(env.server, "POST", "/api/v1/submit", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp SubmitResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.OK || resp.ID == "" {
		t.Errorf("resp = %+v, want ok with id", resp)
	}

	if len(env.hook.submitted) != 1 {
		t.Fatalf("submitted = %d, want 1", len(env.hook.submitted))
	}
	rec := env.hook.submitted[0]
	if rec.TemplateType != campaign.TypeLottery {
		t.Errorf("TemplateType = %q", rec.TemplateType)
	}
	if rec.ImageClickLink != "https://land" {
		t.Errorf("ImageClickLink = %q", rec.ImageClickLink)
	}
}

func TestSubmitEndpoint_Errors(t *testing.T) {
	env := setupTestServer("")

	env.hook.err = apperr.Configuration("ZAPIER_HOOK_URL missing")
	w := doRequest(env.server, "POST", "/api/v1/submit", `{"image_url":"https://x"}`, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if resp := decodeError(t, w); resp.Error != "ZAPIER_HOOK_URL missing" {
		t.Errorf("Error = %q", resp.Error)
	}

	env.hook.err = errors.New("boom")
	w = doRequest(env.server, "POST", "/api/v1/submit", `{"image_url":"https://x"}`, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if resp := decodeError(t, w); resp.Error != "Server error" {
		t.Errorf("Error = %q, want internal message hidden", resp.Error)
	}

	env.hook.err = nil
	w = doRequest(env.server, "POST", "/api/v1/submit", `{"templateType":"POKER","image_url":"https://x"}`, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(env.hook.submitted) != 0 {
		t.Errorf("submitted = %d, want unknown type never forwarded", len(env.hook.submitted))
	}
}

func TestProofEndpoint(t *testing.T) {
	env := setupTestServer("")

	body := `{"templateType":"SPORT","image_url":"https://x/y.png","to":["qa@example.com"]}`
	w := doRequest(env.server, "POST", "/api/v1/proof", body, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want %d. Body: %s", w.Code, http.StatusOK, w.Body.String())
	}

	var resp ProofResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.MessageID == "" {
		t.Error("MessageID is empty")
	}

	if len(env.proof.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(env.proof.sent))
	}
	msg := env.proof.sent[0]
	if msg.Subject != "[PROOF] SPORT campaign proof" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, `<img src="https://x/y.png">`) {
		t.Errorf("HTML = %q", msg.HTML)
	}
	if !strings.HasPrefix(msg.Text, "CAMPAIGN BRIEF") {
		t.Errorf("Text = %q", msg.Text)
	}
}

func TestProofEndpoint_Disabled(t *testing.T) {
	env := setupTestServer("")
	env.server.svc.Proof = nil

	w := doRequest(env.server, "POST", "/api/v1/proof", `{"to":["qa@example.com"]}`, "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if resp := decodeError(t, w); resp.Error != "proof sending is disabled" {
		t.Errorf("Error = %q", resp.Error)
	}
}

func TestBodyLimit(t *testing.T) {
	env := setupTestServerWith(&config.APIConfig{MaxBodyBytes: 64}, nil)

	body := `{"text":"` + strings.Repeat("x", 200) + `"}`
	w := doRequest(env.server, "POST", "/api/v1/preview", body, "")
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestIPFilter(t *testing.T) {
	env := setupTestServerWith(&config.APIConfig{AllowedIPs: []string{"10.0.0.0/8"}}, nil)

	tests := []struct {
		remote string
		want   int
	}{
		{"10.2.3.4:5000", http.StatusOK},
		{"192.168.1.10:5000", http.StatusForbidden},
	}

	for _, tt := range tests {
		req := httptest.NewRequest("POST", "/api/v1/preview", bytes.NewBufferString(`{}`))
		req.RemoteAddr = tt.remote
		w := httptest.NewRecorder()
		env.server.router.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s: Status = %d, want %d", tt.remote, w.Code, tt.want)
		}
	}

	// health stays reachable
	req := httptest.NewRequest("GET", "/health", nil)
	req.RemoteAddr = "192.168.1.10:5000"
	w := httptest.NewRecorder()
	env.server.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health Status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestIPFilter_ForwardingHeaders(t *testing.T) {
	env := setupTestServerWith(&config.APIConfig{
		AllowedIPs:     []string{"10.0.0.0/8"},
		TrustedProxies: []string{"192.0.2.50"},
	}, nil)

	tests := []struct {
		name   string
		remote string
		header string
		value  string
		want   int
	}{
		{"no header", "203.0.113.7:4000", "", "", http.StatusForbidden},
		{"forwarded-for from untrusted peer", "203.0.113.7:4000", "X-Forwarded-For", "10.1.2.3", http.StatusForbidden},
		{"real-ip from untrusted peer", "203.0.113.7:4000", "X-Real-IP", "10.1.2.3", http.StatusForbidden},
		{"trusted proxy, allowed client", "192.0.2.50:4000", "X-Forwarded-For", "10.1.2.3", http.StatusOK},
		{"trusted proxy, outside client", "192.0.2.50:4000", "X-Forwarded-For", "10.1.2.3, 203.0.113.7", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/preview", bytes.NewBufferString(`{}`))
			req.RemoteAddr = tt.remote
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := httptest.NewRecorder()
			env.server.router.ServeHTTP(w, req)
			if w.Code != tt.want {
				t.Errorf("Status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRateLimit_PerIPIgnoresSpoofedHeaders(t *testing.T) {
	env := setupTestServer("")
	limiter, err := ratelimit.NewLimiter(nil, ratelimit.Config{PerIP: &ratelimit.Limit{PerHour: 1}})
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	env.server.svc.Limiter = limiter

	submit := func(spoof string) int {
		req := httptest.NewRequest("POST", "/api/v1/submit", bytes.NewBufferString(`{"image_url":"https://x/y.png"}`))
		req.RemoteAddr = "203.0.113.7:4000"
		req.Header.Set("X-Forwarded-For", spoof)
		w := httptest.NewRecorder()
		env.server.router.ServeHTTP(w, req)
		return w.Code
	}

	if code := submit("198.51.100.1"); code != http.StatusOK {
		t.Fatalf("first submit Status = %d, want %d", code, http.StatusOK)
	}
	if code := submit("198.51.100.2"); code != http.StatusTooManyRequests {
		t.Errorf("second submit Status = %d, want %d", code, http.StatusTooManyRequests)
	}
	if got := limiter.Usage(ratelimit.LevelIP, "203.0.113.7").HourlyCount; got != 1 {
		t.Errorf("peer hourly count = %d, want 1", got)
	}
}

func TestRateLimit(t *testing.T) {
	env := setupTestServer("")
	limiter, err := ratelimit.NewLimiter(nil, ratelimit.Config{
		PerAction: map[string]*ratelimit.Limit{"submit": {PerHour: 1}},
	})
	if err != nil {
		t.Fatalf("NewLimiter() error = %v", err)
	}
	env.server.svc.Limiter = limiter

	body := `{"image_url":"https://x/y.png"}`
	if w := doRequest(env.server, "POST", "/api/v1/submit", body, ""); w.Code != http.StatusOK {
		t.Fatalf("first submit Status = %d, want %d", w.Code, http.StatusOK)
	}

	w := doRequest(env.server, "POST", "/api/v1/submit", body, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second submit Status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if len(env.hook.submitted) != 1 {
		t.Errorf("submitted = %d, want 1", len(env.hook.submitted))
	}

	// other actions and local routes are not limited
	if w := doRequest(env.server, "POST", "/api/v1/upload-image", `{"imageBase64":"aGk="}`, ""); w.Code != http.StatusOK {
		t.Errorf("upload Status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := doRequest(env.server, "POST", "/api/v1/preview", `{}`, ""); w.Code != http.StatusOK {
		t.Errorf("preview Status = %d, want %d", w.Code, http.StatusOK)
	}
}
