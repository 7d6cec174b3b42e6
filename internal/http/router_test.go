package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"tabayyan/internal/domain"
	"tabayyan/internal/email"
	"tabayyan/internal/llm"
	"tabayyan/internal/metrics"
	"tabayyan/internal/service"
	"tabayyan/internal/voice"
)

type mockUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]domain.User)}
}

func (m *mockUserRepo) Create(_ context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return user, nil
}

func (m *mockUserRepo) find(match func(domain.User) bool) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (m *mockUserRepo) GetByUsername(_ context.Context, username string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Username == username })
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	return m.find(func(u domain.User) bool { return u.Email == email })
}

func (m *mockUserRepo) GetByIdentifier(_ context.Context, identifier string) (domain.User, error) {
	return m.find(func(u domain.User) bool {
		return u.Username == identifier || strings.EqualFold(u.Email, identifier)
	})
}

func (m *mockUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	m.users[id] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

func (m *mockUserRepo) seed(t *testing.T, username, emailAddr, password string) domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := domain.User{
		ID:           username + "-id",
		Username:     username,
		Email:        emailAddr,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	_ = m.Create(context.Background(), user)
	return user
}

type mockRatingRepo struct {
	ratings []domain.Rating
}

func (m *mockRatingRepo) Create(_ context.Context, rating domain.Rating) error {
	m.ratings = append(m.ratings, rating)
	return nil
}

type mockStaffRepo struct {
	questions []domain.StaffQuestion
}

func (m *mockStaffRepo) Create(_ context.Context, q domain.StaffQuestion) error {
	m.questions = append(m.questions, q)
	return nil
}

type mockFAQRepo struct {
	faqs []domain.FAQ
}

func (m *mockFAQRepo) List(_ context.Context) ([]domain.FAQ, error) { return m.faqs, nil }

func (m *mockFAQRepo) ListMissingEmbeddings(_ context.Context, _ int) ([]domain.FAQ, error) {
	return nil, nil
}

func (m *mockFAQRepo) UpdateEmbedding(_ context.Context, _ string, _ pgvector.Vector) error {
	return nil
}

func (m *mockFAQRepo) Search(_ context.Context, _ pgvector.Vector, _ int) ([]domain.FAQ, error) {
	return nil, nil
}

func (m *mockFAQRepo) SearchText(_ context.Context, query string, k int) ([]domain.FAQ, error) {
	var out []domain.FAQ
	for _, f := range m.faqs {
		if strings.Contains(f.Question, query) || strings.Contains(f.Answer, query) {
			out = append(out, f)
		}
		if len(out) == k {
			break
		}
	}
	return out, nil
}

type mockEmailSender struct {
	mu       sync.Mutex
	resetTo  string
	resetURL string
	staffTo  string
	staff    email.StaffQuestion
}

func (m *mockEmailSender) SendStaffQuestion(_ context.Context, to string, q email.StaffQuestion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staffTo = to
	m.staff = q
	return nil
}

func (m *mockEmailSender) SendPasswordReset(_ context.Context, to, resetURL string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetTo = to
	m.resetURL = resetURL
	return nil
}

type stubTranscoder struct{}

func (stubTranscoder) ConvertToWAV(_ context.Context, _, out string) error {
	return os.WriteFile(out, []byte("RIFF"), 0o600)
}

func (stubTranscoder) ChangeSpeed(_ context.Context, in string, _ float64) (string, error) {
	return in, nil
}

type stubTranscriber struct {
	result voice.Result
	err    error
}

func (s *stubTranscriber) Transcribe(_ context.Context, _ string) (voice.Result, error) {
	return s.result, s.err
}

type stubSynth struct {
	err      error
	langCode string
	text     string
}

func (s *stubSynth) Synthesize(_ context.Context, text, langCode string, w io.Writer) error {
	s.text = text
	s.langCode = langCode
	if s.err != nil {
		return s.err
	}
	_, err := w.Write([]byte("ID3-fake-mp3"))
	return err
}

type testApp struct {
	router      *gin.Engine
	users       *mockUserRepo
	ratings     *mockRatingRepo
	staff       *mockStaffRepo
	sender      *mockEmailSender
	llm         *llm.MockClient
	history     service.HistoryStore
	transcriber *stubTranscriber
	synth       *stubSynth
	scratchDir  string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithLimiter(t, service.NewRateLimiter(time.Minute, 1000))
}

func newTestAppWithLimiter(t *testing.T, limiter service.RateLimiter) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()
	m := metrics.NewNopMetrics()

	app := &testApp{
		users:       newMockUserRepo(),
		ratings:     &mockRatingRepo{},
		staff:       &mockStaffRepo{},
		sender:      &mockEmailSender{},
		llm:         &llm.MockClient{Response: "الإجابة القانونية"},
		history:     service.NewMemoryHistoryStore(50, time.Hour),
		transcriber: &stubTranscriber{result: voice.Result{Text: "ما هي حقوقي", Language: "ar"}},
		synth:       &stubSynth{},
		scratchDir:  t.TempDir(),
	}

	jwtSvc := service.NewJWTServiceWithStore("test-secret", time.Hour, 24*time.Hour, service.NewMemoryRefreshTokenStore())
	userSvc := service.NewUserService(logger, app.users, app.sender, jwtSvc, nil, "http://localhost:8080")
	assistant := service.NewAssistantService(app.llm, app.history, logger, m, 0)
	sessions := NewSessionManager(logger, jwtSvc, service.NewMemoryFlashStore(), false)

	scratch, err := voice.NewScratch(app.scratchDir, logger, m)
	if err != nil {
		t.Fatalf("scratch: %v", err)
	}
	voiceSvc := voice.NewService(scratch, stubTranscoder{}, app.transcriber, app.synth, m, logger, 1<<20)

	faqs := &mockFAQRepo{faqs: []domain.FAQ{
		{ID: "f1", Question: "كيف أجدد الهوية الوطنية؟", Answer: "عبر منصة أبشر."},
		{ID: "f2", Question: "ما هي مدة التجربة في العمل؟", Answer: "لا تزيد عن 180 يوماً."},
	}}

	router, err := NewRouter(RouterDeps{
		Logger:   logger,
		Metrics:  m,
		Sessions: sessions,
		JWT:      jwtSvc,
		Limiter:  limiter,
		Pages:    NewPageHandler(logger, userSvc, sessions),
		Auth:     NewAuthHandler(logger, userSvc, jwtSvc, sessions),
		Chat:     NewChatHandler(logger, assistant, app.history, sessions),
		Voice:    NewVoiceHandler(logger, voiceSvc, assistant, 1.0),
		Feedback: NewFeedbackHandler(logger, service.NewRatingService(app.ratings, logger), service.NewStaffService(app.staff, app.sender, "staff@example.com", logger), userSvc, sessions),
		FAQ:      NewFAQHandler(logger, service.NewFAQService(faqs, nil, logger), sessions),
		Ops:      NewOpsHandler(logger, nil, nil),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	app.router = router
	return app
}

// client conserva las cookies entre requests como un navegador.
type client struct {
	t       *testing.T
	app     *testApp
	cookies map[string]*http.Cookie
}

func (a *testApp) client(t *testing.T) *client {
	return &client{t: t, app: a, cookies: make(map[string]*http.Cookie)}
}

func (cl *client) do(req *http.Request) *httptest.ResponseRecorder {
	cl.t.Helper()
	for _, ck := range cl.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	cl.app.router.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 {
			delete(cl.cookies, ck.Name)
			continue
		}
		cl.cookies[ck.Name] = ck
	}
	return rec
}

func (cl *client) get(path string) *httptest.ResponseRecorder {
	return cl.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (cl *client) postForm(path string, form map[string]string) *httptest.ResponseRecorder {
	values := url.Values{}
	for k, v := range form {
		values.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return cl.do(req)
}

func (cl *client) postJSON(path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return cl.do(req)
}

func (cl *client) loginGuest() {
	cl.t.Helper()
	rec := cl.postForm("/guest-login", nil)
	if rec.Code != http.StatusFound {
		cl.t.Fatalf("expected guest login redirect, got %d", rec.Code)
	}
}

func (cl *client) login(identifier, password string) {
	cl.t.Helper()
	rec := cl.postForm("/login", map[string]string{"identifier": identifier, "password": password})
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/home" {
		cl.t.Fatalf("expected login redirect to /home, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	app := newTestApp(t)
	cl := app.client(t)

	rec := cl.get("/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = cl.get("/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestRouter_SessionCookieIssuedOnce(t *testing.T) {
	app := newTestApp(t)
	cl := app.client(t)

	cl.get("/")
	sid, ok := cl.cookies[sessionCookie]
	if !ok || sid.Value == "" {
		t.Fatalf("expected session cookie to be set")
	}
	if !sid.HttpOnly {
		t.Fatalf("expected session cookie to be HttpOnly")
	}

	rec := cl.get("/faqs")
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == sessionCookie {
			t.Fatalf("expected existing session to be reused, got new cookie %q", ck.Value)
		}
	}
}

func TestRouter_StaticAssets(t *testing.T) {
	app := newTestApp(t)
	rec := app.client(t).get("/static/js/chat.js")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouter_RateLimitIgnoresForwardedFor(t *testing.T) {
	app := newTestAppWithLimiter(t, service.NewRateLimiter(time.Minute, 1))

	allowed := 0
	for i, spoofed := range []string{"203.0.113.1", "203.0.113.2", "203.0.113.3", "203.0.113.4", "203.0.113.5"} {
		req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"سؤال"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", spoofed)
		req.RemoteAddr = "198.51.100.7:4000"
		rec := httptest.NewRecorder()
		app.router.ServeHTTP(rec, req)
		switch rec.Code {
		case http.StatusOK:
			allowed++
		case http.StatusTooManyRequests:
		default:
			t.Fatalf("request %d: unexpected status %d", i, rec.Code)
		}
	}
	if allowed != 1 {
		t.Fatalf("expected 1 request allowed for one remote address, got %d", allowed)
	}
}
