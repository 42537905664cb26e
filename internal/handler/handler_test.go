package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/oakdental/frontdesk/internal/config"
	"github.com/oakdental/frontdesk/internal/model"
	"github.com/oakdental/frontdesk/internal/notify"
	"github.com/oakdental/frontdesk/internal/server/middleware"
	"github.com/oakdental/frontdesk/internal/service"
	"github.com/oakdental/frontdesk/internal/store"
)

const (
	testJWTSecret = "test-secret-for-handler-tests"
	testEmail     = "admin@oakdental.example"
	testPassword  = "supersecretpassword"
)

// testEnv holds shared state for handler integration tests.
type testEnv struct {
	store    *store.Store
	auth     *service.AuthService
	tokens   *service.TokenVerifier
	notifier *notify.Recorder
	router   chi.Router
}

// newTestEnv wires the handlers to an in-memory store and mounts them the
// way the server does, with RequireAdmin guarding the moderation routes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.NewStore("sqlite", "")
	if err != nil {
		t.Fatalf("store.NewStore: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rec := &notify.Recorder{}
	cfg := config.Default().Auth
	cfg.BcryptCost = 4

	tokens := service.NewTokenVerifier(testJWTSecret)
	auth := service.NewAuthService(st, tokens, rec, rec, cfg, logger).
		WithCodeGenerator(func() (string, error) { return "123456", nil })
	desk := service.NewFrontDesk(st, rec, rec, logger)

	authH := NewAuthHandler(auth, logger)
	deskH := NewFrontDeskHandler(desk, logger)

	r := chi.NewRouter()
	r.Get("/openapi.json", NewOpenAPIHandler("test").ServeSpec)
	r.Route("/api", func(r chi.Router) {
		r.Post("/appointments", deskH.SubmitAppointment)
		r.Post("/messages", deskH.SubmitMessage)
		r.Post("/subscribers", deskH.Subscribe)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
			r.Post("/send-otp", authH.SendOTP)
			r.Post("/verify-otp", authH.VerifyOTP)
			r.Post("/reset-password", authH.ResetPassword)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin(tokens))
				r.Get("/profile", authH.Profile)
				r.Get("/appointments", deskH.ListAppointments)
				r.Get("/messages", deskH.ListMessages)
				r.Get("/subscribers", deskH.ListSubscribers)
				r.Post("/appointment/action", deskH.AppointmentAction)
				r.Post("/message/reply", deskH.ReplyMessage)
				r.Delete("/appointment/delete", deskH.DeleteAppointment)
				r.Delete("/message/delete", deskH.DeleteMessage)
			})
		})
	})

	return &testEnv{
		store:    st,
		auth:     auth,
		tokens:   tokens,
		notifier: rec,
		router:   r,
	}
}

// seedAdmin registers the default admin and returns a session token for it.
func (e *testEnv) seedAdmin(t *testing.T) string {
	t.Helper()
	_, err := e.auth.Register(context.Background(), service.RegisterInput{
		Name:     "Dr. Oak",
		Email:    testEmail,
		Password: testPassword,
		Phone:    "+15550100",
	})
	if err != nil {
		t.Fatalf("seedAdmin: %v", err)
	}
	res, err := e.auth.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("seedAdmin login: %v", err)
	}
	return res.Token
}

func (e *testEnv) seedAppointment(t *testing.T) *model.Appointment {
	t.Helper()
	appt := &model.Appointment{
		Name:  "Jane Doe",
		Email: "jane@example.com",
		Phone: "+15550123",
		Date:  "2026-04-02",
	}
	if err := e.store.CreateAppointment(context.Background(), appt); err != nil {
		t.Fatalf("seedAppointment: %v", err)
	}
	return appt
}

func (e *testEnv) seedMessage(t *testing.T) *model.Message {
	t.Helper()
	msg := &model.Message{FullName: "Jane Doe", Email: "jane@example.com", Message: "Do you open on Saturdays?"}
	if err := e.store.CreateMessage(context.Background(), msg); err != nil {
		t.Fatalf("seedMessage: %v", err)
	}
	return msg
}

// do executes an HTTP request against the test router and returns the recorder.
func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func toJSON(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(v); err != nil {
		t.Fatalf("toJSON: %v", err)
	}
	return buf
}

func assertStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Errorf("status = %d, want %d; body = %s", rr.Code, want, rr.Body.String())
	}
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decodeJSON: %v; body = %s", err, rr.Body.String())
	}
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, msg string) {
	t.Helper()
	assertStatus(t, rr, status)
	var resp model.ErrorResponse
	decodeJSON(t, rr, &resp)
	if resp.Error != msg {
		t.Errorf("error = %q, want %q", resp.Error, msg)
	}
}

// ─── Public forms ───────────────────────────────────────────────────────────

func TestSubmitAppointment(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/appointments", "", toJSON(t, map[string]string{
		"name":    "Jane Doe",
		"email":   "jane@example.com",
		"phone":   "+15550123",
		"date":    "2026-04-02",
		"message": "Cleaning please",
	}))
	assertStatus(t, rr, http.StatusCreated)

	var resp struct {
		Message     string            `json:"message"`
		Appointment model.Appointment `json:"appointment"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Message != "Appointment submitted successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Appointment.ID == 0 || resp.Appointment.Status != model.StatusPending {
		t.Errorf("appointment = %+v", resp.Appointment)
	}
}

func TestSubmitAppointmentValidation(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/appointments", "", toJSON(t, map[string]string{"name": "Jane"}))
	assertStatus(t, rr, http.StatusBadRequest)

	rr = env.do(t, "POST", "/api/appointments", "", strings.NewReader("{not json"))
	assertError(t, rr, http.StatusBadRequest, "Invalid request body")

	rr = env.do(t, "POST", "/api/appointments", "", toJSON(t, map[string]string{
		"name": "Jane", "email": "not-an-email", "phone": "1", "date": "2026-04-02",
	}))
	assertError(t, rr, http.StatusBadRequest, "Invalid email address")

	rr = env.do(t, "POST", "/api/appointments", "", toJSON(t, map[string]string{
		"name": "Jane", "email": "jane@example.com", "phone": "1", "date": "2026-04-02", "status": "accepted",
	}))
	assertError(t, rr, http.StatusBadRequest, "Invalid request body")
}

func TestSubmitMessage(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/messages", "", toJSON(t, map[string]string{
		"email":   "visitor@example.com",
		"message": "Hello",
	}))
	assertStatus(t, rr, http.StatusCreated)

	msgs, err := env.store.ListMessages(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 || msgs[0].FullName != "Anonymous" {
		t.Errorf("messages = %+v", msgs)
	}

	rr = env.do(t, "POST", "/api/messages", "", nil)
	assertStatus(t, rr, http.StatusBadRequest)
}

func TestSubscribeIdempotent(t *testing.T) {
	env := newTestEnv(t)

	for i, wantAlready := range []bool{false, true} {
		rr := env.do(t, "POST", "/api/subscribers", "", toJSON(t, map[string]string{"email": "news@example.com"}))
		assertStatus(t, rr, http.StatusOK)
		var resp struct {
			Message           string `json:"message"`
			AlreadySubscribed bool   `json:"already_subscribed"`
		}
		decodeJSON(t, rr, &resp)
		if resp.AlreadySubscribed != wantAlready {
			t.Errorf("call %d: already_subscribed = %v, want %v", i, resp.AlreadySubscribed, wantAlready)
		}
	}

	subs, _ := env.store.ListSubscribers(context.Background())
	if len(subs) != 1 {
		t.Errorf("subscribers = %d, want 1", len(subs))
	}
}

// ─── Auth ───────────────────────────────────────────────────────────────────

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	body := map[string]string{"name": "Dr. Oak", "email": testEmail, "password": testPassword}
	rr := env.do(t, "POST", "/api/admin/register", "", toJSON(t, body))
	assertStatus(t, rr, http.StatusCreated)

	rr = env.do(t, "POST", "/api/admin/register", "", toJSON(t, body))
	assertError(t, rr, http.StatusConflict, "Email already registered")

	rr = env.do(t, "POST", "/api/admin/login", "", toJSON(t, map[string]string{"email": testEmail, "password": testPassword}))
	assertStatus(t, rr, http.StatusOK)
	var login service.LoginResult
	decodeJSON(t, rr, &login)
	if login.Token == "" || login.Name != "Dr. Oak" || login.ExpiresIn != 3600 {
		t.Errorf("login = %+v", login)
	}

	rr = env.do(t, "GET", "/api/admin/profile", login.Token, nil)
	assertStatus(t, rr, http.StatusOK)
	var profile service.Profile
	decodeJSON(t, rr, &profile)
	if profile.Email != testEmail {
		t.Errorf("profile = %+v", profile)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.do(t, "POST", "/api/admin/login", "", toJSON(t, map[string]string{"email": testEmail, "password": "wrong"}))
	assertError(t, rr, http.StatusUnauthorized, "Invalid credentials")

	rr = env.do(t, "POST", "/api/admin/login", "", toJSON(t, map[string]string{"email": "nobody@example.com", "password": "x"}))
	assertError(t, rr, http.StatusUnauthorized, "Invalid credentials")

	rr = env.do(t, "POST", "/api/admin/login", "", toJSON(t, map[string]string{}))
	assertError(t, rr, http.StatusBadRequest, "Email and password are required")
}

func TestAdminRoutesRequireToken(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/api/admin/appointments", "", nil)
	assertError(t, rr, http.StatusUnauthorized, "Unauthorized")

	rr = env.do(t, "GET", "/api/admin/appointments", "garbage.token.value", nil)
	assertError(t, rr, http.StatusForbidden, "Invalid token")

	other := service.NewTokenVerifier("some-other-secret")
	forged, err := other.Issue(&model.Admin{ID: 1, Email: testEmail}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	rr = env.do(t, "GET", "/api/admin/messages", forged, nil)
	assertStatus(t, rr, http.StatusForbidden)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.do(t, "POST", "/api/admin/send-otp", "", toJSON(t, map[string]string{"email": "missing@example.com"}))
	assertError(t, rr, http.StatusNotFound, "Email not found")

	rr = env.do(t, "POST", "/api/admin/send-otp", "", toJSON(t, map[string]string{"email": testEmail}))
	assertStatus(t, rr, http.StatusOK)
	var sent struct {
		Message string `json:"message"`
		SMSSent bool   `json:"sms_sent"`
	}
	decodeJSON(t, rr, &sent)
	if sent.Message != "OTP sent" || !sent.SMSSent {
		t.Errorf("send-otp = %+v", sent)
	}
	if emails := env.notifier.Emails(); len(emails) != 1 || !strings.Contains(emails[0].HTML, "123456") {
		t.Fatalf("OTP email not recorded: %+v", emails)
	}

	rr = env.do(t, "POST", "/api/admin/verify-otp", "", toJSON(t, map[string]string{"email": testEmail, "otp": "000000"}))
	assertError(t, rr, http.StatusUnauthorized, "Invalid or expired OTP")

	rr = env.do(t, "POST", "/api/admin/verify-otp", "", toJSON(t, map[string]string{"email": testEmail, "otp": "123456"}))
	assertStatus(t, rr, http.StatusOK)
	var verified struct {
		Message    string `json:"message"`
		ResetToken string `json:"reset_token"`
		ExpiresIn  int64  `json:"expires_in"`
	}
	decodeJSON(t, rr, &verified)
	if verified.ResetToken == "" || verified.ExpiresIn <= 0 {
		t.Fatalf("verify-otp = %+v", verified)
	}

	reset := map[string]string{
		"email":           testEmail,
		"newPassword":     "brand-new-password",
		"confirmPassword": "brand-new-password",
		"resetToken":      verified.ResetToken,
	}
	rr = env.do(t, "POST", "/api/admin/reset-password", "", toJSON(t, reset))
	assertStatus(t, rr, http.StatusOK)

	// Reset tokens are single use.
	rr = env.do(t, "POST", "/api/admin/reset-password", "", toJSON(t, reset))
	assertError(t, rr, http.StatusUnauthorized, "Invalid or expired reset token")

	rr = env.do(t, "POST", "/api/admin/login", "", toJSON(t, map[string]string{"email": testEmail, "password": "brand-new-password"}))
	assertStatus(t, rr, http.StatusOK)
}

func TestResetPasswordMismatch(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t)

	rr := env.do(t, "POST", "/api/admin/reset-password", "", toJSON(t, map[string]string{
		"email":           testEmail,
		"newPassword":     "one",
		"confirmPassword": "two",
		"resetToken":      "abc",
	}))
	assertError(t, rr, http.StatusBadRequest, "Passwords do not match")
}

// ─── Moderation ─────────────────────────────────────────────────────────────

func TestListEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedAdmin(t)

	rr := env.do(t, "GET", "/api/admin/appointments", token, nil)
	assertStatus(t, rr, http.StatusOK)
	if body := strings.TrimSpace(rr.Body.String()); body != "[]" {
		t.Errorf("empty list body = %s, want []", body)
	}

	env.seedAppointment(t)
	env.seedMessage(t)
	if _, err := env.store.AddSubscriber(context.Background(), "news@example.com"); err != nil {
		t.Fatal(err)
	}

	var appts []model.Appointment
	rr = env.do(t, "GET", "/api/admin/appointments?status=pending", token, nil)
	assertStatus(t, rr, http.StatusOK)
	decodeJSON(t, rr, &appts)
	if len(appts) != 1 {
		t.Errorf("pending appointments = %d, want 1", len(appts))
	}

	rr = env.do(t, "GET", "/api/admin/appointments?status=accepted", token, nil)
	decodeJSON(t, rr, &appts)
	if len(appts) != 0 {
		t.Errorf("accepted appointments = %d, want 0", len(appts))
	}

	rr = env.do(t, "GET", "/api/admin/appointments?status=bogus", token, nil)
	assertError(t, rr, http.StatusBadRequest, "Invalid status filter")

	var msgs []model.Message
	rr = env.do(t, "GET", "/api/admin/messages", token, nil)
	decodeJSON(t, rr, &msgs)
	if len(msgs) != 1 {
		t.Errorf("messages = %d, want 1", len(msgs))
	}

	var subs []model.Subscriber
	rr = env.do(t, "GET", "/api/admin/subscribers", token, nil)
	decodeJSON(t, rr, &subs)
	if len(subs) != 1 {
		t.Errorf("subscribers = %d, want 1", len(subs))
	}
}

func TestAppointmentAction(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedAdmin(t)
	appt := env.seedAppointment(t)

	rr := env.do(t, "POST", "/api/admin/appointment/action", token, toJSON(t, map[string]interface{}{
		"id": appt.ID, "action": "cancel",
	}))
	assertError(t, rr, http.StatusBadRequest, "ID, action, and reason (for cancel) are required")

	rr = env.do(t, "POST", "/api/admin/appointment/action", token, toJSON(t, map[string]interface{}{
		"id": appt.ID, "action": "reschedule",
	}))
	assertError(t, rr, http.StatusBadRequest, "Invalid action")

	// Ids arrive as strings from some dashboard forms.
	rr = env.do(t, "POST", "/api/admin/appointment/action", token, strings.NewReader(
		`{"id": "`+strconv.FormatInt(appt.ID, 10)+`", "action": "accept"}`))
	assertStatus(t, rr, http.StatusOK)
	var resp struct {
		Message string `json:"message"`
		SMSSent bool   `json:"sms_sent"`
	}
	decodeJSON(t, rr, &resp)
	if resp.Message != "Appointment accepted successfully" || !resp.SMSSent {
		t.Errorf("action response = %+v", resp)
	}

	got, err := env.store.GetAppointment(context.Background(), appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusAccepted {
		t.Errorf("status = %q, want accepted", got.Status)
	}

	rr = env.do(t, "POST", "/api/admin/appointment/action", token, toJSON(t, map[string]interface{}{
		"id": 9999, "action": "accept",
	}))
	assertError(t, rr, http.StatusNotFound, "Appointment not found")
}

func TestReplyMessage(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedAdmin(t)
	msg := env.seedMessage(t)

	rr := env.do(t, "POST", "/api/admin/message/reply", token, toJSON(t, map[string]interface{}{
		"id": msg.ID, "reply": "Yes, **9 to 1** on Saturdays.",
	}))
	assertStatus(t, rr, http.StatusOK)

	emails := env.notifier.Emails()
	if len(emails) != 1 || emails[0].To != "jane@example.com" {
		t.Fatalf("reply email = %+v", emails)
	}
	if !strings.Contains(emails[0].HTML, "<strong>9 to 1</strong>") {
		t.Errorf("reply not rendered as markdown: %s", emails[0].HTML)
	}

	rr = env.do(t, "POST", "/api/admin/message/reply", token, toJSON(t, map[string]interface{}{"id": msg.ID}))
	assertError(t, rr, http.StatusBadRequest, "ID and reply are required")
}

func TestDeleteEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.seedAdmin(t)
	appt := env.seedAppointment(t)
	msg := env.seedMessage(t)

	rr := env.do(t, "DELETE", "/api/admin/appointment/delete", token, toJSON(t, map[string]int64{"id": appt.ID}))
	assertStatus(t, rr, http.StatusOK)
	rr = env.do(t, "DELETE", "/api/admin/appointment/delete", token, toJSON(t, map[string]int64{"id": appt.ID}))
	assertError(t, rr, http.StatusNotFound, "Appointment not found")

	rr = env.do(t, "DELETE", "/api/admin/message/delete", token, toJSON(t, map[string]int64{"id": msg.ID}))
	assertStatus(t, rr, http.StatusOK)
	rr = env.do(t, "DELETE", "/api/admin/message/delete", token, toJSON(t, map[string]int64{"id": msg.ID}))
	assertError(t, rr, http.StatusNotFound, "Message not found")

	rr = env.do(t, "DELETE", "/api/admin/message/delete", token, nil)
	assertError(t, rr, http.StatusBadRequest, "ID is required")
}

func TestOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "GET", "/openapi.json", "", nil)
	assertStatus(t, rr, http.StatusOK)
	var doc struct {
		OpenAPI string                     `json:"openapi"`
		Paths   map[string]json.RawMessage `json:"paths"`
		Servers []struct {
			URL string `json:"url"`
		} `json:"servers"`
	}
	decodeJSON(t, rr, &doc)
	if doc.OpenAPI != "3.1.0" {
		t.Errorf("openapi = %q", doc.OpenAPI)
	}
	if _, ok := doc.Paths["/api/admin/login"]; !ok {
		t.Error("document is missing /api/admin/login")
	}
	if len(doc.Servers) != 1 || doc.Servers[0].URL != "http://example.com" {
		t.Errorf("servers = %+v", doc.Servers)
	}
}
