package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	admin, err := env.auth.Register(ctx, RegisterInput{Name: "Dr. Oak", Email: " Oak@Clinic.test ", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if admin.Email != "oak@clinic.test" {
		t.Errorf("Email: got %q, want normalized", admin.Email)
	}
	if admin.PasswordHash == "s3cret-pass" || !strings.HasPrefix(admin.PasswordHash, "$2") {
		t.Errorf("password not hashed: %q", admin.PasswordHash)
	}

	res, err := env.auth.Login(ctx, "oak@clinic.test", "s3cret-pass")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Name != "Dr. Oak" {
		t.Errorf("Name: got %q", res.Name)
	}
	if res.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn: got %d, want 3600", res.ExpiresIn)
	}

	claims, err := env.tokens.Verify(res.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.ID != admin.ID {
		t.Errorf("claims ID: got %d, want %d", claims.ID, admin.ID)
	}
	if claims.Email != "oak@clinic.test" {
		t.Errorf("claims Email: got %q", claims.Email)
	}

	data, _ := json.Marshal(res)
	if strings.Contains(string(data), admin.PasswordHash) || strings.Contains(string(data), "s3cret-pass") {
		t.Errorf("login response leaks password material: %s", data)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")

	_, err := env.auth.Register(context.Background(), RegisterInput{Name: "Other", Email: "OAK@clinic.test", Password: "pw2"})
	assertKind(t, err, KindConflict)
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		in   RegisterInput
		msg  string
	}{
		{"missing name", RegisterInput{Email: "a@clinic.test", Password: "pw"}, "All fields are required"},
		{"missing email", RegisterInput{Name: "A", Password: "pw"}, "All fields are required"},
		{"missing password", RegisterInput{Name: "A", Email: "a@clinic.test"}, "All fields are required"},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "pw"}, "Invalid email address"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.auth.Register(context.Background(), tt.in)
			assertKind(t, err, KindValidation)
			var se *Error
			if errors.As(err, &se) && se.Message != tt.msg {
				t.Errorf("message: got %q, want %q", se.Message, tt.msg)
			}
		})
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "right", "")
	ctx := context.Background()

	_, err := env.auth.Login(ctx, "oak@clinic.test", "wrong")
	assertKind(t, err, KindAuth)

	_, err = env.auth.Login(ctx, "nobody@clinic.test", "right")
	assertKind(t, err, KindAuth)

	_, err = env.auth.Login(ctx, "", "right")
	assertKind(t, err, KindValidation)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	ctx := context.Background()

	res, _ := env.auth.Login(ctx, "oak@clinic.test", "pw")
	claims, _ := env.tokens.Verify(res.Token)

	p, err := env.auth.Profile(ctx, claims.ID)
	if err != nil {
		t.Fatalf("Profile: %v", err)
	}
	if p.Name != "Dr. Oak" || p.Email != "oak@clinic.test" {
		t.Errorf("profile: got %+v", p)
	}

	_, err = env.auth.Profile(ctx, 9999)
	assertKind(t, err, KindNotFound)
}

func TestRequestResetUnknownEmail(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.auth.RequestReset(context.Background(), "ghost@clinic.test")
	assertKind(t, err, KindNotFound)

	_, err = env.auth.RequestReset(context.Background(), "  ")
	assertKind(t, err, KindValidation)
}

func TestRequestResetDelivery(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "+15550001")
	env.auth.WithCodeGenerator(fixedCodes("424242"))

	res, err := env.auth.RequestReset(context.Background(), "oak@clinic.test")
	if err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if !res.SMSSent {
		t.Error("expected SMS to be sent to the admin phone")
	}

	emails := env.notifier.Emails()
	if len(emails) != 1 {
		t.Fatalf("got %d emails, want 1", len(emails))
	}
	if emails[0].To != "oak@clinic.test" || !strings.Contains(emails[0].HTML, "424242") {
		t.Errorf("email: %+v", emails[0])
	}
	texts := env.notifier.Texts()
	if len(texts) != 1 || texts[0].Text != "Your OAK Dental OTP is 424242. Valid for 5 minutes." {
		t.Errorf("texts: %+v", texts)
	}
}

func TestRequestResetSMSFailureIsNotFatal(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "+15550001")
	env.notifier.SMSErr = errors.New("gateway down")

	res, err := env.auth.RequestReset(context.Background(), "oak@clinic.test")
	if err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	if res.SMSSent {
		t.Error("SMSSent should be false when the gateway fails")
	}
}

func TestRequestResetMailFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	env.notifier.MailErr = errors.New("smtp down")

	_, err := env.auth.RequestReset(context.Background(), "oak@clinic.test")
	assertKind(t, err, KindInternal)
}

type denyAfter struct{ n int }

func (d *denyAfter) Allow(context.Context, string) bool {
	d.n--
	return d.n >= 0
}

func TestRequestResetRateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	env.auth.WithLimiter(&denyAfter{n: 1})
	ctx := context.Background()

	if _, err := env.auth.RequestReset(ctx, "oak@clinic.test"); err != nil {
		t.Fatalf("first RequestReset: %v", err)
	}
	_, err := env.auth.RequestReset(ctx, "oak@clinic.test")
	assertKind(t, err, KindRateLimited)
}

func TestOTPExpiryBoundary(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	env.auth.WithCodeGenerator(fixedCodes("123456"))
	ctx := context.Background()
	start := env.clock.Now()

	if _, err := env.auth.RequestReset(ctx, "oak@clinic.test"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	env.clock.Set(start.Add(4*time.Minute + 59*time.Second))
	if _, err := env.auth.VerifyReset(ctx, "oak@clinic.test", "123456"); err != nil {
		t.Fatalf("VerifyReset at T+4m59s: %v", err)
	}

	env.clock.Set(start)
	if _, err := env.auth.RequestReset(ctx, "oak@clinic.test"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	env.clock.Set(start.Add(5*time.Minute + time.Second))
	_, err := env.auth.VerifyReset(ctx, "oak@clinic.test", "123456")
	assertKind(t, err, KindAuth)
}

func TestVerifyResetInvalidatesAllCodes(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	env.auth.WithCodeGenerator(fixedCodes("111111", "222222"))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := env.auth.RequestReset(ctx, "oak@clinic.test"); err != nil {
			t.Fatalf("RequestReset: %v", err)
		}
	}

	if _, err := env.auth.VerifyReset(ctx, "oak@clinic.test", "222222"); err != nil {
		t.Fatalf("VerifyReset: %v", err)
	}
	_, err := env.auth.VerifyReset(ctx, "oak@clinic.test", "222222")
	assertKind(t, err, KindAuth)
	_, err = env.auth.VerifyReset(ctx, "oak@clinic.test", "111111")
	assertKind(t, err, KindAuth)
}

func TestVerifyResetConcurrentSingleUse(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		env.auth.WithCodeGenerator(fixedCodes("424242"))
		if _, err := env.auth.RequestReset(ctx, "oak@clinic.test"); err != nil {
			t.Fatalf("RequestReset: %v", err)
		}

		const workers = 8
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			grants int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := env.auth.VerifyReset(ctx, "oak@clinic.test", "424242")
				if err == nil {
					mu.Lock()
					grants++
					mu.Unlock()
					return
				}
				if !IsKind(err, KindAuth) {
					t.Errorf("VerifyReset: unexpected error %v", err)
				}
			}()
		}
		wg.Wait()

		if grants != 1 {
			t.Fatalf("round %d: %d reset grants issued for one code, want 1", round, grants)
		}
	}
}

func TestVerifyResetWrongEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	env.seedAdmin(t, "elm@clinic.test", "pw", "")
	env.auth.WithCodeGenerator(fixedCodes("123456"))
	ctx := context.Background()

	if _, err := env.auth.RequestReset(ctx, "oak@clinic.test"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	_, err := env.auth.VerifyReset(ctx, "elm@clinic.test", "123456")
	assertKind(t, err, KindAuth)

	_, err = env.auth.VerifyReset(ctx, "oak@clinic.test", "")
	assertKind(t, err, KindValidation)
}

// issueGrant runs the reset flow up to a verified code.
func issueGrant(t *testing.T, env *testEnv, email string) string {
	t.Helper()
	ctx := context.Background()
	env.auth.WithCodeGenerator(fixedCodes("654321"))
	if _, err := env.auth.RequestReset(ctx, email); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	grant, err := env.auth.VerifyReset(ctx, email, "654321")
	if err != nil {
		t.Fatalf("VerifyReset: %v", err)
	}
	if len(grant.Token) != 64 {
		t.Fatalf("reset token length: got %d, want 64", len(grant.Token))
	}
	return grant.Token
}

func TestResetPasswordFlow(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "old-pass", "")
	ctx := context.Background()
	token := issueGrant(t, env, "oak@clinic.test")

	in := ResetInput{Email: "oak@clinic.test", NewPassword: "new-pass", ConfirmPassword: "new-pass", ResetToken: token}
	if err := env.auth.ResetPassword(ctx, in); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := env.auth.Login(ctx, "oak@clinic.test", "new-pass"); err != nil {
		t.Errorf("Login with new password: %v", err)
	}
	if _, err := env.auth.Login(ctx, "oak@clinic.test", "old-pass"); err == nil {
		t.Error("old password should no longer work")
	}

	in.NewPassword, in.ConfirmPassword = "third", "third"
	err := env.auth.ResetPassword(ctx, in)
	assertKind(t, err, KindAuth)
}

func TestResetPasswordRequiresGrant(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	env.seedAdmin(t, "elm@clinic.test", "pw", "")
	ctx := context.Background()

	err := env.auth.ResetPassword(ctx, ResetInput{Email: "oak@clinic.test", NewPassword: "x", ConfirmPassword: "x", ResetToken: "bogus"})
	assertKind(t, err, KindAuth)

	err = env.auth.ResetPassword(ctx, ResetInput{Email: "oak@clinic.test", NewPassword: "x", ConfirmPassword: "x"})
	assertKind(t, err, KindValidation)

	token := issueGrant(t, env, "oak@clinic.test")
	err = env.auth.ResetPassword(ctx, ResetInput{Email: "elm@clinic.test", NewPassword: "x", ConfirmPassword: "x", ResetToken: token})
	assertKind(t, err, KindAuth)

	err = env.auth.ResetPassword(ctx, ResetInput{Email: "oak@clinic.test", NewPassword: "x", ConfirmPassword: "y", ResetToken: token})
	assertKind(t, err, KindValidation)

	err = env.auth.ResetPassword(ctx, ResetInput{Email: "ghost@clinic.test", NewPassword: "x", ConfirmPassword: "x", ResetToken: token})
	assertKind(t, err, KindNotFound)
}

func TestResetPasswordExpiredGrant(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	token := issueGrant(t, env, "oak@clinic.test")

	env.clock.Set(env.clock.Now().Add(11 * time.Minute))
	err := env.auth.ResetPassword(context.Background(), ResetInput{
		Email: "oak@clinic.test", NewPassword: "x", ConfirmPassword: "x", ResetToken: token,
	})
	assertKind(t, err, KindAuth)
}

func TestSetPassword(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	ctx := context.Background()

	if err := env.auth.SetPassword(ctx, "oak@clinic.test", "changed"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if _, err := env.auth.Login(ctx, "oak@clinic.test", "changed"); err != nil {
		t.Errorf("Login after SetPassword: %v", err)
	}
	assertKind(t, env.auth.SetPassword(ctx, "ghost@clinic.test", "x"), KindNotFound)
}

func TestPruneExpired(t *testing.T) {
	env := newTestEnv(t)
	env.seedAdmin(t, "oak@clinic.test", "pw", "")
	ctx := context.Background()

	if _, err := env.auth.RequestReset(ctx, "oak@clinic.test"); err != nil {
		t.Fatalf("RequestReset: %v", err)
	}
	env.clock.Set(env.clock.Now().Add(time.Hour))

	otps, grants, err := env.auth.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("PruneExpired: %v", err)
	}
	if otps != 1 || grants != 0 {
		t.Errorf("pruned otps=%d grants=%d, want 1 and 0", otps, grants)
	}
}

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode: %v", err)
		}
		if len(code) != 6 || code[0] == '0' {
			t.Fatalf("code %q outside 100000-999999", code)
		}
	}
}
