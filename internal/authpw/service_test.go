package authpw

import (
	"context"
	"errors"
	"testing"
	"time"

	"folio/api/internal/store"
)

type resetRecord struct {
	userID    string
	expiresAt time.Time
	used      bool
}

// memUserStore is an in-memory UserStore for tests.
type memUserStore struct {
	users      map[string]store.User
	emailIndex map[string]string
	resets     map[string]resetRecord
}

func newMemUserStore() *memUserStore {
	return &memUserStore{
		users:      make(map[string]store.User),
		emailIndex: make(map[string]string),
		resets:     make(map[string]resetRecord),
	}
}

func (m *memUserStore) GetUserByEmail(_ context.Context, email string) (store.User, error) {
	if id, ok := m.emailIndex[email]; ok {
		return m.users[id], nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *memUserStore) GetUserByID(_ context.Context, id string) (store.User, error) {
	if user, ok := m.users[id]; ok {
		return user, nil
	}
	return store.User{}, errors.New("user not found")
}

func (m *memUserStore) CreateUser(_ context.Context, user store.User) error {
	if _, exists := m.emailIndex[user.Email]; exists {
		return errors.New("duplicate email")
	}
	m.users[user.ID] = user
	m.emailIndex[user.Email] = user.ID
	return nil
}

func (m *memUserStore) UpdateUserVerificationToken(_ context.Context, userID, token string, expiresAt time.Time) error {
	user, ok := m.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.VerificationToken = token
	user.VerificationExpiresAt = &expiresAt
	m.users[userID] = user
	return nil
}

func (m *memUserStore) VerifyUserEmail(_ context.Context, token string) error {
	for id, user := range m.users {
		if user.VerificationToken == token && user.VerificationExpiresAt != nil && user.VerificationExpiresAt.After(time.Now()) {
			user.IsEmailVerified = true
			user.VerificationToken = ""
			m.users[id] = user
			return nil
		}
	}
	return errors.New("invalid token")
}

func (m *memUserStore) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	user, ok := m.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	user.PasswordHash = passwordHash
	m.users[userID] = user
	return nil
}

func (m *memUserStore) CreatePasswordReset(_ context.Context, userID, token string, expiresAt time.Time) error {
	m.resets[token] = resetRecord{userID: userID, expiresAt: expiresAt}
	return nil
}

func (m *memUserStore) GetPasswordReset(_ context.Context, token string) (string, error) {
	rec, ok := m.resets[token]
	if !ok || rec.used || rec.expiresAt.Before(time.Now()) {
		return "", errors.New("invalid token")
	}
	return rec.userID, nil
}

func (m *memUserStore) MarkPasswordResetUsed(_ context.Context, token string) error {
	rec, ok := m.resets[token]
	if !ok {
		return errors.New("invalid token")
	}
	rec.used = true
	m.resets[token] = rec
	return nil
}

func signUp(t *testing.T, svc *Service, email string) *SignUpResponse {
	t.Helper()
	resp, err := svc.SignUp(context.Background(), SignUpRequest{
		Email:       email,
		Password:    "password123",
		DisplayName: "Jamie",
	})
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}
	return resp
}

func TestSignUpAndVerifyAndSignIn(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemUserStore())

	resp := signUp(t, svc, "jamie@example.com")
	if !resp.RequiresEmailVerify || resp.VerificationToken == "" {
		t.Fatalf("unexpected sign-up response: %+v", resp)
	}

	// Before verification sign-in flags the pending verify.
	signIn, err := svc.SignIn(ctx, SignInRequest{Email: "jamie@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if !signIn.RequiresVerify {
		t.Fatal("expected RequiresVerify before email verification")
	}

	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	signIn, err = svc.SignIn(ctx, SignInRequest{Email: "JAMIE@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("SignIn after verify: %v", err)
	}
	if signIn.RequiresVerify {
		t.Fatal("verified account should sign in cleanly")
	}
}

func TestSignUpRejectsWeakPasswordAndDuplicates(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemUserStore())

	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "short", DisplayName: "A"}); err == nil {
		t.Fatal("expected weak-password rejection")
	}

	signUp(t, svc, "a@b.c")
	if _, err := svc.SignUp(ctx, SignUpRequest{Email: "a@b.c", Password: "password123", DisplayName: "A"}); err == nil {
		t.Fatal("expected duplicate-email rejection")
	}
}

func TestSignInWrongPassword(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemUserStore())
	resp := signUp(t, svc, "a@b.c")
	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@b.c", Password: "wrong-password"}); err == nil {
		t.Fatal("expected wrong-password rejection")
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "nobody@b.c", Password: "password123"}); err == nil {
		t.Fatal("expected unknown-email rejection")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ctx := context.Background()
	storeImpl := newMemUserStore()
	svc := NewService(storeImpl)
	resp := signUp(t, svc, "a@b.c")
	if err := svc.VerifyEmail(ctx, resp.VerificationToken); err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}

	token, err := svc.RequestPasswordReset(ctx, "a@b.c")
	if err != nil || token == "" {
		t.Fatalf("RequestPasswordReset = %q, %v", token, err)
	}

	// Unknown email: empty token, no error, no signal to the caller.
	silent, err := svc.RequestPasswordReset(ctx, "nobody@b.c")
	if err != nil || silent != "" {
		t.Fatalf("unknown-email reset = %q, %v; want empty, nil", silent, err)
	}

	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "newpassword456"}); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@b.c", Password: "newpassword456"}); err != nil {
		t.Fatalf("SignIn with new password: %v", err)
	}
	if _, err := svc.SignIn(ctx, SignInRequest{Email: "a@b.c", Password: "password123"}); err == nil {
		t.Fatal("old password should no longer work")
	}

	// The token is single-use.
	if err := svc.ResetPassword(ctx, ResetPasswordRequest{Token: token, NewPassword: "anotherpass789"}); err == nil {
		t.Fatal("expected used token rejection")
	}
}
