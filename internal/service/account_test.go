package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/watchlist-kata/moviepicker/internal/repository"
	"github.com/watchlist-kata/moviepicker/internal/session"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSessions records what the service did to the client's session.
type fakeSessions struct {
	mu      sync.Mutex
	current *session.Identity
	ended   bool
	err     error
}

func (f *fakeSessions) Start(id session.Identity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.current = &id
	return nil
}

func (f *fakeSessions) End() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = nil
	f.ended = true
}

type fakeIDP struct {
	email string
	err   error
}

func (f *fakeIDP) AuthCodeURL(state string) string { return "https://idp.example/auth?state=" + state }

func (f *fakeIDP) Exchange(_ context.Context, code string) (string, error) {
	return f.email, f.err
}

func newAccount(idp IdentityProvider) (*AccountService, *repository.MemoryStore) {
	store := repository.NewMemoryStore()
	return NewAccountService(store, idp, discardLogger()).WithBcryptCost(bcrypt.MinCost), store
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newAccount(nil)
	tests := []struct {
		name     string
		email    string
		password string
		want     error
	}{
		{"missing email", "", "secret1", ErrMissingField},
		{"blank email", "   ", "secret1", ErrMissingField},
		{"missing password", "a@b.com", "", ErrMissingField},
		{"short password", "a@b.com", "12345", ErrPasswordTooShort},
		{"short multibyte password", "a@b.com", "пар0л", ErrPasswordTooShort},
		{"long password", "a@b.com", strings.Repeat("x", 73), ErrPasswordTooLong},
		{"no at", "ab.com", "secret1", ErrMalformedEmail},
		{"no tld", "a@b", "secret1", ErrMalformedEmail},
		{"short tld", "a@b.c", "secret1", ErrMalformedEmail},
		{"bad local part", "a!x@b.com", "secret1", ErrMalformedEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), tt.email, tt.password)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Signup() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Signup() error %v is not a validation error", err)
			}
		})
	}
}

func TestSignupStoresHashAndRejectsDuplicates(t *testing.T) {
	svc, store := newAccount(nil)
	ctx := context.Background()

	u, err := svc.Signup(ctx, "  A@B.com ", "secret1")
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if u.Email != "a@b.com" {
		t.Errorf("Email = %q, want a@b.com", u.Email)
	}

	stored, _ := store.FindByEmail(ctx, "a@b.com")
	if stored.PwHash == "secret1" || bcrypt.CompareHashAndPassword([]byte(stored.PwHash), []byte("secret1")) != nil {
		t.Error("stored hash does not verify the password or is plaintext")
	}

	for _, email := range []string{"a@b.com", "A@B.COM"} {
		if _, err := svc.Signup(ctx, email, "another"); !errors.Is(err, ErrConflict) {
			t.Errorf("Signup(%q) error = %v, want %v", email, err, ErrConflict)
		}
	}
}

func TestLogin(t *testing.T) {
	svc, _ := newAccount(nil)
	ctx := context.Background()
	if _, err := svc.Signup(ctx, "a@b.com", "secret1"); err != nil {
		t.Fatalf("Signup() error = %v", err)
	}

	t.Run("success", func(t *testing.T) {
		sess := &fakeSessions{}
		u, err := svc.Login(ctx, sess, "A@b.com", "secret1")
		if err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		if sess.current == nil || sess.current.UserID != u.ID || sess.current.Email != "a@b.com" {
			t.Fatalf("session = %+v, want user %d", sess.current, u.ID)
		}
	})

	t.Run("wrong password and unknown email are indistinguishable", func(t *testing.T) {
		sessA, sessB := &fakeSessions{}, &fakeSessions{}
		_, errA := svc.Login(ctx, sessA, "a@b.com", "wrong-pass")
		_, errB := svc.Login(ctx, sessB, "nobody@b.com", "secret1")
		if !errors.Is(errA, ErrUnauthorized) || !errors.Is(errB, ErrUnauthorized) {
			t.Fatalf("errors = %v / %v, want %v", errA, errB, ErrUnauthorized)
		}
		if errA.Error() != errB.Error() {
			t.Errorf("error texts differ: %q vs %q", errA, errB)
		}
		if sessA.current != nil || sessB.current != nil {
			t.Error("session started on failed login")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		if _, err := svc.Login(ctx, &fakeSessions{}, "", "x"); !errors.Is(err, ErrMissingField) {
			t.Errorf("Login() error = %v, want %v", err, ErrMissingField)
		}
	})

	t.Run("session failure", func(t *testing.T) {
		boom := errors.New("cookie encode failed")
		if _, err := svc.Login(ctx, &fakeSessions{err: boom}, "a@b.com", "secret1"); !errors.Is(err, boom) {
			t.Errorf("Login() error = %v, want %v", err, boom)
		}
	})
}

func TestOAuthLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("disabled", func(t *testing.T) {
		svc, _ := newAccount(nil)
		if svc.OAuthEnabled() {
			t.Fatal("OAuthEnabled() = true without provider")
		}
		if _, err := svc.OAuthURL("s"); !errors.Is(err, ErrOAuthDisabled) {
			t.Errorf("OAuthURL() error = %v", err)
		}
		if _, err := svc.OAuthLogin(ctx, &fakeSessions{}, "code"); !errors.Is(err, ErrOAuthDisabled) {
			t.Errorf("OAuthLogin() error = %v", err)
		}
	})

	t.Run("first login creates provider-only user", func(t *testing.T) {
		svc, store := newAccount(&fakeIDP{email: "New@Example.com"})
		sess := &fakeSessions{}
		u, err := svc.OAuthLogin(ctx, sess, "code")
		if err != nil {
			t.Fatalf("OAuthLogin() error = %v", err)
		}
		if !u.IsOAuthOnly() || u.Email != "new@example.com" {
			t.Errorf("user = %+v", u)
		}
		if sess.current == nil || sess.current.UserID != u.ID {
			t.Errorf("session = %+v", sess.current)
		}

		// Такой пользователь не может войти по паролю, даже угадав значение-маркер
		for _, pw := range []string{repository.OAuthPasswordSentinel, "anything"} {
			if _, err := svc.Login(ctx, &fakeSessions{}, "new@example.com", pw); !errors.Is(err, ErrUnauthorized) {
				t.Errorf("Login(%q) error = %v, want %v", pw, err, ErrUnauthorized)
			}
		}

		again, err := svc.OAuthLogin(ctx, &fakeSessions{}, "code")
		if err != nil || again.ID != u.ID {
			t.Fatalf("second OAuthLogin() = %+v, %v", again, err)
		}
		if _, err := store.FindByID(ctx, u.ID); err != nil {
			t.Errorf("FindByID() error = %v", err)
		}
	})

	t.Run("existing password user keeps password", func(t *testing.T) {
		svc, _ := newAccount(&fakeIDP{email: "a@b.com"})
		if _, err := svc.Signup(ctx, "a@b.com", "secret1"); err != nil {
			t.Fatalf("Signup() error = %v", err)
		}
		if _, err := svc.OAuthLogin(ctx, &fakeSessions{}, "code"); err != nil {
			t.Fatalf("OAuthLogin() error = %v", err)
		}
		if _, err := svc.Login(ctx, &fakeSessions{}, "a@b.com", "secret1"); err != nil {
			t.Errorf("password login after oauth error = %v", err)
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		svc, _ := newAccount(&fakeIDP{err: errors.New("invalid_grant")})
		sess := &fakeSessions{}
		if _, err := svc.OAuthLogin(ctx, sess, "code"); !errors.Is(err, ErrOAuth) {
			t.Fatalf("OAuthLogin() error = %v, want %v", err, ErrOAuth)
		}
		if sess.current != nil {
			t.Error("session started after failed exchange")
		}
	})

	t.Run("no email claim", func(t *testing.T) {
		svc, _ := newAccount(&fakeIDP{email: "  "})
		if _, err := svc.OAuthLogin(ctx, &fakeSessions{}, "code"); !errors.Is(err, ErrOAuth) {
			t.Fatalf("OAuthLogin() error = %v, want %v", err, ErrOAuth)
		}
	})

	t.Run("missing code", func(t *testing.T) {
		svc, _ := newAccount(&fakeIDP{email: "a@b.com"})
		if _, err := svc.OAuthLogin(ctx, &fakeSessions{}, ""); !errors.Is(err, ErrMissingField) {
			t.Fatalf("OAuthLogin() error = %v, want %v", err, ErrMissingField)
		}
	})

	t.Run("concurrent first logins create one user", func(t *testing.T) {
		svc, _ := newAccount(&fakeIDP{email: "race@example.com"})
		ids := make(chan uint, 16)
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				u, err := svc.OAuthLogin(ctx, &fakeSessions{}, "code")
				if err != nil {
					t.Errorf("OAuthLogin() error = %v", err)
					return
				}
				ids <- u.ID
			}()
		}
		wg.Wait()
		close(ids)
		first := uint(0)
		for id := range ids {
			if first == 0 {
				first = id
			} else if id != first {
				t.Fatalf("got user IDs %d and %d, want one user", first, id)
			}
		}
	})
}

func TestLogoutAndWhoAmI(t *testing.T) {
	svc, _ := newAccount(nil)

	if me := svc.WhoAmI(context.Background()); me.Authenticated || me.Email != "" {
		t.Errorf("WhoAmI() anonymous = %+v", me)
	}

	ctx := session.NewContext(context.Background(), session.Identity{UserID: 1, Email: "a@b.com"})
	if me := svc.WhoAmI(ctx); !me.Authenticated || me.Email != "a@b.com" {
		t.Errorf("WhoAmI() = %+v", me)
	}

	sess := &fakeSessions{}
	svc.Logout(ctx, sess)
	if !sess.ended {
		t.Error("Logout() did not end the session")
	}

	anon := &fakeSessions{}
	svc.Logout(context.Background(), anon)
	if !anon.ended {
		t.Error("Logout() without session did not clear state")
	}
}
