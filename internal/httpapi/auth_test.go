package httpapi

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"stockledger/internal/domain"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	nextID  int64
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.nextID++
	user.ID = 100 + s.nextID
	s.users[user.Username] = user
	return &user, nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func legacyManagerStore() *userStoreStub {
	return &userStoreStub{
		users: map[string]domain.UserAccount{
			"boss": {
				ID:        1,
				Username:  "boss",
				Name:      "Boss",
				Password:  "boss1234",
				Role:      domain.RoleManager,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	store := legacyManagerStore()

	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, store)
	_, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "boss",
		Password: "boss1234",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	users, err := store.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(users) != 1 {
		t.Fatalf("expected 1 user, got %d", len(users))
	}
	if !strings.HasPrefix(users[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", users[0].Password)
	}
}

func TestTokenCarriesAccount(t *testing.T) {
	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, legacyManagerStore())
	resp, err := manager.Login(context.Background(), domain.LoginRequest{Username: "BOSS", Password: "boss1234"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	account, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token failed: %v", err)
	}
	want := domain.Account{ID: 1, Name: "Boss", Role: domain.RoleManager}
	if account != want {
		t.Fatalf("expected %+v, got %+v", want, account)
	}
	if resp.Account != want {
		t.Fatalf("login response account mismatch: %+v", resp.Account)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	issuer := NewAuthManager(context.Background(), "secret-one", time.Hour, legacyManagerStore())
	verifier := NewAuthManager(context.Background(), "secret-two", time.Hour, nil)

	resp, err := issuer.Login(context.Background(), domain.LoginRequest{Username: "boss", Password: "boss1234"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestCreateAccountStoresPasswordHash(t *testing.T) {
	store := legacyManagerStore()
	manager := NewAuthManager(context.Background(), "test-secret", time.Hour, store)

	created, err := manager.CreateAccount(context.Background(), AccountCreateRequest{
		Username: "newhire",
		Name:     "New Hire",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	if created.Role != domain.RoleEmployee {
		t.Fatalf("expected default role EMPLOYEE, got %s", created.Role)
	}
	if created.ID == 0 {
		t.Fatalf("expected store-assigned id")
	}

	saved := store.users["newhire"]
	if !strings.HasPrefix(saved.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", saved.Password)
	}

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "newhire", Password: "pass1234"}); err != nil {
		t.Fatalf("login with new account failed: %v", err)
	}

	if _, err := manager.CreateAccount(context.Background(), AccountCreateRequest{Username: "newhire", Password: "pass1234"}); err == nil {
		t.Fatalf("expected duplicate username to be rejected")
	}
	if _, err := manager.CreateAccount(context.Background(), AccountCreateRequest{Username: "other", Password: "pass1234", Role: "owner"}); err == nil {
		t.Fatalf("expected unknown role to be rejected")
	}
}

func TestCreateAccountConcurrentWithLogin(t *testing.T) {
	stub := &userStoreStub{}
	auth := NewAuthManager(context.Background(), "0123456789abcdef0123456789abcdef", time.Hour, stub)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			view, err := auth.CreateAccount(context.Background(), AccountCreateRequest{
				Username: fmt.Sprintf("clerk%02d", i),
				Password: "secret123",
			})
			if err != nil {
				errs <- err
				return
			}
			if view.Username != fmt.Sprintf("clerk%02d", i) || view.ID == 0 {
				errs <- fmt.Errorf("unexpected view %+v", view)
			}
		}()
		go func() {
			defer wg.Done()
			_, _ = auth.Login(context.Background(), domain.LoginRequest{Username: "nobody", Password: "x"})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	if got := len(auth.ListAccounts(context.Background())); got != 8 {
		t.Fatalf("expected 8 accounts, got %d", got)
	}
}
