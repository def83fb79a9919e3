package service

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func newUserTestService() (UserService, *fakeUserRepo, *fakeAuditRepo) {
	userRepo := newFakeUserRepo()
	audit := &fakeAuditRepo{}
	return NewUserService(userRepo, audit), userRepo, audit
}

func seedLoginUser(t *testing.T, repo *fakeUserRepo, username, password string, role model.Role, active bool) *model.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user := &model.User{
		ID:       uuid.New(),
		Username: username,
		Email:    username + "@example.com",
		Password: string(hashed),
		Role:     role,
		IsActive: active,
	}
	repo.users[user.ID.String()] = user
	return user
}

func TestLogin(t *testing.T) {
	svc, repo, _ := newUserTestService()
	seedLoginUser(t, repo, "jsmith", "secret123", model.RoleSupervisor, true)
	ctx := context.Background()

	tokens, err := svc.Login(ctx, LoginUserRequest{Username: "jsmith", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if tokens.Token == "" || tokens.RefreshToken == "" {
		t.Error("Login returned empty tokens")
	}
	if len(repo.tokens) != 1 {
		t.Errorf("stored refresh tokens = %d, want 1", len(repo.tokens))
	}

	if _, err := svc.Login(ctx, LoginUserRequest{Username: "jsmith", Password: "wrong"}); err == nil {
		t.Error("Login with wrong password succeeded")
	}
	if _, err := svc.Login(ctx, LoginUserRequest{Username: "ghost", Password: "secret123"}); err == nil {
		t.Error("Login with unknown username succeeded")
	}
}

func TestLoginDeactivatedUser(t *testing.T) {
	svc, repo, _ := newUserTestService()
	seedLoginUser(t, repo, "gone", "secret123", model.RoleOperator, false)

	if _, err := svc.Login(context.Background(), LoginUserRequest{Username: "gone", Password: "secret123"}); err == nil {
		t.Error("Login as deactivated user succeeded")
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	svc, repo, _ := newUserTestService()
	seedLoginUser(t, repo, "jsmith", "secret123", model.RoleEngineer, true)
	ctx := context.Background()

	first, err := svc.Login(ctx, LoginUserRequest{Username: "jsmith", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	second, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token was not rotated")
	}

	// The consumed token is dead.
	if _, err := svc.RefreshToken(ctx, RefreshTokenRequest{RefreshToken: first.RefreshToken}); err == nil {
		t.Error("replayed refresh token was accepted")
	}
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	svc, _, _ := newUserTestService()
	actor := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}

	_, err := svc.CreateUser(context.Background(), actor, CreateUserRequest{
		Username: "newuser",
		Email:    "new@example.com",
		Password: "secret123",
		Role:     "Wizard",
	})
	if err == nil {
		t.Error("CreateUser with unknown role succeeded")
	}
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	svc, repo, _ := newUserTestService()
	seedLoginUser(t, repo, "jsmith", "secret123", model.RoleOperator, true)
	actor := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, actor, CreateUserRequest{
		Username: "jsmith",
		Email:    "other@example.com",
		Password: "secret123",
		Role:     string(model.RoleOperator),
	})
	if err == nil {
		t.Error("CreateUser with duplicate username succeeded")
	}

	_, err = svc.CreateUser(ctx, actor, CreateUserRequest{
		Username: "other",
		Email:    "jsmith@example.com",
		Password: "secret123",
		Role:     string(model.RoleOperator),
	})
	if err == nil {
		t.Error("CreateUser with duplicate email succeeded")
	}
}

func TestDeactivateUserRevokesSessions(t *testing.T) {
	svc, repo, _ := newUserTestService()
	user := seedLoginUser(t, repo, "jsmith", "secret123", model.RoleManager, true)
	actor := Actor{ID: uuid.NewString(), Role: model.RoleAdmin}
	ctx := context.Background()

	if _, err := svc.Login(ctx, LoginUserRequest{Username: "jsmith", Password: "secret123"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.DeactivateUser(ctx, actor, user.ID.String()); err != nil {
		t.Fatalf("DeactivateUser: %v", err)
	}

	if repo.users[user.ID.String()].IsActive {
		t.Error("user still active after deactivation")
	}
	if len(repo.tokens) != 0 {
		t.Errorf("refresh tokens remaining = %d, want 0", len(repo.tokens))
	}
}

func TestAssignableUsers(t *testing.T) {
	svc, repo, _ := newUserTestService()
	repo.addUser(model.RoleOperator, true)
	repo.addUser(model.RoleSupervisor, true)
	engineerID := repo.addUser(model.RoleEngineer, true)
	repo.addUser(model.RoleManager, true)
	repo.addUser(model.RoleAdmin, true)
	repo.addUser(model.RoleAdmin, false) // inactive, never assignable
	ctx := context.Background()

	// Engineer (level 3) can hand work to Engineer, Manager, Admin.
	got, err := svc.AssignableUsers(ctx, model.RoleEngineer)
	if err != nil {
		t.Fatalf("AssignableUsers: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("assignable for Engineer = %d users, want 3", len(got))
	}
	for _, u := range got {
		if u.RoleLevel < model.RoleEngineer.Level() {
			t.Errorf("assignable user %s has level %d, below engineer", u.ID, u.RoleLevel)
		}
	}

	// Operator sees the whole active hierarchy.
	got, err = svc.AssignableUsers(ctx, model.RoleOperator)
	if err != nil {
		t.Fatalf("AssignableUsers: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("assignable for Operator = %d users, want 5", len(got))
	}

	// Admin only to the top rank.
	got, err = svc.AssignableUsers(ctx, model.RoleAdmin)
	if err != nil {
		t.Fatalf("AssignableUsers: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("assignable for Admin = %d users, want 1", len(got))
	}

	found := false
	for _, u := range got {
		if u.ID.String() == engineerID {
			found = true
		}
	}
	if found {
		t.Error("Engineer listed as assignable for Admin")
	}
}
