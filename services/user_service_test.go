package services

import (
	"errors"
	"microfinance/models"
	"testing"
)

func TestUserServiceFirstUserIsAdmin(t *testing.T) {
	s := NewUserService(newTestDB(t))

	admin, err := s.CreateUser(CreateUserRequest{FirstName: "Grace", LastName: "Achieng", Email: "grace@mfi.test", Password: "Secret123!"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if admin.Role != models.RoleAdmin {
		t.Errorf("first user role: got %s", admin.Role)
	}

	officer, err := s.CreateUser(CreateUserRequest{FirstName: "Peter", LastName: "Okello", Email: "peter@mfi.test", Password: "Secret123!"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if officer.Role != models.RoleLoanOfficer {
		t.Errorf("second user role: got %s", officer.Role)
	}
	if officer.Password == "Secret123!" {
		t.Error("password stored in plain text")
	}
}

func TestUserServiceDuplicateEmail(t *testing.T) {
	s := NewUserService(newTestDB(t))

	req := CreateUserRequest{FirstName: "Grace", LastName: "Achieng", Email: "grace@mfi.test", Password: "Secret123!"}
	if _, err := s.CreateUser(req); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	req.Email = "GRACE@mfi.test"
	if _, err := s.CreateUser(req); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestUserServiceValidation(t *testing.T) {
	s := NewUserService(newTestDB(t))

	_, err := s.CreateUser(CreateUserRequest{FirstName: "G", Email: "not-an-email", Password: "short"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUserServiceAuthenticate(t *testing.T) {
	s := NewUserService(newTestDB(t))
	if _, err := s.CreateUser(CreateUserRequest{FirstName: "Grace", LastName: "Achieng", Email: "grace@mfi.test", Password: "Secret123!"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	user, err := s.Authenticate(" grace@mfi.test ", "Secret123!")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if user.Email != "grace@mfi.test" {
		t.Errorf("email: got %s", user.Email)
	}

	if _, err := s.Authenticate("grace@mfi.test", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: got %v", err)
	}
	if _, err := s.Authenticate("nobody@mfi.test", "Secret123!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: got %v", err)
	}
}

func TestUserServiceSetRole(t *testing.T) {
	s := NewUserService(newTestDB(t))
	_, _ = s.CreateUser(CreateUserRequest{FirstName: "Grace", LastName: "Achieng", Email: "grace@mfi.test", Password: "Secret123!"})
	officer, _ := s.CreateUser(CreateUserRequest{FirstName: "Peter", LastName: "Okello", Email: "peter@mfi.test", Password: "Secret123!"})

	updated, err := s.SetRole(officer.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("SetRole: %v", err)
	}
	if updated.Role != models.RoleAdmin {
		t.Errorf("role: got %s", updated.Role)
	}

	if _, err := s.SetRole(officer.ID, models.Role("CASHIER")); !errors.Is(err, ErrValidation) {
		t.Errorf("unknown role: got %v", err)
	}
	if _, err := s.SetRole(999, models.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown user: got %v", err)
	}

	users, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 2 || users[1].Role != models.RoleAdmin {
		t.Errorf("unexpected users %+v", users)
	}
}
