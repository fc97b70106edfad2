package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/studyforge/studyforge-backend/internal/platform/apierr"
	"github.com/studyforge/studyforge-backend/internal/repos"
	"github.com/studyforge/studyforge-backend/internal/requestdata"
)

func newAuthService(t *testing.T, db *gorm.DB) AuthService {
	t.Helper()
	log := newTestLogger(t)
	return NewAuthService(db, log,
		repos.NewUserRepo(db, log),
		repos.NewUserTokenRepo(db, log),
		"test-secret",
		time.Hour,
		24*time.Hour,
	)
}

func TestRegisterAndLogin(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice@Example.com", "supersecret", "Alice")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email = %q, want lowercased", user.Email)
	}
	if user.Password == "supersecret" {
		t.Fatal("password stored in plain text")
	}

	access, refresh, err := svc.Login(ctx, "alice@example.com", "supersecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if access == "" || refresh == "" {
		t.Fatal("empty tokens")
	}

	authedCtx, err := svc.SetContextFromToken(ctx, access)
	if err != nil {
		t.Fatalf("SetContextFromToken: %v", err)
	}
	rd := requestdata.GetRequestData(authedCtx)
	if rd == nil || rd.UserID != user.ID {
		t.Fatalf("context identity = %+v, want user %s", rd, user.ID)
	}
}

func TestRegister_Validation(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)
	ctx := context.Background()

	var apiErr *apierr.Error
	_, err := svc.Register(ctx, "not-an-email", "supersecret", "X")
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_email" {
		t.Fatalf("error = %v, want invalid_email", err)
	}
	_, err = svc.Register(ctx, "x@example.com", "short", "X")
	if !errors.As(err, &apiErr) || apiErr.Code != "password_too_short" {
		t.Fatalf("error = %v, want password_too_short", err)
	}

	if _, err := svc.Register(ctx, "x@example.com", "supersecret", "X"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err = svc.Register(ctx, "X@example.com", "supersecret", "X")
	if !errors.As(err, &apiErr) || apiErr.Code != "email_taken" {
		t.Fatalf("error = %v, want email_taken", err)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "bob@example.com", "supersecret", "Bob"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var apiErr *apierr.Error
	_, _, err := svc.Login(ctx, "bob@example.com", "wrongpassword")
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_credentials" {
		t.Fatalf("error = %v, want invalid_credentials", err)
	}
	_, _, err = svc.Login(ctx, "nobody@example.com", "supersecret")
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_credentials" {
		t.Fatalf("error = %v, want invalid_credentials", err)
	}
}

func TestRefresh_RotatesToken(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "carol@example.com", "supersecret", "Carol"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, refresh, err := svc.Login(ctx, "carol@example.com", "supersecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	access2, refresh2, err := svc.Refresh(ctx, refresh)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if access2 == "" || refresh2 == "" || refresh2 == refresh {
		t.Fatal("refresh did not rotate the token")
	}

	// The old refresh token is dead after rotation.
	var apiErr *apierr.Error
	_, _, err = svc.Refresh(ctx, refresh)
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_refresh_token" {
		t.Fatalf("error = %v, want invalid_refresh_token", err)
	}
}

func TestLogout_RevokesRefreshTokens(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)
	ctx := context.Background()

	user, err := svc.Register(ctx, "dave@example.com", "supersecret", "Dave")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, refresh, err := svc.Login(ctx, "dave@example.com", "supersecret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	authedCtx := requestdata.WithRequestData(ctx, &requestdata.RequestData{UserID: user.ID})
	if err := svc.Logout(authedCtx); err != nil {
		t.Fatalf("Logout: %v", err)
	}

	var apiErr *apierr.Error
	_, _, err = svc.Refresh(ctx, refresh)
	if !errors.As(err, &apiErr) || apiErr.Code != "invalid_refresh_token" {
		t.Fatalf("error = %v, want invalid_refresh_token after logout", err)
	}
}

func TestSetContextFromToken_RejectsForgedToken(t *testing.T) {
	db := newTestDB(t)
	svc := newAuthService(t, db)
	ctx := context.Background()

	log := newTestLogger(t)
	other := NewAuthService(db, log,
		repos.NewUserRepo(db, log),
		repos.NewUserTokenRepo(db, log),
		"different-secret", time.Hour, 24*time.Hour)

	forged, err := other.(*authService).generateAccessToken(uuid.New())
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	if _, err := svc.SetContextFromToken(ctx, forged); err == nil {
		t.Fatal("forged token accepted")
	}
	if _, err := svc.SetContextFromToken(ctx, "garbage"); err == nil {
		t.Fatal("garbage token accepted")
	}
}
