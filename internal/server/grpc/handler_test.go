package grpc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/jwtauth/internal/api"
	"github.com/dmitrijs2005/jwtauth/internal/common"
	"github.com/dmitrijs2005/jwtauth/internal/logging"
	"github.com/dmitrijs2005/jwtauth/internal/server/auth"
	"github.com/dmitrijs2005/jwtauth/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ---- fakes ----

type fakeUser struct {
	refreshResp *models.TokenPair
	refreshErr  error
	gotRefresh  [2]string

	regResp *models.User
	regErr  error

	loginResp *models.TokenPair
	loginErr  error
}

func (f *fakeUser) RefreshToken(ctx context.Context, userID, refresh string) (*models.TokenPair, error) {
	f.gotRefresh = [2]string{userID, refresh}
	return f.refreshResp, f.refreshErr
}
func (f *fakeUser) Register(ctx context.Context, username, password string) (*models.User, error) {
	return f.regResp, f.regErr
}
func (f *fakeUser) Login(ctx context.Context, username, password string) (*models.TokenPair, error) {
	return f.loginResp, f.loginErr
}

type fakeVerifier struct {
	claims *auth.Claims
	err    error
}

func (f fakeVerifier) Verify(string) (*auth.Claims, error) { return f.claims, f.err }

// ---- helpers ----

func newServer(u userSvc) *GRPCServer {
	return NewGRPCServer("127.0.0.1:0", logging.Nop{}, u, fakeVerifier{err: common.ErrInvalidToken})
}

// ---- tests ----

func TestRegister_OK(t *testing.T) {
	u := &fakeUser{regResp: &models.User{ID: "42", UserName: "alice"}}
	s := newServer(u)
	resp, err := s.Register(context.Background(), &api.RegisterRequest{UserName: "alice", Password: "pw"})
	if err != nil {
		t.Fatalf("Register error: %v", err)
	}
	if resp.ID != "42" || resp.UserName != "alice" || resp.Role != "" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestRegister_ErrorCodes(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{common.ErrorAlreadyExists, codes.AlreadyExists},
		{common.ErrorValidation, codes.InvalidArgument},
		{errors.New("db down"), codes.Internal},
	}
	for _, tt := range tests {
		s := newServer(&fakeUser{regErr: tt.err})
		_, err := s.Register(context.Background(), &api.RegisterRequest{UserName: "u", Password: "p"})
		if status.Code(err) != tt.code {
			t.Fatalf("%v: want %v, got %v", tt.err, tt.code, status.Code(err))
		}
	}
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	s := newServer(&fakeUser{regErr: errors.New("pq: password authentication failed for user postgres")})
	_, err := s.Register(context.Background(), &api.RegisterRequest{UserName: "u", Password: "p"})
	if msg := status.Convert(err).Message(); msg != "internal error" {
		t.Fatalf("internal detail leaked: %q", msg)
	}
}

func TestLogin_OK(t *testing.T) {
	u := &fakeUser{loginResp: &models.TokenPair{AccessToken: "A", RefreshToken: "R"}}
	s := newServer(u)
	resp, err := s.Login(context.Background(), &api.LoginRequest{UserName: "u", Password: "p"})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}
	if resp.AccessToken != "A" || resp.RefreshToken != "R" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}
}

func TestLogin_UnauthorizedAndInternal(t *testing.T) {
	s := newServer(&fakeUser{loginErr: common.ErrorUnauthorized})
	_, err := s.Login(context.Background(), &api.LoginRequest{UserName: "u", Password: "x"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}

	s2 := newServer(&fakeUser{loginErr: errors.New("boom")})
	_, err = s2.Login(context.Background(), &api.LoginRequest{UserName: "u", Password: "x"})
	if status.Code(err) != codes.Internal {
		t.Fatalf("want Internal, got %v", status.Code(err))
	}
}

func TestRefreshToken_OK(t *testing.T) {
	u := &fakeUser{refreshResp: &models.TokenPair{AccessToken: "a", RefreshToken: "r"}}
	s := newServer(u)
	resp, err := s.RefreshToken(context.Background(), &api.RefreshTokenRequest{UserID: "id", RefreshToken: "r0"})
	if err != nil {
		t.Fatalf("RefreshToken error: %v", err)
	}
	if resp.AccessToken != "a" || resp.RefreshToken != "r" {
		t.Fatalf("unexpected tokens: %+v", resp)
	}
	if u.gotRefresh != [2]string{"id", "r0"} {
		t.Fatalf("unexpected service args: %v", u.gotRefresh)
	}
}

func TestRefreshToken_Unauthenticated(t *testing.T) {
	s := newServer(&fakeUser{refreshErr: common.ErrorUnauthorized})
	_, err := s.RefreshToken(context.Background(), &api.RefreshTokenRequest{UserID: "id", RefreshToken: "r0"})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v (err=%v)", status.Code(err), err)
	}
}

func TestWhoAmI_FromClaims(t *testing.T) {
	s := newServer(&fakeUser{})
	exp := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	claims := &auth.Claims{
		Name:             "alice",
		NameIdentifier:   "id-1",
		Role:             "Admin",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	}
	ctx := context.WithValue(context.Background(), claimsKey, claims)

	resp, err := s.WhoAmI(ctx, &api.WhoAmIRequest{})
	if err != nil {
		t.Fatalf("WhoAmI error: %v", err)
	}
	if resp.UserID != "id-1" || resp.UserName != "alice" || resp.Role != "Admin" || !resp.ExpiresAt.Equal(exp) {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestWhoAmI_NoClaims(t *testing.T) {
	s := newServer(&fakeUser{})
	_, err := s.WhoAmI(context.Background(), &api.WhoAmIRequest{})
	if status.Code(err) != codes.Unauthenticated {
		t.Fatalf("want Unauthenticated, got %v", status.Code(err))
	}
}
