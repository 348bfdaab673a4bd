package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/jwtauth/internal/api"
	"github.com/dmitrijs2005/jwtauth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) Register(ctx context.Context, req *api.RegisterRequest) (*api.RegisterResponse, error) {

	s.logger.Info(ctx, "Registration request")

	user, err := s.users.Register(ctx, req.UserName, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.RegisterResponse{ID: user.ID, UserName: user.UserName, Role: user.Role}, nil
}

func (s *GRPCServer) Login(ctx context.Context, req *api.LoginRequest) (*api.TokenPairResponse, error) {

	tokens, err := s.users.Login(ctx, req.UserName, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.TokenPairResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) RefreshToken(ctx context.Context, req *api.RefreshTokenRequest) (*api.TokenPairResponse, error) {

	tokens, err := s.users.RefreshToken(ctx, req.UserID, req.RefreshToken)
	if err != nil {
		return nil, toStatus(err)
	}

	return &api.TokenPairResponse{AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

func (s *GRPCServer) WhoAmI(ctx context.Context, _ *api.WhoAmIRequest) (*api.WhoAmIResponse, error) {

	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	resp := &api.WhoAmIResponse{UserID: claims.NameIdentifier, UserName: claims.Name, Role: claims.Role}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return resp, nil
}

// toStatus maps service errors to gRPC status without leaking internals.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return status.Error(codes.InvalidArgument, "username and password are required")
	case errors.Is(err, common.ErrorAlreadyExists):
		return status.Error(codes.AlreadyExists, "username already taken")
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
