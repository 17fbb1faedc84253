package service

import (
	"context"
	"errors"

	"marketplace-order-api/internal/apperr"
	"marketplace-order-api/internal/auth"
	"marketplace-order-api/internal/dto"
	"marketplace-order-api/internal/model"
	"marketplace-order-api/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error)
}

type userServiceImpl struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
}

func NewUserService(userRepo repository.UserRepository, jwtService *auth.JWTService) UserService {
	return &userServiceImpl{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

func (s *userServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	if req.Email == "" {
		return nil, apperr.Validationf("email is required")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return nil, apperr.Wrap(apperr.KindValidation, err, "invalid password")
		}
		return nil, err
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Role:         auth.RoleBuyer,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflictf("email %s is already registered", req.Email)
		}
		return nil, mapDBError(err, "create user")
	}

	return s.authResponse(user)
}

func (s *userServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Authf("invalid email or password")
		}
		return nil, mapDBError(err, "find user")
	}

	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		return nil, apperr.Authf("invalid email or password")
	}

	return s.authResponse(user)
}

func (s *userServiceImpl) authResponse(user *model.User) (*dto.AuthResponse, error) {
	token, expiresAt, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	return &dto.AuthResponse{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		Role:      user.Role,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}
