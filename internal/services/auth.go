package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/schedulebud/backend/internal/data/repos"
	types "github.com/schedulebud/backend/internal/domain"
	"github.com/schedulebud/backend/internal/pkg/dbctx"
	apperrors "github.com/schedulebud/backend/internal/pkg/errors"
	"github.com/schedulebud/backend/internal/pkg/logger"
	"github.com/schedulebud/backend/internal/requestdata"
	"github.com/schedulebud/backend/internal/utils"
)

type AuthTokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

type authClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*types.User, *AuthTokens, error)
	Login(ctx context.Context, email, password string) (*types.User, *AuthTokens, error)
	Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error)
	Logout(ctx context.Context, userID uuid.UUID) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	userTokenRepo repos.UserTokenRepo
	secret        []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(db *gorm.DB, baseLog *logger.Logger, userRepo repos.UserRepo, userTokenRepo repos.UserTokenRepo) AuthService {
	log := baseLog.With("service", "AuthService")
	secret := utils.GetEnv("JWT_SECRET", "", log)
	if secret == "" {
		log.Warn("JWT_SECRET is not set, generated tokens will not survive restarts")
		secret = uuid.NewString()
	}
	return &authService{
		db:            db,
		log:           log,
		userRepo:      userRepo,
		userTokenRepo: userTokenRepo,
		secret:        []byte(secret),
		accessTTL:     time.Duration(utils.GetEnvAsInt("JWT_ACCESS_TTL_MINUTES", 30, log)) * time.Minute,
		refreshTTL:    time.Duration(utils.GetEnvAsInt("JWT_REFRESH_TTL_HOURS", 24*7, log)) * time.Hour,
	}
}

func (s *authService) Register(ctx context.Context, email, password, name string) (*types.User, *AuthTokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, nil, fmt.Errorf("%w: email and password are required", apperrors.ErrInvalidArgument)
	}

	dbc := dbctx.Context{Ctx: ctx}
	existing, err := s.userRepo.GetByEmail(dbc, email)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%w: account already exists", apperrors.ErrInvalidArgument)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("hash password: %w", err)
	}

	user := &types.User{
		ID:        uuid.New(),
		Email:     email,
		Password:  string(hashed),
		Name:      name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if _, err := s.userRepo.Create(dbc, []*types.User{user}); err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("user registered", "user_id", user.ID.String())
	return user, tokens, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*types.User, *AuthTokens, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	dbc := dbctx.Context{Ctx: ctx}

	user, err := s.userRepo.GetByEmail(dbc, email)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, nil, apperrors.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, nil, apperrors.ErrUnauthorized
	}

	tokens, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, tokens, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*AuthTokens, error) {
	dbc := dbctx.Context{Ctx: ctx}
	stored, err := s.userTokenRepo.GetByRefreshToken(dbc, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	if stored == nil || stored.ExpiresAt.Before(time.Now()) {
		return nil, apperrors.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(dbc, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, apperrors.ErrUnauthorized
	}

	// rotate: old refresh token stops working once a new pair is issued
	if err := s.userTokenRepo.DeleteByUserID(dbc, user.ID); err != nil {
		s.log.Warn("failed to revoke previous tokens", "user_id", user.ID.String(), "error", err)
	}
	return s.issueTokens(ctx, user)
}

func (s *authService) Logout(ctx context.Context, userID uuid.UUID) error {
	return s.userTokenRepo.DeleteByUserID(dbctx.Context{Ctx: ctx}, userID)
}

// SetContextFromToken verifies an access token and stamps the request
// identity onto the context for downstream services.
func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := &authClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ctx, apperrors.ErrUnauthorized
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ctx, apperrors.ErrUnauthorized
	}
	return requestdata.WithRequestData(ctx, &requestdata.RequestData{
		TokenString: tokenString,
		UserID:      userID,
		Email:       claims.Email,
	}), nil
}

func (s *authService) issueTokens(ctx context.Context, user *types.User) (*AuthTokens, error) {
	expiresAt := time.Now().Add(s.accessTTL)
	claims := authClaims{
		UserID: user.ID.String(),
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := uuid.NewString()
	row := &types.UserToken{
		ID:           uuid.New(),
		UserID:       user.ID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(s.refreshTTL),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if _, err := s.userTokenRepo.Create(dbctx.Context{Ctx: ctx}, []*types.UserToken{row}); err != nil {
		return nil, fmt.Errorf("persist tokens: %w", err)
	}

	return &AuthTokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt.Unix(),
	}, nil
}
