package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/password"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const minPasswordLength = 8

// TokenIssuer mints session tokens after a successful login.
type TokenIssuer interface {
	Issue(userID snowflake.ID, role string) (string, time.Time, error)
}

type Params struct {
	fx.In

	Log    *zap.Logger
	Repo   domain.Repository
	GenID  *snowflake.Node
	Tokens TokenIssuer
	Policy *config.AccessPolicyHolder
}

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	tokens TokenIssuer
	policy *config.AccessPolicyHolder
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("auth.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		tokens: p.Tokens,
		policy: p.Policy,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrWeakPassword
	}

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	role := domain.RoleUser
	if req.Role == domain.RoleAdmin {
		role = domain.RoleAdmin
	}

	user := &domain.User{
		ID:           s.genID.Generate(),
		Email:        email,
		PasswordHash: hashed,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         role,
		APITier:      domain.TierFree,
		APIRateLimit: s.policy.Get().RateLimitForTier(domain.TierFree),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user created", zap.String("user_id", user.ID.String()), zap.String("role", role))
	return user, nil
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !password.Verify(req.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	if password.NeedsRehash(user.PasswordHash) {
		if rehashed, err := password.Hash(req.Password); err == nil {
			if err := s.repo.SetPasswordHash(ctx, user.ID, rehashed); err != nil {
				s.log.Warn("password rehash failed", zap.String("user_id", user.ID.String()), zap.Error(err))
			}
		}
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		Token:        token,
		TokenExpires: expiresAt,
		User:         user,
	}, nil
}

func (s *Service) GetUser(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	if id == 0 {
		return nil, domain.ErrUserNotFound
	}
	return s.repo.FindByID(ctx, id)
}

// UpdateAPIAccess changes the tier and daily allowance of a user. Existing
// credentials keep the values they were created with.
func (s *Service) UpdateAPIAccess(ctx context.Context, id snowflake.ID, req domain.UpdateAPIAccessRequest) (*domain.User, error) {
	var change domain.APIAccessChange
	if req.APITier != nil {
		tier := strings.ToLower(strings.TrimSpace(*req.APITier))
		if !domain.ValidTier(tier) {
			return nil, domain.ErrInvalidTier
		}
		change.Tier = &tier
	}
	if req.APIRateLimit != nil {
		if *req.APIRateLimit <= 0 {
			return nil, domain.ErrInvalidRateLimit
		}
		change.RateLimit = req.APIRateLimit
	}

	if !change.Empty() {
		if err := s.repo.SetAPIAccess(ctx, id, change); err != nil {
			return nil, err
		}
		fields := []zap.Field{zap.String("user_id", id.String())}
		if change.Tier != nil {
			fields = append(fields, zap.String("api_tier", *change.Tier))
		}
		if change.RateLimit != nil {
			fields = append(fields, zap.Int("api_rate_limit", *change.RateLimit))
		}
		s.log.Info("user api access updated", fields...)
	}
	return s.repo.FindByID(ctx, id)
}

func normalizeEmail(raw string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}
