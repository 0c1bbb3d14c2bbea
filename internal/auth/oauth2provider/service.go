package oauth2provider

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/bearer"
	authdomain "github.com/derrickmugabwa/kenya-food-database-api/internal/auth/domain"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/password"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/principal"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/auth/scope"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/clock"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/config"
	"github.com/derrickmugabwa/kenya-food-database-api/internal/observability/metrics"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const clientIDPrefix = "kfdb_client_"

var ErrClientExists = errors.New("client_exists")

type TokenGenerator interface {
	NewToken() (string, error)
}

type defaultTokenGenerator struct{}

func (defaultTokenGenerator) NewToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// accessClaims is the payload of a client-credentials access token.
type accessClaims struct {
	ClientID  string   `json:"client_id"`
	UserID    string   `json:"user_id"`
	Scopes    []string `json:"scopes"`
	Tier      string   `json:"tier"`
	RateLimit int      `json:"rate_limit"`
	TokenType string   `json:"token_type"`
	jwt.RegisteredClaims
}

type Params struct {
	fx.In

	Config  Config
	Store   Store
	Users   authdomain.Repository
	GenID   *snowflake.Node
	Clock   clock.Clock
	Policy  *config.AccessPolicyHolder
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	cfg      Config
	store    Store
	users    authdomain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	tokenGen TokenGenerator
	policy   *config.AccessPolicyHolder
	metrics  *metrics.Metrics
	parser   *jwt.Parser
	log      *zap.Logger
}

func NewService(p Params) *Service {
	s := &Service{
		cfg:      p.Config,
		store:    p.Store,
		users:    p.Users,
		genID:    p.GenID,
		clock:    p.Clock,
		tokenGen: defaultTokenGenerator{},
		policy:   p.Policy,
		metrics:  p.Metrics,
		log:      p.Log.Named("auth.oauth2.provider"),
	}
	s.parser = newParser(s.cfg, s.clock)
	return s
}

func newParser(cfg Config, clk clock.Clock) *jwt.Parser {
	return jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithAudience(cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(clk.Now),
	)
}

type TokenRequest struct {
	GrantType    string `json:"grant_type" form:"grant_type"`
	ClientID     string `json:"client_id" form:"client_id"`
	ClientSecret string `json:"client_secret" form:"client_secret"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// IssueToken runs the client-credentials grant. Unknown, inactive and
// wrong-secret clients are indistinguishable to the caller.
func (s *Service) IssueToken(ctx context.Context, req TokenRequest) (*TokenResponse, error) {
	if strings.TrimSpace(req.GrantType) != GrantTypeClientCredentials {
		return nil, ErrUnsupportedGrantType
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" || req.ClientSecret == "" {
		return nil, ErrInvalidClient
	}

	client, err := s.store.GetClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	now := s.clock.Now()
	if !client.Active(now) {
		return nil, ErrInvalidClient
	}
	if !password.Verify(req.ClientSecret, client.ClientSecretHash) {
		return nil, ErrInvalidClient
	}

	scopes := scope.Normalize(client.Scopes)
	expiresAt := now.Add(s.cfg.AccessTTL)
	claims := accessClaims{
		ClientID:  client.ClientID,
		UserID:    client.UserID.String(),
		Scopes:    scopes,
		Tier:      client.Tier,
		RateLimit: client.RateLimit,
		TokenType: bearer.TypeOAuthClientCredentials,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   client.ClientID,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        ulid.Make().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	token := &Token{
		ID:          s.genID.Generate(),
		AccessToken: signed,
		ClientID:    client.ClientID,
		Scopes:      scopes,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
	}
	if err := s.store.CreateToken(ctx, token); err != nil {
		return nil, err
	}

	s.metrics.RecordTokenIssued(ctx, client.Tier)
	s.log.Info("oauth token issued",
		zap.String("client_id", client.ClientID),
		zap.String("token_id", token.ID.String()),
		zap.String("tier", client.Tier),
	)

	return &TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.cfg.AccessTTL.Seconds()),
		Scope:       strings.Join(scopes, " "),
	}, nil
}

// Validate checks signature, claims and the persisted row of a bearer token,
// then enforces the any-of scope requirement.
func (s *Service) Validate(ctx context.Context, raw string, required []scope.Scope) (*principal.OAuthClient, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	var claims accessClaims
	parsed, err := s.parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(s.cfg.Secret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != bearer.TypeOAuthClientCredentials || claims.ClientID == "" {
		return nil, ErrInvalidToken
	}

	stored, err := s.store.GetToken(ctx, raw)
	if err != nil {
		return nil, err
	}
	if !stored.Valid(s.clock.Now()) || stored.ClientID != claims.ClientID {
		return nil, ErrInvalidToken
	}

	if !scope.HasAny(stored.Scopes, required) {
		return nil, &InsufficientScopeError{Required: required}
	}

	userID, err := snowflake.ParseString(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &principal.OAuthClient{
		ClientID:  claims.ClientID,
		UserID:    userID,
		Scopes:    stored.Scopes,
		Tier:      claims.Tier,
		RateLimit: claims.RateLimit,
		TokenID:   stored.ID,
	}, nil
}

// RevokeToken marks a token revoked. Only the owner of the issuing client or
// an admin may revoke it; unknown tokens report ErrInvalidToken.
func (s *Service) RevokeToken(ctx context.Context, caller principal.Session, raw string) error {
	stored, err := s.store.GetToken(ctx, strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if !caller.IsAdmin() {
		client, err := s.store.GetClientByClientID(ctx, stored.ClientID)
		if err != nil {
			if errors.Is(err, ErrClientNotFound) {
				return ErrForbidden
			}
			return err
		}
		if client.UserID != caller.UserID {
			return ErrForbidden
		}
	}
	if _, err := s.store.RevokeToken(ctx, stored.AccessToken); err != nil {
		return err
	}
	s.log.Info("oauth token revoked",
		zap.String("client_id", stored.ClientID),
		zap.String("token_id", stored.ID.String()),
		zap.String("revoked_by", caller.UserID.String()),
	)
	return nil
}

// DeleteExpiredTokens purges token rows that expired before the cutoff.
func (s *Service) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	return s.store.DeleteExpiredTokens(ctx, before)
}

// ResolveClientID maps a public client id to the client's database id.
func (s *Service) ResolveClientID(ctx context.Context, clientID string) (snowflake.ID, error) {
	client, err := s.store.GetClientByClientID(ctx, clientID)
	if err != nil {
		return 0, err
	}
	return client.ID, nil
}

type CreateClientRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Scopes      []string   `json:"scopes"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

type CreateClientResult struct {
	Client       *Client `json:"client"`
	ClientSecret string  `json:"clientSecret"`
}

// CreateClient registers a client for the user. The plaintext secret is only
// ever returned here.
func (s *Service) CreateClient(ctx context.Context, userID snowflake.ID, req CreateClientRequest) (*CreateClientResult, error) {
	name := strings.TrimSpace(req.Name)
	if userID == 0 || name == "" {
		return nil, ErrInvalidRequest
	}

	policy := s.policy.Get()
	scopes := scope.Normalize(req.Scopes)
	if len(scopes) == 0 {
		scopes = scope.Normalize(policy.DefaultClientScopes)
	}
	if err := scope.Validate(scopes); err != nil {
		return nil, ErrInvalidScope
	}

	tier := authdomain.TierFree
	rateLimit := policy.RateLimitForTier(tier)
	user, err := s.users.FindByID(ctx, userID)
	switch {
	case err == nil:
		if user.APITier != "" {
			tier = user.APITier
		}
		if user.APIRateLimit > 0 {
			rateLimit = user.APIRateLimit
		}
	case errors.Is(err, authdomain.ErrUserNotFound):
	default:
		return nil, err
	}

	secret, err := s.tokenGen.NewToken()
	if err != nil {
		return nil, err
	}
	secretHash, err := password.Hash(secret)
	if err != nil {
		return nil, err
	}
	publicID, err := newClientID()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	client := &Client{
		ID:               s.genID.Generate(),
		ClientID:         publicID,
		ClientSecretHash: secretHash,
		Name:             name,
		Description:      strings.TrimSpace(req.Description),
		UserID:           userID,
		Scopes:           scopes,
		GrantTypes:       []string{GrantTypeClientCredentials},
		Tier:             tier,
		RateLimit:        rateLimit,
		Status:           StatusActive,
		ExpiresAt:        req.ExpiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateClient(ctx, client); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, ErrClientExists
		}
		return nil, err
	}

	s.log.Info("oauth client created",
		zap.String("client_id", client.ClientID),
		zap.String("user_id", userID.String()),
		zap.Strings("scopes", scopes),
	)

	return &CreateClientResult{Client: client, ClientSecret: secret}, nil
}

// ListClients lists the user's clients, or every client when userID is nil.
func (s *Service) ListClients(ctx context.Context, userID *snowflake.ID, page pagination.Pagination) (pagination.Page[Client], error) {
	rows, err := s.store.ListClients(ctx, userID, page)
	if err != nil {
		return pagination.Page[Client]{}, err
	}
	return pagination.BuildPage(rows, page), nil
}

func (s *Service) GetClient(ctx context.Context, caller principal.Session, id snowflake.ID) (*Client, error) {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, err
	}
	if client.UserID != caller.UserID {
		return nil, ErrClientNotFound
	}
	return client, nil
}

type UpdateClientRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Scopes      []string   `json:"scopes"`
	ExpiresAt   *time.Time `json:"expiresAt"`
}

// UpdateClient edits client metadata. Scope changes apply to tokens issued
// afterwards; existing tokens keep the scopes they were issued with.
func (s *Service) UpdateClient(ctx context.Context, caller principal.Session, id snowflake.ID, req UpdateClientRequest) (*Client, error) {
	if _, err := s.GetClient(ctx, caller, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, ErrInvalidRequest
		}
		fields["name"] = name
	}
	if req.Description != nil {
		fields["description"] = strings.TrimSpace(*req.Description)
	}
	if req.Scopes != nil {
		scopes := scope.Normalize(req.Scopes)
		if len(scopes) == 0 {
			return nil, ErrInvalidScope
		}
		if err := scope.Validate(scopes); err != nil {
			return nil, ErrInvalidScope
		}
		encoded, err := json.Marshal(scopes)
		if err != nil {
			return nil, err
		}
		fields["scopes"] = datatypes.JSON(encoded)
	}
	if req.ExpiresAt != nil {
		fields["expires_at"] = *req.ExpiresAt
	}

	if len(fields) > 0 {
		fields["updated_at"] = s.clock.Now()
		if err := s.store.UpdateClient(ctx, id, fields); err != nil {
			return nil, err
		}
	}
	return s.store.GetClient(ctx, id)
}

func (s *Service) DeleteClient(ctx context.Context, caller principal.Session, id snowflake.ID) error {
	if _, err := s.GetClient(ctx, caller, id); err != nil {
		return err
	}
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return err
	}
	s.log.Info("oauth client deleted", zap.String("id", id.String()), zap.String("user_id", caller.UserID.String()))
	return nil
}

func newClientID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return clientIDPrefix + hex.EncodeToString(buf), nil
}
