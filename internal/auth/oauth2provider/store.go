package oauth2provider

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/derrickmugabwa/kenya-food-database-api/pkg/db/pagination"
	"gorm.io/gorm"
)

// Store provides persistence for OAuth clients and their tokens.
type Store interface {
	CreateClient(ctx context.Context, client *Client) error
	GetClient(ctx context.Context, id snowflake.ID) (*Client, error)
	GetClientByClientID(ctx context.Context, clientID string) (*Client, error)
	ListClients(ctx context.Context, userID *snowflake.ID, page pagination.Pagination) ([]Client, error)
	UpdateClient(ctx context.Context, id snowflake.ID, fields map[string]any) error
	DeleteClient(ctx context.Context, id snowflake.ID) error

	CreateToken(ctx context.Context, token *Token) error
	GetToken(ctx context.Context, accessToken string) (*Token, error)
	RevokeToken(ctx context.Context, accessToken string) (bool, error)
	DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error)
}

type gormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) CreateClient(ctx context.Context, client *Client) error {
	return s.db.WithContext(ctx).Create(client).Error
}

func (s *gormStore) GetClient(ctx context.Context, id snowflake.ID) (*Client, error) {
	var client Client
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (s *gormStore) GetClientByClientID(ctx context.Context, clientID string) (*Client, error) {
	var client Client
	err := s.db.WithContext(ctx).Where("client_id = ?", clientID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// ListClients returns one extra row beyond the page limit so callers can
// build an infinity-pagination envelope.
func (s *gormStore) ListClients(ctx context.Context, userID *snowflake.ID, page pagination.Pagination) ([]Client, error) {
	page = page.Normalize()
	query := s.db.WithContext(ctx).Model(&Client{})
	if userID != nil {
		query = query.Where("user_id = ?", *userID)
	}

	var clients []Client
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Limit + 1).
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *gormStore) UpdateClient(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	tx := s.db.WithContext(ctx).Model(&Client{}).Where("id = ?", id).Updates(fields)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrClientNotFound
	}
	return nil
}

// DeleteClient revokes the client along with its outstanding tokens and
// soft-deletes it in one transaction.
func (s *gormStore) DeleteClient(ctx context.Context, id snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client Client
		err := tx.Select("id", "client_id").Where("id = ?", id).First(&client).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrClientNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&Client{}).Where("id = ?", id).Update("status", StatusRevoked).Error; err != nil {
			return err
		}
		err = tx.Model(&Token{}).
			Where("client_id = ? AND revoked = ?", client.ClientID, false).
			Update("revoked", true).Error
		if err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&Client{}).Error
	})
}

func (s *gormStore) CreateToken(ctx context.Context, token *Token) error {
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *gormStore) GetToken(ctx context.Context, accessToken string) (*Token, error) {
	var token Token
	err := s.db.WithContext(ctx).Where("access_token = ?", accessToken).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	return &token, nil
}

func (s *gormStore) RevokeToken(ctx context.Context, accessToken string) (bool, error) {
	tx := s.db.WithContext(ctx).
		Model(&Token{}).
		Where("access_token = ? AND revoked = ?", accessToken, false).
		Update("revoked", true)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (s *gormStore) DeleteExpiredTokens(ctx context.Context, before time.Time) (int64, error) {
	tx := s.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&Token{})
	return tx.RowsAffected, tx.Error
}
