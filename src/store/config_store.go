package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	logger "github.com/sirupsen/logrus"

	"alertbridge/src/model"
)

// ErrNotFound is returned when a configuration or credential key does
// not exist in the store.
var ErrNotFound = errors.New("store: not found")

// Key layout shared with the external CRUD layer. Changing it breaks
// every persisted configuration, so treat these as a wire format.
func configKey(userID, name string) string {
	return fmt.Sprintf("user:%s:alert_config:%s", userID, name)
}

func credentialKey(userID, exchangeID string) string {
	return fmt.Sprintf("user:%s:exchange:%s", userID, exchangeID)
}

// ConfigStore gives the dispatcher typed, read-only access to alert
// configurations and encrypted credentials. Writes live in the external
// CRUD layer; the only writer here is the operator key CLI.
type ConfigStore struct {
	rdb *redis.Client
}

func NewConfigStore(rdb *redis.Client) *ConfigStore {
	return &ConfigStore{rdb: rdb}
}

// GetAlertConfig resolves a configuration by (user, name). Name and
// user id are re-stamped from the key so stale payload copies cannot
// lie about their identity.
func (s *ConfigStore) GetAlertConfig(ctx context.Context, userID, name string) (*model.AlertConfig, error) {
	data, err := s.rdb.Get(ctx, configKey(userID, name)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert config: %w", err)
	}

	var config model.AlertConfig
	if err := json.Unmarshal([]byte(data), &config); err != nil {
		return nil, fmt.Errorf("unmarshal alert config %q: %w", name, err)
	}

	config.Name = name
	config.UserID = userID
	return &config, nil
}

// ListAlertConfigs returns every configuration a user owns.
func (s *ConfigStore) ListAlertConfigs(ctx context.Context, userID string) ([]model.AlertConfig, error) {
	pattern := configKey(userID, "*")

	var configs []model.AlertConfig
	iter := s.rdb.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get alert config %q: %w", iter.Val(), err)
		}

		var config model.AlertConfig
		if err := json.Unmarshal([]byte(data), &config); err != nil {
			logger.WithError(err).WithField("key", iter.Val()).Warn("Skipping unreadable alert config")
			continue
		}
		config.UserID = userID
		configs = append(configs, config)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan alert configs: %w", err)
	}

	return configs, nil
}

// GetCredential fetches the encrypted API key pair for (user, exchange).
func (s *ConfigStore) GetCredential(ctx context.Context, userID, exchangeID string) (*model.ExchangeCredential, error) {
	data, err := s.rdb.Get(ctx, credentialKey(userID, exchangeID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}

	var cred model.ExchangeCredential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("unmarshal credential for exchange %q: %w", exchangeID, err)
	}

	cred.UserID = userID
	cred.ExchangeID = exchangeID
	return &cred, nil
}

// SaveCredential persists an already-encrypted credential. Used by the
// operator key CLI; the dispatcher never writes credentials.
func (s *ConfigStore) SaveCredential(ctx context.Context, cred *model.ExchangeCredential) error {
	cred.UpdatedAt = time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = cred.UpdatedAt
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}

	if err := s.rdb.Set(ctx, credentialKey(cred.UserID, cred.ExchangeID), data, 0).Err(); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// DeleteCredential removes a credential pair entirely.
func (s *ConfigStore) DeleteCredential(ctx context.Context, userID, exchangeID string) error {
	deleted, err := s.rdb.Del(ctx, credentialKey(userID, exchangeID)).Result()
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}
