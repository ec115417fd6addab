package user

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix     = "user:"
	usernameKeyPrefix = "username:"
	usersIndexKey     = "users:index"
	adminSeedKey      = "admin:seeded"
)

// Store はユーザーレコードを Redis に保存します。
// メールアドレスを主キーとし、ユーザー名は検索用のインデックスとして扱います。
type Store struct {
	rdb *redis.Client
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// FindByEmail はメールアドレスでユーザーを取得します。存在しない場合は nil を返します。
func (s *Store) FindByEmail(ctx context.Context, email string) (*Record, error) {
	data, err := s.rdb.Get(ctx, userKey(email)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindByUsername はユーザー名でユーザーを取得します。存在しない場合は nil を返します。
// ユーザー名は一意制約を持たないため、同名登録があった場合は最後に登録されたユーザーが返ります。
func (s *Store) FindByUsername(ctx context.Context, username string) (*Record, error) {
	email, err := s.rdb.Get(ctx, usernameKey(username)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	return s.FindByEmail(ctx, email)
}

// Insert は新規ユーザーを登録します。
// メールアドレスのキーを SETNX で確保するため、同時登録があっても
// どちらか一方のみが成功し、もう一方には ErrDuplicateEmail が返ります。
func (s *Store) Insert(ctx context.Context, username, email, passwordHash string, role Role) (*Record, error) {
	if role == "" {
		role = RoleUser
	}
	record := &Record{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}

	ok, err := s.rdb.SetNX(ctx, userKey(record.Email), payload, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicateEmail
	}

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, usernameKey(record.Username), record.Email, 0)
	pipe.SAdd(ctx, usersIndexKey, record.Email)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// UpdateRole は対象ユーザーの権限を変更します。
// 対象が存在しない場合は ErrNotFound を返します（サイレントに無視はしません）。
func (s *Store) UpdateRole(ctx context.Context, username string, role Role) (*Record, error) {
	email, err := s.rdb.Get(ctx, usernameKey(username)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s.updatePartial(ctx, email, func(record *Record) {
		record.Role = role
	})
}

// ListAll は全ユーザーを登録順とは無関係の順序で返します。
func (s *Store) ListAll(ctx context.Context) ([]*Record, error) {
	emails, err := s.rdb.SMembers(ctx, usersIndexKey).Result()
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 {
		return nil, nil
	}

	keys := make([]string, len(emails))
	for i, email := range emails {
		keys[i] = userKey(email)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	records := make([]*Record, 0, len(values))
	for _, v := range values {
		raw, ok := v.(string)
		if !ok {
			// インデックスには残っているが本体が消えているキーはスキップ
			continue
		}
		var record Record
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, err
		}
		records = append(records, &record)
	}
	return records, nil
}

// SeedAdmin は指定ユーザーを一度だけ admin に昇格させます。
// 昇格済みマーカーが存在する場合は何もしません。対象ユーザーが未登録の間は
// マーカーを残さず、登録後の再起動で改めて昇格を試みます。
func (s *Store) SeedAdmin(ctx context.Context, username string) (bool, error) {
	if username == "" {
		return false, nil
	}

	seeded, err := s.rdb.Exists(ctx, adminSeedKey).Result()
	if err != nil {
		return false, err
	}
	if seeded > 0 {
		return false, nil
	}

	if _, err := s.UpdateRole(ctx, username, RoleAdmin); err != nil {
		if err == ErrNotFound {
			return false, nil
		}
		return false, err
	}

	if err := s.rdb.Set(ctx, adminSeedKey, username, 0).Err(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) updatePartial(ctx context.Context, email string, mutate func(*Record)) (*Record, error) {
	key := userKey(email)
	for {
		tx := s.rdb.TxPipeline()
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return nil, ErrNotFound
			}
			return nil, err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, err
		}
		mutate(&record)
		payload, err := json.Marshal(&record)
		if err != nil {
			return nil, err
		}
		tx.Set(ctx, key, payload, 0)
		_, err = tx.Exec(ctx)
		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &record, nil
	}
}

func userKey(email string) string {
	return userKeyPrefix + normalizeEmail(email)
}

func usernameKey(username string) string {
	return usernameKeyPrefix + username
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Ping はストアへの疎通確認を行います。
func (s *Store) Ping(ctx context.Context) error {
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
