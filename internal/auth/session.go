package auth

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	// SessionCookieName はセッションクッキーの名前です。
	SessionCookieName = "mg_session"

	sessionKeySID = "sid"

	sessionRecordPrefix = "session:"
)

// SessionRecord はサーバー側で保持するセッション状態です。
// クライアントには不透明なトークン（クッキー内の sid）のみを渡します。
type SessionRecord struct {
	Authenticated bool      `json:"authenticated"`
	Username      string    `json:"username,omitempty"`
	CSRFToken     string    `json:"csrfToken"`
	IssuedAt      time.Time `json:"issuedAt"`
}

// SessionManager はセッションの発行・検証・破棄を担います。
// 有効期限は認証時刻からの絶対値で、リクエストごとの延長は行いません。
type SessionManager struct {
	rdb    *redis.Client
	maxAge time.Duration
}

// NewSessionManager は SessionManager を作成します。
func NewSessionManager(rdb *redis.Client, maxAge time.Duration) *SessionManager {
	return &SessionManager{
		rdb:    rdb,
		maxAge: maxAge,
	}
}

// MaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func (m *SessionManager) MaxAgeSeconds() int {
	return int(m.maxAge.Seconds())
}

// Establish は認証済みセッションを確立します。
// トークンは毎回新規に発行し、古いセッションが残っていれば破棄します（セッション固定攻撃対策）。
func (m *SessionManager) Establish(c *gin.Context, username string) (*SessionRecord, error) {
	session := sessions.Default(c)

	if old, ok := session.Get(sessionKeySID).(string); ok && old != "" {
		if err := m.rdb.Del(c.Request.Context(), sessionRecordKey(old)).Err(); err != nil {
			return nil, err
		}
	}

	sid, err := generateToken()
	if err != nil {
		return nil, err
	}
	csrf, err := generateToken()
	if err != nil {
		return nil, err
	}

	record := &SessionRecord{
		Authenticated: true,
		Username:      username,
		CSRFToken:     csrf,
		IssuedAt:      time.Now().UTC(),
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, err
	}
	if err := m.rdb.Set(c.Request.Context(), sessionRecordKey(sid), payload, m.maxAge).Err(); err != nil {
		return nil, err
	}

	session.Set(sessionKeySID, sid)
	if err := session.Save(); err != nil {
		return nil, err
	}
	return record, nil
}

// Current は現在のリクエストに紐づくセッションを返します。
// 未認証・期限切れの場合は nil を返します。期限切れセッションはその場で破棄します。
func (m *SessionManager) Current(c *gin.Context) (*SessionRecord, error) {
	session := sessions.Default(c)
	sid, ok := session.Get(sessionKeySID).(string)
	if !ok || sid == "" {
		return nil, nil
	}

	data, err := m.rdb.Get(c.Request.Context(), sessionRecordKey(sid)).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Redis の TTL 失効後に残った古いクッキー
			session.Clear()
			_ = session.Save()
			return nil, nil
		}
		return nil, err
	}

	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	if !record.Authenticated || time.Since(record.IssuedAt) > m.maxAge {
		_ = m.rdb.Del(c.Request.Context(), sessionRecordKey(sid)).Err()
		session.Clear()
		_ = session.Save()
		return nil, nil
	}
	return &record, nil
}

// Destroy はセッションを即時に破棄します。
// 破棄していたセッションのユーザー名を返します（未認証だった場合は空文字）。
func (m *SessionManager) Destroy(c *gin.Context) (string, error) {
	session := sessions.Default(c)
	sid, ok := session.Get(sessionKeySID).(string)

	username := ""
	if ok && sid != "" {
		key := sessionRecordKey(sid)
		if data, err := m.rdb.Get(c.Request.Context(), key).Bytes(); err == nil {
			var record SessionRecord
			if json.Unmarshal(data, &record) == nil {
				username = record.Username
			}
		}
		if err := m.rdb.Del(c.Request.Context(), key).Err(); err != nil {
			return "", err
		}
	}

	session.Clear()
	if err := session.Save(); err != nil {
		return "", err
	}
	return username, nil
}

func sessionRecordKey(sid string) string {
	return sessionRecordPrefix + sid
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
