package oauth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	stateKeyPrefix = "oauth:state:"
	stateTTL       = 10 * time.Minute
)

var ErrInvalidState = errors.New("invalid or expired oauth state")

// StateData 与 state 绑定的登录上下文
type StateData struct {
	RedirectPath string    `json:"redirect_path,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
}

// StateStore 一次性 OAuth state，存放在 Redis
type StateStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStateStore(rdb *redis.Client) *StateStore {
	return &StateStore{rdb: rdb, ttl: stateTTL}
}

// GenerateState 生成 state 并记录登录完成后要返回的前端路径
func (s *StateStore) GenerateState(ctx context.Context, redirectPath string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	state := hex.EncodeToString(buf)

	payload, err := json.Marshal(StateData{
		RedirectPath: redirectPath,
		IssuedAt:     time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}

	ok, err := s.rdb.SetNX(ctx, stateKeyPrefix+state, payload, s.ttl).Result()
	if err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	if !ok {
		return "", fmt.Errorf("store oauth state: collision")
	}

	return state, nil
}

// ConsumeState 校验 state 并立即删除，同一个 state 只能回调一次
func (s *StateStore) ConsumeState(ctx context.Context, state string) (*StateData, error) {
	if state == "" {
		return nil, ErrInvalidState
	}

	raw, err := s.rdb.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, fmt.Errorf("consume oauth state: %w", err)
	}

	var data StateData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, ErrInvalidState
	}
	return &data, nil
}
