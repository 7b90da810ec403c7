package service

import (
	"fmt"
	"time"

	"github.com/StoryBB/StoryBB-sub002/internal/pkg/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JobCodec 把 JobState 签名为续跑令牌
type JobCodec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// jobClaims 续跑令牌载荷
type jobClaims struct {
	State JobState `json:"state"`
	jwt.RegisteredClaims
}

// NewJobCodec secret 为空时使用进程内随机密钥，令牌只在本进程有效
func NewJobCodec(secret, issuer string, ttl time.Duration) *JobCodec {
	if secret == "" {
		secret = uuid.NewString()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobCodec{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

// Encode 签发令牌
func (c *JobCodec) Encode(state JobState) (string, error) {
	now := time.Now()
	claims := jobClaims{
		State: state,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        state.JobID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign recount token: %w", err)
	}
	return signed, nil
}

// Decode 校验令牌并还原 JobState
func (c *JobCodec) Decode(token string) (JobState, error) {
	var claims jobClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(c.issuer))
	if err != nil {
		return JobState{}, apperr.New(apperr.ErrRecountToken, err.Error())
	}
	if claims.State.JobID != claims.ID {
		return JobState{}, apperr.New(apperr.ErrRecountToken, "job id mismatch")
	}
	return claims.State, nil
}
