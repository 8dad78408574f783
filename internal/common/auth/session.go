package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/VCRTS/VCRTS/internal/common/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionClaims 会话令牌载荷：subject 为用户名，role 为登录时账户的角色。
type SessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Session 校验通过后还原出的会话信息
type Session struct {
	Username string
	Role     string
}

// IssueSessionToken 登录成功后签发 HS256 会话令牌。
// 客户端断线重连时可用 RESUME <token> 恢复会话，而不必重新提交口令。
func IssueSessionToken(cfg config.AuthConfig, username, role string) (token string, expiresAt time.Time, err error) {
	if strings.TrimSpace(username) == "" {
		return "", time.Time{}, fmt.Errorf("username is empty")
	}
	if cfg.JWTSecret == "" {
		return "", time.Time{}, fmt.Errorf("jwt_secret is empty")
	}

	ttl := time.Duration(cfg.TTLHours) * time.Hour
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	now := time.Now()
	expiresAt = now.Add(ttl)

	c := SessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   username,
			Issuer:    cfg.Issuer,
			Audience:  audience(cfg.Audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// VerifySessionToken 校验令牌签名与标准字段，返回会话信息。
func VerifySessionToken(cfg config.AuthConfig, tokenStr string) (Session, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return Session{}, fmt.Errorf("token is empty")
	}
	if cfg.JWTSecret == "" {
		return Session{}, fmt.Errorf("jwt_secret is empty")
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithLeeway(30*time.Second))
	if err != nil || parsed == nil || !parsed.Valid {
		return Session{}, fmt.Errorf("invalid token")
	}

	if cfg.Issuer != "" && claims.Issuer != cfg.Issuer {
		return Session{}, fmt.Errorf("invalid issuer")
	}
	if cfg.Audience != "" && !audienceContains(claims.Audience, cfg.Audience) {
		return Session{}, fmt.Errorf("invalid audience")
	}

	return Session{Username: claims.Subject, Role: claims.Role}, nil
}

func audience(aud string) jwt.ClaimStrings {
	if aud == "" {
		return nil
	}
	return jwt.ClaimStrings{aud}
}

func audienceContains(aud jwt.ClaimStrings, want string) bool {
	want = strings.TrimSpace(want)
	if want == "" || len(aud) == 0 {
		return false
	}
	for _, v := range aud {
		if strings.TrimSpace(v) == want {
			return true
		}
	}
	return false
}
