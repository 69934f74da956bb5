package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// producerIssuer はトークン発行者。
const producerIssuer = "pushrelay"

// ProducerClaims は通知投入者のトークンに含まれるクレーム。
type ProducerClaims struct {
	jwt.RegisteredClaims
	// Producer は投入元の識別名（ホスト名など）。
	Producer string `json:"producer"`
}

// contextKeyProducer はGinコンテキストに投入元名を格納するキー。
const contextKeyProducer = "producer"

// GenerateProducerToken は投入元名からトークンを生成する。
// ttlが0以下の場合は有効期限なしのトークンになる。
func GenerateProducerToken(secret, producer string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWTシークレットが設定されていません")
	}
	now := time.Now()
	claims := ProducerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(now),
			Issuer:   producerIssuer,
			Subject:  producer,
		},
		Producer: producer,
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("JWTトークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// ProducerAuth はBearerトークンを検証するGinミドルウェアを返す。
// secretが空の場合は検証せずに通す。
func ProducerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorizationヘッダーが必要です",
			})
			return
		}

		tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Bearer トークン形式が不正です",
			})
			return
		}

		claims := &ProducerClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
			return []byte(secret), nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(producerIssuer),
		)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "トークンが無効です",
			})
			return
		}

		c.Set(contextKeyProducer, claims.Producer)
		c.Next()
	}
}

// GetProducer はGinコンテキストから投入元名を取得する。
// ProducerAuthで検証されていない場合は空文字列を返す。
func GetProducer(c *gin.Context) string {
	v, _ := c.Get(contextKeyProducer)
	if p, ok := v.(string); ok {
		return p
	}
	return ""
}
