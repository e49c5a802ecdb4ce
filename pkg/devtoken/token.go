// Package devtoken は認証プロバイダ無しで動作させるためのローカルトークンを提供する。
//
// SUPABASE_URLが未設定の開発環境向けに、HS256署名のJWTを発行・検証する。
// Resolverはmiddleware.IdentityResolverを実装し、本番のプロバイダと
// 差し替え可能な形で認証ゲートウェイに注入される。
package devtoken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims は開発用トークンのクレーム（ペイロード）を表す。
type Claims struct {
	jwt.RegisteredClaims
	// UserID は認証済みユーザーの一意識別子。
	UserID string `json:"user_id"`
	// Email はユーザーのメールアドレス。
	Email string `json:"email"`
}

// issuer は開発用トークンの発行者名。
const issuer = "memo-dev"

// Generate はユーザー情報から開発用JWTトークンを生成する。
// 有効期限は24時間。
func Generate(secret, userID, email string) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    issuer,
		},
		UserID: userID,
		Email:  email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗: %w", err)
	}
	return signed, nil
}

// Resolver は開発用JWTトークンを検証するIdentityResolver実装。
type Resolver struct {
	// secret はHS256署名の検証に使用する秘密鍵。
	secret string
}

// NewResolver は開発用トークンのResolverを生成する。
func NewResolver(secret string) *Resolver {
	return &Resolver{secret: secret}
}

// ResolveToken はトークンを検証し、クレーム内のユーザーIDを返す。
// 署名不正・期限切れ・ユーザーID欠落はいずれもエラーとする。
func (r *Resolver) ResolveToken(_ context.Context, tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return []byte(r.secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("トークンの検証に失敗: %w", err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", errors.New("トークンが無効")
	}
	return claims.UserID, nil
}
