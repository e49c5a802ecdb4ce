package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/memo/pkg/pathmatch"
)

// IdentityResolver は不透明なBearerトークンをユーザーIDへ解決する。
// 実装は外部の認証プロバイダ（Supabase Auth等）への問い合わせを想定する。
type IdentityResolver interface {
	// ResolveToken はトークンを検証し、認証済みユーザーの一意識別子を返す。
	// トークンが無効な場合や識別子を得られない場合はエラーを返す。
	ResolveToken(ctx context.Context, token string) (string, error)
}

// bearerPrefix はAuthorizationヘッダーに要求する接頭辞。
// 末尾のスペース1つを含めて厳密に比較する。
const bearerPrefix = "Bearer "

// Auth はBearerトークンを検証する認証ゲートウェイのGinミドルウェアを返す。
//
// リクエストパスがbypassPatternsのいずれかにマッチする場合は認証を行わず
// そのまま通過させる。それ以外のパスではAuthorizationヘッダーから
// トークンを抽出してresolverで解決し、成功した場合のみコンテキストに
// "user_id" を設定して後続ハンドラへ進める。
//
// ヘッダーの欠落・形式不正・解決失敗はいずれも同一の401レスポンスに
// 収束させ、どの検査で失敗したかを外部に漏らさない。
// 解決結果のキャッシュやリトライは行わない。
func Auth(resolver IdentityResolver, bypassPatterns []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if pathmatch.Any(c.Request.URL.Path, bypassPatterns) {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(authHeader, bearerPrefix)
		if !found {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		// トークンは空文字列でもそのままresolverへ渡す
		userID, err := resolver.ResolveToken(c.Request.Context(), token)
		if err != nil || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		c.Set("user_id", userID)
		c.Next()
	}
}

// GetUserID はGinコンテキストから認証済みユーザーIDを取得する。
// Authミドルウェアが事前に適用されている必要がある。
// 未設定の場合は空文字列を返す。
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
