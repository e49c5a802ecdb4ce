package memo

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/memo/pkg/devtoken"
)

// setupAuthRoutes は認証プロバイダへの中継ルートを登録する。
// これらのルートは認証ゲートウェイの除外対象（/api/auth/*）に含まれる。
func (s *Server) setupAuthRoutes() {
	auth := s.router.Group("/api/auth")
	{
		// アカウント登録
		auth.POST("/register", s.handleRegister())
		// 認証ユーザ情報取得
		auth.GET("/user", s.handleAuthUser())
		// ログイン
		auth.POST("/login", s.handleLogin())
		// ログアウト
		auth.POST("/logout", s.handleLogout())
		// GitHub認証リダイレクト
		auth.GET("/oauth2/github", s.handleGithubRedirect())

		// 開発用トークン発行（プロバイダ未設定時のみ）
		if s.devMode {
			auth.POST("/dev-token", s.handleDevToken())
		}
	}
}

// authForm は登録・ログインリクエストのJSON構造。
type authForm struct {
	// Email はメールアドレス。
	Email string `json:"email"`
	// Password はパスワード。
	Password string `json:"password"`
}

// baseHostURL はリダイレクト先のベースURLを組み立てる。
// リバースプロキシ配下ではX-Forwarded-Host / X-Forwarded-Protoを優先する。
func baseHostURL(c *gin.Context) string {
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	scheme := c.GetHeader("X-Forwarded-Proto")
	if scheme == "" {
		if c.Request.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return fmt.Sprintf("%s://%s/", scheme, host)
}

// bearerToken はAuthorizationヘッダーからトークン部分を取り出す。
// 接頭辞が無い場合は空文字列を返す。
func bearerToken(c *gin.Context) string {
	token, _ := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	return token
}

// requireProvider は認証プロバイダが設定されているかを確認する。
// 未設定の場合は503を返してfalseを返す。
func (s *Server) requireProvider(c *gin.Context) bool {
	if s.supabase == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "認証プロバイダが設定されていません"})
		return false
	}
	return true
}

// handleRegister はアカウント登録を処理するハンドラ。
// プロバイダがユーザーIDを返した場合のみ成功とし、確認メールの案内を返す。
func (s *Server) handleRegister() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requireProvider(c) {
			return
		}

		var form authForm
		_ = c.ShouldBindJSON(&form)

		result, _, err := s.supabase.Signup(c.Request.Context(), form.Email, form.Password, baseHostURL(c))
		if err != nil {
			log.Printf("アカウント登録エラー: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "Registration failed"})
			return
		}

		if id, ok := result["id"].(string); ok && id != "" {
			c.JSON(http.StatusOK, gin.H{"message": "Registration successful. Please check your email for confirmation."})
			return
		}
		c.JSON(http.StatusBadRequest, result)
	}
}

// handleAuthUser は認証済みユーザーの情報を返すハンドラ。
// 除外パス上にあるためゲートウェイは通らず、トークンはハンドラ内で
// 取り出してそのままプロバイダへ渡す。プロバイダのステータスを中継し、
// ヘッダーが無い場合はプロバイダが空トークンを拒否する。
func (s *Server) handleAuthUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requireProvider(c) {
			return
		}

		result, status, err := s.supabase.GetUserByAccessToken(c.Request.Context(), bearerToken(c))
		if err != nil {
			log.Printf("ユーザ情報取得エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get user"})
			return
		}

		c.JSON(status, gin.H{"email": result["email"]})
	}
}

// handleLogin はログインを処理するハンドラ。
// プロバイダのペイロードとステータスコードをそのまま中継する。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requireProvider(c) {
			return
		}

		var form authForm
		_ = c.ShouldBindJSON(&form)

		result, status, err := s.supabase.LoginWithPassword(c.Request.Context(), form.Email, form.Password)
		if err != nil {
			log.Printf("ログインエラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Login failed"})
			return
		}

		c.JSON(status, result)
	}
}

// handleLogout はログアウトを処理するハンドラ。
// プロバイダ側の結果に関わらず200を返す。
func (s *Server) handleLogout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requireProvider(c) {
			return
		}

		if _, _, err := s.supabase.Logout(c.Request.Context(), bearerToken(c)); err != nil {
			log.Printf("ログアウトエラー: %v", err)
		}

		c.JSON(http.StatusOK, gin.H{"message": "Logout successful."})
	}
}

// handleGithubRedirect はGitHub OAuth2認証の開始を処理するハンドラ。
// プロバイダの認可URLへ302リダイレクトする。
func (s *Server) handleGithubRedirect() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.requireProvider(c) {
			return
		}

		c.Redirect(http.StatusFound, s.supabase.GithubSigninURL(baseHostURL(c)))
	}
}

// handleDevToken は開発用トークンを発行するハンドラ。
// プロバイダ未設定の開発環境でのみ登録される。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := uuid.New().String()
		token, err := devtoken.Generate(s.jwtSecret, userID, "dev@localhost")
		if err != nil {
			log.Printf("開発用トークン生成エラー: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"token":   token,
			"user_id": userID,
		})
	}
}
