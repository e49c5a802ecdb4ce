package memo

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/nao1215/memo/pkg/supabase"
)

// setupAuthTestServer は認証プロバイダのモックを接続したメモサーバーを構築する。
// tokensに登録されたトークンのみプロバイダ側で有効と判定される。
func setupAuthTestServer(t *testing.T, tokens map[string]string) (*Server, *gin.Engine) {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("インメモリDBの作成に失敗: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := initSchema(sqlDB); err != nil {
		t.Fatalf("スキーマ初期化に失敗: %v", err)
	}

	// Supabase Auth APIのモックサーバー
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/signup":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if email, _ := body["email"].(string); email == "" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid email"}`)
				return
			}
			fmt.Fprint(w, `{"id":"registered-user-id"}`)

		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/token":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] == "correct" {
				fmt.Fprint(w, `{"access_token":"provider-token","token_type":"bearer"}`)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)

		case r.Method == http.MethodGet && r.URL.Path == "/auth/v1/user":
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if userID, ok := tokens[token]; ok && token != "" {
				fmt.Fprintf(w, `{"id":%q,"email":"%s@example.com"}`, userID, userID)
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"invalid token"}`)

		case r.Method == http.MethodPost && r.URL.Path == "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(provider.Close)

	router := gin.New()
	client := supabase.New(provider.URL, "test-anon-key")
	s := &Server{
		router:   router,
		port:     "0",
		db:       sqlDB,
		store:    NewStore(sqlDB),
		supabase: client,
		resolver: client,
	}
	s.setupRoutes()

	return s, router
}

// TestHandleRegister はPOST /api/auth/registerを検証する。
func TestHandleRegister(t *testing.T) {
	t.Parallel()

	t.Run("登録成功時に確認メールの案内が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/auth/register", "",
			map[string]string{"email": "new@example.com", "password": "pass"})

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if !strings.HasPrefix(body["message"], "Registration successful.") {
			t.Errorf("message = %q が期待値と異なる", body["message"])
		}
	})

	t.Run("プロバイダがIDを返さない場合400とペイロードが返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/auth/register", "",
			map[string]string{"password": "pass"})

		if w.Code != http.StatusBadRequest {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["error"] != "invalid email" {
			t.Errorf("error = %q, want %q", body["error"], "invalid email")
		}
	})
}

// TestHandleAuthUser はGET /api/auth/userを検証する。
func TestHandleAuthUser(t *testing.T) {
	t.Parallel()

	t.Run("有効なトークンでメールアドレスが返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, map[string]string{"valid-token": "u1"})

		w := doRequest(router, http.MethodGet, "/api/auth/user", "valid-token", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["email"] != "u1@example.com" {
			t.Errorf("email = %q, want %q", body["email"], "u1@example.com")
		}
	})

	t.Run("トークン無しでプロバイダのステータスが中継されること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, nil)

		w := doRequest(router, http.MethodGet, "/api/auth/user", "", nil)

		// 除外パスのためゲートウェイでは401にならず、プロバイダの判定が返る
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if email, ok := body["email"]; !ok || email != nil {
			t.Errorf("email = %v, want null", email)
		}
	})
}

// TestHandleLogin はPOST /api/auth/loginを検証する。
func TestHandleLogin(t *testing.T) {
	t.Parallel()

	t.Run("認証成功時にプロバイダのトークンペイロードが中継されること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/auth/login", "",
			map[string]string{"email": "u1@example.com", "password": "correct"})

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["access_token"] != "provider-token" {
			t.Errorf("access_token = %q, want %q", body["access_token"], "provider-token")
		}
	})

	t.Run("認証失敗時にプロバイダのステータスが中継されること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/auth/login", "",
			map[string]string{"email": "u1@example.com", "password": "wrong"})

		if w.Code != http.StatusBadRequest {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

// TestHandleLogout はPOST /api/auth/logoutを検証する。
func TestHandleLogout(t *testing.T) {
	t.Parallel()

	t.Run("常に200とメッセージが返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/auth/logout", "any-token", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["message"] != "Logout successful." {
			t.Errorf("message = %q, want %q", body["message"], "Logout successful.")
		}
	})
}

// TestHandleGithubRedirect はGET /api/auth/oauth2/githubを検証する。
func TestHandleGithubRedirect(t *testing.T) {
	t.Parallel()

	t.Run("プロバイダの認可URLへ302リダイレクトすること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, nil)

		req := httptest.NewRequest(http.MethodGet, "/api/auth/oauth2/github", nil)
		req.Header.Set("X-Forwarded-Host", "memo.example.com")
		req.Header.Set("X-Forwarded-Proto", "https")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusFound {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusFound)
		}
		location := w.Header().Get("Location")
		if !strings.Contains(location, "/auth/v1/authorize?provider=github") {
			t.Errorf("Location = %q に認可パスが含まれていない", location)
		}
		if !strings.Contains(location, "memo.example.com") {
			t.Errorf("Location = %q に転送先ホストが含まれていない", location)
		}
	})
}

// TestGatewayWithProvider はプロバイダ経由の認証ゲートウェイを検証する。
func TestGatewayWithProvider(t *testing.T) {
	t.Parallel()

	t.Run("プロバイダが有効と判定したトークンでメモAPIへアクセスできること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, map[string]string{"valid-token": "u1"})

		w := doRequest(router, http.MethodPost, "/api/memos", "valid-token",
			map[string]string{"title": "via provider"})

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
		}
		m := decodeMemo(t, w)
		if m.UserID != "u1" {
			t.Errorf("user_id = %q, want %q", m.UserID, "u1")
		}
	})

	t.Run("プロバイダが拒否したトークンで401が返ること", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, map[string]string{"valid-token": "u1"})

		w := doRequest(router, http.MethodGet, "/api/memos", "badtoken", nil)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusUnauthorized)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["error"] != "Unauthorized" {
			t.Errorf("error = %q, want %q", body["error"], "Unauthorized")
		}
	})
}

// TestHandleDevToken はPOST /api/auth/dev-tokenを検証する。
func TestHandleDevToken(t *testing.T) {
	t.Parallel()

	t.Run("開発モードでトークンとユーザーIDが発行されること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/auth/dev-token", "", nil)

		if w.Code != http.StatusOK {
			t.Fatalf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}
		if body["token"] == "" || body["user_id"] == "" {
			t.Errorf("token = %q, user_id = %q のいずれかが空", body["token"], body["user_id"])
		}
	})

	t.Run("発行されたトークンでメモAPIへアクセスできること", func(t *testing.T) {
		t.Parallel()

		_, router := setupTestServer(t)

		w := doRequest(router, http.MethodPost, "/api/auth/dev-token", "", nil)
		var issued map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &issued); err != nil {
			t.Fatalf("レスポンスボディのパースに失敗: %v", err)
		}

		w = doRequest(router, http.MethodGet, "/api/memos", issued["token"], nil)
		if w.Code != http.StatusOK {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("プロバイダ設定時はdev-tokenルートが存在しないこと", func(t *testing.T) {
		t.Parallel()

		_, router := setupAuthTestServer(t, nil)

		w := doRequest(router, http.MethodPost, "/api/auth/dev-token", "", nil)

		// ルート未登録のためNoRouteの静的ファイル配信に落ち、404になる
		if w.Code != http.StatusNotFound {
			t.Errorf("ステータスコード = %d, want %d", w.Code, http.StatusNotFound)
		}
	})
}
