package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client はSupabase Auth APIへのHTTPクライアント。
// 認証プロバイダとの通信をすべて担当する。
type Client struct {
	// httpClient は内部で使用するHTTPクライアント。
	httpClient *http.Client
	// baseURL はSupabaseプロジェクトのベースURL。
	baseURL string
	// anonKey はSupabaseの匿名APIキー。
	anonKey string
}

// New は新しいSupabase Authクライアントを生成する。
// baseURLにはSupabaseプロジェクトのURL（例: "https://xyz.supabase.co"）を指定する。
func New(baseURL, anonKey string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: baseURL,
		anonKey: anonKey,
	}
}

// Result はプロバイダのレスポンスペイロード。
// プロバイダのJSONをそのまま保持し、ハンドラが中継できるようにする。
type Result map[string]any

// stringField はペイロードから文字列フィールドを取り出す。
// 存在しない場合や文字列以外の場合は空文字列を返す。
func (r Result) stringField(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Signup はメールアドレスとパスワードでアカウント登録を行う。
// redirectToは確認メール内のリンクの戻り先URL。
func (c *Client) Signup(ctx context.Context, email, password, redirectTo string) (Result, int, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"options": map[string]any{
			"email_redirect_to": redirectTo,
		},
	}
	return c.doJSON(ctx, http.MethodPost, "/auth/v1/signup", body, "")
}

// LoginWithPassword はメールアドレスとパスワードでログインする。
// 成功時のペイロードにはアクセストークンが含まれる。
func (c *Client) LoginWithPassword(ctx context.Context, email, password string) (Result, int, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	return c.doJSON(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", body, "")
}

// GetUserByAccessToken はアクセストークンからユーザー情報を取得する。
func (c *Client) GetUserByAccessToken(ctx context.Context, accessToken string) (Result, int, error) {
	return c.doJSON(ctx, http.MethodGet, "/auth/v1/user", nil, accessToken)
}

// Logout はアクセストークンのセッションを無効化する。
func (c *Client) Logout(ctx context.Context, accessToken string) (Result, int, error) {
	return c.doJSON(ctx, http.MethodPost, "/auth/v1/logout", nil, accessToken)
}

// GithubSigninURL はGitHub OAuth2認証を開始するためのURLを返す。
// 認証完了後はredirectToへリダイレクトされる。
func (c *Client) GithubSigninURL(redirectTo string) string {
	return fmt.Sprintf("%s/auth/v1/authorize?provider=github&redirect_to=%s&scopes=user:email",
		c.baseURL, url.QueryEscape(redirectTo))
}

// ResolveToken はアクセストークンを検証し、ユーザーIDを返す。
// middleware.IdentityResolverを実装する。
// プロバイダがユーザーIDを返さない場合は理由を区別せずエラーとする。
func (c *Client) ResolveToken(ctx context.Context, token string) (string, error) {
	result, status, err := c.GetUserByAccessToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("ユーザー情報の取得に失敗: %w", err)
	}

	userID := result.stringField("id")
	if status < 200 || status >= 300 || userID == "" {
		return "", fmt.Errorf("トークンの解決に失敗: status=%d", status)
	}
	return userID, nil
}

// doJSON はSupabase APIへのJSONリクエストを実行する共通処理。
// プロバイダのレスポンスボディとステータスコードを返す。
// ネットワークエラー等でレスポンスを得られなかった場合のみエラーを返す。
func (c *Client) doJSON(ctx context.Context, method, path string, body any, accessToken string) (Result, int, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("リクエストボディのシリアライズに失敗: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.anonKey)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの送信に失敗: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("レスポンスボディの読み取りに失敗: %w", err)
	}

	// プロバイダがJSON以外を返した場合でもステータスコードは伝える
	result := Result{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return Result{}, resp.StatusCode, nil
		}
	}
	return result, resp.StatusCode, nil
}
