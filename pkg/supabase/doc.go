// Package supabase はSupabase Auth APIへのHTTPクライアントを提供する。
//
// サインアップ・ログイン・トークン検証・ログアウトなど、
// 認証プロバイダへの問い合わせを統一したインタフェースで行う。
// プロバイダのステータスコードをそのまま呼び出し元へ返すため、
// 認証ルートはプロバイダのレスポンスを中継できる。
package supabase
