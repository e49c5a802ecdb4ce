// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// Bearerトークンの認証ゲートウェイ、パニックリカバリ、CORS設定、
// リクエストID付与など、サービス全体で共通して使用するミドルウェアを含む。
package middleware
