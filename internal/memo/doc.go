// Package memo はメモサービスの内部実装を提供する。
//
// メモのCRUD APIと認証プロバイダへの中継ルートを持つ単一のHTTPサーバー。
// メモはユーザー単位で所有され、すべての読み書きは認証ゲートウェイが
// 付与したユーザーIDでスコープされる。
package memo
