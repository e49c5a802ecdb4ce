// Package pathmatch はリクエストパスに対するglobパターン照合を提供する。
//
// 認証ミドルウェアが認証除外パスを判定するために使用する。
// シェルのfnmatchと同等のセマンティクスを持ち、`*` は `/` を含む
// 任意の文字列にマッチする点で path.Match とは異なる。
package pathmatch
