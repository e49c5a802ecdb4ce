package memo

import (
	"database/sql"
	"fmt"
)

// スキーマ定義。
const schema = `
CREATE TABLE IF NOT EXISTS memos (
    -- メモの一意識別子
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    -- メモを所有するユーザーのID
    user_id TEXT NOT NULL,
    -- メモのタイトル
    title TEXT NOT NULL,
    -- メモの本文
    content TEXT,
    -- 作成日時
    created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

-- ユーザーIDでの検索を高速化するインデックス。
CREATE INDEX IF NOT EXISTS idx_memos_user_id
    ON memos(user_id);
`

// initSchema はSQLiteデータベースにスキーマを適用する。
func initSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("スキーマの適用に失敗: %w", err)
	}
	return nil
}
