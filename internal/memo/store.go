package memo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound はメモが存在しない、または現在のユーザーが所有していない
// ことを表すエラー。所有者不一致と不存在は呼び出し元から区別できない。
var ErrNotFound = errors.New("メモが見つからない")

// Memo はメモのレコードを表す。
type Memo struct {
	// ID はメモの一意識別子（サーバー採番）。
	ID int64
	// UserID はメモを所有するユーザーのID。
	UserID string
	// Title はメモのタイトル。
	Title string
	// Content はメモの本文。
	Content string
	// CreatedAt は作成日時。
	CreatedAt time.Time
}

// Store はメモの永続化を担うSQLiteストア。
// すべての読み書きはユーザーIDでスコープされる。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sql.DB
}

// NewStore は新しいメモストアを生成する。
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// List はユーザーのメモ一覧を作成日時の降順で返す。
func (s *Store) List(ctx context.Context, userID string) ([]Memo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, content, created_at
		FROM memos
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("メモ一覧の取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	memos := []Memo{}
	for rows.Next() {
		m, err := scanMemo(rows)
		if err != nil {
			return nil, fmt.Errorf("メモ行の読み取りに失敗: %w", err)
		}
		memos = append(memos, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メモ一覧の走査に失敗: %w", err)
	}
	return memos, nil
}

// Create は新しいメモを作成して返す。IDと作成日時はサーバーが採番する。
func (s *Store) Create(ctx context.Context, userID, title, content string) (Memo, error) {
	var created Memo
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO memos (user_id, title, content, created_at)
			VALUES (?, ?, ?, ?)
		`, userID, title, content, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("メモの挿入に失敗: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("採番されたIDの取得に失敗: %w", err)
		}

		created, err = getMemoTx(ctx, tx, id, userID)
		return err
	})
	if err != nil {
		return Memo{}, err
	}
	return created, nil
}

// Update は指定されたメモの内容を部分更新して返す。
// nilのフィールドは更新前の値を保持する。
// メモが存在しないか所有者が異なる場合はErrNotFoundを返す。
func (s *Store) Update(ctx context.Context, id int64, userID string, title, content *string) (Memo, error) {
	var updated Memo
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getMemoTx(ctx, tx, id, userID)
		if err != nil {
			return err
		}

		newTitle := current.Title
		if title != nil {
			newTitle = *title
		}
		newContent := current.Content
		if content != nil {
			newContent = *content
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE memos SET title = ?, content = ?
			WHERE id = ? AND user_id = ?
		`, newTitle, newContent, id, userID); err != nil {
			return fmt.Errorf("メモの更新に失敗: %w", err)
		}

		updated = current
		updated.Title = newTitle
		updated.Content = newContent
		return nil
	})
	if err != nil {
		return Memo{}, err
	}
	return updated, nil
}

// Delete は指定されたメモを削除する。
// メモが存在しないか所有者が異なる場合はErrNotFoundを返す。
func (s *Store) Delete(ctx context.Context, id int64, userID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			DELETE FROM memos WHERE id = ? AND user_id = ?
		`, id, userID)
		if err != nil {
			return fmt.Errorf("メモの削除に失敗: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("削除行数の取得に失敗: %w", err)
		}
		if affected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// withTx は更新系操作をトランザクション内で実行する共通処理。
// fnがエラーを返した場合はロールバックし、成功時のみコミットする。
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗: %w", err)
	}
	return nil
}

// getMemoTx はトランザクション内でメモを1件取得する。
// 所有者スコープ付きで検索し、見つからない場合はErrNotFoundを返す。
func getMemoTx(ctx context.Context, tx *sql.Tx, id int64, userID string) (Memo, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, user_id, title, content, created_at
		FROM memos
		WHERE id = ? AND user_id = ?
	`, id, userID)

	m, err := scanMemo(row)
	if err == sql.ErrNoRows {
		return Memo{}, ErrNotFound
	}
	if err != nil {
		return Memo{}, fmt.Errorf("メモの取得に失敗: %w", err)
	}
	return m, nil
}

// rowScanner はsql.Rowとsql.Rowsの共通インタフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMemo は行をMemoに変換する。contentのNULLは空文字列として扱う。
func scanMemo(row rowScanner) (Memo, error) {
	var m Memo
	var content sql.NullString
	if err := row.Scan(&m.ID, &m.UserID, &m.Title, &content, &m.CreatedAt); err != nil {
		return Memo{}, err
	}
	m.Content = content.String
	return m, nil
}
