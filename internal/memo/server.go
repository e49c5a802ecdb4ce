package memo

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	_ "modernc.org/sqlite"

	"github.com/nao1215/memo/pkg/devtoken"
	"github.com/nao1215/memo/pkg/middleware"
	"github.com/nao1215/memo/pkg/supabase"
)

// bypassPatterns は認証ゲートウェイを通過させるパスのglobパターン。
// 静的ファイルと認証ルートのみ認証不要とする。
var bypassPatterns = []string{
	"/", "/*.html", "/*.css", "/*.js", "/favicon.ico",
	"/api/auth/*",
}

// staticDir は静的ファイルの配信元ディレクトリ。
const staticDir = "./static"

// Server はメモサービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store はメモの永続化ストア。
	store *Store
	// supabase は認証プロバイダへのクライアント。開発モードではnil。
	supabase *supabase.Client
	// resolver は認証ゲートウェイに注入するトークン解決器。
	resolver middleware.IdentityResolver
	// jwtSecret は開発用トークンの署名鍵。開発モードのみ使用する。
	jwtSecret string
	// devMode は認証プロバイダ無しで動作しているかどうか。
	devMode bool
}

// NewServer は新しいメモサーバーを生成する。
// SQLiteデータベースの初期化とスキーマ作成を行い、
// SUPABASE_URLの有無に応じてトークン解決器を選択する。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("MEMO_DB_PATH", "/data/memo.db?_journal_mode=WAL&_busy_timeout=5000")
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	jwtSecret := getEnvOr("JWT_SECRET", "dev-secret-key")

	s := &Server{
		port:      port,
		db:        sqlDB,
		store:     NewStore(sqlDB),
		jwtSecret: jwtSecret,
	}

	// 認証プロバイダが設定されていない場合はローカルの開発用トークンで動作させる
	if supabaseURL := os.Getenv("SUPABASE_URL"); supabaseURL != "" {
		s.supabase = supabase.New(supabaseURL, os.Getenv("SUPABASE_ANON_KEY"))
		s.resolver = s.supabase
	} else {
		log.Println("SUPABASE_URLが未設定のため開発用トークンで動作します")
		s.resolver = devtoken.NewResolver(jwtSecret)
		s.devMode = true
	}

	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS([]string{frontendURL, "http://localhost:8080"}))

	s.router = router
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
// 認証ルート・ヘルスチェック・デフォルトページはゲートウェイより先に
// 登録して認証不要とし、その後に認証ゲートウェイを適用してから
// メモルートと静的ファイル配信を登録する。
func (s *Server) setupRoutes() {
	// 認証ルート（認証不要）
	s.setupAuthRoutes()

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "memo"})
	})

	// デフォルトページ
	s.router.GET("/", func(c *gin.Context) {
		c.File(staticDir + "/index.html")
	})

	// ここから後に登録されるルートと静的ファイル配信に認証ゲートウェイが適用される
	s.router.Use(middleware.Auth(s.resolver, bypassPatterns))

	memos := s.router.Group("/api/memos")
	{
		// メモ一覧取得
		memos.GET("", s.handleList())
		// メモ作成
		memos.POST("", s.handleCreate())
		// メモ更新
		memos.PUT("/:id", s.handleUpdate())
		// メモ削除
		memos.DELETE("/:id", s.handleDelete())
	}

	// 静的ファイル配信。除外パターンにマッチするパスのみゲートウェイを通過する
	s.router.NoRoute(func(c *gin.Context) {
		c.File(staticDir + c.Request.URL.Path)
	})
}

// memoRequest はメモ作成・更新リクエストのJSON構造。
// 更新時はnilのフィールドが「変更しない」を意味する。
type memoRequest struct {
	// Title はメモのタイトル。
	Title *string `json:"title"`
	// Content はメモの本文。
	Content *string `json:"content"`
}

// memoResponse はメモのJSONレスポンス構造。
type memoResponse struct {
	// ID はメモの一意識別子。
	ID int64 `json:"id"`
	// UserID はメモを所有するユーザーのID。
	UserID string `json:"user_id"`
	// Title はメモのタイトル。
	Title string `json:"title"`
	// Content はメモの本文。
	Content string `json:"content"`
	// CreatedAt は作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toMemoResponse はストアのレコードをJSONレスポンスに変換する。
func toMemoResponse(m Memo) memoResponse {
	return memoResponse{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		Content:   m.Content,
		CreatedAt: m.CreatedAt.Format(time.RFC3339),
	}
}

// respondStoreError はストア操作の失敗をHTTPレスポンスへ変換する共通処理。
// ErrNotFoundは404、それ以外は500としてエラーメッセージを返す。
func respondStoreError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Memo not found"})
		return
	}
	log.Printf("ストア操作エラー: request_id=%s, %v", middleware.GetRequestID(c), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Database error: %v", err)})
}

// handleList は認証済みユーザーのメモ一覧を返すハンドラ。
// 作成日時の降順でソートされる。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		memos, err := s.store.List(c.Request.Context(), userID)
		if err != nil {
			respondStoreError(c, err)
			return
		}

		responses := make([]memoResponse, 0, len(memos))
		for _, m := range memos {
			responses = append(responses, toMemoResponse(m))
		}

		c.JSON(http.StatusOK, responses)
	}
}

// handleCreate はメモ作成を処理するハンドラ。
// タイトルと本文は省略時に空文字列となる。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		// ボディ無し・不正JSONは空のリクエストとして扱う
		var req memoRequest
		_ = c.ShouldBindJSON(&req)

		title, content := "", ""
		if req.Title != nil {
			title = *req.Title
		}
		if req.Content != nil {
			content = *req.Content
		}

		created, err := s.store.Create(c.Request.Context(), userID, title, content)
		if err != nil {
			respondStoreError(c, err)
			return
		}

		c.JSON(http.StatusOK, toMemoResponse(created))
	}
}

// handleUpdate はメモの部分更新を処理するハンドラ。
// リクエストに含まれないフィールドは更新前の値を保持する。
// 他のユーザーが所有するメモは存在しないメモと同じ404になる。
func (s *Server) handleUpdate() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Memo not found"})
			return
		}

		var req memoRequest
		_ = c.ShouldBindJSON(&req)

		updated, err := s.store.Update(c.Request.Context(), id, userID, req.Title, req.Content)
		if err != nil {
			respondStoreError(c, err)
			return
		}

		c.JSON(http.StatusOK, toMemoResponse(updated))
	}
}

// handleDelete はメモ削除を処理するハンドラ。
// 他のユーザーが所有するメモは存在しないメモと同じ404になる。
func (s *Server) handleDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}

		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Memo not found"})
			return
		}

		if err := s.store.Delete(c.Request.Context(), id, userID); err != nil {
			respondStoreError(c, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"id": id})
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
