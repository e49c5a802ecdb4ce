// メモサービスのエントリポイント。
// 認証プロバイダへの中継ルートと、ユーザー単位のメモCRUD APIを提供する。
package main

import (
	"log"
	"os"

	"github.com/nao1215/memo/internal/memo"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8180"
	}

	server, err := memo.NewServer(port)
	if err != nil {
		log.Fatalf("メモサーバーの初期化に失敗: %v", err)
	}

	log.Printf("メモサービスを起動します: :%s", port)
	if err := server.Run(); err != nil {
		log.Fatalf("メモサービスの起動に失敗: %v", err)
	}
}
