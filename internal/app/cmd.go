package app

import "strings"

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandSearch はフェッチサイクルを1回実行して結果を出力することを示す。
	CommandSearch Command = "search"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	case "search":
		return CommandSearch
	default:
		return CommandServe
	}
}

// SearchTerm はsearchサブコマンドの検索語を返す。
// 指定がない場合は空文字列を返し、保存済みの検索語が使われる。
func SearchTerm(args []string) string {
	if len(args) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.Join(args[1:], " "))
}
