package app

import (
	"fmt"
	"strconv"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は定期同期を行うワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandSync は同期処理を1回だけ実行して終了することを示す。
	// cronなど外部のスケジューラから起動する場合に使う。
	CommandSync Command = "sync"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "sync":
		return CommandSync
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// MigrateAction はmigrateサブコマンドの操作。
type MigrateAction string

const (
	MigrateUp      MigrateAction = "up"      // 未適用のマイグレーションをすべて適用する
	MigrateDown    MigrateAction = "down"    // 適用済みのマイグレーションを戻す
	MigrateVersion MigrateAction = "version" // 現在のバージョンを表示する
)

// MigrateOptions はmigrateサブコマンドの引数を解析した結果。
type MigrateOptions struct {
	Action MigrateAction
	Steps  int // MigrateDownで戻す件数
}

// ParseMigrateArgs は "migrate" に続く引数を解析する。
//
//	migrate              すべて適用
//	migrate up           すべて適用
//	migrate down [n]     n件（デフォルト1件）戻す
//	migrate version      現在のバージョンを表示
func ParseMigrateArgs(args []string) (MigrateOptions, error) {
	if len(args) == 0 {
		return MigrateOptions{Action: MigrateUp}, nil
	}

	switch MigrateAction(args[0]) {
	case MigrateUp:
		if len(args) > 1 {
			return MigrateOptions{}, fmt.Errorf("migrate up takes no arguments")
		}
		return MigrateOptions{Action: MigrateUp}, nil
	case MigrateVersion:
		if len(args) > 1 {
			return MigrateOptions{}, fmt.Errorf("migrate version takes no arguments")
		}
		return MigrateOptions{Action: MigrateVersion}, nil
	case MigrateDown:
		opts := MigrateOptions{Action: MigrateDown, Steps: 1}
		switch len(args) {
		case 1:
		case 2:
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return MigrateOptions{}, fmt.Errorf("invalid rollback steps: %q", args[1])
			}
			opts.Steps = n
		default:
			return MigrateOptions{}, fmt.Errorf("migrate down takes at most one argument")
		}
		return opts, nil
	default:
		return MigrateOptions{}, fmt.Errorf("unknown migrate action: %q", args[0])
	}
}
