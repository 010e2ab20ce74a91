// Package sqlite file: internal/adapter/datastore/sqlite/watcher.go
package sqlite

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartWatcher 监视文件型数据存储的底层文件，文件变更时使字段缓存
// 与连接池失效，下一次请求会重新打开并重新探测。
// 非文件型 DSN（例如纯内存库）不启动监视器。
func (m *Manager) StartWatcher() error {
	path := databaseFilePath(m.readURL)
	if path == "" {
		slog.Info("数据存储 DSN 非文件型，跳过文件监视器")
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 fsnotify watcher 失败: %w", err)
	}

	go func() {
		defer watcher.Close()
		slog.Info("数据存储文件监视 goroutine 已启动", "path", path)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					slog.Warn("文件监视器事件通道已关闭")
					return
				}
				m.handleFsEvent(event, path)
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					slog.Warn("文件监视器错误通道已关闭")
					return
				}
				slog.Error("文件监视器报告错误", "error", errWatch)
			}
		}
	}()

	// 监视所在目录而非文件本身，重命名/替换场景下事件更可靠
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("添加目录 '%s' 到监视器失败: %w", filepath.Dir(path), err)
	}
	return nil
}

// handleFsEvent 处理单个文件系统事件，带防抖。
// WAL 模式下写入先落在 -wal 旁路文件里，主文件要到 checkpoint 才变化，
// 因此主文件与 -wal 的事件都触发失效，并共用同一个防抖计时器。
func (m *Manager) handleFsEvent(event fsnotify.Event, watchedPath string) {
	cleanPath := filepath.Clean(event.Name)
	if cleanPath != watchedPath && cleanPath != watchedPath+"-wal" {
		return
	}

	m.eventTimersMu.Lock()
	defer m.eventTimersMu.Unlock()
	if timer, exists := m.eventTimers[watchedPath]; exists {
		timer.Stop()
	}
	m.eventTimers[watchedPath] = time.AfterFunc(debounceDuration, func() {
		slog.Info("数据存储文件发生变更，字段缓存与连接池已失效", "path", cleanPath)
		m.invalidate()
		m.eventTimersMu.Lock()
		delete(m.eventTimers, watchedPath)
		m.eventTimersMu.Unlock()
	})
}

// databaseFilePath 从 DSN 中提取底层数据库文件路径。
/// 支持 "file:<path>?opts" 与裸路径两种写法；内存库返回空串。
func databaseFilePath(dsn string) string {
	if dsn == "" {
		return ""
	}
	path := dsn
	if strings.HasPrefix(path, "file:") {
		path = strings.TrimPrefix(path, "file:")
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":") {
		return ""
	}
	if strings.Contains(dsn, "mode=memory") {
		return ""
	}
	return filepath.Clean(path)
}
