// Package logger 是 log/slog 的輕量門面：printf 風格介面，
// 輸出目標與等級可在執行期切換，其餘一律交給 slog。
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

var (
	level slog.LevelVar

	mu      sync.RWMutex
	current = textLogger(os.Stdout)
)

func textLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &level}))
}

// SetOutput 重新導向日誌輸出；nil 回到標準輸出。
func SetOutput(w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	mu.Lock()
	current = textLogger(w)
	mu.Unlock()
}

// SetLevel 以名稱設定等級（debug/info/warn/error），未知名稱回到 info。
func SetLevel(name string) {
	lv, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		lv = slog.LevelInfo
	}
	level.Set(lv)
}

func active() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func Debugf(format string, v ...any) { active().Debug(fmt.Sprintf(format, v...)) }
func Infof(format string, v ...any)  { active().Info(fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...any)  { active().Warn(fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...any) { active().Error(fmt.Sprintf(format, v...)) }
