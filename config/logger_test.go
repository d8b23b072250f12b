package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSetupLoggerWritesDatedFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("LOG_DIR", dir)
	defer log.SetOutput(os.Stderr)

	if err := SetupLogger(); err != nil {
		t.Fatalf("SetupLogger() 失败: %v", err)
	}

	Info("测试信息 %d", 42)
	Warning("测试警告")
	log.Printf("[轮播] 引擎日志也应进同一文件")

	name := filepath.Join(dir, fmt.Sprintf("display-%s.log", time.Now().Format("2006-01-02")))
	data, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("日志文件应按天命名: %v", err)
	}

	content := string(data)
	if !strings.Contains(content, "INFO: ") || !strings.Contains(content, "测试信息 42") {
		t.Errorf("日志文件缺少INFO记录: %q", content)
	}
	if !strings.Contains(content, "WARNING: ") {
		t.Errorf("日志文件缺少WARNING记录: %q", content)
	}
	if !strings.Contains(content, "[轮播]") {
		t.Errorf("标准log输出应接入同一文件: %q", content)
	}
}

func TestLoggerFallsBackBeforeSetup(t *testing.T) {
	saved := InfoLogger
	InfoLogger = nil
	defer func() { InfoLogger = saved }()

	// 未初始化时不应panic，降级到标准log
	Info("未初始化时的日志 %s", "ok")
}
