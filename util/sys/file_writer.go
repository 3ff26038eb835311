package sys

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// BackupFile 把 filePath 复制为 filePath.bak.<unix>，返回备份路径；源文件不存在时返回空路径
func BackupFile(filePath string) (string, error) {
	src, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer func() { _ = src.Close() }()

	backupPath := fmt.Sprintf("%s.bak.%d", filePath, time.Now().Unix())
	dst, err := os.OpenFile(backupPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("create backup: %w", err)
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("copy backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("sync backup: %w", err)
	}
	return backupPath, nil
}

// AtomicWriteFile 写临时文件再 rename，读者只会看到旧内容或完整的新内容
func AtomicWriteFile(filePath string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		return fmt.Errorf("rename into %s: %w", filePath, err)
	}
	return nil
}

// FileMode 返回已有文件的权限，不存在时返回 fallback
func FileMode(filePath string, fallback os.FileMode) os.FileMode {
	if info, err := os.Stat(filePath); err == nil {
		return info.Mode().Perm()
	}
	return fallback
}
