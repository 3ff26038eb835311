package xray

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/mayugoro/xray/util/common"
	"github.com/mayugoro/xray/util/sys"
)

// Version 执行 `xray version`，返回第一行中的版本号
func Version(ctx context.Context, runner sys.Runner, bin string) (string, error) {
	stdout, stderr, err := runner.Run(ctx, bin, "version")
	if err != nil {
		return "", common.NewErrorf("xray version: %s", sys.CommandDetail(stdout, stderr, err))
	}
	v := parseVersion(string(stdout))
	if v == "" {
		return "", common.NewErrorf("xray version: unrecognised output %q", firstLine(string(stdout)))
	}
	return v, nil
}

// parseVersion "Xray 1.8.24 (Xray, Penetrates Everything.) ..." -> "1.8.24"
func parseVersion(out string) string {
	fields := strings.Fields(firstLine(out))
	if len(fields) < 2 || !strings.EqualFold(fields[0], "xray") {
		return ""
	}
	return fields[1]
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// AccessLogPath 读取配置中的 log.access，未配置或为 "none" 时返回空串
func AccessLogPath(configPath string) (string, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	var doc struct {
		Log *struct {
			Access string `json:"access"`
		} `json:"log"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", common.Wrap("read access log path", common.ErrConfigMalformed)
	}
	if doc.Log == nil {
		return "", nil
	}
	access := strings.TrimSpace(doc.Log.Access)
	if strings.EqualFold(access, "none") {
		return "", nil
	}
	return access, nil
}
