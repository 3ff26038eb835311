package common

import "fmt"

// FormatTraffic 把字节数换算成 B/KB/MB/GB，阈值 1024，B 以上保留两位小数
func FormatTraffic(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	size := float64(bytes)
	units := []string{"KB", "MB", "GB"}
	unit := ""
	for _, u := range units {
		size /= 1024
		unit = u
		if size < 1024 {
			break
		}
	}
	return fmt.Sprintf("%.2f %s", size, unit)
}
