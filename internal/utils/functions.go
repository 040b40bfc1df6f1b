package utils

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

func GetRandomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}

// RenewOutputPath returns the first "name-(n).ext" next to outputPath that does
// not exist yet.
func RenewOutputPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := filepath.Base(outputPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	for index := 1; ; index++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s-(%d)%s", name, index, ext))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

// InferFileName picks a local file name from the last URL path segment.
func InferFileName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return DefaultFileName
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return DefaultFileName
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}

// ParseHeaderArgs turns "Name: value" arguments into a header map. Arguments
// without a colon are ignored.
func ParseHeaderArgs(headers []string) map[string]string {
	result := make(map[string]string)
	for _, header := range headers {
		key, value, ok := strings.Cut(header, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}

// ParseParamArgs turns "key=value" arguments into ordered key/value pairs.
func ParseParamArgs(params []string) ([][2]string, error) {
	var result [][2]string
	for _, param := range params {
		key, value, ok := strings.Cut(param, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q, expected key=value", param)
		}
		result = append(result, [2]string{key, value})
	}
	return result, nil
}

func FormatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := uint64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func FormatSpeed(bytes int64, elapsed float64) string {
	if elapsed <= 0 || bytes <= 0 {
		return "0 B/s"
	}
	return FormatBytes(uint64(float64(bytes)/elapsed)) + "/s"
}
