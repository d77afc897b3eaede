package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func StringToInt64(s string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// 将 time.Duration 格式化为标准的 K 线周期字符串，如 "5m", "15m", "1h"
func FormatInterval(d time.Duration) string {
	// 优先处理天 (d)
	if d >= 24*time.Hour && d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", d/(24*time.Hour))
	}

	// 接着处理小时 (h)
	if d >= time.Hour && d%time.Hour == 0 {
		return fmt.Sprintf("%dh", d/time.Hour)
	}

	// 接着处理分钟 (m)
	if d >= time.Minute && d%time.Minute == 0 {
		return fmt.Sprintf("%dm", d/time.Minute)
	}

	// 接着处理秒 (s)
	if d >= time.Second && d%time.Second == 0 {
		return fmt.Sprintf("%ds", d/time.Second)
	}

	return d.String()
}

// 将 K 线周期字符串解析为 time.Duration
// 例如 "5m" -> 5*time.Minute, "5minute" -> 5*time.Minute
func ParseIntervalDuration(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "inute")
	s = strings.TrimSuffix(s, "our")
	s = strings.TrimSuffix(s, "ay")
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid interval format: %q", s)
	}

	unit := s[len(s)-1:]
	valueStr := s[:len(s)-1]

	var unitDuration time.Duration
	switch unit {
	case "s":
		unitDuration = time.Second
	case "m":
		unitDuration = time.Minute
	case "h":
		unitDuration = time.Hour
	case "d":
		unitDuration = 24 * time.Hour
	default:
		return 0, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil || value <= 0 {
		return 0, fmt.Errorf("invalid interval value: %s", valueStr)
	}

	return time.Duration(value) * unitDuration, nil
}

// ParseDate 解析 YYYY-MM-DD 日期，时间为 loc 时区的零点
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", s, err)
	}
	return t, nil
}
