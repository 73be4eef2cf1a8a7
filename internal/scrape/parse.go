package scrape

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-keiba-collector/internal/model"
)

var (
	intRe   = regexp.MustCompile(`\d+`)
	floatRe = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// 1:12.3
	colonTimeRe = regexp.MustCompile(`^(\d+):(\d{1,2}(?:\.\d+)?)$`)
	// 1.12.3
	dotTimeRe = regexp.MustCompile(`^(\d+)\.(\d{2})\.(\d+)$`)
)

// parseDate 按候选布局解析日期，返回 UTC 零点。
func parseDate(layouts []string, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return model.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// firstInt 取文本中第一段数字（忽略千分位逗号），没有数字时 ok=false。
func firstInt(s string) (int, bool) {
	m := intRe.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	return n, err == nil
}

// intOrZero 用于非空字段：无法解析时为 0。
func intOrZero(s string) int {
	n, _ := firstInt(s)
	return n
}

// optInt 用于可空字段：空或无法解析时为 nil。
func optInt(s string) *int {
	n, ok := firstInt(s)
	if !ok {
		return nil
	}
	return &n
}

func optFloat(s string) *float64 {
	m := floatRe.FindString(strings.ReplaceAll(s, ",", ""))
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return &f
}

// optDuration 解析走破时计：支持 "1:12.3"、"1.12.3" 与纯秒数 "72.3"；否则为 nil。
func optDuration(s string) *time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var secs float64
	if m := colonTimeRe.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		sec, _ := strconv.ParseFloat(m[2], 64)
		secs = float64(mins)*60 + sec
	} else if m := dotTimeRe.FindStringSubmatch(s); m != nil {
		mins, _ := strconv.Atoi(m[1])
		sec, _ := strconv.ParseFloat(m[2]+"."+m[3], 64)
		secs = float64(mins)*60 + sec
	} else if f, err := strconv.ParseFloat(s, 64); err == nil {
		secs = f
	} else {
		return nil
	}
	d := time.Duration(math.Round(secs * float64(time.Second)))
	return &d
}

// trackType 归一化场地类型：芝 / ダート / 障害；其他去掉数字与单位后原样返回。
func trackType(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "芝"):
		return "芝"
	case strings.HasPrefix(s, "ダ"):
		return "ダート"
	case strings.HasPrefix(s, "障"):
		return "障害"
	}
	s = intRe.ReplaceAllString(s, "")
	return strings.TrimSpace(strings.TrimSuffix(s, "m"))
}
