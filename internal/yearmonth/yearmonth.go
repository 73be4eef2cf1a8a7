// 包 yearmonth 处理以 year*100+month 编码的年月键（如 201801），
// 并生成闭区间内的年月序列。
package yearmonth

import (
	"fmt"
	"iter"
)

// Split 拆分为年与月。
func Split(ym int) (year, month int) { return ym / 100, ym % 100 }

// Join 组合年与月。
func Join(year, month int) int { return year*100 + month }

// Valid 月份须在 1..12。
func Valid(ym int) bool {
	_, m := Split(ym)
	return ym > 0 && m >= 1 && m <= 12
}

// Next 返回下一个月，12 月进位到次年 1 月。
func Next(ym int) int {
	y, m := Split(ym)
	if m >= 12 {
		return Join(y+1, 1)
	}
	return ym + 1
}

// Range 惰性生成 [start, end] 内严格递增的年月；start > end 时为空。
// 返回的序列可重复遍历。
func Range(start, end int) iter.Seq[int] {
	return func(yield func(int) bool) {
		for ym := start; ym <= end; ym = Next(ym) {
			if !yield(ym) {
				return
			}
		}
	}
}

// Parse 解析并校验命令行中的年月参数。
func Parse(s string) (int, error) {
	var ym int
	if _, err := fmt.Sscanf(s, "%d", &ym); err != nil {
		return 0, fmt.Errorf("parse year-month %q: %w", s, err)
	}
	if !Valid(ym) {
		return 0, fmt.Errorf("invalid year-month %q: want YYYYMM", s)
	}
	return ym, nil
}
