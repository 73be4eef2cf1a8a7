package logx

import (
	"log/slog"
	"time"
)

// Progress 输出批量处理进度：每完成 step 个或全部完成时打印一行。
// 非并发安全（批量处理为串行）。
type Progress struct {
	name  string
	total int
	done  int
	step  int
	start time.Time
}

// NewProgress 创建进度；step 按 total 的约 10% 取整，至少为 1。
func NewProgress(name string, total int) *Progress {
	step := total / 10
	if step < 1 {
		step = 1
	}
	return &Progress{name: name, total: total, step: step, start: time.Now()}
}

// Done 返回已完成数。
func (p *Progress) Done() int { return p.done }

// Add 记录完成 n 个。
func (p *Progress) Add(n int) {
	before := p.done
	p.done += n
	if p.done/p.step == before/p.step && p.done != p.total {
		return
	}
	slog.Info("进度",
		slog.String("task", p.name),
		slog.Int("done", p.done),
		slog.Int("total", p.total),
		slog.Duration("elapsed", time.Since(p.start).Round(time.Millisecond)),
	)
}
