// 包 collect 负责主流程编排：
// - 开催日历 → 比赛列表 → 比赛结果 → 马匹履历，全部经由读穿缓存
// - 组装训练行并写出 CSV
// - 结束时输出各缓存命中统计
package collect

import (
	"context"
	"errors"
	"fmt"

	"go-keiba-collector/internal/cached"
	"go-keiba-collector/internal/export"
	"go-keiba-collector/internal/feature"
	"go-keiba-collector/internal/logx"
	"go-keiba-collector/internal/yearmonth"
)

// Plan 为一次收集的参数。
type Plan struct {
	Start   int // YYYYMM
	End     int // YYYYMM
	Course  string
	OutFile string
}

// Validate 检查年月与必填项。
func (p Plan) Validate() error {
	if !yearmonth.Valid(p.Start) {
		return fmt.Errorf("invalid start %d (want YYYYMM)", p.Start)
	}
	if !yearmonth.Valid(p.End) {
		return fmt.Errorf("invalid end %d (want YYYYMM)", p.End)
	}
	if p.Course == "" {
		return errors.New("course is required")
	}
	if p.OutFile == "" {
		return errors.New("output file is required")
	}
	return nil
}

// Report 为一次收集的结果计数。
type Report struct {
	RaceDays int
	Races    int
	Results  int
	Horses   int
	Rows     int
	Caches   []cached.CacheSummary
}

// Runner 收集执行器，持有缓存门面。
type Runner struct {
	access *cached.Access
}

// New 创建 Runner。
func New(access *cached.Access) *Runner {
	return &Runner{access: access}
}

// Run 执行一轮收集。任一阶段出错立即返回，已缓存的键保留供下次续跑。
func (r *Runner) Run(ctx context.Context, p Plan) (Report, error) {
	var rep Report
	if err := p.Validate(); err != nil {
		return rep, err
	}
	logx.Infof("开始收集：%d-%d 竞马场=%s", p.Start, p.End, p.Course)

	days, err := r.access.ReadRaceDays(ctx, p.Start, p.End, p.Course)
	if err != nil {
		return rep, fmt.Errorf("read race days: %w", err)
	}
	rep.RaceDays = len(days)
	dayURLs := make([]string, 0, len(days))
	for _, d := range days {
		dayURLs = append(dayURLs, d.URL)
	}

	races, err := r.access.ReadRaces(ctx, dayURLs)
	if err != nil {
		return rep, fmt.Errorf("read races: %w", err)
	}
	rep.Races = len(races)
	raceURLs := make([]string, 0, len(races))
	for _, rc := range races {
		raceURLs = append(raceURLs, rc.URL)
	}

	results, err := r.access.ReadRaceResults(ctx, raceURLs)
	if err != nil {
		return rep, fmt.Errorf("read race results: %w", err)
	}
	rep.Results = len(results)

	horseURLs := cached.HorseURLs(results)
	histories, err := r.access.ReadHorseResults(ctx, horseURLs)
	if err != nil {
		return rep, fmt.Errorf("read horse results: %w", err)
	}
	rep.Horses = len(histories)

	n, err := export.ToCSV(ctx, feature.Rows(results, histories), p.OutFile)
	if err != nil {
		return rep, fmt.Errorf("export csv: %w", err)
	}
	rep.Rows = n
	logx.Infof("收集完成：开催日=%d 比赛=%d 结果=%d 马匹=%d 输出行=%d → %s",
		rep.RaceDays, rep.Races, rep.Results, rep.Horses, rep.Rows, p.OutFile)

	if rep.Caches, err = r.access.Summary(); err != nil {
		logx.Warnf("汇总缓存统计失败：%v", err)
		return rep, nil
	}
	for _, s := range rep.Caches {
		logx.Infof("缓存 %s", s)
	}
	return rep, nil
}
