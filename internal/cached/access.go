// 包 cached 是数据源的读穿缓存门面：
// - 每个键先查缓存库，命中直接返回
// - 未命中时调用一次数据源，在一个事务内写入该键后返回抓取结果（不回读）
// - 批量入口串行处理各键，出错立即中止，已提交的键保留
//
// 顺序约定（查询与抓取两条路径一致，调用方无需再排序）：
// 日历/比赛列表/马匹履历按日期升序，比赛结果的出走马按马番升序。
package cached

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"go-keiba-collector/internal/logx"
	"go-keiba-collector/internal/model"
	"go-keiba-collector/internal/store"
	"go-keiba-collector/internal/yearmonth"
)

// Store 为四类缓存的查询与写入（*store.SQLite 实现）。
type Store interface {
	LookupCalendar(ctx context.Context, year, month int) ([]model.RaceCalendarEntry, bool, error)
	InsertCalendar(ctx context.Context, year, month int, entries []model.RaceCalendarEntry) error
	LookupRaceListing(ctx context.Context, dayURL string) ([]model.RaceInfo, bool, error)
	InsertRaceListing(ctx context.Context, dayURL string, races []model.RaceInfo) error
	LookupRaceResult(ctx context.Context, raceURL string) (model.RaceResult, bool, error)
	InsertRaceResult(ctx context.Context, raceURL string, res model.RaceResult) error
	LookupHorseHistory(ctx context.Context, horseURL string) ([]model.HorseRace, bool, error)
	InsertHorseHistory(ctx context.Context, horseURL string, history []model.HorseRace) error
}

// Source 为未缓存数据的来源（*scrape.Client 实现）。
type Source interface {
	FetchCalendar(ctx context.Context, year, month int) ([]model.RaceCalendarEntry, error)
	FetchRaceListing(ctx context.Context, dayURL string) ([]model.RaceInfo, error)
	FetchRaceResult(ctx context.Context, raceURL string) (model.RaceResult, error)
	FetchHorseHistory(ctx context.Context, horseURL string) ([]model.HorseRace, error)
}

// Access 持有缓存库与数据源；非并发安全，按批串行使用。
type Access struct {
	store Store
	src   Source
	m     *metrics
}

// Option 为 Access 的可选配置。
type Option func(*Access)

// WithRegistry 将计数器注册到指定 Registry（默认每个 Access 独立一个）。
func WithRegistry(reg *prometheus.Registry) Option {
	return func(a *Access) { a.m = newMetrics(reg) }
}

// New 创建缓存门面。
func New(st Store, src Source, opts ...Option) *Access {
	a := &Access{store: st, src: src}
	for _, o := range opts {
		o(a)
	}
	if a.m == nil {
		a.m = newMetrics(prometheus.NewRegistry())
	}
	return a
}

// readThrough 为单键读穿：命中返回缓存值；未命中抓取一次、排序、写入并返回抓取值。
func readThrough[T any](ctx context.Context, a *Access, cache, key string,
	lookup func(context.Context) (T, bool, error),
	fetch func(context.Context) (T, error),
	order func(T) T,
	insert func(context.Context, T) error,
) (T, error) {
	var zero T
	v, ok, err := lookup(ctx)
	if err != nil {
		return zero, fmt.Errorf("lookup %s %s: %w", cache, key, err)
	}
	if ok {
		a.m.lookup(cache, true)
		return v, nil
	}
	a.m.lookup(cache, false)
	logx.Debugf("缓存未命中：%s %s", cache, key)
	v, err = fetch(ctx)
	if err != nil {
		a.m.fetchError(cache)
		return zero, fmt.Errorf("fetch %s %s: %w", cache, key, err)
	}
	a.m.fetch(cache)
	v = order(v)
	if err := insert(ctx, v); err != nil {
		return zero, err
	}
	return v, nil
}

// ReadRaceDays 读取 [start, end]（YYYYMM）内的开催日历并按竞马场过滤。
// 过滤在缓存之后进行，同一月份的缓存可供不同竞马场复用。
func (a *Access) ReadRaceDays(ctx context.Context, start, end int, course string) ([]model.RaceCalendarEntry, error) {
	months := slices.Collect(yearmonth.Range(start, end))
	p := logx.NewProgress("开催日历", len(months))
	out := []model.RaceCalendarEntry{}
	for _, ym := range months {
		year, month := yearmonth.Split(ym)
		entries, err := readThrough(ctx, a, store.CacheCalendar, store.CalendarKey(year, month),
			func(ctx context.Context) ([]model.RaceCalendarEntry, bool, error) {
				return a.store.LookupCalendar(ctx, year, month)
			},
			func(ctx context.Context) ([]model.RaceCalendarEntry, error) {
				return a.src.FetchCalendar(ctx, year, month)
			},
			orderCalendar,
			func(ctx context.Context, v []model.RaceCalendarEntry) error {
				return a.store.InsertCalendar(ctx, year, month, v)
			},
		)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.Course == course {
				out = append(out, e)
			}
		}
		p.Add(1)
	}
	return out, nil
}

// ReadRaces 读取各开催日页的比赛列表，按输入顺序拼接。
func (a *Access) ReadRaces(ctx context.Context, dayURLs []string) ([]model.RaceInfo, error) {
	p := logx.NewProgress("比赛列表", len(dayURLs))
	out := []model.RaceInfo{}
	for _, u := range dayURLs {
		races, err := readThrough(ctx, a, store.CacheRaceListing, u,
			func(ctx context.Context) ([]model.RaceInfo, bool, error) { return a.store.LookupRaceListing(ctx, u) },
			func(ctx context.Context) ([]model.RaceInfo, error) { return a.src.FetchRaceListing(ctx, u) },
			orderRaces,
			func(ctx context.Context, v []model.RaceInfo) error { return a.store.InsertRaceListing(ctx, u, v) },
		)
		if err != nil {
			return nil, err
		}
		out = append(out, races...)
		p.Add(1)
	}
	return out, nil
}

// ReadRaceResults 读取各比赛结果，保持输入顺序。
func (a *Access) ReadRaceResults(ctx context.Context, raceURLs []string) ([]model.RaceResult, error) {
	p := logx.NewProgress("比赛结果", len(raceURLs))
	out := make([]model.RaceResult, 0, len(raceURLs))
	for _, u := range raceURLs {
		res, err := readThrough(ctx, a, store.CacheRaceResult, u,
			func(ctx context.Context) (model.RaceResult, bool, error) { return a.store.LookupRaceResult(ctx, u) },
			func(ctx context.Context) (model.RaceResult, error) { return a.src.FetchRaceResult(ctx, u) },
			orderResult,
			func(ctx context.Context, v model.RaceResult) error { return a.store.InsertRaceResult(ctx, u, v) },
		)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
		p.Add(1)
	}
	return out, nil
}

// ReadHorseResults 读取各马匹履历。地址去重后按字典序访问，使写库顺序可复现。
func (a *Access) ReadHorseResults(ctx context.Context, horseURLs []string) (map[string][]model.HorseRace, error) {
	keys := slices.Clone(horseURLs)
	slices.Sort(keys)
	keys = slices.Compact(keys)
	p := logx.NewProgress("马匹履历", len(keys))
	out := make(map[string][]model.HorseRace, len(keys))
	for _, u := range keys {
		hist, err := readThrough(ctx, a, store.CacheHorseHistory, u,
			func(ctx context.Context) ([]model.HorseRace, bool, error) { return a.store.LookupHorseHistory(ctx, u) },
			func(ctx context.Context) ([]model.HorseRace, error) { return a.src.FetchHorseHistory(ctx, u) },
			orderHistory,
			func(ctx context.Context, v []model.HorseRace) error { return a.store.InsertHorseHistory(ctx, u, v) },
		)
		if err != nil {
			return nil, err
		}
		out[u] = hist
		p.Add(1)
	}
	return out, nil
}

func orderCalendar(v []model.RaceCalendarEntry) []model.RaceCalendarEntry {
	v = slices.Clone(v)
	slices.SortStableFunc(v, func(x, y model.RaceCalendarEntry) int { return x.Date.Compare(y.Date) })
	if v == nil {
		v = []model.RaceCalendarEntry{}
	}
	return v
}

func orderRaces(v []model.RaceInfo) []model.RaceInfo {
	v = slices.Clone(v)
	slices.SortStableFunc(v, func(x, y model.RaceInfo) int { return x.Date.Compare(y.Date) })
	if v == nil {
		v = []model.RaceInfo{}
	}
	return v
}

func orderResult(v model.RaceResult) model.RaceResult {
	h := slices.Clone(v.Horses)
	slices.SortStableFunc(h, func(x, y model.HorseResult) int { return x.Number - y.Number })
	if h == nil {
		h = []model.HorseResult{}
	}
	return model.RaceResult{Race: v.Race, Horses: h}
}

func orderHistory(v []model.HorseRace) []model.HorseRace {
	v = slices.Clone(v)
	slices.SortStableFunc(v, func(x, y model.HorseRace) int { return x.Race.Date.Compare(y.Race.Date) })
	if v == nil {
		v = []model.HorseRace{}
	}
	return v
}

// HorseURLs 收集比赛结果中出现的全部马匹地址（去重、去空）。
func HorseURLs(results []model.RaceResult) []string {
	var urls []string
	for _, r := range results {
		for _, h := range r.Horses {
			if strings.TrimSpace(h.URL) != "" {
				urls = append(urls, h.URL)
			}
		}
	}
	slices.Sort(urls)
	return slices.Compact(urls)
}
