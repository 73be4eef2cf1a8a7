package cached

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"go-keiba-collector/internal/model"
	"go-keiba-collector/internal/store"
)

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func ptr[T any](v T) *T { return &v }

// fakeSource 按键返回预置数据并记录调用次数。
type fakeSource struct {
	calendar map[int][]model.RaceCalendarEntry
	listing  map[string][]model.RaceInfo
	results  map[string]model.RaceResult
	history  map[string][]model.HorseRace
	fail     map[string]error
	calls    map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		calendar: map[int][]model.RaceCalendarEntry{},
		listing:  map[string][]model.RaceInfo{},
		results:  map[string]model.RaceResult{},
		history:  map[string][]model.HorseRace{},
		fail:     map[string]error{},
		calls:    map[string]int{},
	}
}

func (f *fakeSource) hit(key string) error {
	f.calls[key]++
	return f.fail[key]
}

func (f *fakeSource) FetchCalendar(_ context.Context, year, month int) ([]model.RaceCalendarEntry, error) {
	key := store.CalendarKey(year, month)
	if err := f.hit(key); err != nil {
		return nil, err
	}
	return f.calendar[year*100+month], nil
}

func (f *fakeSource) FetchRaceListing(_ context.Context, dayURL string) ([]model.RaceInfo, error) {
	if err := f.hit(dayURL); err != nil {
		return nil, err
	}
	return f.listing[dayURL], nil
}

func (f *fakeSource) FetchRaceResult(_ context.Context, raceURL string) (model.RaceResult, error) {
	if err := f.hit(raceURL); err != nil {
		return model.RaceResult{}, err
	}
	return f.results[raceURL], nil
}

func (f *fakeSource) FetchHorseHistory(_ context.Context, horseURL string) ([]model.HorseRace, error) {
	if err := f.hit(horseURL); err != nil {
		return nil, err
	}
	return f.history[horseURL], nil
}

func (f *fakeSource) total() int {
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func openStore(t *testing.T, path string) *store.SQLite {
	t.Helper()
	st, err := store.OpenSQLite(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newAccess(t *testing.T, src *fakeSource) (*Access, *store.SQLite, *prometheus.Registry) {
	t.Helper()
	st := openStore(t, filepath.Join(t.TempDir(), "cache.db"))
	reg := prometheus.NewRegistry()
	return New(st, src, WithRegistry(reg)), st, reg
}

func mombetsuSource() *fakeSource {
	src := newFakeSource()
	src.calendar[201801] = []model.RaceCalendarEntry{
		{Date: day(2018, 1, 2), Course: "門別", URL: "d1"},
		{Date: day(2018, 1, 3), Course: "川崎", URL: "d2"},
	}
	src.listing["d1"] = []model.RaceInfo{{
		Date: day(2018, 1, 2), Course: "門別", RaceNumber: 1, RaceName: "C3",
		TrackType: "ダート", Distance: 1200, Condition: "良", HorseCount: 2, URL: "r1",
	}}
	src.results["r1"] = model.RaceResult{
		Race: src.listing["d1"][0],
		Horses: []model.HorseResult{
			{Order: "2", Name: "B", URL: "h2", Number: 2, Popularity: ptr(1), Weight: ptr(480)},
			{Order: "1", Name: "A", URL: "h1", Number: 1, Time: ptr(74 * time.Second), Payout: ptr(3.5)},
		},
	}
	src.history["h1"] = []model.HorseRace{
		{Race: model.RaceInfo{Date: day(2018, 1, 2), URL: "r1"}, Result: model.HorseResult{Order: "1", URL: "h1"}},
		{Race: model.RaceInfo{Date: day(2017, 12, 1), URL: "r0"}, Result: model.HorseResult{Order: "3", URL: "h1"}},
	}
	src.history["h2"] = []model.HorseRace{}
	return src
}

func TestReadRaceDays_FiltersAfterCache(t *testing.T) {
	src := mombetsuSource()
	a, st, _ := newAccess(t, src)
	ctx := context.Background()

	got, err := a.ReadRaceDays(ctx, 201801, 201801, "門別")
	require.NoError(t, err)
	require.Equal(t, []model.RaceCalendarEntry{{Date: day(2018, 1, 2), Course: "門別", URL: "d1"}}, got)

	// 缓存保存整月，未过滤
	cached, ok, err := st.LookupCalendar(ctx, 2018, 1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, cached, 2)

	got, err = a.ReadRaceDays(ctx, 201801, 201801, "川崎")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "d2", got[0].URL)
	require.Equal(t, 1, src.calls["201801"])

	require.Equal(t, 1.0, testutil.ToFloat64(a.m.lookups.WithLabelValues(store.CacheCalendar, "miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.m.lookups.WithLabelValues(store.CacheCalendar, "hit")))
}

func TestReadRaceDays_MultipleMonthsAndEmpty(t *testing.T) {
	src := newFakeSource()
	src.calendar[201712] = []model.RaceCalendarEntry{{Date: day(2017, 12, 31), Course: "大井", URL: "x"}}
	src.calendar[201802] = []model.RaceCalendarEntry{{Date: day(2018, 2, 1), Course: "大井", URL: "y"}}
	a, _, _ := newAccess(t, src)
	ctx := context.Background()

	got, err := a.ReadRaceDays(ctx, 201712, 201802, "大井")
	require.NoError(t, err)
	require.Equal(t, []string{"x", "y"}, []string{got[0].URL, got[1].URL})
	require.Equal(t, map[string]int{"201712": 1, "201801": 1, "201802": 1}, src.calls)

	// 空月份也已缓存
	_, err = a.ReadRaceDays(ctx, 201712, 201802, "大井")
	require.NoError(t, err)
	require.Equal(t, 3, src.total())

	got, err = a.ReadRaceDays(ctx, 201803, 201802, "大井")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestPipeline_SecondRunIsServedFromCache(t *testing.T) {
	src := mombetsuSource()
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	run := func() ([]model.RaceResult, map[string][]model.HorseRace) {
		st := openStore(t, path)
		a := New(st, src)
		days, err := a.ReadRaceDays(ctx, 201801, 201801, "門別")
		require.NoError(t, err)
		var dayURLs []string
		for _, d := range days {
			dayURLs = append(dayURLs, d.URL)
		}
		races, err := a.ReadRaces(ctx, dayURLs)
		require.NoError(t, err)
		var raceURLs []string
		for _, r := range races {
			raceURLs = append(raceURLs, r.URL)
		}
		results, err := a.ReadRaceResults(ctx, raceURLs)
		require.NoError(t, err)
		hist, err := a.ReadHorseResults(ctx, HorseURLs(results))
		require.NoError(t, err)
		require.NoError(t, st.Close())
		return results, hist
	}

	r1, h1 := run()
	require.Equal(t, 5, src.total())
	r2, h2 := run()
	require.Equal(t, 5, src.total(), "second run must not touch the source")
	require.Equal(t, r1, r2)
	require.Equal(t, h1, h2)

	// 出走马按马番、履历按日期
	require.Equal(t, []int{1, 2}, []int{r1[0].Horses[0].Number, r1[0].Horses[1].Number})
	require.Equal(t, day(2017, 12, 1), h1["h1"][0].Race.Date)
	require.NotNil(t, h1["h2"])
	require.Empty(t, h1["h2"])
}

func TestReadRaceResults_KeepsInputOrder(t *testing.T) {
	src := newFakeSource()
	src.results["a"] = model.RaceResult{Race: model.RaceInfo{URL: "a", Date: day(2018, 1, 5)}, Horses: []model.HorseResult{}}
	src.results["b"] = model.RaceResult{Race: model.RaceInfo{URL: "b", Date: day(2018, 1, 1)}}
	a, _, _ := newAccess(t, src)

	got, err := a.ReadRaceResults(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Equal(t, "a", got[0].Race.URL)
	require.Equal(t, "b", got[1].Race.URL)
	require.NotNil(t, got[1].Horses)
}

func TestReadHorseResults_Dedupes(t *testing.T) {
	src := mombetsuSource()
	a, _, _ := newAccess(t, src)

	got, err := a.ReadHorseResults(context.Background(), []string{"h2", "h1", "h2"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, 1, src.calls["h1"])
	require.Equal(t, 1, src.calls["h2"])
}

func TestFetchError_AbortsAndLeavesKeyAbsent(t *testing.T) {
	src := mombetsuSource()
	boom := errors.New("boom")
	src.fail["h1"] = boom
	a, st, _ := newAccess(t, src)
	ctx := context.Background()

	_, err := a.ReadHorseResults(ctx, []string{"h2", "h1"})
	require.ErrorIs(t, err, boom)

	_, ok, err := st.LookupHorseHistory(ctx, "h1")
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, 1.0, testutil.ToFloat64(a.m.fetchErrors.WithLabelValues(store.CacheHorseHistory)))

	// h1 排在 h2 之前被访问，h2 未抓取
	require.Zero(t, src.calls["h2"])

	delete(src.fail, "h1")
	got, err := a.ReadHorseResults(ctx, []string{"h2", "h1"})
	require.NoError(t, err)
	require.Len(t, got["h1"], 2)
	require.Equal(t, 2, src.calls["h1"])
}

// failingStore 在写入时返回错误。
type failingStore struct {
	*store.SQLite
	err error
}

func (f failingStore) InsertRaceListing(context.Context, string, []model.RaceInfo) error { return f.err }

func TestInsertError_Propagates(t *testing.T) {
	src := mombetsuSource()
	st := openStore(t, filepath.Join(t.TempDir(), "cache.db"))
	boom := errors.New("disk full")
	a := New(failingStore{SQLite: st, err: boom}, src)

	_, err := a.ReadRaces(context.Background(), []string{"d1"})
	require.ErrorIs(t, err, boom)
	_, ok, err := st.LookupRaceListing(context.Background(), "d1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFetchedValueIsOrderedBeforeInsert(t *testing.T) {
	src := newFakeSource()
	src.listing["d"] = []model.RaceInfo{
		{Date: day(2018, 1, 3), RaceNumber: 1, URL: "late"},
		{Date: day(2018, 1, 2), RaceNumber: 2, URL: "early"},
	}
	a, st, _ := newAccess(t, src)
	ctx := context.Background()

	got, err := a.ReadRaces(ctx, []string{"d"})
	require.NoError(t, err)
	require.Equal(t, "early", got[0].URL)

	stored, ok, err := st.LookupRaceListing(ctx, "d")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, got, stored)
	// 源数据本身不被修改
	require.Equal(t, "late", src.listing["d"][0].URL)
}

func TestSummary(t *testing.T) {
	src := mombetsuSource()
	a, _, _ := newAccess(t, src)
	ctx := context.Background()
	_, err := a.ReadRaces(ctx, []string{"d1"})
	require.NoError(t, err)
	_, err = a.ReadRaces(ctx, []string{"d1"})
	require.NoError(t, err)

	sum, err := a.Summary()
	require.NoError(t, err)
	require.Len(t, sum, len(store.Caches))
	for _, s := range sum {
		if s.Cache == store.CacheRaceListing {
			require.Equal(t, CacheSummary{Cache: store.CacheRaceListing, Hits: 1, Misses: 1, Fetches: 1}, s)
		} else {
			require.Equal(t, CacheSummary{Cache: s.Cache}, s)
		}
	}
}

func TestHorseURLs(t *testing.T) {
	results := []model.RaceResult{
		{Horses: []model.HorseResult{{URL: "b"}, {URL: ""}, {URL: "a"}}},
		{Horses: []model.HorseResult{{URL: "a"}}},
	}
	require.Equal(t, []string{"a", "b"}, HorseURLs(results))
}
