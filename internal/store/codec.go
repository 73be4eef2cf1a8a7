package store

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"go-keiba-collector/internal/model"
)

// dateLayout 以文本保存日期，文本序即日期序。
const dateLayout = "2006-01-02"

func encodeDate(t time.Time) string { return t.Format(dateLayout) }

func decodeDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode date %q: %w", s, err)
	}
	return t, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

// nullSeconds 将耗时保存为秒数；nil 保存为 NULL（不是 0）。
func nullSeconds(p *time.Duration) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: p.Seconds(), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func durationPtr(n sql.NullFloat64) *time.Duration {
	if !n.Valid {
		return nil
	}
	d := time.Duration(math.Round(n.Float64 * float64(time.Second)))
	return &d
}

// raceRow 为比赛信息列的扫描目标，日期先以文本读出再显式解码。
type raceRow struct {
	date string
	info model.RaceInfo
}

func (r *raceRow) dest() []any {
	return []any{&r.date, &r.info.Course, &r.info.RaceNumber, &r.info.RaceName,
		&r.info.TrackType, &r.info.Distance, &r.info.Condition, &r.info.HorseCount, &r.info.URL}
}

func (r *raceRow) decode() (model.RaceInfo, error) {
	d, err := decodeDate(r.date)
	if err != nil {
		return model.RaceInfo{}, err
	}
	r.info.Date = d
	return r.info, nil
}

func raceArgs(ri model.RaceInfo) []any {
	return []any{encodeDate(ri.Date), ri.Course, ri.RaceNumber, ri.RaceName,
		ri.TrackType, ri.Distance, ri.Condition, ri.HorseCount, ri.URL}
}

// horseRow 为成绩列的扫描目标，可空字段逐个处理。
type horseRow struct {
	res        model.HorseResult
	popularity sql.NullInt64
	weight     sql.NullInt64
	elapsed    sql.NullFloat64
	payout     sql.NullFloat64
}

func (h *horseRow) dest() []any {
	return []any{&h.res.Order, &h.res.Name, &h.popularity, &h.weight, &h.elapsed,
		&h.res.URL, &h.payout, &h.res.Number}
}

func (h *horseRow) decode() model.HorseResult {
	r := h.res
	r.Popularity = intPtr(h.popularity)
	r.Weight = intPtr(h.weight)
	r.Time = durationPtr(h.elapsed)
	r.Payout = floatPtr(h.payout)
	return r
}

func horseArgs(hr model.HorseResult) []any {
	return []any{hr.Order, hr.Name, nullInt(hr.Popularity), nullInt(hr.Weight),
		nullSeconds(hr.Time), hr.URL, nullFloat(hr.Payout), hr.Number}
}
