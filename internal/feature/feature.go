// 包 feature 由比赛结果与马匹履历组装训练行：
// 每场比赛按马番取至多 16 匹，每匹取赛前最近 10 场有效履历，每场 10 个特征。
package feature

import (
	"iter"
	"slices"

	"go-keiba-collector/internal/model"
)

const (
	HorsesPerRace   = 16
	RacesPerHorse   = 10
	FeaturesPerRace = 10
	// Width 为每行特征数。
	Width = HorsesPerRace * RacesPerHorse * FeaturesPerRace
)

// Row 为一场比赛的训练行：X 为特征，Y 为各马是否 1 着（不足 16 匹补 0）。
type Row struct {
	URL string
	X   []float64
	Y   []int
}

// Rows 依次产出各比赛的训练行；特征全为 0 的比赛跳过。
func Rows(results []model.RaceResult, histories map[string][]model.HorseRace) iter.Seq[Row] {
	return func(yield func(Row) bool) {
		for _, res := range results {
			row := Build(res, histories)
			if allZero(row.X) {
				continue
			}
			if !yield(row) {
				return
			}
		}
	}
}

// Build 组装单场比赛的训练行。超过 16 匹时按马番截取前 16 匹。
func Build(res model.RaceResult, histories map[string][]model.HorseRace) Row {
	horses := slices.Clone(res.Horses)
	slices.SortStableFunc(horses, func(x, y model.HorseResult) int { return x.Number - y.Number })
	if len(horses) > HorsesPerRace {
		horses = horses[:HorsesPerRace]
	}
	row := Row{
		URL: res.Race.URL,
		X:   make([]float64, Width),
		Y:   make([]int, HorsesPerRace),
	}
	for i, h := range horses {
		if h.Order == "1" {
			row.Y[i] = 1
		}
		base := i * RacesPerHorse * FeaturesPerRace
		for j, past := range Prior(histories[h.URL], res.Race) {
			copy(row.X[base+j*FeaturesPerRace:], features(past, res.Race))
		}
	}
	return row
}

// Prior 选取 race 之前的有效履历（完走且体重/赔付/人气/走破时间齐全），
// 按日期倒序取至多 10 场。
func Prior(history []model.HorseRace, race model.RaceInfo) []model.HorseRace {
	var out []model.HorseRace
	for _, hr := range history {
		r := hr.Result
		if !hr.Race.Date.Before(race.Date) || !r.Placed() {
			continue
		}
		if r.Weight == nil || r.Payout == nil || r.Popularity == nil || r.Time == nil {
			continue
		}
		out = append(out, hr)
	}
	slices.SortStableFunc(out, func(x, y model.HorseRace) int { return y.Race.Date.Compare(x.Race.Date) })
	if len(out) > RacesPerHorse {
		out = out[:RacesPerHorse]
	}
	return out
}

func features(past model.HorseRace, race model.RaceInfo) []float64 {
	r := past.Result
	return []float64{
		float64(past.Race.HorseCount),
		*r.Payout,
		float64(r.OrderValue()),
		float64(past.Race.Distance - race.Distance),
		float64(*r.Popularity),
		float64(*r.Weight),
		r.Time.Seconds(),
		flag(past.Race.Course == race.Course),
		flag(past.Race.Condition == race.Condition),
		flag(past.Race.TrackType == race.TrackType),
	}
}

func flag(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func allZero(xs []float64) bool {
	for _, x := range xs {
		if x != 0 {
			return false
		}
	}
	return true
}
