// 包 model 定义采集的记录类型（开催日历/比赛信息/赛马成绩），
// 以及缓存与特征构建之间传递的组合结构。记录创建后不再修改。
package model

import (
	"strconv"
	"time"
)

// RaceCalendarEntry 表示某竞马场在某日的开催（一个日程页）。
type RaceCalendarEntry struct {
	Date   time.Time `json:"date"`
	Course string    `json:"course"`
	URL    string    `json:"url"`
}

// RaceInfo 为单场比赛的元信息。
type RaceInfo struct {
	Date       time.Time `json:"date"`
	Course     string    `json:"course"`
	RaceNumber int       `json:"race_number"`
	RaceName   string    `json:"race_name"`
	TrackType  string    `json:"track_type"` // 芝|ダート
	Distance   int       `json:"distance"`   // 米
	Condition  string    `json:"condition"`  // 良|稍重|重|不良
	HorseCount int       `json:"horse_count"`
	URL        string    `json:"url"`
}

// HorseResult 为一匹马在一场比赛中的成绩。
// Order 保持原文（取消/除外等非数字名次）；可空字段为 nil 表示“不适用”。
type HorseResult struct {
	Order      string         `json:"order"`
	Name       string         `json:"name"`
	Popularity *int           `json:"popularity,omitempty"`
	Weight     *int           `json:"weight,omitempty"`
	Time       *time.Duration `json:"time,omitempty"`
	URL        string         `json:"url"`
	Payout     *float64       `json:"payout,omitempty"`
	Number     int            `json:"number"`
}

// Placed 报告名次是否为数字（完走）。
func (h HorseResult) Placed() bool {
	if h.Order == "" {
		return false
	}
	for _, r := range h.Order {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// OrderValue 返回数字名次，非数字时为 0。
func (h HorseResult) OrderValue() int {
	n, _ := strconv.Atoi(h.Order)
	return n
}

// RaceResult 为一场比赛及其全部出走马成绩（按马番升序）。
type RaceResult struct {
	Race   RaceInfo      `json:"race"`
	Horses []HorseResult `json:"horses"`
}

// HorseRace 为马匹履历中的一条：比赛信息 + 该马成绩。
type HorseRace struct {
	Race   RaceInfo    `json:"race"`
	Result HorseResult `json:"result"`
}

// CacheStats 为单个缓存的统计。
type CacheStats struct {
	Cache string `json:"cache"`
	Keys  int    `json:"keys"`
	Rows  int    `json:"rows"`
}

// Stats 为缓存库整体统计。
type Stats struct {
	Caches    []CacheStats `json:"caches"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Day 将时间截断为 UTC 零点的日期。
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
