// 包 scrape 是远程赛事站点的数据源适配器：
// - 通过 fetch 抓取页面，goquery 按 rules 预设的选择器抽取字段
// - 提供日历/开催日比赛列表/比赛结果/马匹履历四类读取
// 本包不做缓存，也不保证返回顺序（由缓存层统一排序）。
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"go-keiba-collector/internal/model"
	"go-keiba-collector/internal/rules"
)

// ErrNoPreset 表示规则中找不到可用预设。
var ErrNoPreset = errors.New("no usable rules preset")

// Getter 为页面抓取接口（*fetch.Client 实现）。
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Client 为基于 HTML 页面的数据源。
type Client struct {
	get         Getter
	preset      rules.Preset
	calendarURL string
}

// New 创建数据源。calendarURL 为含 {year} 与 {month} 占位符的月历地址模板。
func New(get Getter, rl *rules.Rules, presetName, calendarURL string) (*Client, error) {
	p, ok := rl.GetPreset(presetName)
	if !ok {
		return nil, fmt.Errorf("preset %q: %w", presetName, ErrNoPreset)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("preset %q: %w", presetName, err)
	}
	if !strings.Contains(calendarURL, "{year}") || !strings.Contains(calendarURL, "{month}") {
		return nil, fmt.Errorf("calendar url %q must contain {year} and {month}", calendarURL)
	}
	return &Client{get: get, preset: p, calendarURL: calendarURL}, nil
}

// CalendarURL 返回某年月的月历地址。
func (c *Client) CalendarURL(year, month int) string {
	return strings.NewReplacer(
		"{year}", strconv.Itoa(year),
		"{month}", fmt.Sprintf("%02d", month),
	).Replace(c.calendarURL)
}

// document 抓取并解析页面，按 Content-Type 转换字符集（如 Shift_JIS/EUC-JP）。
func (c *Client) document(ctx context.Context, pageURL string) (*goquery.Document, error) {
	resp, err := c.get.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", pageURL, err)
	}
	defer resp.Body.Close()
	body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", pageURL, err)
	}
	return doc, nil
}

// FetchCalendar 读取某年月的全部开催。
func (c *Client) FetchCalendar(ctx context.Context, year, month int) ([]model.RaceCalendarEntry, error) {
	pageURL := c.CalendarURL(year, month)
	doc, err := c.document(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	cp := c.preset.Calendar
	var out []model.RaceCalendarEntry
	var perr error
	doc.Find(cp.Item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := abs(pageURL, getVal(s, cp.Link))
		if link == "" {
			return true
		}
		d, err := parseDate(c.preset.DateLayouts, getVal(s, cp.Date))
		if err != nil {
			perr = fmt.Errorf("calendar %s: %w", pageURL, err)
			return false
		}
		out = append(out, model.RaceCalendarEntry{Date: d, Course: getVal(s, cp.Course), URL: link})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// FetchRaceListing 读取开催日页上的全部比赛。
func (c *Client) FetchRaceListing(ctx context.Context, dayURL string) ([]model.RaceInfo, error) {
	doc, err := c.document(ctx, dayURL)
	if err != nil {
		return nil, err
	}
	lp := c.preset.RaceList
	var out []model.RaceInfo
	var perr error
	doc.Find(lp.Item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := abs(dayURL, getVal(s, lp.Link))
		if link == "" {
			return true
		}
		ri, err := c.raceInfo(doc.Selection, lp.Page, s, lp.Row)
		if err != nil {
			perr = fmt.Errorf("race list %s: %w", dayURL, err)
			return false
		}
		ri.URL = link
		out = append(out, ri)
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// FetchRaceResult 读取比赛结果页。RaceInfo.URL 为请求地址。
func (c *Client) FetchRaceResult(ctx context.Context, raceURL string) (model.RaceResult, error) {
	var res model.RaceResult
	doc, err := c.document(ctx, raceURL)
	if err != nil {
		return res, err
	}
	rp := c.preset.RaceResult
	if res.Race, err = c.raceInfo(doc.Selection, rp.Page, nil, rules.RaceFields{}); err != nil {
		return res, fmt.Errorf("race result %s: %w", raceURL, err)
	}
	res.Race.URL = raceURL
	doc.Find(rp.Item).Each(func(_ int, s *goquery.Selection) {
		h := c.horseResult(s, rp.Row, raceURL)
		if h.Name == "" && h.URL == "" {
			return
		}
		res.Horses = append(res.Horses, h)
	})
	if getVal(doc.Selection, rp.Page.HorseCount) == "" {
		res.Race.HorseCount = len(res.Horses)
	}
	return res, nil
}

// FetchHorseHistory 读取马匹页的出走履历。每条成绩的 URL 为马匹地址。
func (c *Client) FetchHorseHistory(ctx context.Context, horseURL string) ([]model.HorseRace, error) {
	doc, err := c.document(ctx, horseURL)
	if err != nil {
		return nil, err
	}
	hp := c.preset.Horse
	name := getVal(doc.Selection, hp.Name)
	var out []model.HorseRace
	var perr error
	doc.Find(hp.Item).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		link := abs(horseURL, getVal(s, hp.RaceLink))
		if link == "" {
			return true
		}
		ri, err := c.raceInfo(doc.Selection, rules.RaceFields{}, s, hp.Race)
		if err != nil {
			perr = fmt.Errorf("horse %s: %w", horseURL, err)
			return false
		}
		ri.URL = link
		h := c.horseResult(s, hp.Result, horseURL)
		if h.Name == "" {
			h.Name = name
		}
		h.URL = horseURL
		out = append(out, model.HorseRace{Race: ri, Result: h})
		return true
	})
	if perr != nil {
		return nil, perr
	}
	return out, nil
}

// raceInfo 组装比赛信息：行级字段优先，缺失时取页面级字段。日期必须可解析。
func (c *Client) raceInfo(page *goquery.Selection, pf rules.RaceFields, row *goquery.Selection, rf rules.RaceFields) (model.RaceInfo, error) {
	d, err := parseDate(c.preset.DateLayouts, pick(row, rf.Date, page, pf.Date))
	if err != nil {
		return model.RaceInfo{}, err
	}
	return model.RaceInfo{
		Date:       d,
		Course:     pick(row, rf.Course, page, pf.Course),
		RaceNumber: intOrZero(pick(row, rf.RaceNumber, page, pf.RaceNumber)),
		RaceName:   pick(row, rf.RaceName, page, pf.RaceName),
		TrackType:  trackType(pick(row, rf.TrackType, page, pf.TrackType)),
		Distance:   intOrZero(pick(row, rf.Distance, page, pf.Distance)),
		Condition:  pick(row, rf.Condition, page, pf.Condition),
		HorseCount: intOrZero(pick(row, rf.HorseCount, page, pf.HorseCount)),
	}, nil
}

// horseResult 抽取一行成绩；可空字段无法解析时为 nil。
func (c *Client) horseResult(s *goquery.Selection, f rules.ResultFields, base string) model.HorseResult {
	return model.HorseResult{
		Order:      getVal(s, f.Order),
		Name:       getVal(s, f.Name),
		Popularity: optInt(getVal(s, f.Popularity)),
		Weight:     optInt(getVal(s, f.Weight)),
		Time:       optDuration(getVal(s, f.Time)),
		URL:        abs(base, getVal(s, f.Link)),
		Payout:     optFloat(getVal(s, f.Payout)),
		Number:     intOrZero(getVal(s, f.Number)),
	}
}
