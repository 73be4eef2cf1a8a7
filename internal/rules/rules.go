// 包 rules 负责加载页面解析规则（rules.yaml），
// 以预设名（如 jbis）组织各类页面的 CSS 选择器表达式。
//
// 表达式语法与取值方式：
// - 文本：".name" 或 "."（取当前节点文本）
// - 属性："a@href" / "@href"（当前节点属性）
// - 回退：用 "||" 连接多个候选，按先后尝试
package rules

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rules 表示全部规则集合：键为预设名，值为具体规则。
type Rules struct {
	Presets map[string]Preset `yaml:",inline"`
}

// Preset 为单个站点预设。
type Preset struct {
	// DateLayouts 为日期文本的候选格式（Go time 布局）。
	DateLayouts []string        `yaml:"date_layouts"`
	Calendar    *CalendarPage   `yaml:"calendar"`
	RaceList    *RaceListPage   `yaml:"race_list"`
	RaceResult  *RaceResultPage `yaml:"race_result"`
	Horse       *HorsePage      `yaml:"horse"`
}

// CalendarPage 描述月历页：每个开催（日 × 竞马场）一项。
type CalendarPage struct {
	Item   string `yaml:"item"`
	Date   string `yaml:"date"`
	Course string `yaml:"course"`
	Link   string `yaml:"link"`
}

// RaceFields 为比赛信息字段。在页面级与行级都可出现：行级为空时回退到页面级。
type RaceFields struct {
	Date       string `yaml:"date"`
	Course     string `yaml:"course"`
	RaceNumber string `yaml:"race_number"`
	RaceName   string `yaml:"race_name"`
	TrackType  string `yaml:"track_type"`
	Distance   string `yaml:"distance"`
	Condition  string `yaml:"condition"`
	HorseCount string `yaml:"horse_count"`
}

// ResultFields 为单匹马成绩字段。
type ResultFields struct {
	Order      string `yaml:"order"`
	Name       string `yaml:"name"`
	Popularity string `yaml:"popularity"`
	Weight     string `yaml:"weight"`
	Time       string `yaml:"time"`
	Link       string `yaml:"link"`
	Payout     string `yaml:"payout"`
	Number     string `yaml:"number"`
}

// RaceListPage 描述开催日页（当日全部比赛）。
type RaceListPage struct {
	Page RaceFields `yaml:"page"`
	Item string     `yaml:"item"`
	Row  RaceFields `yaml:"row"`
	Link string     `yaml:"link"`
}

// RaceResultPage 描述比赛结果页：页面级比赛信息 + 每匹马一行。
type RaceResultPage struct {
	Page RaceFields   `yaml:"page"`
	Item string       `yaml:"item"`
	Row  ResultFields `yaml:"row"`
}

// HorsePage 描述马匹页：页面级马名 + 每次出走一行。
type HorsePage struct {
	Name     string       `yaml:"name"`
	Item     string       `yaml:"item"`
	Race     RaceFields   `yaml:"race"`
	RaceLink string       `yaml:"race_link"`
	Result   ResultFields `yaml:"result"`
}

// Load 从文件加载 YAML 到 Rules.Presets。
func Load(path string) (*Rules, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules %s: %w", path, err)
	}
	defer f.Close()
	b, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(b)
}

// Parse 解析 YAML 规则文本。
func Parse(b []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(b, &r.Presets); err != nil {
		return nil, fmt.Errorf("unmarshal rules: %w", err)
	}
	return &r, nil
}

// GetPreset 按名称获取预设（不区分大小写），为空或不存在时回退到 "default"。
func (r *Rules) GetPreset(name string) (Preset, bool) {
	if r == nil || len(r.Presets) == 0 {
		return Preset{}, false
	}
	if name == "" {
		name = "default"
	}
	if p, ok := r.Presets[name]; ok {
		return p, true
	}
	for k, v := range r.Presets {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	if p, ok := r.Presets["default"]; ok {
		return p, true
	}
	return Preset{}, false
}

// Validate 检查预设是否覆盖四类页面的必需选择器。
func (p Preset) Validate() error {
	var errs []error
	if len(p.DateLayouts) == 0 {
		errs = append(errs, errors.New("date_layouts required"))
	}
	if p.Calendar == nil || p.Calendar.Item == "" || p.Calendar.Link == "" {
		errs = append(errs, errors.New("calendar.item and calendar.link required"))
	}
	if p.RaceList == nil || p.RaceList.Item == "" || p.RaceList.Link == "" {
		errs = append(errs, errors.New("race_list.item and race_list.link required"))
	}
	if p.RaceResult == nil || p.RaceResult.Item == "" {
		errs = append(errs, errors.New("race_result.item required"))
	}
	if p.Horse == nil || p.Horse.Item == "" || p.Horse.RaceLink == "" {
		errs = append(errs, errors.New("horse.item and horse.race_link required"))
	}
	return errors.Join(errs...)
}
