package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownSect = errors.New("unknown sect")

// SectID identifies one of the seven competing sects. The set is closed:
// every value in [0, SectCount) is valid and nothing is added at runtime.
type SectID int

const (
	Tianhe SectID = iota
	Beige
	Wangsheng
	Fulong
	Nantuo
	Xueyi
	Dari

	SectCount = 7
)

// SectInfo is the static description of a sect.
type SectInfo struct {
	ID          SectID
	Code        string // wire identifier, e.g. "TIANHE"
	Name        string
	Title       string
	Description string
	Weapon      string
}

var sectInfos = [SectCount]SectInfo{
	{ID: Tianhe, Code: "TIANHE", Name: "天河剑宗", Title: "剑出天河", Description: "以剑入道，门下弟子皆是快意恩仇之辈。", Weapon: "剑"},
	{ID: Beige, Code: "BEIGE", Name: "悲歌书院", Title: "一曲悲歌", Description: "读书人的江湖，以音律与谋略见长。", Weapon: "琴"},
	{ID: Wangsheng, Code: "WANGSHENG", Name: "往生门", Title: "渡尽往生", Description: "行踪诡秘的杀手组织，取财有道。", Weapon: "刺"},
	{ID: Fulong, Code: "FULONG", Name: "伏龙山庄", Title: "伏龙在渊", Description: "富甲一方的世家山庄，门客三千。", Weapon: "枪"},
	{ID: Nantuo, Code: "NANTUO", Name: "难陀山", Title: "难陀护法", Description: "西陲佛门，拳掌刚猛，戒律森严。", Weapon: "拳"},
	{ID: Xueyi, Code: "XUEYI", Name: "雪衣楼", Title: "雪衣不染", Description: "江湖情报之楼，消息灵通，身法轻灵。", Weapon: "扇"},
	{ID: Dari, Code: "DARI", Name: "大日琉璃宫", Title: "大日当空", Description: "域外名门，内功深厚，威仪煌煌。", Weapon: "掌"},
}

// DefaultTurnQueue is the fixed turn order used for new games.
func DefaultTurnQueue() []SectID {
	q := make([]SectID, SectCount)
	for i := range q {
		q[i] = SectID(i)
	}
	return q
}

// AllSects returns every sect in declaration order.
func AllSects() []SectID {
	return DefaultTurnQueue()
}

func (id SectID) Valid() bool {
	return id >= 0 && int(id) < SectCount
}

func (id SectID) Info() SectInfo {
	if !id.Valid() {
		return SectInfo{ID: id, Code: fmt.Sprintf("SECT(%d)", int(id)), Name: fmt.Sprintf("SECT(%d)", int(id))}
	}
	return sectInfos[id]
}

// Name is the display name, e.g. "天河剑宗".
func (id SectID) Name() string {
	return id.Info().Name
}

// Tag is the bracketed display name used to prefix log lines.
func (id SectID) Tag() string {
	return "【" + id.Name() + "】"
}

func (id SectID) String() string {
	return id.Info().Code
}

func (id SectID) MarshalText() ([]byte, error) {
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSect, int(id))
	}
	return []byte(sectInfos[id].Code), nil
}

func (id *SectID) UnmarshalText(text []byte) error {
	parsed, err := ParseSect(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseSect accepts the wire code (case-insensitive) or the display name.
func ParseSect(s string) (SectID, error) {
	s = strings.TrimSpace(s)
	for _, info := range sectInfos {
		if strings.EqualFold(s, info.Code) || s == info.Name {
			return info.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSect, s)
}
