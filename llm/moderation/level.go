package moderation

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Level 审核等级预设
type Level string

const (
	LevelStrict   Level = "strict"
	LevelModerate Level = "moderate"
	LevelRelaxed  Level = "relaxed"
	LevelMinimal  Level = "minimal"
)

// DefaultLevel 未指定审核等级时使用的预设
const DefaultLevel = LevelModerate

// thresholds 审核等级到阈值的映射
var thresholds = map[Level]genai.HarmBlockThreshold{
	LevelStrict:   genai.HarmBlockThresholdBlockLowAndAbove,
	LevelModerate: genai.HarmBlockThresholdBlockMediumAndAbove,
	LevelRelaxed:  genai.HarmBlockThresholdBlockOnlyHigh,
	LevelMinimal:  genai.HarmBlockThresholdBlockNone,
}

// categories 需要下发阈值的伤害类别，顺序固定
var categories = []genai.HarmCategory{
	genai.HarmCategoryHateSpeech,
	genai.HarmCategoryDangerousContent,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryHarassment,
}

// Levels 返回全部合法等级（按严格程度递减）
func Levels() []Level {
	return []Level{LevelStrict, LevelModerate, LevelRelaxed, LevelMinimal}
}

// Categories 返回安全设置覆盖的伤害类别
func Categories() []genai.HarmCategory {
	out := make([]genai.HarmCategory, len(categories))
	copy(out, categories)
	return out
}

// ParseLevel 解析审核等级（忽略大小写与首尾空白）。
// 空字符串返回 fallback；未知值返回错误。
func ParseLevel(s string, fallback Level) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return fallback, nil
	}
	l := Level(s)
	if !l.Valid() {
		return "", fmt.Errorf("unknown moderation level %q (supported: %s)", s, supportedList())
	}
	return l, nil
}

// Valid 判断是否为已知等级
func (l Level) Valid() bool {
	_, ok := thresholds[l]
	return ok
}

func (l Level) String() string { return string(l) }

// Threshold 返回等级对应的拦截阈值。未知等级按 moderate 处理。
func (l Level) Threshold() genai.HarmBlockThreshold {
	if t, ok := thresholds[l]; ok {
		return t
	}
	return thresholds[DefaultLevel]
}

// SafetySettings 构建发送给模型服务商的安全设置
func (l Level) SafetySettings() []*genai.SafetySetting {
	threshold := l.Threshold()
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: threshold,
		})
	}
	return settings
}

func supportedList() string {
	levels := Levels()
	names := make([]string, len(levels))
	for i, l := range levels {
		names[i] = string(l)
	}
	return strings.Join(names, ", ")
}
