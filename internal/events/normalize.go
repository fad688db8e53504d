package events

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/daftuyda/umamusume-auto-train/internal/career"
	"github.com/tidwall/gjson"
)

var (
	hintPattern   = regexp.MustCompile(`(?i)(?P<name>.+?)\s*(?:hint\s*)?\+?(?P<lvl>-?\d+)`)
	statusPattern = regexp.MustCompile(`(?i)(?:Get|Gain|Apply)\s+(?P<name>.+?)\s+status`)
	numberPattern = regexp.MustCompile(`-?\d+(\.\d+)?`)
)

// NormalizeRewards flattens the reward payload of one event option into
// Reward values. The catalog mixes several shapes:
//
//	{"type":"stat","name":"Speed","value":10}
//	{"type":"text","text":"※ Bad result"}
//	{"energy":[10],"speed":[5]}
//	[[{...},{...}],[{...}]]
//	"Get Practice Perfect ○ status"
func NormalizeRewards(payload gjson.Result) []career.Reward {
	var out []career.Reward
	for _, item := range flatten(payload) {
		out = appendReward(out, item)
	}
	return out
}

func flatten(r gjson.Result) []gjson.Result {
	if !r.IsArray() {
		if !r.Exists() {
			return nil
		}
		return []gjson.Result{r}
	}
	var flat []gjson.Result
	for _, el := range r.Array() {
		flat = append(flat, flatten(el)...)
	}
	return flat
}

func appendReward(out []career.Reward, item gjson.Result) []career.Reward {
	switch {
	case item.IsObject() && item.Get("type").Exists():
		switch item.Get("type").String() {
		case "stat":
			value := 0
			if v := item.Get("value"); v.Type == gjson.Number {
				value = int(v.Int())
			}
			return append(out, classify(item.Get("name").String(), value))
		case "text":
			text := item.Get("text").String()
			out = append(out, career.Reward{Kind: career.RewardText, Text: text})
			return appendTextual(out, text)
		default:
			return append(out, career.Reward{Kind: career.RewardUnknown, Text: item.Raw})
		}

	case item.IsObject():
		var keys []string
		values := map[string]gjson.Result{}
		item.ForEach(func(k, v gjson.Result) bool {
			keys = append(keys, k.String())
			values[k.String()] = v
			return true
		})
		sort.Strings(keys)
		for _, k := range keys {
			amount, ok := firstNumber(values[k])
			if !ok {
				out = append(out, career.Reward{Kind: career.RewardUnknown, Name: k, Text: values[k].Raw})
				continue
			}
			out = append(out, classify(k, int(amount)))
		}
		return out

	case item.Type == gjson.String:
		out = append(out, career.Reward{Kind: career.RewardText, Text: item.String()})
		return appendTextual(out, item.String())

	default:
		return append(out, career.Reward{Kind: career.RewardUnknown, Text: item.Raw})
	}
}

func classify(name string, value int) career.Reward {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "energy":
		return career.Reward{Kind: career.RewardEnergy, Name: "Energy", Value: value}
	case "skill points", "skill point", "skill_points":
		return career.Reward{Kind: career.RewardSkillPoints, Name: "Skill points", Value: value}
	case "bond":
		return career.Reward{Kind: career.RewardBond, Name: "Bond", Value: value}
	}
	if stat, ok := career.ParseStat(name); ok {
		return career.Reward{Kind: career.RewardStat, Name: stat.String(), Value: value}
	}
	if name == "" {
		name = "Unknown"
	}
	return career.Reward{Kind: career.RewardStat, Name: strings.ToUpper(name[:1]) + name[1:], Value: value}
}

func appendTextual(out []career.Reward, text string) []career.Reward {
	if m := hintPattern.FindStringSubmatch(text); m != nil {
		name := strings.TrimRight(strings.TrimSpace(m[hintPattern.SubexpIndex("name")]), ":")
		if lvl, err := strconv.Atoi(m[hintPattern.SubexpIndex("lvl")]); err == nil {
			out = append(out, career.Reward{Kind: career.RewardHint, Name: name, Value: lvl, Text: text})
		}
	}
	if m := statusPattern.FindStringSubmatch(text); m != nil {
		name := strings.TrimRight(strings.TrimSpace(m[statusPattern.SubexpIndex("name")]), ":")
		out = append(out, career.Reward{Kind: career.RewardStatus, Name: name, Text: text})
	}
	return out
}

func firstNumber(v gjson.Result) (float64, bool) {
	switch {
	case v.Type == gjson.Number:
		return v.Float(), true
	case v.IsArray():
		for _, el := range v.Array() {
			if el.Type == gjson.Number {
				return el.Float(), true
			}
		}
	case v.Type == gjson.String:
		if m := numberPattern.FindString(v.String()); m != "" {
			f, err := strconv.ParseFloat(m, 64)
			return f, err == nil
		}
	}
	return 0, false
}
