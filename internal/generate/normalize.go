package generate

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// tipCategoryAliases maps free-form tip categories the model likes to
// invent onto the closed enum set. Anything not in the closed set and not
// listed here becomes "productivity".
var tipCategoryAliases = map[string]string{
	"quality":         "productivity",
	"performance":     "productivity",
	"troubleshooting": "shortcuts",
	"general":         "productivity",
	"efficiency":      "productivity",
	"organization":    "customization",
	"integration":     "automation",
	"teamwork":        "collaboration",
}

var tipCategories = map[string]bool{
	"productivity":  true,
	"shortcuts":     true,
	"customization": true,
	"collaboration": true,
	"automation":    true,
}

// Normalize repairs known model-output drift in place and returns doc.
// It runs before schema validation and is idempotent: normalizing an
// already-normalized document changes nothing.
func Normalize(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}

	normalizeOverview(asMap(doc["overview"]))

	for _, f := range asMapSlice(doc["features"]) {
		normalizeFeature(f)
	}
	for _, s := range asMapSlice(doc["shortcuts"]) {
		normalizeShortcut(s)
	}
	for _, w := range asMapSlice(doc["workflows"]) {
		normalizeWorkflow(w)
	}
	for _, tip := range asMapSlice(doc["tips"]) {
		normalizeTip(tip)
	}
	for i, m := range asMapSlice(doc["commonMistakes"]) {
		normalizeMistake(m, i)
	}

	for _, key := range []string{"features", "shortcuts", "workflows", "tips", "commonMistakes", "recentUpdates"} {
		for _, item := range asMapSlice(doc[key]) {
			normalizeSourceIndices(item)
		}
	}

	return doc
}

func normalizeOverview(overview map[string]any) {
	if overview == nil {
		return
	}

	if _, ok := overview["primaryUseCases"]; !ok {
		if s := asString(overview["primaryUseCase"]); s != "" {
			overview["primaryUseCases"] = []any{s}
		}
	}
	delete(overview, "primaryUseCase")

	if _, ok := overview["pricing"]; !ok {
		if s := asString(overview["pricingModel"]); s != "" {
			overview["pricing"] = s
		}
	}
	delete(overview, "pricingModel")

	if _, ok := overview["targetUsers"]; !ok {
		if s := asString(overview["targetAudience"]); s != "" {
			overview["targetUsers"] = []any{s}
		}
	}
	delete(overview, "targetAudience")
}

func normalizeFeature(f map[string]any) {
	if asString(f["whatItsFor"]) == "" {
		f["whatItsFor"] = asString(f["description"])
	}
	defaultSlice(f, "whenToUse")
	defaultSlice(f, "relatedFeatures")
	defaultKeywords(f, asString(f["name"]))
	defaultString(f, "powerLevel", "basic")
}

func normalizeShortcut(s map[string]any) {
	// Some models emit keys as a per-platform object instead of a string.
	if keysObj, ok := s["keys"].(map[string]any); ok {
		platforms := make([]string, 0, len(keysObj))
		for platform := range keysObj {
			platforms = append(platforms, platform)
		}
		sort.Strings(platforms)

		combos := make([]string, 0, len(platforms))
		for _, platform := range platforms {
			if combo := asString(keysObj[platform]); combo != "" {
				combos = append(combos, combo)
			}
		}
		s["keys"] = strings.Join(combos, " / ")

		if _, ok := s["platforms"]; !ok {
			asAny := make([]any, len(platforms))
			for i, p := range platforms {
				asAny[i] = p
			}
			s["platforms"] = asAny
		}
	}

	defaultKeywords(s, asString(s["name"]))
	defaultString(s, "powerLevel", "basic")
}

func normalizeWorkflow(w map[string]any) {
	if asString(w["name"]) == "" {
		if title := asString(w["title"]); title != "" {
			w["name"] = title
		}
	}
	delete(w, "title")

	defaultSlice(w, "useCases")
	defaultString(w, "difficulty", "beginner")
	defaultString(w, "estimatedTime", "varies")

	for i, step := range asMapSlice(w["steps"]) {
		if _, ok := step["step"]; !ok {
			step["step"] = float64(i + 1)
		}
		defaultString(step, "details", "")
		defaultSlice(step, "featuresUsed")
	}
}

func normalizeTip(tip map[string]any) {
	category := strings.ToLower(asString(tip["category"]))
	if !tipCategories[category] {
		if mapped, ok := tipCategoryAliases[category]; ok {
			category = mapped
		} else {
			category = "productivity"
		}
	}
	tip["category"] = category

	defaultString(tip, "powerLevel", "basic")
}

func normalizeMistake(m map[string]any, position int) {
	if asString(m["id"]) == "" {
		m["id"] = "mistake-" + strconv.Itoa(position+1)
	}
}

// normalizeSourceIndices keeps only non-negative integral values, coercing
// JSON numbers to ints. Values past MaxInt32 are dropped too: no citations
// array gets that large, and they would overflow the int decode. Range
// clamping against the citations array happens later, once citations are
// known.
func normalizeSourceIndices(item map[string]any) {
	raw, ok := item["sourceIndices"].([]any)
	if !ok {
		if _, present := item["sourceIndices"]; !present {
			item["sourceIndices"] = []any{}
		}
		return
	}

	kept := make([]any, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok || f < 0 || f > math.MaxInt32 || f != math.Trunc(f) {
			continue
		}
		kept = append(kept, f)
	}
	item["sourceIndices"] = kept
}

func defaultString(m map[string]any, key, value string) {
	if asString(m[key]) == "" {
		m[key] = value
	}
}

func defaultSlice(m map[string]any, key string) {
	if _, ok := m[key].([]any); !ok {
		m[key] = []any{}
	}
}

// defaultKeywords fills a missing keywords list with a single lower-cased
// token derived from the item name, when a name exists.
func defaultKeywords(m map[string]any, name string) {
	if _, ok := m["keywords"].([]any); ok {
		return
	}
	if name == "" {
		m["keywords"] = []any{}
		return
	}
	m["keywords"] = []any{strings.ToLower(name)}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asMapSlice(v any) []map[string]any {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	maps := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			maps = append(maps, m)
		}
	}
	return maps
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
