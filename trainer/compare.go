package trainer

import (
	"sort"

	"github.com/rushteam/mvakit/metrics"
)

// RankEntry 是排名中的一项，Rank 从 1 开始。
type RankEntry struct {
	Rank      int     `json:"rank" csv:"rank"`
	Algorithm string  `json:"algorithm" csv:"algorithm"`
	Value     float64 `json:"value" csv:"value"`
}

// Ranking 是按某个判别指标对成功结果的排序（值越大越好）。
type Ranking struct {
	Metric  metrics.Key `json:"metric"`
	Entries []RankEntry `json:"entries"`
}

// Compare 只对成功且有指标的结果排名；指标相同时保持注册顺序。
func Compare(results []EvaluationResult, key metrics.Key) Ranking {
	if key == "" {
		key = metrics.ROCIntegral
	}
	r := Ranking{Metric: key}
	for _, res := range results {
		if !res.OK() || res.Metrics == nil {
			continue
		}
		v, ok := res.Metrics.Value(key)
		if !ok {
			continue
		}
		r.Entries = append(r.Entries, RankEntry{Algorithm: res.Algorithm, Value: v})
	}
	sort.SliceStable(r.Entries, func(i, j int) bool { return r.Entries[i].Value > r.Entries[j].Value })
	for i := range r.Entries {
		r.Entries[i].Rank = i + 1
	}
	return r
}

// Best 返回排名第一的算法名。
func (r Ranking) Best() (string, bool) {
	if len(r.Entries) == 0 {
		return "", false
	}
	return r.Entries[0].Algorithm, true
}
