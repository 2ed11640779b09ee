package sink

import (
	"strconv"
	"strings"
)

// Spectators 在 CSV 中编码为以 ';' 分隔的一列，JSON 中是普通数组。
type Spectators []float64

func (s Spectators) MarshalCSV() (string, error) {
	parts := make([]string, len(s))
	for i, v := range s {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ";"), nil
}

func (s *Spectators) UnmarshalCSV(text string) error {
	*s = nil
	if text == "" {
		return nil
	}
	for _, part := range strings.Split(text, ";") {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return err
		}
		*s = append(*s, v)
	}
	return nil
}
