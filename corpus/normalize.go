package corpus

import (
	"fmt"

	"github.com/rushteam/mvakit/core"
)

// renormalize 只调整训练分区的权重；测试分区保留物理权重，用于产额相关的评估。
func renormalize(c *core.Corpus, mode core.NormMode) error {
	switch mode {
	case "", core.NormNone:
		return nil
	}

	sigSum := c.SumWeights(core.Train, core.Signal)
	bkgSum := c.SumWeights(core.Train, core.Background)
	sigN := float64(c.Count(core.Train, core.Signal))
	bkgN := float64(c.Count(core.Train, core.Background))
	if sigSum <= 0 || bkgSum <= 0 {
		return core.NewDomainError(core.ModuleCorpus, core.ErrorCodeInvalidNormalization,
			fmt.Sprintf("norm mode %s: training weight sums must be > 0 (signal=%g, background=%g)", mode, sigSum, bkgSum))
	}

	sigFactor := sigN / sigSum
	bkgFactor := bkgN / bkgSum
	if mode == core.NormEqualNumEvents {
		bkgFactor = sigN / bkgSum
	}

	for i := range c.Examples {
		ex := &c.Examples[i]
		if ex.Partition != core.Train {
			continue
		}
		if ex.Label == core.Signal {
			ex.Weight *= sigFactor
		} else {
			ex.Weight *= bkgFactor
		}
	}
	return nil
}
