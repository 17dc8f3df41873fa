package model

import (
	"math"
	"sort"

	"github.com/credfab/credfab/pkg/domain"
)

// Metric keys logged for every run. AUC is the default ranking metric;
// log-loss is the calibration metric.
const (
	MetricAUC       = "auc"
	MetricLogLoss   = "log_loss"
	MetricAccuracy  = "accuracy"
	MetricPrecision = "precision"
	MetricRecall    = "recall"
	MetricF1        = "f1_score"
)

// Evaluate scores every example of the partition once and computes the full
// metric set at the given decision threshold.
func Evaluate(m Model, p domain.Partition, threshold float64) map[string]float64 {
	scores := make([]float64, p.Len())
	for i, fv := range p.X {
		scores[i] = m.Score(fv)
	}

	pred := make([]int, len(scores))
	for i, s := range scores {
		if s >= threshold {
			pred[i] = 1
		}
	}

	precision, recall, f1 := PrecisionRecallF1(p.Y, pred)
	return map[string]float64{
		MetricAUC:       AUC(p.Y, scores),
		MetricLogLoss:   LogLoss(p.Y, scores),
		MetricAccuracy:  Accuracy(p.Y, pred),
		MetricPrecision: precision,
		MetricRecall:    recall,
		MetricF1:        f1,
	}
}

func Accuracy(yTrue, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

func PrecisionRecallF1(yTrue, yPred []int) (precision, recall, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		switch {
		case yPred[i] == 1 && yTrue[i] == 1:
			tp++
		case yPred[i] == 1 && yTrue[i] == 0:
			fp++
		case yPred[i] == 0 && yTrue[i] == 1:
			fn++
		}
	}
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return
}

// AUC is the area under the ROC curve, computed as the Mann-Whitney U
// statistic with tied scores receiving averaged ranks.
//
// Degenerate inputs (single-class labels) return 0.5: no ranking signal.
func AUC(yTrue []int, scores []float64) float64 {
	n := len(yTrue)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, n)
	for i := 0; i < n; {
		j := i
		for j < n && scores[order[j]] == scores[order[i]] {
			j++
		}
		// ranks are 1-based; ties share the average rank of their block
		avg := float64(i+1+j) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	nPos, nNeg := 0, 0
	rankSum := 0.0
	for i, y := range yTrue {
		if y == 1 {
			nPos++
			rankSum += ranks[i]
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0.5
	}
	return (rankSum - float64(nPos)*float64(nPos+1)/2) / (float64(nPos) * float64(nNeg))
}

// LogLoss is the mean negative log-likelihood, with probabilities clipped
// away from 0 and 1.
func LogLoss(yTrue []int, scores []float64) float64 {
	const eps = 1e-15
	s := 0.0
	for i, y := range yTrue {
		p := math.Min(math.Max(scores[i], eps), 1-eps)
		if y == 1 {
			s -= math.Log(p)
		} else {
			s -= math.Log(1 - p)
		}
	}
	return s / float64(len(yTrue))
}
