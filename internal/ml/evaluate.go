package ml

import (
	"fmt"
	"strings"
)

// ClassMetrics holds per-class precision, recall and F1.
type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Evaluation summarises a classifier on a labelled set.
type Evaluation struct {
	Accuracy   float64
	WeightedF1 float64
	Classes    []ClassMetrics
}

// Evaluate scores every sample of d with m.
func Evaluate(m *GaussianNB, d *Dataset) (Evaluation, error) {
	predicted := make([]int, d.Len())
	for i, row := range d.X {
		c, _, err := m.Score(row)
		if err != nil {
			return Evaluation{}, fmt.Errorf("score sample %d: %w", i, err)
		}
		predicted[i] = c
	}
	return Compare(d.Y, predicted, d.Labels), nil
}

// Compare computes accuracy and support-weighted F1 for predicted against actual.
// Classes with no predictions get precision 0.
func Compare(actual, predicted []int, labels []string) Evaluation {
	n := len(labels)
	tp := make([]int, n)
	predCount := make([]int, n)
	support := make([]int, n)

	correct := 0
	for i, a := range actual {
		p := predicted[i]
		support[a]++
		predCount[p]++
		if a == p {
			tp[a]++
			correct++
		}
	}

	ev := Evaluation{Classes: make([]ClassMetrics, n)}
	if len(actual) > 0 {
		ev.Accuracy = float64(correct) / float64(len(actual))
	}

	for c := 0; c < n; c++ {
		cm := ClassMetrics{Label: labels[c], Support: support[c]}
		if predCount[c] > 0 {
			cm.Precision = float64(tp[c]) / float64(predCount[c])
		}
		if support[c] > 0 {
			cm.Recall = float64(tp[c]) / float64(support[c])
		}
		if cm.Precision+cm.Recall > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
		}
		ev.Classes[c] = cm
		if len(actual) > 0 {
			ev.WeightedF1 += cm.F1 * float64(support[c]) / float64(len(actual))
		}
	}
	return ev
}

// Report renders a plain-text classification report.
func (e Evaluation) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	total := 0
	for _, c := range e.Classes {
		fmt.Fprintf(&b, "%-12s %9.2f %9.2f %9.2f %9d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
		total += c.Support
	}
	fmt.Fprintf(&b, "\n%-12s %9s %9s %9.2f %9d\n", "accuracy", "", "", e.Accuracy, total)
	fmt.Fprintf(&b, "%-12s %9s %9s %9.2f %9d\n", "weighted f1", "", "", e.WeightedF1, total)
	return b.String()
}
