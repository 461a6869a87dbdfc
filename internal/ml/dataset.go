package ml

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	"iris-service/internal/contract"
)

// TargetColumn is the CSV column holding the species name.
const TargetColumn = "species"

// Dataset is a labelled feature matrix. Y holds indexes into Labels.
type Dataset struct {
	Features []string
	Labels   []string
	X        [][]float64
	Y        []int
}

// Len returns the number of samples.
func (d *Dataset) Len() int { return len(d.X) }

// LoadCSVFile opens path and parses it with LoadCSV.
func LoadCSVFile(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}

// LoadCSV reads a CSV with a header row naming the four iris features and the
// species column, in any order. Labels are sorted so class indexes are stable
// across files.
func LoadCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}

	featureCols := make([]int, len(contract.FeatureNames))
	for i, name := range contract.FeatureNames {
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		featureCols[i] = col
	}
	targetCol, ok := columns[TargetColumn]
	if !ok {
		return nil, fmt.Errorf("missing column %q", TargetColumn)
	}

	var (
		x       [][]float64
		species []string
	)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		row := make([]float64, len(featureCols))
		for i, col := range featureCols {
			v, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("line %d: %s: invalid value %q", line, contract.FeatureNames[i], record[col])
			}
			row[i] = v
		}
		label := strings.TrimSpace(record[targetCol])
		if label == "" {
			return nil, fmt.Errorf("line %d: empty %s", line, TargetColumn)
		}
		x = append(x, row)
		species = append(species, label)
	}
	if len(x) == 0 {
		return nil, errors.New("dataset has no rows")
	}

	seen := map[string]bool{}
	var labels []string
	for _, s := range species {
		if !seen[s] {
			seen[s] = true
			labels = append(labels, s)
		}
	}
	sort.Strings(labels)
	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	y := make([]int, len(species))
	for i, s := range species {
		y[i] = index[s]
	}

	return &Dataset{
		Features: append([]string(nil), contract.FeatureNames...),
		Labels:   labels,
		X:        x,
		Y:        y,
	}, nil
}

// Split partitions the dataset into train and test sets, keeping each class's
// share of the test set close to testSize. The same seed gives the same split.
func (d *Dataset) Split(testSize float64, seed int64) (train, test *Dataset, err error) {
	if !(testSize > 0 && testSize < 1) {
		return nil, nil, fmt.Errorf("test size must be in (0, 1), got %v", testSize)
	}

	byClass := make([][]int, len(d.Labels))
	for i, c := range d.Y {
		byClass[c] = append(byClass[c], i)
	}

	rng := rand.New(rand.NewSource(seed))
	var trainIdx, testIdx []int
	for c, idx := range byClass {
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("class %q needs at least 2 samples to split", d.Labels[c])
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(math.Round(float64(len(idx)) * testSize))
		if nTest < 1 {
			nTest = 1
		}
		if nTest >= len(idx) {
			nTest = len(idx) - 1
		}
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}

	return d.subset(trainIdx), d.subset(testIdx), nil
}

func (d *Dataset) subset(idx []int) *Dataset {
	sort.Ints(idx)
	out := &Dataset{
		Features: d.Features,
		Labels:   d.Labels,
		X:        make([][]float64, len(idx)),
		Y:        make([]int, len(idx)),
	}
	for i, j := range idx {
		out.X[i] = d.X[j]
		out.Y[i] = d.Y[j]
	}
	return out
}
