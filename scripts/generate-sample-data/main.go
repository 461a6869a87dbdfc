// Command generate-sample-data writes a synthetic iris CSV, for exercising the
// trainer on larger or reseeded inputs. Samples are drawn per class from normal
// distributions fitted to the bundled data/iris.csv. The classes overlap more
// than in the real measurements, so models trained on it are for smoke tests.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"iris-service/internal/contract"
	"iris-service/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type classStats struct {
	label string
	mean  [4]float64
	std   [4]float64
}

// Per-class mean and standard deviation, ordered as contract.FeatureNames.
var irisStats = []classStats{
	{"setosa", [4]float64{5.006, 3.428, 1.462, 0.246}, [4]float64{0.352, 0.379, 0.174, 0.105}},
	{"versicolor", [4]float64{5.936, 2.770, 4.260, 1.326}, [4]float64{0.516, 0.314, 0.470, 0.198}},
	{"virginica", [4]float64{6.588, 2.974, 5.552, 2.026}, [4]float64{0.636, 0.322, 0.552, 0.275}},
}

func main() {
	var (
		outputPath = flag.String("output", "data/iris_synthetic.csv", "Output CSV path")
		perClass   = flag.Int("per-class", 50, "Samples per species")
		seed       = flag.Int64("seed", 42, "Random seed")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *perClass < 2 {
		log.Fatal().Int("per_class", *perClass).Msg("need at least 2 samples per species")
	}

	if err := generate(*outputPath, *perClass, *seed); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate data")
	}

	fmt.Printf("✓ Generated %d samples in %s\n", *perClass*len(irisStats), *outputPath)
}

func generate(path string, perClass int, seed int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append(append([]string{}, contract.FeatureNames...), ml.TargetColumn)
	if err := w.Write(header); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(seed))
	for _, cls := range irisStats {
		for i := 0; i < perClass; i++ {
			row := make([]string, 0, len(header))
			for j := range cls.mean {
				v := cls.mean[j] + rng.NormFloat64()*cls.std[j]
				// Keep values on the measurement grid and inside the contract bounds.
				v = math.Round(v*10) / 10
				v = math.Max(0.1, math.Min(contract.MaxFeatureValue, v))
				row = append(row, strconv.FormatFloat(v, 'f', 1, 64))
			}
			row = append(row, cls.label)
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}
