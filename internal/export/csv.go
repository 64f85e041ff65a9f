// Package export writes a finished run's sample history to disk for
// offline analysis.
package export

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/proforce-air/pidlink/internal/loop"
)

// WriteCSV writes one row per sample: time, measurement, control, error.
func WriteCSV(path string, samples []loop.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "measurement", "control", "error"}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.T, 'f', 4, 64),
			strconv.FormatFloat(s.Measurement, 'g', -1, 64),
			strconv.FormatFloat(s.Control, 'g', -1, 64),
			strconv.FormatFloat(s.Err, 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
