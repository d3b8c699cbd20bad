package cloudfrac

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WriteCSV writes the series as delimited text with columns timestamp
// (ISO-8601 UTC), cloudfraction, cloudfraction_above_site. NaN serializes as
// an empty field. Parent directories are created as needed.
func WriteCSV(path string, rows []Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "cloudfraction", "cloudfraction_above_site"}); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			formatFraction(r.CloudFraction),
			formatFraction(r.CloudFractionAboveSite),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func formatFraction(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
