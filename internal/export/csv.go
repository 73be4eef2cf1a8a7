package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"iter"
	"os"
	"strconv"

	"go-keiba-collector/internal/feature"
)

// ToCSV 将训练行逐行写入 CSV：url, 特征..., 标签...；返回写入行数。
// 写入中途出错时已写部分保留在文件中。
func ToCSV(ctx context.Context, rows iter.Seq[feature.Row], path string) (int, error) {
	if err := ensureDir(path); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	n := 0
	rec := make([]string, 0, 1+feature.Width+feature.HorsesPerRace)
	for row := range rows {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		rec = rec[:0]
		rec = append(rec, row.URL)
		for _, x := range row.X {
			rec = append(rec, strconv.FormatFloat(x, 'f', -1, 64))
		}
		for _, y := range row.Y {
			rec = append(rec, strconv.Itoa(y))
		}
		if err := w.Write(rec); err != nil {
			return n, fmt.Errorf("write csv %s: %w", path, err)
		}
		n++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, fmt.Errorf("flush csv %s: %w", path, err)
	}
	return n, nil
}
