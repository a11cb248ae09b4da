package writer

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/ternarybob/validation-engine/internal/model"
)

// ReadRecords streams path line by line, decoding each into a
// ComparisonRecord. A trailing line that fails to unmarshal (a partial
// write left by a crash mid-Append, §9) is skipped rather than failing the
// whole read — Save and Update both treat partial JSONL as valid input.
func ReadRecords(path string) ([]model.ComparisonRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []model.ComparisonRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec model.ComparisonRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// Partial/corrupt trailing line from an unclean shutdown;
			// skip it rather than failing the read.
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return records, err
	}
	return records, nil
}
