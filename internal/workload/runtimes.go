/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package workload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column names of the runtime-prediction export (seconds).
const (
	ColumnPrediction = "prediction"
	ColumnLabel      = "label"
)

// ReadRuntimes parses a values.csv export with prediction and label columns.
// An optional id or query_id column supplies query identifiers.
func ReadRuntimes(r io.Reader) ([]Runtime, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty runtime source")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	predIdx, labelIdx, idIdx := -1, -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case ColumnPrediction:
			predIdx = i
		case ColumnLabel:
			labelIdx = i
		case "id", "query_id":
			idIdx = i
		}
	}
	if predIdx < 0 || labelIdx < 0 {
		return nil, fmt.Errorf("runtime source must have %q and %q columns", ColumnPrediction, ColumnLabel)
	}

	var rows []Runtime
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		pred, err := parseSeconds(record, predIdx)
		if err != nil {
			return nil, fmt.Errorf("line %d prediction: %w", line, err)
		}
		actual, err := parseSeconds(record, labelIdx)
		if err != nil {
			return nil, fmt.Errorf("line %d label: %w", line, err)
		}
		row := Runtime{PredictedSec: pred, ActualSec: actual}
		if idIdx >= 0 && idIdx < len(record) {
			row.ID = strings.TrimSpace(record[idIdx])
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseSeconds(record []string, idx int) (float64, error) {
	if idx >= len(record) {
		return 0, fmt.Errorf("missing column %d", idx)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(record[idx]), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, fmt.Errorf("negative runtime %v", v)
	}
	return v, nil
}
