package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wyfcoding/geodist/engine"
	"github.com/wyfcoding/geodist/geo"
)

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true
	return cr
}

// readPoints 解析 "lat,lon" 记录。数值无法解析时报告行号。
func readPoints(r io.Reader) (*geo.CoordinateSet, error) {
	cr := newCSVReader(r)
	var lats, lons []float64
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read points: %w", err)
		}
		line, _ := cr.FieldPos(0)

		lat, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid latitude %q", line, record[0])
		}
		lon, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid longitude %q", line, record[1])
		}
		lats = append(lats, lat)
		lons = append(lons, lon)
	}

	set, err := geo.NewCoordinateSet(lats, lons)
	if err != nil {
		return nil, fmt.Errorf("read points: %w", err)
	}
	return set, nil
}

func splitRecord(s string) ([]string, error) {
	record, err := newCSVReader(strings.NewReader(s)).Read()
	if err != nil {
		return nil, fmt.Errorf("invalid point %q: expected \"lat,lon\"", s)
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}
	return record, nil
}

func formatFloat(v float64, precision int) string {
	return strconv.FormatFloat(v, 'f', precision, 64)
}

func writeMatrix(w io.Writer, m *engine.DistanceMatrix, precision int) error {
	cw := csv.NewWriter(w)
	row := make([]string, m.Cols)
	for i := range m.Rows {
		for j, v := range m.Row(i) {
			row[j] = formatFloat(v, precision)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writePairs(w io.Writer, pairs []engine.IndexPair) error {
	cw := csv.NewWriter(w)
	for _, p := range pairs {
		if err := cw.Write([]string{strconv.Itoa(p.Row), strconv.Itoa(p.Col)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeIndices(w io.Writer, indices []int) error {
	for _, idx := range indices {
		if _, err := fmt.Fprintln(w, idx); err != nil {
			return err
		}
	}
	return nil
}

func writePoints(w io.Writer, points []geo.Point, precision int) error {
	cw := csv.NewWriter(w)
	for _, p := range points {
		if err := cw.Write([]string{formatFloat(p.Lat, precision), formatFloat(p.Lon, precision)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
