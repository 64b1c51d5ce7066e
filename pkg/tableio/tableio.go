// Package tableio reads and writes calibration point tables.
//
// A table file holds an optional description and a list of points. The
// format is picked from the file extension: .yaml/.yml is YAML, .csv is CSV
// with a "reference,measured" row per point, anything else is JSON.
package tableio

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/calib-tools/calib/pkg/interpolation"
)

// Format is a table file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
)

// File is the on-disk representation of a calibration table.
type File struct {
	Description string                `json:"description,omitempty" yaml:"description,omitempty"`
	Points      []interpolation.Point `json:"points" yaml:"points"`
}

// FormatFromPath returns the format implied by the extension of path.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".csv":
		return FormatCSV
	default:
		return FormatJSON
	}
}

// ParseFormat parses a user supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatJSON, FormatYAML, FormatCSV:
		return f, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown table format %q, expected one of json, yaml, csv", s)
	}
}

// Decode reads a table in the given format.
func Decode(r io.Reader, format Format) (*File, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read %s table", format)
	}

	f := &File{}
	if len(bytes.TrimSpace(b)) == 0 {
		return f, nil
	}

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(b, f)
	case FormatCSV:
		f.Points, err = decodeCSV(bytes.NewReader(b))
	default:
		err = json.Unmarshal(b, f)
	}
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to decode %s table", format)
	}

	return f, nil
}

// Encode writes f in the given format. CSV output drops the description.
func Encode(w io.Writer, format Format, f *File) error {
	var err error
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		err = enc.Encode(f)
		if err == nil {
			err = enc.Close()
		}
	case FormatCSV:
		err = encodeCSV(w, f.Points)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(f)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode %s table", format)
	}
	return nil
}

// ReadFile reads a table file, picking the format from its extension.
func ReadFile(path string) (*File, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to open file %s", path)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", path)
		}
	}(fp)

	f, err := Decode(fp, FormatFromPath(path))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "file %s", path)
	}
	return f, nil
}

// WriteFile writes a table file, picking the format from its extension.
func WriteFile(path string, f *File) error {
	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", path)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", path)
		}
	}(fp)

	return Encode(fp, FormatFromPath(path), f)
}

// Table builds a calibration table from the points of f.
func (f *File) Table(opts ...interpolation.Option) (*interpolation.Table, error) {
	return interpolation.NewFromPoints(f.Points, opts...)
}

func decodeCSV(r io.Reader) ([]interpolation.Point, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = 2
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}

	points := make([]interpolation.Point, 0, len(records))
	for i, rec := range records {
		if i == 0 && isHeader(rec) {
			continue
		}
		ref, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d: invalid reference value", i+1)
		}
		measured, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "line %d: invalid measured value", i+1)
		}
		points = append(points, interpolation.Point{Reference: ref, Measured: measured})
	}
	return points, nil
}

func isHeader(rec []string) bool {
	return strings.EqualFold(rec[0], "reference") && strings.EqualFold(rec[1], "measured")
}

func encodeCSV(w io.Writer, points []interpolation.Point) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"reference", "measured"}); err != nil {
		return err
	}
	for _, p := range points {
		err := cw.Write([]string{
			strconv.FormatFloat(p.Reference, 'g', -1, 64),
			strconv.FormatFloat(p.Measured, 'g', -1, 64),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
