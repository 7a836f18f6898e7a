package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"career-pulse/internal/schema"
)

// Dataset is a feature matrix with one label per row.
type Dataset struct {
	X [][]float64
	Y []int
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Y)
}

// Rows returns the dataset as individual rows.
func (d *Dataset) Rows() []Row {
	rows := make([]Row, d.Len())
	for i := range d.Y {
		rows[i] = Row{Features: d.X[i], Label: d.Y[i]}
	}
	return rows
}

// FromRows assembles a dataset from rows.
func FromRows(rows []Row) *Dataset {
	d := &Dataset{
		X: make([][]float64, len(rows)),
		Y: make([]int, len(rows)),
	}
	for i, r := range rows {
		d.X[i] = r.Features
		d.Y[i] = r.Label
	}
	return d
}

// CountByLabel returns how many rows carry each label.
func (d *Dataset) CountByLabel() []int {
	counts := make([]int, schema.NumCareers)
	for _, y := range d.Y {
		if y >= 0 && y < len(counts) {
			counts[y]++
		}
	}
	return counts
}

// Validate checks every row against the schema.
func (d *Dataset) Validate() error {
	if len(d.X) != len(d.Y) {
		return fmt.Errorf("dataset has %d rows but %d labels", len(d.X), len(d.Y))
	}
	for i, x := range d.X {
		if err := schema.Validate(x); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		if d.Y[i] < 0 || d.Y[i] >= schema.NumCareers {
			return fmt.Errorf("row %d: %w: label %d", i, schema.ErrUnknownCareer, d.Y[i])
		}
	}
	return nil
}

// Split shuffles the rows with rng and returns a training set and a holdout
// set holding roughly frac of the rows. frac outside (0, 1) yields an empty
// holdout.
func (d *Dataset) Split(frac float64, rng *rand.Rand) (train, holdout *Dataset) {
	perm := rng.Perm(d.Len())
	n := 0
	if frac > 0 && frac < 1 {
		n = int(float64(d.Len()) * frac)
	}

	holdout = &Dataset{X: make([][]float64, 0, n), Y: make([]int, 0, n)}
	train = &Dataset{X: make([][]float64, 0, d.Len()-n), Y: make([]int, 0, d.Len()-n)}
	for i, p := range perm {
		if i < n {
			holdout.X = append(holdout.X, d.X[p])
			holdout.Y = append(holdout.Y, d.Y[p])
			continue
		}
		train.X = append(train.X, d.X[p])
		train.Y = append(train.Y, d.Y[p])
	}
	return train, holdout
}

// WriteCSV writes a header of feature names plus "career", then one line per
// row with the career spelled out.
func (d *Dataset) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := append(schema.FeatureNames(), "career")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, len(header))
	for i, x := range d.X {
		if len(x) != schema.NumFeatures {
			return fmt.Errorf("row %d: %w: got %d values", i, schema.ErrInvalidVector, len(x))
		}
		for j, v := range x {
			record[j] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		name, err := schema.CareerName(d.Y[i])
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		record[len(record)-1] = name
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses data written by WriteCSV. The header must list the schema
// features in order followed by "career", and every row must validate.
func ReadCSV(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = schema.NumFeatures + 1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if !schema.Equal(header[:schema.NumFeatures]) || header[schema.NumFeatures] != "career" {
		return nil, fmt.Errorf("%w: csv header does not match feature names", schema.ErrInvalidVector)
	}

	d := &Dataset{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}

		x := make([]float64, schema.NumFeatures)
		for j := range x {
			if x[j], err = strconv.ParseFloat(record[j], 64); err != nil {
				return nil, fmt.Errorf("line %d: %w: %q is not a number", line, schema.ErrInvalidVector, record[j])
			}
		}
		if err := schema.Validate(x); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		label, err := schema.CareerIndex(record[schema.NumFeatures])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		d.X = append(d.X, x)
		d.Y = append(d.Y, label)
	}
	return d, nil
}
