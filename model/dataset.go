package model

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Dataset type constant string - first field of a data file
const (
	LINEAR  = "LINEAR"
	GROUPED = "GROUPED"
)

// Reader implementors instantiate a dataset from a byte stream
type Reader interface {
	ReadDataset(data []byte) (*Dataset, error)
}

// Dataset is a regression data set: a response, a design matrix whose first
// column is the intercept, and (for GROUPED data) a group for every row.
type Dataset struct {
	Type   string
	Name   string
	Y      []float64
	X      *mat.Dense // rows x (predictors + 1)
	Group  []int      // nil unless Type is GROUPED
	Groups int        // number of distinct groups
}

// Rows is the number of observations
func (d *Dataset) Rows() int {
	return len(d.Y)
}

// Coefficients is the number of regression coefficients, including the
// intercept
func (d *Dataset) Coefficients() int {
	_, c := d.X.Dims()
	return c
}

// GroupSizes returns the number of rows in each group
func (d *Dataset) GroupSizes() []int {
	sizes := make([]int, d.Groups)
	for _, g := range d.Group {
		sizes[g]++
	}
	return sizes
}

// Check returns an error if there is a problem with the dataset
func (d *Dataset) Check() error {
	if d.Type != LINEAR && d.Type != GROUPED {
		return errors.Errorf("Unknown dataset type %s", d.Type)
	}
	if d.X == nil {
		return errors.New("Dataset has no design matrix")
	}

	r, c := d.X.Dims()
	if r != len(d.Y) {
		return errors.Errorf("Design matrix has %d rows for %d responses", r, len(d.Y))
	}
	if r <= c {
		return errors.Errorf("Need more rows (%d) than coefficients (%d)", r, c)
	}

	if d.Type == GROUPED {
		if len(d.Group) != r {
			return errors.Errorf("Found %d groups for %d rows", len(d.Group), r)
		}
		for i, size := range d.GroupSizes() {
			if size < 1 {
				return errors.Errorf("Group %d has no rows", i)
			}
		}
	}
	return nil
}

// NewDatasetFromFile reads and parses the specified file. The dataset is
// named from the file.
func NewDatasetFromFile(r Reader, filename string) (*Dataset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not READ dataset from %s", filename)
	}

	ds, err := NewDatasetFromBuffer(r, data)
	if err != nil {
		return nil, errors.Wrapf(err, "Dataset %s", filename)
	}

	var ext = filepath.Ext(filename)
	ds.Name = filename[0 : len(filename)-len(ext)]
	return ds, nil
}

// NewDatasetFromBuffer creates a dataset from the given pre-read data
func NewDatasetFromBuffer(r Reader, data []byte) (*Dataset, error) {
	ds, err := r.ReadDataset(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Could not PARSE dataset")
	}

	err = ds.Check()
	if err != nil {
		return nil, errors.Wrapf(err, "Parsed dataset is not valid")
	}
	return ds, nil
}

// DatReader reads our whitespace-delimited data format. Blank lines and
// lines starting with '#' are ignored. The first remaining line is
//
//	TYPE ROWS PREDICTORS
//
// followed by one line per row: "y x1 .. xk" for LINEAR data, and
// "group y x1 .. xk" for GROUPED data where group is a 0-based integer.
type DatReader struct{}

// datLine is a non-blank, non-comment line and its 1-based line number
type datLine struct {
	num    int
	fields []string
}

func datLines(data []byte) []datLine {
	var lines []datLine
	for i, ln := range strings.Split(string(data), "\n") {
		ln = strings.TrimSpace(ln)
		if len(ln) < 1 || ln[0] == '#' {
			continue
		}
		lines = append(lines, datLine{num: i + 1, fields: strings.Fields(ln)})
	}
	return lines
}

// datHeader is the parsed first line of a data file
type datHeader struct {
	typ   string
	rows  int
	preds int
}

func parseHeader(ln datLine) (datHeader, error) {
	var h datHeader
	if len(ln.fields) != 3 {
		return h, errors.Errorf("Line %d: header needs TYPE ROWS PREDICTORS, found %d fields", ln.num, len(ln.fields))
	}

	h.typ = ln.fields[0]
	if h.typ != LINEAR && h.typ != GROUPED {
		return h, errors.Errorf("Line %d: unknown dataset type %v", ln.num, h.typ)
	}

	var err error
	if h.rows, err = strconv.Atoi(ln.fields[1]); err != nil || h.rows < 1 {
		return h, errors.Errorf("Line %d: invalid row count %q", ln.num, ln.fields[1])
	}
	if h.preds, err = strconv.Atoi(ln.fields[2]); err != nil || h.preds < 0 {
		return h, errors.Errorf("Line %d: invalid predictor count %q", ln.num, ln.fields[2])
	}
	return h, nil
}

// parseRow fills row i of ds from one data line
func (h datHeader) parseRow(ds *Dataset, i int, ln datLine) error {
	fields := ln.fields
	width := h.preds + 1
	if h.typ == GROUPED {
		width++
	}
	if len(fields) != width {
		return errors.Errorf("Line %d: expected %d values, found %d", ln.num, width, len(fields))
	}

	if h.typ == GROUPED {
		g, err := strconv.Atoi(fields[0])
		if err != nil || g < 0 {
			return errors.Errorf("Line %d: invalid group %q", ln.num, fields[0])
		}
		ds.Group[i] = g
		if g >= ds.Groups {
			ds.Groups = g + 1
		}
		fields = fields[1:]
	}

	y, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return errors.Wrapf(err, "Line %d: response", ln.num)
	}
	ds.Y[i] = y

	ds.X.Set(i, 0, 1.0)
	for j := 1; j <= h.preds; j++ {
		v, err := strconv.ParseFloat(fields[j], 64)
		if err != nil {
			return errors.Wrapf(err, "Line %d: predictor %d", ln.num, j)
		}
		ds.X.Set(i, j, v)
	}
	return nil
}

// ReadDataset implements the Reader interface
func (r DatReader) ReadDataset(data []byte) (*Dataset, error) {
	lines := datLines(data)
	if len(lines) < 1 {
		return nil, errors.Errorf("No lines found in file")
	}

	h, err := parseHeader(lines[0])
	if err != nil {
		return nil, err
	}
	body := lines[1:]
	if len(body) != h.rows {
		return nil, errors.Errorf("Expected %d rows, found %d", h.rows, len(body))
	}

	ds := &Dataset{
		Type: h.typ,
		Y:    make([]float64, h.rows),
		X:    mat.NewDense(h.rows, h.preds+1, nil),
	}
	if h.typ == GROUPED {
		ds.Group = make([]int, h.rows)
	}

	for i, ln := range body {
		if err := h.parseRow(ds, i, ln); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
