// Package dataset loads wearable sensor recordings from CSV files and
// prepares them for model training. Raw exports carry bookkeeping columns
// and sparse summary-statistic columns alongside the sensor channels; the
// cleaning step strips both so only dense numeric features remain.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/yimp/practicalml/pkg/errors"
	"github.com/yimp/practicalml/pkg/log"
)

// defaultNATokens are the cell values treated as missing when LoadOptions
// does not override them.
var defaultNATokens = []string{"", "NA", "NaN", "#DIV/0!"}

// defaultDropColumns are the bookkeeping columns of the raw sensor export.
// They identify rows rather than measurements and are dropped before training.
var defaultDropColumns = []string{
	"",
	"X",
	"user_name",
	"raw_timestamp_part_1",
	"raw_timestamp_part_2",
	"cvtd_timestamp",
	"new_window",
	"num_window",
}

// Table is an in-memory tabular dataset with an optional label column.
type Table struct {
	FeatureNames []string
	ClassNames   []string

	// DroppedColumns are header names removed during cleaning, in file order.
	DroppedColumns []string

	features *mat.Dense
	labels   []int
	nRows    int
}

// LoadOptions controls CSV parsing and cleaning.
type LoadOptions struct {
	// LabelColumn names the column holding the class label. Empty means
	// the table carries no labels (prediction-only input).
	LabelColumn string
	// MaxMissingRatio drops any column whose fraction of missing cells
	// exceeds it. Zero means use the default of 0.5.
	MaxMissingRatio float64
	// NATokens are the cell values treated as missing. Nil means the
	// defaults ("", "NA", "NaN", "#DIV/0!").
	NATokens []string
	// DropColumns are header names always removed before training. Nil
	// means the raw export's bookkeeping columns.
	DropColumns []string
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.MaxMissingRatio == 0 {
		o.MaxMissingRatio = 0.5
	}
	if o.NATokens == nil {
		o.NATokens = defaultNATokens
	}
	if o.DropColumns == nil {
		o.DropColumns = defaultDropColumns
	}
	return o
}

func toSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, name := range names {
		set[name] = true
	}
	return set
}

// Load reads and cleans a CSV file from disk.
func Load(path string, opts LoadOptions) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewDataError(path, 0, err.Error())
	}
	defer f.Close()

	t, err := Read(f, opts)
	if err != nil {
		var dataErr *errors.DataError
		if errors.As(err, &dataErr) {
			dataErr.Path = path
		}
		return nil, err
	}
	return t, nil
}

// Read parses and cleans CSV data from r.
func Read(r io.Reader, opts LoadOptions) (*Table, error) {
	opts = opts.withDefaults()
	naSet := toSet(opts.NATokens)
	dropSet := toSet(opts.DropColumns)
	logger := log.GetLoggerWithName("dataset")

	cr := csv.NewReader(r)
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		return nil, errors.NewDataError("", 1, "cannot read header: "+err.Error())
	}

	labelIdx := -1
	if opts.LabelColumn != "" {
		for i, name := range header {
			if name == opts.LabelColumn {
				labelIdx = i
				break
			}
		}
		if labelIdx < 0 {
			return nil, errors.NewDataError("", 1, fmt.Sprintf("label column %q not found", opts.LabelColumn))
		}
	}

	var rows [][]string
	var rawLabels []string
	rowNum := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		rowNum++
		if err != nil {
			return nil, errors.NewDataError("", rowNum, err.Error())
		}
		if len(record) != len(header) {
			return nil, errors.NewDataError("", rowNum,
				fmt.Sprintf("expected %d fields, got %d", len(header), len(record)))
		}
		if labelIdx >= 0 {
			rawLabels = append(rawLabels, strings.TrimSpace(record[labelIdx]))
		}
		rows = append(rows, record)
	}

	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.Read")
	}

	keep := selectColumns(header, rows, labelIdx, opts.MaxMissingRatio, naSet, dropSet)
	if len(keep) == 0 {
		return nil, errors.NewDataError("", 0, "no usable feature columns after cleaning")
	}

	keptSet := make(map[int]bool, len(keep))
	for _, col := range keep {
		keptSet[col] = true
	}
	var droppedCols []string
	for col, name := range header {
		if !keptSet[col] && col != labelIdx {
			droppedCols = append(droppedCols, name)
		}
	}

	logger.Info("loaded dataset",
		log.SamplesKey, len(rows),
		log.FeaturesKey, len(keep),
		"dropped_columns", len(droppedCols))

	t := &Table{
		FeatureNames:   make([]string, len(keep)),
		DroppedColumns: droppedCols,
		nRows:          len(rows),
	}
	for i, col := range keep {
		t.FeatureNames[i] = header[col]
	}

	t.features = mat.NewDense(len(rows), len(keep), nil)
	for i, record := range rows {
		for j, col := range keep {
			v, err := parseCell(record[col], naSet)
			if err != nil {
				return nil, errors.NewDataError("", i+2,
					fmt.Sprintf("column %q: %s", header[col], err.Error()))
			}
			t.features.Set(i, j, v)
		}
	}

	if labelIdx >= 0 {
		if err := t.encodeLabels(rawLabels); err != nil {
			return nil, err
		}
	}

	return t, nil
}

// selectColumns returns the indices of columns kept for training: numeric
// measurement columns that are neither bookkeeping nor mostly missing.
func selectColumns(header []string, rows [][]string, labelIdx int, maxMissingRatio float64, naSet, dropSet map[string]bool) []int {
	var keep []int
	for col, name := range header {
		if col == labelIdx || dropSet[name] {
			continue
		}
		missing := 0
		for _, record := range rows {
			if naSet[strings.TrimSpace(record[col])] {
				missing++
			}
		}
		if float64(missing)/float64(len(rows)) > maxMissingRatio {
			continue
		}
		keep = append(keep, col)
	}
	return keep
}

// parseCell converts a cell to float64, mapping missing tokens to NaN.
func parseCell(s string, naSet map[string]bool) (float64, error) {
	s = strings.TrimSpace(s)
	if naSet[s] {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return v, nil
}

// encodeLabels maps the distinct label strings, sorted, to class indices.
func (t *Table) encodeLabels(raw []string) error {
	seen := make(map[string]bool)
	for i, s := range raw {
		if s == "" {
			return errors.NewDataError("", i+2, "empty label")
		}
		seen[s] = true
	}
	if len(seen) < 2 {
		return errors.Wrap(errors.ErrSingleClass, "dataset.encodeLabels")
	}

	t.ClassNames = make([]string, 0, len(seen))
	for s := range seen {
		t.ClassNames = append(t.ClassNames, s)
	}
	sort.Strings(t.ClassNames)

	index := make(map[string]int, len(t.ClassNames))
	for i, s := range t.ClassNames {
		index[s] = i
	}

	t.labels = make([]int, len(raw))
	for i, s := range raw {
		t.labels[i] = index[s]
	}
	return nil
}

// NumRows returns the number of samples.
func (t *Table) NumRows() int {
	return t.nRows
}

// NumFeatures returns the number of feature columns.
func (t *Table) NumFeatures() int {
	return len(t.FeatureNames)
}

// HasLabels reports whether a label column was parsed.
func (t *Table) HasLabels() bool {
	return t.labels != nil
}

// Features returns the n-by-p feature matrix.
func (t *Table) Features() *mat.Dense {
	return t.features
}

// Labels returns the class indices as an n-by-1 matrix. It returns nil
// when the table carries no labels.
func (t *Table) Labels() mat.Matrix {
	if t.labels == nil {
		return nil
	}
	data := make([]float64, len(t.labels))
	for i, v := range t.labels {
		data[i] = float64(v)
	}
	return mat.NewDense(len(t.labels), 1, data)
}

// LabelIndices returns the class indices as ints.
func (t *Table) LabelIndices() []int {
	out := make([]int, len(t.labels))
	copy(out, t.labels)
	return out
}

// ClassCounts returns the number of samples per class, indexed like
// ClassNames.
func (t *Table) ClassCounts() []int {
	counts := make([]int, len(t.ClassNames))
	for _, v := range t.labels {
		counts[v] = counts[v] + 1
	}
	return counts
}

// DropNaNRows removes rows containing any NaN feature and returns the
// number removed. Labels stay aligned.
func (t *Table) DropNaNRows() int {
	var keep []int
	for i := 0; i < t.nRows; i++ {
		hasNaN := false
		for j := 0; j < len(t.FeatureNames); j++ {
			if math.IsNaN(t.features.At(i, j)) {
				hasNaN = true
				break
			}
		}
		if !hasNaN {
			keep = append(keep, i)
		}
	}
	if len(keep) == t.nRows {
		return 0
	}

	dropped := t.nRows - len(keep)
	cleaned := mat.NewDense(len(keep), len(t.FeatureNames), nil)
	var cleanedLabels []int
	if t.labels != nil {
		cleanedLabels = make([]int, len(keep))
	}
	for newIdx, oldIdx := range keep {
		for j := 0; j < len(t.FeatureNames); j++ {
			cleaned.Set(newIdx, j, t.features.At(oldIdx, j))
		}
		if t.labels != nil {
			cleanedLabels[newIdx] = t.labels[oldIdx]
		}
	}
	t.features = cleaned
	t.labels = cleanedLabels
	t.nRows = len(keep)
	return dropped
}

// ClassIndex maps a label string back to its class index. Unknown labels
// are an error so predictions on unseen classes fail loudly.
func (t *Table) ClassIndex(label string) (int, error) {
	for i, name := range t.ClassNames {
		if name == label {
			return i, nil
		}
	}
	return 0, errors.NewValueError("Table.ClassIndex", fmt.Sprintf("unknown class label %q", label))
}

// ClassName maps a class index back to its label string.
func (t *Table) ClassName(index int) (string, error) {
	if index < 0 || index >= len(t.ClassNames) {
		return "", errors.NewValueError("Table.ClassName", fmt.Sprintf("class index %d out of range", index))
	}
	return t.ClassNames[index], nil
}
