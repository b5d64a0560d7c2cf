package dataset

import (
	"math"
	"strings"
	"testing"

	"github.com/yimp/practicalml/pkg/errors"
)

const sampleCSV = `X,user_name,raw_timestamp_part_1,roll_belt,pitch_belt,kurtosis_roll_belt,classe
1,carlitos,1323084231,1.41,8.07,NA,A
2,carlitos,1323084231,1.41,8.07,#DIV/0!,A
3,pedro,1323084232,1.42,8.05,,B
4,pedro,1323084232,1.48,8.09,NA,B
5,eurico,1323084233,1.45,8.06,NA,C
6,eurico,1323084233,1.43,8.18,NA,C
`

func TestReadDropsBookkeepingColumns(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV), LoadOptions{LabelColumn: "classe"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	want := []string{"roll_belt", "pitch_belt"}
	if len(table.FeatureNames) != len(want) {
		t.Fatalf("FeatureNames = %v, want %v", table.FeatureNames, want)
	}
	for i, name := range want {
		if table.FeatureNames[i] != name {
			t.Errorf("FeatureNames[%d] = %q, want %q", i, table.FeatureNames[i], name)
		}
	}
}

func TestReadDropsSparseColumns(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV), LoadOptions{LabelColumn: "classe"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	for _, name := range table.FeatureNames {
		if name == "kurtosis_roll_belt" {
			t.Error("kurtosis_roll_belt kept despite being all missing")
		}
	}
}

func TestReadTracksDroppedColumns(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV), LoadOptions{LabelColumn: "classe"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	want := []string{"X", "user_name", "raw_timestamp_part_1", "kurtosis_roll_belt"}
	if len(table.DroppedColumns) != len(want) {
		t.Fatalf("DroppedColumns = %v, want %v", table.DroppedColumns, want)
	}
	for i, name := range want {
		if table.DroppedColumns[i] != name {
			t.Errorf("DroppedColumns[%d] = %q, want %q", i, table.DroppedColumns[i], name)
		}
	}
}

func TestClassIndex(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV), LoadOptions{LabelColumn: "classe"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	idx, err := table.ClassIndex("B")
	if err != nil {
		t.Fatalf("ClassIndex(B) error = %v", err)
	}
	if idx != 1 {
		t.Errorf("ClassIndex(B) = %d, want 1", idx)
	}

	if _, err := table.ClassIndex("Z"); err == nil {
		t.Error("ClassIndex(Z) expected error for unknown label")
	}

	name, err := table.ClassName(2)
	if err != nil {
		t.Fatalf("ClassName(2) error = %v", err)
	}
	if name != "C" {
		t.Errorf("ClassName(2) = %q, want C", name)
	}
	if _, err := table.ClassName(9); err == nil {
		t.Error("ClassName(9) expected error for out-of-range index")
	}
}

func TestReadCustomNATokens(t *testing.T) {
	csv := "a,b,classe\n1,-999,A\n2,5,B\n3,6,A\n"

	table, err := Read(strings.NewReader(csv), LoadOptions{
		LabelColumn: "classe",
		NATokens:    []string{"-999"},
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if !math.IsNaN(table.Features().At(0, 1)) {
		t.Errorf("custom NA token not mapped to NaN, got %v", table.Features().At(0, 1))
	}
}

func TestReadCustomDropColumns(t *testing.T) {
	csv := "a,b,classe\n1,2,A\n3,4,B\n"

	table, err := Read(strings.NewReader(csv), LoadOptions{
		LabelColumn: "classe",
		DropColumns: []string{"b"},
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if len(table.FeatureNames) != 1 || table.FeatureNames[0] != "a" {
		t.Errorf("FeatureNames = %v, want [a]", table.FeatureNames)
	}
	if len(table.DroppedColumns) != 1 || table.DroppedColumns[0] != "b" {
		t.Errorf("DroppedColumns = %v, want [b]", table.DroppedColumns)
	}
}

func TestReadLabels(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV), LoadOptions{LabelColumn: "classe"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	if !table.HasLabels() {
		t.Fatal("HasLabels() = false")
	}

	wantClasses := []string{"A", "B", "C"}
	if len(table.ClassNames) != 3 {
		t.Fatalf("ClassNames = %v, want %v", table.ClassNames, wantClasses)
	}
	for i, name := range wantClasses {
		if table.ClassNames[i] != name {
			t.Errorf("ClassNames[%d] = %q, want %q", i, table.ClassNames[i], name)
		}
	}

	wantLabels := []int{0, 0, 1, 1, 2, 2}
	got := table.LabelIndices()
	for i, want := range wantLabels {
		if got[i] != want {
			t.Errorf("LabelIndices()[%d] = %d, want %d", i, got[i], want)
		}
	}

	counts := table.ClassCounts()
	for i, want := range []int{2, 2, 2} {
		if counts[i] != want {
			t.Errorf("ClassCounts()[%d] = %d, want %d", i, counts[i], want)
		}
	}
}

func TestReadFeatureValues(t *testing.T) {
	table, err := Read(strings.NewReader(sampleCSV), LoadOptions{LabelColumn: "classe"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	X := table.Features()
	if got := X.At(0, 0); math.Abs(got-1.41) > 1e-12 {
		t.Errorf("X[0][0] = %v, want 1.41", got)
	}
	if got := X.At(5, 1); math.Abs(got-8.18) > 1e-12 {
		t.Errorf("X[5][1] = %v, want 8.18", got)
	}
}

func TestReadWithoutLabelColumn(t *testing.T) {
	csv := "roll_belt,pitch_belt\n1.0,2.0\n3.0,4.0\n"

	table, err := Read(strings.NewReader(csv), LoadOptions{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if table.HasLabels() {
		t.Error("HasLabels() = true for unlabelled data")
	}
	if table.Labels() != nil {
		t.Error("Labels() != nil for unlabelled data")
	}
}

func TestReadMissingLabelColumn(t *testing.T) {
	csv := "a,b\n1,2\n"

	if _, err := Read(strings.NewReader(csv), LoadOptions{LabelColumn: "classe"}); err == nil {
		t.Error("Read() expected error for missing label column")
	}
}

func TestReadSingleClass(t *testing.T) {
	csv := "a,classe\n1,A\n2,A\n"

	_, err := Read(strings.NewReader(csv), LoadOptions{LabelColumn: "classe"})
	if !errors.Is(err, errors.ErrSingleClass) {
		t.Errorf("Read() error = %v, want ErrSingleClass", err)
	}
}

func TestReadEmpty(t *testing.T) {
	csv := "a,classe\n"

	_, err := Read(strings.NewReader(csv), LoadOptions{LabelColumn: "classe"})
	if !errors.Is(err, errors.ErrEmptyData) {
		t.Errorf("Read() error = %v, want ErrEmptyData", err)
	}
}

func TestReadBadNumber(t *testing.T) {
	csv := "a,classe\nnot-a-number,A\n1,B\n"

	_, err := Read(strings.NewReader(csv), LoadOptions{LabelColumn: "classe"})
	if err == nil {
		t.Fatal("Read() expected error for non-numeric cell")
	}
	var de *errors.DataError
	if !errors.As(err, &de) {
		t.Fatalf("error is %T, want DataError", err)
	}
	if de.Row != 2 {
		t.Errorf("DataError.Row = %d, want 2", de.Row)
	}
}

func TestReadRaggedRow(t *testing.T) {
	csv := "a,b,classe\n1,2,A\n1,B\n"

	if _, err := Read(strings.NewReader(csv), LoadOptions{LabelColumn: "classe"}); err == nil {
		t.Error("Read() expected error for short row")
	}
}

func TestDropNaNRows(t *testing.T) {
	// pitch stays because only a third of its cells are missing.
	csv := "roll,pitch,classe\n1,NA,A\n2,5,B\n3,6,A\n"

	table, err := Read(strings.NewReader(csv), LoadOptions{
		LabelColumn:     "classe",
		MaxMissingRatio: 0.4,
	})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}

	dropped := table.DropNaNRows()
	if dropped != 1 {
		t.Fatalf("DropNaNRows() = %d, want 1", dropped)
	}
	if table.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", table.NumRows())
	}

	wantLabels := []int{1, 0}
	for i, want := range wantLabels {
		if got := table.LabelIndices()[i]; got != want {
			t.Errorf("LabelIndices()[%d] = %d, want %d", i, got, want)
		}
	}
}
