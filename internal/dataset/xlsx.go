package dataset

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/pricer/internal/model"
)

// LoadXLSX reads a dataset from a workbook. sheet selects a sheet by name;
// empty means the first sheet.
func LoadXLSX(path, sheet string) (*Dataset, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, eris.Wrapf(model.ErrDatasetUnavailable, "dataset: open %s: %v", path, err)
	}
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(model.ErrDatasetUnavailable, "dataset: xlsx: open %s: %v", path, err)
	}

	sh, err := pickSheet(f, sheet)
	if err != nil {
		return nil, err
	}

	var (
		idx columnIndex
		obs []model.Observation
	)
	for i, row := range sh.Rows {
		cells := rowStrings(row)
		if idx == nil {
			if idx, err = newColumnIndex(cells); err != nil {
				return nil, err
			}
			continue
		}
		if blank(cells) {
			continue
		}
		o, err := idx.parseRecord(cells, i+1)
		if err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	if idx == nil {
		return nil, eris.Errorf("dataset: xlsx: sheet %q is empty", sh.Name)
	}
	return New(obs)
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		sh, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("dataset: xlsx: sheet %q not found", name)
		}
		return sh, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("dataset: xlsx: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

func rowStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}

func blank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// WriteXLSX writes observations to a single-sheet workbook at path.
func WriteXLSX(path string, obs []model.Observation) error {
	f := xlsx.NewFile()
	sh, err := f.AddSheet("observations")
	if err != nil {
		return eris.Wrap(err, "dataset: xlsx: add sheet")
	}

	header := sh.AddRow()
	for _, col := range model.DatasetColumns {
		header.AddCell().SetString(col)
	}
	for _, o := range obs {
		row := sh.AddRow()
		row.AddCell().SetString(o.ProductName)
		row.AddCell().SetString(o.ProductCategory)
		row.AddCell().SetInt(o.Promotion)
		row.AddCell().SetFloat(o.UnitPrice)
		row.AddCell().SetFloat(o.Comp1)
		row.AddCell().SetFloat(o.Comp2)
		row.AddCell().SetFloat(o.Comp3)
		row.AddCell().SetInt(o.Holiday)
		row.AddCell().SetInt(o.Weekend)
		row.AddCell().SetInt(o.Month)
		row.AddCell().SetFloat(o.Qty)
	}

	return eris.Wrapf(f.Save(path), "dataset: xlsx: save %s", path)
}
