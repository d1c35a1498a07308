package importer

import (
	"bytes"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Column headers recognized in the guest-list spreadsheet.
const (
	ColumnName  = "nome_convidado"
	ColumnPhone = "telefone"
	ColumnNote  = "observacao"
)

// RequiredColumns must be present in the header row.
var RequiredColumns = []string{ColumnName, ColumnPhone}

// RawRow is one decoded data row. Absent cells are empty strings.
type RawRow struct {
	Row           int    `json:"row"`
	NomeConvidado string `json:"nome_convidado"`
	Telefone      string `json:"telefone"`
	Observacao    string `json:"observacao"`
}

// ReadSpreadsheet decodes the first worksheet of an xlsx payload into rows.
// Headers are matched case-insensitively. Fully blank rows are skipped and the
// remaining rows are numbered from 1 in sheet order.
func ReadSpreadsheet(data []byte) ([]RawRow, error) {
	return readSpreadsheet(bytes.NewReader(data))
}

func readSpreadsheet(r io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, &MalformedFileError{Reason: "não é uma planilha reconhecida", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &MalformedFileError{Reason: "planilha sem abas"}
	}
	// Raw values keep numeric phone cells from being rendered in scientific notation.
	grid, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &MalformedFileError{Reason: "não foi possível ler a primeira aba", Err: err}
	}
	if len(grid) == 0 {
		return nil, &MalformedFileError{Reason: "planilha vazia"}
	}

	index := headerIndex(grid[0])
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	rows := make([]RawRow, 0, len(grid)-1)
	for _, cells := range grid[1:] {
		if blank(cells) {
			continue
		}
		rows = append(rows, RawRow{
			Row:           len(rows) + 1,
			NomeConvidado: cell(cells, index, ColumnName),
			Telefone:      cell(cells, index, ColumnPhone),
			Observacao:    cell(cells, index, ColumnNote),
		})
	}
	if len(rows) == 0 {
		return nil, &MalformedFileError{Reason: "planilha sem linhas de dados"}
	}
	return rows, nil
}

func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(h))
		if name == "" {
			continue
		}
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}
	return index
}

func cell(cells []string, index map[string]int, column string) string {
	i, ok := index[column]
	if !ok || i >= len(cells) {
		return ""
	}
	return cells[i]
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
