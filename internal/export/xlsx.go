package export

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/ankittk/pabellon/internal/board"
)

const (
	sheetBoard   = "Pabellones"
	sheetSummary = "Resumen"
)

var boardHeader = []string{
	"Pabellón", "Inicio", "Término", "Paciente", "Doctor", "Tipo", "Estado",
	"Duración (min)", "Extra (min)", "Total (min)",
}

// XLSX writes the board as a workbook: one row per assignment grouped by
// room, and a summary sheet with minutes and counts per room.
func XLSX(v board.View, fecha string) (*bytes.Buffer, error) {
	if len(v.Rooms) == 0 {
		return nil, ErrEmptyBoard
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	idx, err := f.NewSheet(sheetBoard)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	f.SetActiveSheet(idx)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#1F4E79"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	roomStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})

	titleText := "Tablero de pabellones"
	if fecha != "" {
		titleText += " " + fecha
	}
	last := colName(len(boardHeader) - 1)
	_ = f.SetCellValue(sheetBoard, "A1", titleText)
	_ = f.MergeCell(sheetBoard, "A1", last+"1")
	_ = f.SetCellStyle(sheetBoard, "A1", "A1", headerStyle)

	for i, h := range boardHeader {
		_ = f.SetCellValue(sheetBoard, cell(colName(i), 2), h)
	}
	_ = f.SetCellStyle(sheetBoard, "A2", last+"2", headerStyle)
	_ = f.SetColWidth(sheetBoard, "A", "A", 16)
	_ = f.SetColWidth(sheetBoard, "B", "C", 9)
	_ = f.SetColWidth(sheetBoard, "D", "F", 24)
	_ = f.SetColWidth(sheetBoard, "G", last, 14)

	row := 3
	for _, r := range v.Rooms {
		_ = f.SetCellValue(sheetBoard, cell("A", row), r.Nombre)
		_ = f.SetCellValue(sheetBoard, cell("J", row), r.TotalMinutes)
		_ = f.SetCellStyle(sheetBoard, cell("A", row), cell(last, row), roomStyle)
		row++
		for _, c := range r.Cards {
			duracion := 0
			if c.DuracionProgramada != nil {
				duracion = *c.DuracionProgramada
			}
			vals := []any{
				"", hhmm(c.HoraInicio), hhmm(c.HoraFinEstimada), pacienteCell(c), c.Doctor, c.Tipo,
				estadoLabel(c.Estado), duracion, c.ExtraTime, c.TotalMinutes,
			}
			for i, val := range vals {
				_ = f.SetCellValue(sheetBoard, cell(colName(i), row), val)
			}
			row++
		}
	}

	if err := writeSummary(f, v, headerStyle); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerate, err)
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerate, err)
	}
	return buf, nil
}

func writeSummary(f *excelize.File, v board.View, headerStyle int) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	estados := map[string]bool{}
	for _, r := range v.Rooms {
		for _, c := range r.Cards {
			estados[string(c.Estado)] = true
		}
	}
	cols := make([]string, 0, len(estados))
	for e := range estados {
		cols = append(cols, e)
	}
	sort.Strings(cols)

	header := append([]string{"Pabellón", "Cirugías", "Total (min)"}, cols...)
	for i, h := range header {
		_ = f.SetCellValue(sheetSummary, cell(colName(i), 1), h)
	}
	_ = f.SetCellStyle(sheetSummary, "A1", cell(colName(len(header)-1), 1), headerStyle)
	for i, r := range v.Rooms {
		row := i + 2
		counts := map[string]int{}
		for _, c := range r.Cards {
			counts[string(c.Estado)]++
		}
		_ = f.SetCellValue(sheetSummary, cell("A", row), r.Nombre)
		_ = f.SetCellValue(sheetSummary, cell("B", row), len(r.Cards))
		_ = f.SetCellValue(sheetSummary, cell("C", row), r.TotalMinutes)
		for j, e := range cols {
			_ = f.SetCellValue(sheetSummary, cell(colName(3+j), row), counts[e])
		}
	}
	return nil
}

func pacienteCell(c board.Card) string {
	if c.EsAseo {
		return "Aseo"
	}
	return c.Paciente
}

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
