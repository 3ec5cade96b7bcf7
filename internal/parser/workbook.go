package parser

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/conorfennell/lingosrs/internal/domain"
)

// ParseWorkbook reads every sheet of an .xlsx deck. Column A is the front,
// B the back and C the optional context. A first row whose front cell is
// "front" or "question" is treated as a header.
func ParseWorkbook(path string) ([]domain.CardDraft, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	var cards []domain.CardDraft
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}
		for i, row := range rows {
			d := draftFromRow(row)
			if i == 0 && isHeader(d.Front) {
				continue
			}
			if d.Front == "" {
				continue
			}
			cards = append(cards, d)
		}
	}
	return cards, nil
}

func draftFromRow(row []string) domain.CardDraft {
	cell := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	return domain.CardDraft{Front: cell(0), Back: cell(1), Context: cell(2)}
}

func isHeader(front string) bool {
	switch strings.ToLower(front) {
	case "front", "question":
		return true
	}
	return false
}
