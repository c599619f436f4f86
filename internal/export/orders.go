package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/shopbot/internal/ledger"
)

const sheetName = "Заказы"

var header = []interface{}{
	"ID",
	"Chat ID",
	"Город",
	"Район",
	"Товар",
	"Цена, ₽",
	"Способ оплаты",
	"Статус",
	"Создан",
	"Обновлён",
}

// OrdersXLSX renders orders as a single-sheet workbook, one row per order.
func OrdersXLSX(orders []ledger.Order) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheetName); err != nil {
		return nil, fmt.Errorf("export: rename sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("export: header: %w", err)
	}

	for i, o := range orders {
		row := []interface{}{
			o.ID,
			o.ChatID,
			o.City,
			o.District,
			o.Product.Name,
			o.Product.Price,
			o.PaymentMethod,
			o.Status.Title(),
			formatTime(o.CreatedAt),
			formatTime(o.UpdatedAt),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, fmt.Errorf("export: cell: %w", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return nil, fmt.Errorf("export: row %d: %w", o.ID, err)
		}
	}
	if err := f.SetColWidth(sheetName, "C", "H", 18); err != nil {
		return nil, fmt.Errorf("export: column width: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("export: write: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName returns the document name for an export made at t.
func FileName(t time.Time) string {
	return fmt.Sprintf("orders_%s.xlsx", t.Format("20060102_150405"))
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
