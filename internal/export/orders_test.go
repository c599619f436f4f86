package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/ledger"
)

func TestOrdersXLSX(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	orders := []ledger.Order{
		{ID: 1, ChatID: 10, City: "Москва", District: "ЦАО", Product: catalog.Product{Name: "Чай", Price: 300},
			PaymentMethod: "Карта", Status: ledger.StatusPaid, CreatedAt: now, UpdatedAt: now},
		{ID: 2, ChatID: 20, City: "Казань", District: "Вахитовский", Product: catalog.Product{Name: "Кофе", Price: 400},
			PaymentMethod: "СБП", Status: ledger.StatusPending, CreatedAt: now, UpdatedAt: now},
	}

	data, err := OrdersXLSX(orders)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][7] != "Статус" {
		t.Fatalf("header = %v", rows[0])
	}
	if rows[1][4] != "Чай" || rows[1][5] != "300" || rows[1][7] != "Оплачено" {
		t.Fatalf("row 1 = %v", rows[1])
	}
	if rows[2][0] != "2" || rows[2][2] != "Казань" || rows[2][7] != "Ожидает подтверждения" {
		t.Fatalf("row 2 = %v", rows[2])
	}
}

func TestOrdersXLSXEmpty(t *testing.T) {
	data, err := OrdersXLSX(nil)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	rows, _ := f.GetRows(sheetName)
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want header only", len(rows))
	}
}

func TestFileName(t *testing.T) {
	got := FileName(time.Date(2024, 3, 1, 10, 5, 6, 0, time.UTC))
	if got != "orders_20240301_100506.xlsx" {
		t.Fatalf("FileName = %q", got)
	}
}
