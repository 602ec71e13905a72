package sheets

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

// Sheet titles shared by every workbook.
const (
	SummarySheet  = "Summary"
	RegistrySheet = "Registry"
)

const (
	detailDateLayout = "2006-01-02"
	stampLayout      = "2006-01-02 15:04"
	noItemsText      = "(Детализация товаров не найдена)"
)

var detailHeader = []any{"Дата", "Категория", "Количество", "Цена", "Сумма", "Сумма (расчет)", "Наименование", "Ед. изм."}

var registryHeader = []any{"Контракт", "Заказчик", "Цена", "Принято", "Остаток", "Хэш объектов", "Хэш реквизитов", "Проверено", "Таблица"}

// DetailTitle is the title of the detail sheet for a record fetched at t.
func DetailTitle(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(detailDateLayout)
}

// summaryRows lays out the Summary sheet. Price sits in B3 and accepted in
// B9 so the remainder formula can reference them.
func summaryRows(rec *model.ContractRecord, change model.Change, loc *time.Location) [][]any {
	return [][]any{
		{"Контракт", Text(rec.ID)},
		{"Заказчик", rec.Customer},
		{"Цена контракта", rec.Price.Value},
		{"Источник цены", string(rec.Price.Source)},
		{"Дата начала", dash(rec.DateStart)},
		{"Дата окончания", dash(rec.DateEnd)},
		{"Ссылка", rec.URL},
		{"Оплачено", rec.Execution.Paid.Value},
		{"Принято (акты)", rec.Execution.Accepted.Value},
		{"Остаток лимита", "=B3-B9"},
		{"Хэш объектов", Text(rec.ObjectsHash)},
		{"Хэш реквизитов", Text(rec.RequisitesHash)},
		{"Обновлено", rec.FetchedAt.In(loc).Format(stampLayout)},
		{"Изменения", describeChange(change)},
	}
}

// detailRows lays out one dated detail sheet: header, items, totals and the
// requisites block.
func detailRows(rec *model.ContractRecord, loc *time.Location) [][]any {
	date := rec.FetchedAt.In(loc).Format(detailDateLayout)
	rows := make([][]any, 0, len(rec.Items)+12)
	rows = append(rows, detailHeader)

	if len(rec.Items) == 0 {
		rows = append(rows, []any{noItemsText})
	} else {
		for i, item := range rec.Items {
			r := i + 2
			rows = append(rows, []any{
				date,
				string(item.Category),
				item.Quantity,
				item.UnitPrice,
				item.TotalSum,
				fmt.Sprintf("=C%d*D%d", r, r),
				item.Name,
				item.Unit,
			})
		}
		last := len(rec.Items) + 1
		rows = append(rows, []any{
			"ИТОГО", "", "", "",
			fmt.Sprintf("=SUM(E2:E%d)", last),
			fmt.Sprintf("=SUM(F2:F%d)", last),
			"", "",
		})
	}

	req := rec.Requisites
	rows = append(rows,
		[]any{},
		[]any{"РЕКВИЗИТЫ"},
		[]any{"Банк", req.BankName},
		[]any{"БИК", Text(req.BIC)},
		[]any{"Расчетный счет", Text(req.Account)},
		[]any{"Корр. счет", Text(req.CorrAccount)},
		[]any{"Казначейский счет", Text(req.TreasuryAccount)},
		[]any{"ИНН", Text(req.INN)},
		[]any{"КПП", Text(req.KPP)},
	)
	return rows
}

// registryRow lays out the record's row of the shared Registry sheet.
func registryRow(rec *model.ContractRecord, workbookURL string, row int, loc *time.Location) []any {
	return []any{
		Text(rec.ID),
		rec.Customer,
		rec.Price.Value,
		rec.Execution.Accepted.Value,
		fmt.Sprintf("=C%d-D%d", row, row),
		Text(rec.ObjectsHash),
		Text(rec.RequisitesHash),
		rec.FetchedAt.In(loc).Format(stampLayout),
		workbookURL,
	}
}

func describeChange(change model.Change) string {
	var parts []string
	if change.ObjectsChanged {
		parts = append(parts, "объекты")
	}
	if change.RequisitesChanged {
		parts = append(parts, "реквизиты")
	}
	if len(parts) == 0 {
		return "нет"
	}
	return strings.Join(parts, ", ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
