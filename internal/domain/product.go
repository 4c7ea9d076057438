package domain

import "github.com/shopspring/decimal"

// ProductSnapshot — ответ каталога на запрос валидации товара.
// Снапшот транзиентен: используется для подсчёта сумм и обогащения
// ответов, но никогда не сохраняется этим сервисом.
type ProductSnapshot struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// IndexSnapshots строит индекс снапшотов по идентификатору товара.
func IndexSnapshots(products []ProductSnapshot) map[string]ProductSnapshot {
	index := make(map[string]ProductSnapshot, len(products))
	for _, product := range products {
		index[product.ID] = product
	}
	return index
}
