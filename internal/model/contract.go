// Package model defines the core data structures of the contract registry.
package model

import "time"

// PriceSource records where a contract price came from.
type PriceSource string

// Price provenance tags.
const (
	PriceFromPage    PriceSource = "page"
	PriceFromObjects PriceSource = "objects_sum"
)

// Category is the closed taxonomy assigned to line items.
type Category string

// Line item categories.
const (
	CategoryDisability Category = "ОВЗ"
	CategoryPrimary    Category = "1-4 классы"
	CategorySecondary  Category = "5-11 классы"
	CategoryAfterCare  Category = "ГПД"
	CategoryBreakfast  Category = "Завтрак"
	CategoryLunch      Category = "Обед"
	CategoryOther      Category = "Прочее"
)

// Amount is a figure kept both as observed text and parsed value.
type Amount struct {
	Raw   string  `json:"raw"`
	Value float64 `json:"value"`
}

// Price is the contract price with its provenance.
type Price struct {
	Source PriceSource `json:"source"`
	Amount
}

// Execution holds what has been paid and accepted against the contract.
type Execution struct {
	Paid     Amount `json:"paid"`
	Accepted Amount `json:"accepted"`
}

// LineItem is one purchasable object of the contract.
type LineItem struct {
	Name      string   `json:"name"`
	Category  Category `json:"category"`
	Unit      string   `json:"unit"`
	UnitPrice float64  `json:"unit_price"`
	Quantity  float64  `json:"quantity"`
	TotalSum  float64  `json:"total_sum"`
}

// Requisites are the supplier's bank details. Every field defaults to "".
type Requisites struct {
	BankName        string `json:"bank_name"`
	BIC             string `json:"bik"`
	Account         string `json:"account"`
	CorrAccount     string `json:"corr_account"`
	TreasuryAccount string `json:"treasury_account"`
	INN             string `json:"inn"`
	KPP             string `json:"kpp"`
	RawText         string `json:"raw_text"`
}

// ContractRecord is the canonical form of one fetched contract.
type ContractRecord struct {
	FetchedAt      time.Time  `json:"fetched_at"`
	ID             string     `json:"id"`
	Customer       string     `json:"customer"`
	DateStart      string     `json:"date_start"`
	DateEnd        string     `json:"date_end"`
	URL            string     `json:"url"`
	ObjectsHash    string     `json:"objects_hash"`
	RequisitesHash string     `json:"requisites_hash"`
	Items          []LineItem `json:"items"`
	Aggregates     []LineItem `json:"aggregates,omitempty"`
	Requisites     Requisites `json:"requisites"`
	Execution      Execution  `json:"execution"`
	Price          Price      `json:"price"`
}

// ItemsTotal sums the totals of the non-aggregate items.
func (r *ContractRecord) ItemsTotal() float64 {
	var sum float64
	for _, item := range r.Items {
		sum += item.TotalSum
	}
	return sum
}

// Remainder is the contract price not yet covered by accepted work.
func (r *ContractRecord) Remainder() float64 {
	return r.Price.Value - r.Execution.Accepted.Value
}
