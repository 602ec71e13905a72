// Package normalize turns raw collaborator records into canonical contract
// records with stable content hashes.
package normalize

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

// ErrMissingID is returned when neither the record nor its URL names a contract.
var ErrMissingID = errors.New("record has no registry number")

var reestrNumberPattern = regexp.MustCompile(`reestrNumber=(\d+)`)

// Normalizer converts raw records. Parse degradations are logged, never returned.
type Normalizer struct {
	logger *slog.Logger
}

// New creates a Normalizer. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{logger: logger}
}

// Normalize builds the canonical record for raw as observed at fetchedAt.
func (n *Normalizer) Normalize(raw *model.RawRecord, fetchedAt time.Time) (*model.ContractRecord, error) {
	if raw == nil {
		return nil, fmt.Errorf("nil raw record: %w", ErrMissingID)
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		if m := reestrNumberPattern.FindStringSubmatch(raw.URL); m != nil {
			id = m[1]
		}
	}
	if id == "" {
		return nil, ErrMissingID
	}

	log := n.logger.With("id", id)

	rec := &model.ContractRecord{
		FetchedAt: fetchedAt,
		ID:        id,
		Customer:  collapse(raw.Customer),
		DateStart: collapse(raw.DateStart),
		DateEnd:   collapse(raw.DateEnd),
		URL:       strings.TrimSpace(raw.URL),
		Items:     []model.LineItem{},
		Execution: model.Execution{
			Paid:     amount(raw.Execution.Paid),
			Accepted: amount(raw.Execution.Accepted),
		},
	}

	var requisiteBlocks []string
	for i, obj := range raw.Objects {
		name := collapse(obj.Name)
		if IsRequisiteRow(name, obj.Price, obj.Total) {
			requisiteBlocks = append(requisiteBlocks, strings.TrimSpace(strings.Join([]string{obj.Name, obj.Price, obj.Total}, "\n")))
			continue
		}

		item := n.lineItem(name, obj)
		if name == "" {
			log.Debug("line item without name", "index", i)
		}
		if item.TotalSum == 0 && strings.TrimSpace(obj.Total) != "" {
			log.Debug("unparsable line item total", "index", i, "total", obj.Total)
		}

		if IsAggregate(name) {
			rec.Aggregates = append(rec.Aggregates, item)
			continue
		}
		rec.Items = append(rec.Items, item)
	}

	if len(raw.Requisites) > 0 {
		rec.Requisites = RequisitesFromMap(raw.Requisites)
	} else {
		rec.Requisites = ExtractRequisites(requisiteBlocks)
	}

	rec.Price = n.price(raw, rec.ItemsTotal())
	if rec.Price.Value <= 0 {
		log.Warn("contract price is zero", "raw", raw.Price)
	}

	var err error
	if rec.ObjectsHash, err = ObjectsHash(rec.Items); err != nil {
		return nil, err
	}
	if rec.RequisitesHash, err = RequisitesHash(rec.Requisites); err != nil {
		return nil, err
	}

	return rec, nil
}

func (n *Normalizer) lineItem(name string, obj model.RawItem) model.LineItem {
	unitPrice, priceUnit := SplitUnit(obj.Price)
	total, totalUnit := SplitUnit(obj.Total)
	if unitPrice == 0 {
		unitPrice = CleanNumber(obj.Price)
	}
	if total == 0 {
		total = CleanNumber(obj.Total)
	}

	unit := collapse(obj.Unit)
	if unit == "" {
		unit = firstNonCurrency(priceUnit, totalUnit)
	}

	return model.LineItem{
		Name:      name,
		Category:  Classify(name),
		Unit:      unit,
		UnitPrice: unitPrice,
		Quantity:  quantity(total, unitPrice),
		TotalSum:  total,
	}
}

func (n *Normalizer) price(raw *model.RawRecord, itemsTotal float64) model.Price {
	value := raw.PriceClean
	if value <= 0 {
		value = CleanNumber(raw.Price)
	}

	source := model.PriceFromPage
	if raw.PriceSource == string(model.PriceFromObjects) {
		source = model.PriceFromObjects
	}

	p := model.Price{Source: source, Amount: model.Amount{Raw: strings.TrimSpace(raw.Price), Value: value}}
	if value <= 0 && itemsTotal > 0 {
		p.Source = model.PriceFromObjects
		p.Value = round2(itemsTotal)
		p.Raw = fmt.Sprintf("%.2f", p.Value)
	}
	return p
}

// ObjectsHash digests the canonical item list.
func ObjectsHash(items []model.LineItem) (string, error) {
	if items == nil {
		items = []model.LineItem{}
	}
	h, err := Hash(items)
	if err != nil {
		return "", fmt.Errorf("failed to hash items: %w", err)
	}
	return h, nil
}

// RequisitesHash digests the requisites map.
func RequisitesHash(req model.Requisites) (string, error) {
	h, err := Hash(req)
	if err != nil {
		return "", fmt.Errorf("failed to hash requisites: %w", err)
	}
	return h, nil
}

func amount(raw string) model.Amount {
	return model.Amount{Raw: strings.TrimSpace(raw), Value: CleanNumber(raw)}
}

func quantity(total, unitPrice float64) float64 {
	if total <= 0 || unitPrice <= 0 {
		return 0
	}
	return round2(total / unitPrice)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func firstNonCurrency(units ...string) string {
	for _, u := range units {
		if u != "" && u != "₽" {
			return u
		}
	}
	return ""
}

// collapse trims and folds internal whitespace runs to single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
