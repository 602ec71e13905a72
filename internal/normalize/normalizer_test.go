package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/contract-sentinel/internal/common"
	"github.com/Veraticus/contract-sentinel/internal/model"
)

var fetchedAt = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

func sampleRaw() *model.RawRecord {
	return &model.RawRecord{
		ID:        "2770100123425000001",
		Customer:  "  ГБОУ Школа   № 1  ",
		Price:     "216 000,00 ₽\nСтавка НДС: Без НДС",
		DateStart: "01.01.2025",
		DateEnd:   "31.12.2025",
		URL:       "https://zakupki.gov.ru/epz/contract/contractCard/common-info.html?reestrNumber=2770100123425000001",
		Execution: model.RawExecution{Paid: "50 000,00 ₽", Accepted: "60 000,00 ₽"},
		Objects: []model.RawItem{
			{Name: "Завтрак 1-4 классы", Price: "85,50 ₽", Total: "171 000,00", Unit: "ДЕТ ДН"},
			{Name: "Обед  ОВЗ", Price: "150", Total: "45 000,00"},
			{Name: "Итого", Total: "216 000,00"},
			{Name: "БИК 044525225"},
		},
	}
}

func newTestNormalizer() *Normalizer {
	return New(common.DiscardLogger())
}

func TestNormalize(t *testing.T) {
	rec, err := newTestNormalizer().Normalize(sampleRaw(), fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, "2770100123425000001", rec.ID)
	assert.Equal(t, "ГБОУ Школа № 1", rec.Customer)
	assert.Equal(t, fetchedAt, rec.FetchedAt)
	assert.Equal(t, 216000.0, rec.Price.Value)
	assert.Equal(t, model.PriceFromPage, rec.Price.Source)
	assert.Equal(t, 50000.0, rec.Execution.Paid.Value)
	assert.Equal(t, 60000.0, rec.Execution.Accepted.Value)
	assert.Equal(t, 156000.0, rec.Remainder())

	require.Len(t, rec.Items, 2)
	assert.Equal(t, model.CategoryPrimary, rec.Items[0].Category)
	assert.Equal(t, 2000.0, rec.Items[0].Quantity)
	assert.Equal(t, "ДЕТ ДН", rec.Items[0].Unit)
	assert.Equal(t, "Обед ОВЗ", rec.Items[1].Name)
	assert.Equal(t, model.CategoryDisability, rec.Items[1].Category)

	require.Len(t, rec.Aggregates, 1)
	assert.Equal(t, 216000.0, rec.Aggregates[0].TotalSum)
	assert.Equal(t, 216000.0, rec.ItemsTotal())

	assert.Equal(t, "044525225", rec.Requisites.BIC)
	assert.Len(t, rec.ObjectsHash, 64)
	assert.Len(t, rec.RequisitesHash, 64)
}

func TestNormalizeCanonicalItemsGolden(t *testing.T) {
	rec, err := newTestNormalizer().Normalize(sampleRaw(), fetchedAt)
	require.NoError(t, err)

	data, err := MarshalCanonical(rec.Items)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "normalized_items", data)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), rec.ObjectsHash)
}

func TestNormalizeHashSensitivity(t *testing.T) {
	n := newTestNormalizer()
	base, err := n.Normalize(sampleRaw(), fetchedAt)
	require.NoError(t, err)

	tests := []struct {
		name            string
		mutate          func(raw *model.RawRecord)
		objectsChanged  bool
		requisitesMoved bool
	}{
		{
			name:   "aggregate total only",
			mutate: func(raw *model.RawRecord) { raw.Objects[2].Total = "999 999,00" },
		},
		{
			name:   "customer and price text",
			mutate: func(raw *model.RawRecord) { raw.Customer = "Другая школа"; raw.Price = "1,00" },
		},
		{
			name:           "item name",
			mutate:         func(raw *model.RawRecord) { raw.Objects[0].Name = "Завтрак 1-4 классы (льготный)" },
			objectsChanged: true,
		},
		{
			name:           "item unit price",
			mutate:         func(raw *model.RawRecord) { raw.Objects[1].Price = "151" },
			objectsChanged: true,
		},
		{
			name:           "item total",
			mutate:         func(raw *model.RawRecord) { raw.Objects[1].Total = "45 000,01" },
			objectsChanged: true,
		},
		{
			name:            "requisite row",
			mutate:          func(raw *model.RawRecord) { raw.Objects[3].Name = "БИК 044525974" },
			requisitesMoved: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := sampleRaw()
			tt.mutate(raw)

			rec, err := n.Normalize(raw, fetchedAt.Add(time.Hour))
			require.NoError(t, err)

			assert.Equal(t, tt.objectsChanged, rec.ObjectsHash != base.ObjectsHash)
			assert.Equal(t, tt.requisitesMoved, rec.RequisitesHash != base.RequisitesHash)
		})
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	n := newTestNormalizer()
	first, err := n.Normalize(sampleRaw(), fetchedAt)
	require.NoError(t, err)
	second, err := n.Normalize(sampleRaw(), fetchedAt.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, first.ObjectsHash, second.ObjectsHash)
	assert.Equal(t, first.RequisitesHash, second.RequisitesHash)
}

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		name       string
		price      string
		priceClean float64
		source     string
		wantValue  float64
		wantSource model.PriceSource
		wantRaw    string
	}{
		{"page text", "216 000,00 ₽", 0, "page", 216000, model.PriceFromPage, "216 000,00 ₽"},
		{"clean value wins", "216 000,00 ₽", 215000, "page", 215000, model.PriceFromPage, "216 000,00 ₽"},
		{"fallback to items", "", 0, "", 216000, model.PriceFromObjects, "216000.00"},
		{"declared objects sum", "216000", 0, "objects_sum", 216000, model.PriceFromObjects, "216000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := sampleRaw()
			raw.Price = tt.price
			raw.PriceClean = tt.priceClean
			raw.PriceSource = tt.source

			rec, err := newTestNormalizer().Normalize(raw, fetchedAt)
			require.NoError(t, err)

			assert.Equal(t, tt.wantValue, rec.Price.Value)
			assert.Equal(t, tt.wantSource, rec.Price.Source)
			assert.Equal(t, tt.wantRaw, rec.Price.Raw)
		})
	}
}

func TestNormalizeRequisitesMap(t *testing.T) {
	raw := sampleRaw()
	raw.Requisites = map[string]string{"bik": "044525974", "inn": "7710140679"}

	rec, err := newTestNormalizer().Normalize(raw, fetchedAt)
	require.NoError(t, err)
	assert.Equal(t, "044525974", rec.Requisites.BIC)
	assert.Equal(t, "7710140679", rec.Requisites.INN)

	// Absent optional fields hash the same as explicit empty strings.
	raw.Requisites["kpp"] = ""
	again, err := newTestNormalizer().Normalize(raw, fetchedAt)
	require.NoError(t, err)
	assert.Equal(t, rec.RequisitesHash, again.RequisitesHash)
}

func TestNormalizeIDFromURL(t *testing.T) {
	raw := sampleRaw()
	raw.ID = ""

	rec, err := newTestNormalizer().Normalize(raw, fetchedAt)
	require.NoError(t, err)
	assert.Equal(t, "2770100123425000001", rec.ID)
}

func TestNormalizeMissingID(t *testing.T) {
	raw := sampleRaw()
	raw.ID = ""
	raw.URL = ""

	_, err := newTestNormalizer().Normalize(raw, fetchedAt)
	assert.True(t, errors.Is(err, ErrMissingID))

	_, err = newTestNormalizer().Normalize(nil, fetchedAt)
	assert.True(t, errors.Is(err, ErrMissingID))
}

func TestNormalizeEmptyRecord(t *testing.T) {
	rec, err := newTestNormalizer().Normalize(&model.RawRecord{ID: "1"}, fetchedAt)
	require.NoError(t, err)

	assert.NotNil(t, rec.Items)
	assert.Empty(t, rec.Items)
	assert.Equal(t, 0.0, rec.Price.Value)
	assert.Equal(t, model.Requisites{}, rec.Requisites)

	empty, err := ObjectsHash(nil)
	require.NoError(t, err)
	assert.Equal(t, empty, rec.ObjectsHash)
}
