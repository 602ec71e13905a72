package model

// RawRecord is the structured record emitted by the fetch collaborator.
// Field values are page text as scraped; nothing here is trusted to be clean.
type RawRecord struct {
	Requisites  map[string]string `json:"requisites,omitempty" yaml:"requisites,omitempty"`
	Execution   RawExecution      `json:"execution" yaml:"execution"`
	ID          string            `json:"reestr_number" yaml:"reestr_number"`
	Customer    string            `json:"customer" yaml:"customer"`
	Price       string            `json:"price" yaml:"price"`
	PriceSource string            `json:"price_source,omitempty" yaml:"price_source,omitempty"`
	DateStart   string            `json:"date_start" yaml:"date_start"`
	DateEnd     string            `json:"date_end" yaml:"date_end"`
	URL         string            `json:"url" yaml:"url"`
	Error       string            `json:"error,omitempty" yaml:"error,omitempty"`
	Objects     []RawItem         `json:"objects" yaml:"objects"`
	PriceClean  float64           `json:"price_clean,omitempty" yaml:"price_clean,omitempty"`

	// Payload is the collaborator output the record was decoded from.
	Payload []byte `json:"-" yaml:"-"`
}

// RawExecution holds the execution figures as page text.
type RawExecution struct {
	Paid     string `json:"paid" yaml:"paid"`
	Accepted string `json:"accepted" yaml:"accepted"`
}

// RawItem is one row of the scraped line-item table.
type RawItem struct {
	Name     string `json:"name" yaml:"name"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Price    string `json:"price" yaml:"price"`
	Total    string `json:"total" yaml:"total"`
	Unit     string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

// Preview is the lightweight batch result used before registering ids.
type Preview struct {
	ID       string `json:"number" yaml:"number"`
	Year     string `json:"year,omitempty" yaml:"year,omitempty"`
	Customer string `json:"customer,omitempty" yaml:"customer,omitempty"`
	Price    string `json:"price,omitempty" yaml:"price,omitempty"`
	Status   string `json:"status" yaml:"status"`
}

// Found reports whether the collaborator located the record.
func (p Preview) Found() bool {
	return p.Status == "found"
}
