package feed

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// Item is one entry of a contract event feed.
type Item struct {
	GUID    string
	Title   string
	Link    string
	PubDate string
}

// Marker identifies the item for change tracking: its guid, else its link.
func (i Item) Marker() string {
	if g := strings.TrimSpace(i.GUID); g != "" {
		return g
	}
	return strings.TrimSpace(i.Link)
}

// ParseFeed returns the RSS or Atom entries in document order, newest first
// by convention of the procurement portal. Legacy encodings declared in the
// XML prolog, such as windows-1251, are decoded.
func ParseFeed(data []byte) ([]Item, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	items := make([]Item, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		if it == nil {
			continue
		}
		pub := it.Published
		if pub == "" {
			pub = it.Updated
		}
		items = append(items, Item{
			GUID:    strings.TrimSpace(it.GUID),
			Title:   strings.TrimSpace(it.Title),
			Link:    strings.TrimSpace(it.Link),
			PubDate: strings.TrimSpace(pub),
		})
	}
	return items, nil
}
