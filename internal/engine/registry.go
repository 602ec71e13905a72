package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/contract-sentinel/internal/model"
	"github.com/Veraticus/contract-sentinel/internal/normalize"
)

// Register starts tracking the contract named by input, a registry number or
// a contract card URL. It returns the id and whether a new stub was created.
func (o *Orchestrator) Register(ctx context.Context, input string) (string, bool, error) {
	id, err := normalize.ParseID(input)
	if err != nil {
		return "", false, fmt.Errorf("cannot register %q: %w", input, err)
	}

	url := ""
	if strings.Contains(input, "://") {
		url = strings.TrimSpace(input)
	}

	created, err := o.registry.Register(ctx, id, url)
	if err != nil {
		return id, false, err
	}
	o.logger.Info("contract registered", "id", id, "created", created)
	return id, created, nil
}

// Remove stops tracking id and deletes its history.
func (o *Orchestrator) Remove(ctx context.Context, id string) error {
	o.busy.Lock()
	defer o.busy.Unlock()

	if err := o.registry.Remove(ctx, id); err != nil {
		return err
	}
	o.logger.Info("contract removed", "id", id)
	return nil
}

// Preview asks the collaborator for lightweight previews of ids.
func (o *Orchestrator) Preview(ctx context.Context, ids []string) ([]model.Preview, error) {
	o.busy.Lock()
	defer o.busy.Unlock()
	return o.source.FetchPreview(ctx, ids)
}

func changeMessage(rec *model.ContractRecord, change model.Change, sheetURL string) string {
	var parts []string
	if change.ObjectsChanged {
		parts = append(parts, "объекты")
	}
	if change.RequisitesChanged {
		parts = append(parts, "реквизиты")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Контракт %s: изменились %s\n", rec.ID, strings.Join(parts, " и "))
	if rec.Customer != "" {
		fmt.Fprintf(&b, "Заказчик: %s\n", rec.Customer)
	}
	fmt.Fprintf(&b, "Цена: %.2f, остаток: %.2f", rec.Price.Value, rec.Remainder())
	if sheetURL != "" {
		fmt.Fprintf(&b, "\n%s", sheetURL)
	}
	return b.String()
}
