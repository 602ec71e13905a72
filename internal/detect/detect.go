// Package detect decides which hashed dimensions of a contract changed.
package detect

import "github.com/Veraticus/contract-sentinel/internal/model"

// Detect compares the current record against the last persisted entry.
// A nil previous entry, or a stub that was never checked, reports both
// dimensions as changed so the first observation always produces a snapshot.
func Detect(current *model.ContractRecord, previous *model.RegistryEntry) model.Change {
	var prevObjects, prevRequisites string
	if previous != nil {
		prevObjects = previous.ObjectsHash
		prevRequisites = previous.RequisitesHash
	}

	return model.Change{
		ObjectsChanged:    prevObjects == "" || current.ObjectsHash != prevObjects,
		RequisitesChanged: prevRequisites == "" || current.RequisitesHash != prevRequisites,
	}
}
