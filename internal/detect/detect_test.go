package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

func TestDetect(t *testing.T) {
	current := &model.ContractRecord{ID: "1", ObjectsHash: "obj-a", RequisitesHash: "req-a"}

	tests := []struct {
		previous *model.RegistryEntry
		name     string
		want     model.Change
	}{
		{
			name:     "first seen",
			previous: nil,
			want:     model.Change{ObjectsChanged: true, RequisitesChanged: true},
		},
		{
			name:     "registered stub",
			previous: &model.RegistryEntry{ID: "1"},
			want:     model.Change{ObjectsChanged: true, RequisitesChanged: true},
		},
		{
			name:     "unchanged",
			previous: &model.RegistryEntry{ID: "1", ObjectsHash: "obj-a", RequisitesHash: "req-a"},
			want:     model.Change{},
		},
		{
			name:     "objects only",
			previous: &model.RegistryEntry{ID: "1", ObjectsHash: "obj-b", RequisitesHash: "req-a"},
			want:     model.Change{ObjectsChanged: true},
		},
		{
			name:     "requisites only",
			previous: &model.RegistryEntry{ID: "1", ObjectsHash: "obj-a", RequisitesHash: "req-b"},
			want:     model.Change{RequisitesChanged: true},
		},
		{
			name:     "both",
			previous: &model.RegistryEntry{ID: "1", ObjectsHash: "obj-b", RequisitesHash: "req-b"},
			want:     model.Change{ObjectsChanged: true, RequisitesChanged: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(current, tt.previous)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.ObjectsChanged || tt.want.RequisitesChanged, got.Any())
		})
	}
}

func TestDetectIsPure(t *testing.T) {
	current := &model.ContractRecord{ID: "1", ObjectsHash: "obj-a", RequisitesHash: "req-a"}
	previous := &model.RegistryEntry{ID: "1", ObjectsHash: "obj-b", RequisitesHash: "req-a"}

	first := Detect(current, previous)
	second := Detect(current, previous)

	assert.Equal(t, first, second)
	assert.Equal(t, "obj-b", previous.ObjectsHash)
	assert.Equal(t, "obj-a", current.ObjectsHash)
}
