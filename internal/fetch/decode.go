package fetch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/contract-sentinel/internal/model"
)

// ErrUndecodable is returned when collaborator output is neither JSON nor YAML.
var ErrUndecodable = errors.New("undecodable collaborator output")

// DecodeRecord decodes one raw record from JSON or YAML. A record carrying an
// error field is reported as ErrCollaborator.
func DecodeRecord(data []byte) (*model.RawRecord, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrUndecodable)
	}

	rec := &model.RawRecord{}
	if err := decode(data, rec); err != nil {
		return nil, err
	}
	if rec.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrCollaborator, rec.Error)
	}

	rec.Payload = append([]byte(nil), data...)
	return rec, nil
}

// DecodePreviews decodes a preview batch. A single object is accepted as a
// batch of one.
func DecodePreviews(data []byte) ([]model.Preview, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output", ErrUndecodable)
	}

	if data[0] == '{' {
		var single model.Preview
		if err := decode(data, &single); err != nil {
			return nil, err
		}
		return []model.Preview{single}, nil
	}

	var previews []model.Preview
	if err := decode(data, &previews); err != nil {
		return nil, err
	}
	if previews == nil {
		previews = []model.Preview{}
	}
	return previews, nil
}

func decode(data []byte, v any) error {
	if json.Valid(data) {
		if err := json.Unmarshal(data, v); err != nil {
			return fmt.Errorf("%w: %w", ErrUndecodable, err)
		}
		return nil
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	return nil
}
