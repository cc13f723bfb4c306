package interchange

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/layout-bridge/backend/internal/models"
)

// MarshalMsgpack encodes batch in the binary form served to streaming clients.
func MarshalMsgpack(batch *models.ExportBatch) ([]byte, error) {
	data, err := msgpack.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("encoding batch: %w", err)
	}
	return data, nil
}

// UnmarshalMsgpack decodes a batch produced by MarshalMsgpack.
func UnmarshalMsgpack(data []byte) (*models.ExportBatch, error) {
	var batch models.ExportBatch
	if err := msgpack.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	return &batch, nil
}
