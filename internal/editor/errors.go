package editor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownField         = errors.New("unknown field")
	ErrImmutableID          = errors.New("report id cannot change once assigned")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrItemNotFound         = errors.New("item not found")
	ErrConfirmationRequired = errors.New("confirmation required")
	ErrMissingValue         = errors.New("required value missing")
)

// IncompleteEquipmentError blocks the end of a drying cycle. Devices lists
// the device numbers that still lack an end date, end reading or hours.
type IncompleteEquipmentError struct {
	Devices []string
}

func (e *IncompleteEquipmentError) Error() string {
	labels := make([]string, len(e.Devices))
	for i, d := range e.Devices {
		labels[i] = "#" + d
	}
	return fmt.Sprintf("drying cannot end, incomplete devices: %s", strings.Join(labels, ", "))
}
