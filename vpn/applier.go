package vpn

import (
	"fmt"

	"github.com/yllada/wg-manager/common"
)

// NewApplier returns the ParameterApplier for backend along with a
// function releasing its resources.
func NewApplier(backend, wgPath string) (ParameterApplier, func() error, error) {
	switch backend {
	case common.BackendNetlink, "":
		a, err := NewWgctrlApplier()
		if err != nil {
			return nil, nil, err
		}
		return a, a.Close, nil
	case common.BackendWgTool:
		return NewWgToolApplier(wgPath), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", backend)
	}
}
