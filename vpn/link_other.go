//go:build !linux

package vpn

import "github.com/yllada/wg-manager/common"

// NewLinkManager is only implemented on Linux.
func NewLinkManager() (LinkManager, func() error, error) {
	return nil, nil, common.ErrUnsupportedPlatform
}
