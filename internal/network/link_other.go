//go:build !linux

package network

import (
	"context"
	"errors"
	"net/netip"
)

var errUnsupported = errors.New("network: link notifications require Linux")

func linkAddr(string) (netip.Addr, bool, error) {
	return netip.Addr{}, false, errUnsupported
}

func subscribeLink(context.Context, string, func()) error {
	return errUnsupported
}
