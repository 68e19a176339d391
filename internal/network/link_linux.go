//go:build linux

package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// linkAddr returns the preferred usable address of an up interface.
func linkAddr(name string) (netip.Addr, bool, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("lookup interface %s: %w", name, err)
	}
	attrs := link.Attrs()
	if attrs.Flags&net.FlagUp == 0 || attrs.OperState == netlink.OperDown {
		return netip.Addr{}, false, nil
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_ALL)
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("list addresses of %s: %w", name, err)
	}

	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		if a.IPNet == nil || a.Flags&(unix.IFA_F_TENTATIVE|unix.IFA_F_DADFAILED) != 0 {
			continue
		}
		ips = append(ips, a.IP)
	}
	addr, ok := pickAddr(ips)
	return addr, ok, nil
}

// subscribeLink calls changed for every link or address notification that
// concerns the named interface, and once as soon as it is subscribed. It
// returns when ctx ends or the netlink stream fails.
func subscribeLink(ctx context.Context, name string, changed func()) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return fmt.Errorf("lookup interface %s: %w", name, err)
	}
	index := link.Attrs().Index

	done := make(chan struct{})
	defer close(done)

	failed := make(chan error, 1)
	onError := func(err error) {
		select {
		case failed <- err:
		default:
		}
	}

	addrs := make(chan netlink.AddrUpdate, 16)
	if err := netlink.AddrSubscribeWithOptions(addrs, done, netlink.AddrSubscribeOptions{ErrorCallback: onError}); err != nil {
		return fmt.Errorf("subscribe to address updates: %w", err)
	}
	links := make(chan netlink.LinkUpdate, 16)
	if err := netlink.LinkSubscribeWithOptions(links, done, netlink.LinkSubscribeOptions{ErrorCallback: onError}); err != nil {
		return fmt.Errorf("subscribe to link updates: %w", err)
	}

	// Anything that changed before the subscription is picked up here.
	changed()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-failed:
			return err
		case u, ok := <-addrs:
			if !ok {
				return errors.New("address updates closed")
			}
			if u.LinkIndex == index {
				changed()
			}
		case u, ok := <-links:
			if !ok {
				return errors.New("link updates closed")
			}
			// A recreated interface comes back under the same name with a new index.
			if attrs := u.Link.Attrs(); attrs.Name == name {
				index = attrs.Index
				changed()
			}
		}
	}
}
