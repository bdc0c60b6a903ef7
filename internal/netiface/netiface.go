// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netiface resolves a configured physical port name to the kernel
// link state internal/ringio needs to bind a ring: its own MAC (when the
// config doesn't pin one explicitly), its MTU, and whether it currently has
// carrier and is administratively up. It's a thin read path over netlink,
// not a configuration manager: gwemu never changes a host interface's
// addressing or flags, it only reports what's already there.
package netiface

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"

	"grimm.is/gwemu/internal/errors"
)

// LinkInfo is the subset of kernel link state gwemu's binder needs.
type LinkInfo struct {
	Name    string
	Index   int
	MAC     net.HardwareAddr
	MTU     int
	AdminUp bool
	Carrier bool
}

// Resolve looks up name's current kernel state.
func Resolve(name string) (LinkInfo, error) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return LinkInfo{}, errors.Wrap(err, errors.KindValidation, fmt.Sprintf("interface %q not found", name))
	}

	attrs := link.Attrs()
	carrier, _ := readCarrier(name)

	return LinkInfo{
		Name:    name,
		Index:   attrs.Index,
		MAC:     attrs.HardwareAddr,
		MTU:     attrs.MTU,
		AdminUp: attrs.Flags&unix.IFF_UP != 0,
		Carrier: carrier,
	}, nil
}

// readCarrier reads /sys/class/net/<name>/carrier directly, which reflects
// physical link state more reliably than netlink's OperState on some
// drivers.
func readCarrier(name string) (bool, error) {
	data, err := os.ReadFile("/sys/class/net/" + name + "/carrier")
	if err != nil {
		return false, err
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, err
	}
	return v == 1, nil
}
