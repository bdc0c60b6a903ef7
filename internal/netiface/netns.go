// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux
// +build linux

package netiface

import (
	"fmt"
	"runtime"

	"github.com/vishvananda/netns"

	"grimm.is/gwemu/internal/errors"
)

// Isolated runs fn with the calling OS thread switched into the named
// network namespace, restoring the thread's original namespace before
// returning. It locks the goroutine to its OS thread for the duration,
// since a namespace switch is a per-thread kernel property.
func Isolated(name string, fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	original, err := netns.Get()
	if err != nil {
		return errors.Wrap(err, errors.KindInternal, "get current network namespace")
	}
	defer original.Close()

	target, err := netns.GetFromName(name)
	if err != nil {
		return errors.Wrap(err, errors.KindValidation, fmt.Sprintf("network namespace %q not found", name))
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		return errors.Wrap(err, errors.KindInternal, fmt.Sprintf("enter network namespace %q", name))
	}
	defer netns.Set(original)

	return fn()
}
