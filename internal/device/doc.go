// Package device enumerates attachable block devices and classifies how each
// one is connected, so a human can be offered only targets that are safe to
// destroy.
//
// The enumeration walks /sys/block, resolves each device's position in the
// bus topology, and filters out everything that must never be imaged: the
// device backing the root filesystem, virtual and optical devices, internal
// disks not flagged removable, and anything whose bus cannot be classified.
// A udev netlink monitor reports hotplug so callers can re-enumerate.
package device
