package device

import (
	"testing"

	"github.com/pilebones/go-udev/netlink"
)

func TestExtractDeviceName(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"devname absolute", map[string]string{"DEVNAME": "/dev/sdb"}, "/dev/sdb"},
		{"devname relative", map[string]string{"DEVNAME": "sdb"}, "/dev/sdb"},
		{"devpath fallback", map[string]string{"DEVPATH": "/devices/pci0000:00/usb1/1-1/block/sdc"}, "/dev/sdc"},
		{"nothing", map[string]string{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := extractDeviceName(netlink.UEvent{Env: tc.env})
			if got != tc.want {
				t.Fatalf("extractDeviceName = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBlockDeviceMatcherAcceptsDiskEvents(t *testing.T) {
	matcher := blockDeviceMatcher()
	if matcher == nil {
		t.Fatal("expected non-nil matcher")
	}

	event := netlink.UEvent{
		Action: netlink.ADD,
		KObj:   "/devices/pci0000:00/usb1/1-1/block/sdb",
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "disk",
			"DEVNAME":   "sdb",
		},
	}
	if !matcher.Evaluate(event) {
		t.Fatal("matcher should accept a block disk add event")
	}

	partition := netlink.UEvent{
		Action: netlink.ADD,
		KObj:   "/devices/pci0000:00/usb1/1-1/block/sdb/sdb1",
		Env: map[string]string{
			"SUBSYSTEM": "block",
			"DEVTYPE":   "partition",
			"DEVNAME":   "sdb1",
		},
	}
	if matcher.Evaluate(partition) {
		t.Fatal("matcher should ignore partition events")
	}
}

func TestMonitorStopWithoutStart(t *testing.T) {
	monitor := NewMonitor(nil, nil)
	monitor.Stop()
	if monitor.Running() {
		t.Fatal("monitor should not be running")
	}
}
