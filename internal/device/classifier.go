package device

import (
	"bufio"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"etch/internal/logging"
)

const (
	defaultSysBlockPath = "/sys/block"
	defaultMountsPath   = "/proc/mounts"
	defaultDevDir       = "/dev"
)

// Name prefixes that can never be a sane imaging target: virtual, loop,
// RAM-backed, device-mapper, software RAID, network block, floppy, optical.
var excludedNamePrefixes = []string{"loop", "ram", "zram", "dm-", "md", "nbd", "fd", "sr"}

var (
	usbBusPattern   = regexp.MustCompile(`^usb\d+$`)
	usbPortPattern  = regexp.MustCompile(`^\d+-[\d.]+$`)
	ataPattern      = regexp.MustCompile(`^ata\d+$`)
	nvmeCtrlPattern = regexp.MustCompile(`^nvme\d*$`)
	virtioPattern   = regexp.MustCompile(`^virtio\d+$`)
	partSuffix      = regexp.MustCompile(`^(.+\d)p\d+$`)
)

// Classifier enumerates attached block devices and assigns each a connection
// category. Paths are injectable so tests can point it at a fake sysfs tree.
type Classifier struct {
	SysBlockPath string
	MountsPath   string
	DevDir       string

	logger *slog.Logger
}

// NewClassifier returns a classifier reading the live system paths.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Classifier{
		SysBlockPath: defaultSysBlockPath,
		MountsPath:   defaultMountsPath,
		DevDir:       defaultDevDir,
		logger:       logging.NewComponentLogger(logger, "classifier"),
	}
}

// Enumerate returns the snapshot of devices that are safe to offer as
// imaging targets. An unavailable enumeration source yields an empty result,
// never an error: absence of targets is the safe default.
func (c *Classifier) Enumerate() []StorageTarget {
	entries, err := os.ReadDir(c.sysBlock())
	if err != nil {
		c.log().Warn("block device enumeration unavailable", logging.Error(err))
		return nil
	}

	rootBase := c.RootDeviceBase()

	var targets []StorageTarget
	for _, entry := range entries {
		name := entry.Name()

		// The root device exclusion comes before everything else; a stale
		// or odd sysfs entry must never let the boot disk through.
		if rootBase != "" && name == rootBase {
			continue
		}
		if excludedName(name) {
			continue
		}

		devicePath := filepath.Join(c.sysBlock(), name)
		capacity := readSectorCapacity(devicePath)
		if capacity == 0 {
			continue
		}
		removable := readSysFlag(filepath.Join(devicePath, "removable"))
		connection := c.classifyConnection(name)

		if !includable(connection, removable) {
			continue
		}

		targets = append(targets, StorageTarget{
			Path:          filepath.Join(c.devDir(), name),
			Vendor:        readSysString(filepath.Join(devicePath, "device", "vendor")),
			Model:         readSysString(filepath.Join(devicePath, "device", "model")),
			CapacityBytes: capacity,
			Removable:     removable,
			Connection:    connection,
		})
	}
	return targets
}

// RootDeviceBase resolves the device backing the root filesystem and strips
// its partition suffix, returning the base name (sda, nvme0n1) or empty when
// it cannot be determined.
func (c *Classifier) RootDeviceBase() string {
	file, err := os.Open(c.mounts())
	if err != nil {
		c.log().Warn("mount table unavailable, root device unknown", logging.Error(err))
		return ""
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[1] != "/" {
			continue
		}
		if !strings.HasPrefix(fields[0], "/dev/") {
			continue
		}
		return BaseDeviceName(strings.TrimPrefix(fields[0], "/dev/"))
	}
	return ""
}

// BaseDeviceName strips a partition suffix from a device name: a pNN suffix
// for controller-style names that embed digits (nvme0n1p1, mmcblk0p2), a
// plain numeric suffix otherwise (sda1).
func BaseDeviceName(name string) string {
	if m := partSuffix.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if strings.HasPrefix(name, "nvme") || strings.HasPrefix(name, "mmcblk") {
		return name
	}
	return strings.TrimRight(name, "0123456789")
}

// classifyConnection resolves the device's position in the sysfs topology.
// One USB bus segment on the path means a directly attached USB device; a
// port chain deeper than one hop means it hangs off a hub.
func (c *Classifier) classifyConnection(name string) Connection {
	resolved, err := filepath.EvalSymlinks(filepath.Join(c.sysBlock(), name))
	if err != nil {
		return ConnectionUnknown
	}

	usbBus := false
	portHops := 0
	internal := false
	for _, segment := range strings.Split(resolved, string(filepath.Separator)) {
		switch {
		case usbBusPattern.MatchString(segment):
			usbBus = true
		case usbPortPattern.MatchString(segment):
			portHops++
		case ataPattern.MatchString(segment), nvmeCtrlPattern.MatchString(segment), virtioPattern.MatchString(segment):
			internal = true
		}
	}

	switch {
	case usbBus && portHops >= 2:
		return ConnectionUSBHub
	case usbBus:
		return ConnectionUSB
	case internal:
		return ConnectionInternal
	default:
		return ConnectionUnknown
	}
}

// includable applies the safety filter: removable media are always offered,
// internal disks and unclassifiable buses never are.
func includable(connection Connection, removable bool) bool {
	if removable {
		return true
	}
	switch connection {
	case ConnectionUSB, ConnectionUSBHub:
		return true
	default:
		return false
	}
}

func excludedName(name string) bool {
	for _, prefix := range excludedNamePrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func readSectorCapacity(devicePath string) uint64 {
	raw := readSysString(filepath.Join(devicePath, "size"))
	sectors, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0
	}
	// sysfs size is always in 512-byte sectors regardless of the device's
	// logical block size.
	return sectors * 512
}

func readSysFlag(path string) bool {
	return readSysString(path) == "1"
}

func readSysString(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func (c *Classifier) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}

func (c *Classifier) sysBlock() string {
	if c.SysBlockPath != "" {
		return c.SysBlockPath
	}
	return defaultSysBlockPath
}

func (c *Classifier) mounts() string {
	if c.MountsPath != "" {
		return c.MountsPath
	}
	return defaultMountsPath
}

func (c *Classifier) devDir() string {
	if c.DevDir != "" {
		return c.DevDir
	}
	return defaultDevDir
}
