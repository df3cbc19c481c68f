package catalog

import (
	"path/filepath"
	"strings"
)

// Platform classifies an image file by the hardware it targets. Detection is
// by filename: magic-byte sniffing is not worth opening multi-gigabyte files
// for a hint the name already carries.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformWindows
	PlatformLinux
	PlatformGenericISO
	PlatformRaspberryPi
	PlatformOrangePi
	PlatformESP32
	PlatformArduino
)

// DetectPlatform inspects the image filename.
func DetectPlatform(path string) Platform {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case containsAny(name, "windows", "win10", "win11"):
		return PlatformWindows
	case containsAny(name, "raspberrypi", "raspi", "rpi", "raspberry"):
		return PlatformRaspberryPi
	case containsAny(name, "orangepi", "orange-pi"):
		return PlatformOrangePi
	case containsAny(name, "esp32", "micropython"):
		return PlatformESP32
	case containsAny(name, "arduino", "avr"):
		return PlatformArduino
	case containsAny(name, "ubuntu", "fedora", "debian", "arch", "manjaro", "gentoo", "opensuse", "linux"):
		return PlatformLinux
	default:
		return PlatformGenericISO
	}
}

// DisplayName returns the human-readable platform name.
func (p Platform) DisplayName() string {
	switch p {
	case PlatformWindows:
		return "Windows"
	case PlatformLinux:
		return "Linux"
	case PlatformRaspberryPi:
		return "Raspberry Pi"
	case PlatformOrangePi:
		return "Orange Pi"
	case PlatformESP32:
		return "ESP32"
	case PlatformArduino:
		return "Arduino"
	case PlatformGenericISO:
		return "ISO Image"
	default:
		return "Unknown"
	}
}

// EmbeddedBoard reports whether the platform is a board image rather than a
// bootable PC medium. Board images often need different post-write handling.
func (p Platform) EmbeddedBoard() bool {
	switch p {
	case PlatformRaspberryPi, PlatformOrangePi, PlatformESP32, PlatformArduino:
		return true
	default:
		return false
	}
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
