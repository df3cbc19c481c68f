package catalog

import "testing"

func TestDetectPlatform(t *testing.T) {
	cases := []struct {
		path string
		want Platform
	}{
		{"Windows11.iso", PlatformWindows},
		{"/downloads/win10-enterprise.iso", PlatformWindows},
		{"RaspberryPi-OS.img", PlatformRaspberryPi},
		{"2024-11-19-raspios-bookworm-arm64.img.xz", PlatformRaspberryPi},
		{"OrangePi-Ubuntu.img", PlatformOrangePi},
		{"esp32-micropython.bin", PlatformESP32},
		{"arduino-firmware.hex", PlatformArduino},
		{"ubuntu-24.04.1-desktop-amd64.iso", PlatformLinux},
		{"archlinux-x86_64.iso", PlatformLinux},
		{"mystery-image.iso", PlatformGenericISO},
	}
	for _, tc := range cases {
		if got := DetectPlatform(tc.path); got != tc.want {
			t.Errorf("DetectPlatform(%q) = %s, want %s", tc.path, got.DisplayName(), tc.want.DisplayName())
		}
	}
}

func TestPlatformEmbeddedBoard(t *testing.T) {
	if !PlatformRaspberryPi.EmbeddedBoard() {
		t.Error("Raspberry Pi should count as an embedded board")
	}
	if PlatformLinux.EmbeddedBoard() {
		t.Error("Linux ISO should not count as an embedded board")
	}
}

func TestCategoryDisplayName(t *testing.T) {
	cases := []struct {
		category Category
		want     string
	}{
		{CategoryUbuntu, "Ubuntu"},
		{CategoryMint, "Linux Mint"},
		{CategoryArch, "Arch Linux"},
		{Category("nixos"), "Nixos"},
	}
	for _, tc := range cases {
		if got := tc.category.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%s) = %q, want %q", tc.category, got, tc.want)
		}
	}
}
