//go:build windows

// pkg/version/fileversion_windows.go - reads the fixed file version from a PE version resource.

package version

import (
	"fmt"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	versionDLL                  = windows.NewLazySystemDLL("version.dll")
	procGetFileVersionInfoSizeW = versionDLL.NewProc("GetFileVersionInfoSizeW")
	procGetFileVersionInfoW     = versionDLL.NewProc("GetFileVersionInfoW")
	procVerQueryValueW          = versionDLL.NewProc("VerQueryValueW")
)

type vsFixedFileInfo struct {
	Signature        uint32
	StrucVersion     uint32
	FileVersionMS    uint32
	FileVersionLS    uint32
	ProductVersionMS uint32
	ProductVersionLS uint32
	FileFlagsMask    uint32
	FileFlags        uint32
	FileOS           uint32
	FileType         uint32
	FileSubtype      uint32
	FileDateMS       uint32
	FileDateLS       uint32
}

func executableVersion(path string) (string, error) {
	lower := strings.ToLower(path)
	if !strings.HasSuffix(lower, ".exe") && !strings.HasSuffix(lower, ".dll") {
		return "", fmt.Errorf("%s is not a PE image", path)
	}

	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return "", err
	}
	r0, _, e1 := procGetFileVersionInfoSizeW.Call(uintptr(unsafe.Pointer(p)), 0)
	size := uint32(r0)
	if size == 0 {
		return "", fmt.Errorf("GetFileVersionInfoSizeW failed for %s: %w", path, e1)
	}

	info := make([]byte, size)
	r0, _, e1 = procGetFileVersionInfoW.Call(
		uintptr(unsafe.Pointer(p)),
		0,
		uintptr(size),
		uintptr(unsafe.Pointer(&info[0])))
	if r0 == 0 {
		return "", fmt.Errorf("GetFileVersionInfoW failed for %s: %w", path, e1)
	}

	root, err := windows.UTF16PtrFromString(`\`)
	if err != nil {
		return "", err
	}
	var buf unsafe.Pointer
	var bufLen uint32
	r0, _, e1 = procVerQueryValueW.Call(
		uintptr(unsafe.Pointer(&info[0])),
		uintptr(unsafe.Pointer(root)),
		uintptr(unsafe.Pointer(&buf)),
		uintptr(unsafe.Pointer(&bufLen)))
	if r0 == 0 || bufLen == 0 {
		return "", fmt.Errorf("VerQueryValueW failed for %s: %w", path, e1)
	}
	fixed := (*vsFixedFileInfo)(buf)

	return fmt.Sprintf("%d.%d.%d.%d",
		fixed.FileVersionMS>>16,
		fixed.FileVersionMS&0xffff,
		fixed.FileVersionLS>>16,
		fixed.FileVersionLS&0xffff), nil
}
