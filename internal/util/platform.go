package util

import (
	"crypto/md5"
	"fmt"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Platform represents the current operating system.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformDarwin  Platform = "darwin"
	PlatformUnknown Platform = "unknown"
)

// GetPlatform returns the current platform.
func GetPlatform() Platform {
	switch runtime.GOOS {
	case "windows":
		return PlatformWindows
	case "linux":
		return PlatformLinux
	case "darwin":
		return PlatformDarwin
	default:
		return PlatformUnknown
	}
}

// IsWindows returns true if running on Windows.
func IsWindows() bool {
	return runtime.GOOS == "windows"
}

// SystemInfo holds information about the host system.
type SystemInfo struct {
	Platform     Platform `json:"platform"`
	Hostname     string   `json:"hostname"`
	OS           string   `json:"os"`
	Architecture string   `json:"architecture"`
	CPUModel     string   `json:"cpu_model"`
	CPUCores     int      `json:"cpu_cores"`
	TotalMemory  uint64   `json:"total_memory_mb"`
}

// GetSystemInfo gathers system information.
func GetSystemInfo() SystemInfo {
	info := SystemInfo{
		Platform:     GetPlatform(),
		Architecture: runtime.GOARCH,
		CPUCores:     runtime.NumCPU(),
	}

	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	if hostInfo, err := host.Info(); err == nil {
		info.OS = fmt.Sprintf("%s %s", hostInfo.Platform, hostInfo.PlatformVersion)
	}

	if cpuInfo, err := cpu.Info(); err == nil && len(cpuInfo) > 0 {
		info.CPUModel = cpuInfo[0].ModelName
	}

	if memInfo, err := mem.VirtualMemory(); err == nil {
		info.TotalMemory = memInfo.Total / (1024 * 1024) // Convert to MB
	}

	return info
}

// ClientIdentifiers are the hashed hardware/install identifiers the login
// handshake sends to the server. Values are stable across restarts on the
// same machine.
type ClientIdentifiers struct {
	Adapters     string // network adapter MACs joined by '.'
	AdaptersMD5  string
	InstallMD5   string // hashed machine/install id
	DiskMD5      string // hashed disk serial
}

// GetClientIdentifiers gathers and hashes the machine identifiers.
func GetClientIdentifiers() ClientIdentifiers {
	var ids ClientIdentifiers

	ids.Adapters = adapterString()
	ids.AdaptersMD5 = MD5Hex([]byte(ids.Adapters))

	installID, err := host.HostID()
	if err != nil || installID == "" {
		installID = "unknown"
	}
	ids.InstallMD5 = MD5Hex([]byte(installID))

	ids.DiskMD5 = MD5Hex([]byte(diskSerial()))

	return ids
}

// adapterString joins the hardware addresses of all physical-looking
// interfaces. Sorted so the string is stable between runs.
func adapterString() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "runningunderunix"
	}

	var macs []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if hw := iface.HardwareAddr.String(); hw != "" {
			macs = append(macs, strings.ReplaceAll(hw, ":", ""))
		}
	}
	if len(macs) == 0 {
		return "runningunderunix"
	}
	sort.Strings(macs)
	return strings.Join(macs, ".")
}

// diskSerial returns the serial number of the first disk partition that
// reports one, or the hostname as a last resort.
func diskSerial() string {
	parts, err := disk.Partitions(false)
	if err == nil {
		for _, part := range parts {
			if serial, err := disk.SerialNumber(part.Device); err == nil && serial != "" {
				return serial
			}
		}
	}
	hostname, _ := os.Hostname()
	return hostname
}

// MD5Hex returns the lowercase hex md5 digest of data.
func MD5Hex(data []byte) string {
	return fmt.Sprintf("%x", md5.Sum(data))
}

// GetLocalIP returns the primary local IP address.
func GetLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				return ipNet.IP.String(), nil
			}
		}
	}
	return "127.0.0.1", nil
}

// FileExists checks if a file or directory exists at the given path.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
