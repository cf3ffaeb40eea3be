// Package security derives a stable machine fingerprint used as the
// default instance identifier for instance-pinned licenses.
package security

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
)

var (
	fingerprintOnce sync.Once
	fingerprint     string
)

// InstanceFingerprint returns a stable identifier for this machine,
// derived from hostname, MAC addresses, and platform. The result is
// memoized for the process lifetime.
//
// The fingerprint survives restarts but changes when the machine's
// network hardware does, which is the intended trade-off: a license
// pinned to it stops validating after the host is cloned or moved.
func InstanceFingerprint() string {
	fingerprintOnce.Do(func() {
		fingerprint = computeFingerprint()
	})
	return fingerprint
}

func computeFingerprint() string {
	h := sha256.New()

	if hostname, err := os.Hostname(); err == nil {
		h.Write([]byte(hostname))
	}
	h.Write([]byte(runtime.GOOS))
	h.Write([]byte(runtime.GOARCH))

	for _, mac := range hardwareAddresses() {
		h.Write([]byte(mac))
	}

	return hex.EncodeToString(h.Sum(nil))[:32]
}

// hardwareAddresses returns the machine's MAC addresses, sorted so the
// fingerprint does not depend on interface enumeration order.
func hardwareAddresses() []string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var macs []string
	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		mac := iface.HardwareAddr.String()
		if mac == "" || mac == "00:00:00:00:00:00" {
			continue
		}
		if strings.HasPrefix(iface.Name, "veth") || strings.HasPrefix(iface.Name, "docker") {
			// Virtual interfaces come and go; they would make the
			// fingerprint unstable.
			continue
		}
		macs = append(macs, mac)
	}

	sort.Strings(macs)
	return macs
}
