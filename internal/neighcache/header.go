package neighcache

import (
	"encoding/binary"
	"net"

	"github.com/gatekeeper-fib/fibcore/internal/ifconfig"
)

const (
	etherTypeVLAN = 0x8100
)

// buildHeader precomputes the Ethernet (optionally 802.1Q VLAN-tagged)
// header a forwarder prepends when sending to neighbor dstMAC out iface
// (spec.md §3, §4.3). dstMAC may be nil/empty before the first resolution;
// the header is then just the source half with a zero destination, which
// is never looked up by a forwarder because Entry.Read's stale flag
// starts true.
func buildHeader(iface ifconfig.Interface, dstMAC net.HardwareAddr) []byte {
	var buf []byte
	buf = append(buf, padMAC(dstMAC)...)
	buf = append(buf, padMAC(iface.MAC)...)

	if iface.VLAN != 0 {
		buf = binary.BigEndian.AppendUint16(buf, etherTypeVLAN)
		buf = binary.BigEndian.AppendUint16(buf, iface.VLAN)
	}
	buf = binary.BigEndian.AppendUint16(buf, iface.Proto)

	return buf
}

func padMAC(mac net.HardwareAddr) []byte {
	out := make([]byte, 6)
	copy(out, mac)
	return out
}
