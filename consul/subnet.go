package consul

import (
	"encoding/binary"
	"net"
	"regexp"
	"strings"
)

// 只做格式粗筛，不校验每段是否 <= 255
var ipv4Pattern = regexp.MustCompile(`(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})`)

// FindFirstEligibleIPBySubnet 返回 hosts 中第一个落在 subnet 可用主机范围内的 IPv4 地址
// 主机名、IPv6 字面量和非法字符串直接跳过；subnet 非法时返回 false
func FindFirstEligibleIPBySubnet(hosts []string, subnet string) (string, bool) {
	r, ok := parseHostRange(subnet)
	if !ok {
		return "", false
	}
	for _, host := range hosts {
		if !ipv4Pattern.MatchString(host) {
			continue
		}
		if r.contains(host) {
			return host, true
		}
	}
	return "", false
}

// hostRange 子网中可分配给主机的地址区间
// 网络地址和广播地址不算在内，/31 和 /32 没有可用主机
type hostRange struct {
	low, high uint32
}

func parseHostRange(subnet string) (hostRange, bool) {
	_, ipNet, err := net.ParseCIDR(subnet)
	if err != nil {
		return hostRange{}, false
	}
	network := ipNet.IP.To4()
	if network == nil {
		return hostRange{}, false
	}
	ones, bits := ipNet.Mask.Size()
	if bits != 32 {
		return hostRange{}, false
	}

	base := binary.BigEndian.Uint32(network)
	broadcast := base | ^binary.BigEndian.Uint32(net.IP(ipNet.Mask).To4())
	if ones >= 31 {
		return hostRange{}, true
	}
	return hostRange{low: base + 1, high: broadcast - 1}, true
}

func (r hostRange) contains(host string) bool {
	if strings.Contains(host, ":") {
		return false
	}
	ip := net.ParseIP(host).To4()
	if ip == nil {
		return false
	}
	addr := binary.BigEndian.Uint32(ip)
	return addr > 0 && r.low <= addr && addr <= r.high
}
