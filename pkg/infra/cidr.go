package infra

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/c-robinson/iplib"
)

// SubnetCIDRs carves count subnets of the given prefix length out of the VPC
// CIDR block, in address order.
func SubnetCIDRs(cidrBlock string, bits, count int) ([]string, error) {
	ip, mask, err := splitCIDR(cidrBlock)
	if err != nil {
		return nil, err
	}

	network := iplib.NewNet4(ip, mask)
	subnets, err := network.Subnet(bits)
	if err != nil {
		return nil, fmt.Errorf("could not subnet %s into /%d blocks: %w", cidrBlock, bits, err)
	}
	if len(subnets) < count {
		return nil, fmt.Errorf("%s only fits %d /%d subnets, need %d", cidrBlock, len(subnets), bits, count)
	}

	out := make([]string, count)
	for i := 0; i < count; i++ {
		out[i] = subnets[i].String()
	}
	return out, nil
}

func splitCIDR(cidrBlock string) (net.IP, int, error) {
	parts := strings.Split(cidrBlock, "/")
	if len(parts) != 2 {
		return nil, 0, fmt.Errorf("invalid cidr block %q", cidrBlock)
	}
	ip := net.ParseIP(parts[0])
	if ip == nil {
		return nil, 0, fmt.Errorf("invalid address in cidr block %q", cidrBlock)
	}
	mask, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, 0, fmt.Errorf("invalid prefix in cidr block %q", cidrBlock)
	}
	return ip, mask, nil
}
