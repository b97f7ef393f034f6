package protocol

import "strconv"

// REPL listings for the vhost/vrouter drivers.

// Li lists interfaces.
func (router *Router) Li() string {
	var res = "Name  Addr/Prefix      State"
	for _, iface := range router.interfaces {
		res += "\n" + iface.Name + "   " + iface.IP.String() + "/" + strconv.Itoa(iface.Prefix.Bits())
		if iface.Down {
			res += "  down"
		} else {
			res += "  up"
		}
	}
	return res
}

// Ln lists resolved neighbors (the ARP caches).
func (router *Router) Ln() string {
	var res = "Iface  VIP            MAC                Lifetime(ms)"
	for _, iface := range router.interfaces {
		if iface.Down {
			continue
		}
		for ip, entry := range iface.arpTable {
			res += "\n" + iface.Name + "    " + ip.String() + "   " + entry.mac.String() +
				"  " + strconv.FormatUint(entry.remainingLifetimeMS, 10)
		}
	}
	return res
}

// Lr lists routes.
func (router *Router) Lr() string {
	var res = "Prefix            Next hop       Iface"
	for _, entry := range router.routes {
		res += "\n" + Uint32ToAddr(entry.Prefix).String() + "/" + strconv.Itoa(int(entry.PrefixLen)) +
			"   " + formatAddr(entry.NextHop) + "   " + strconv.Itoa(entry.InterfaceNum)
	}
	return res
}

// Down takes the named interface down.
func (router *Router) Down(interfaceName string) {
	for _, iface := range router.interfaces {
		if iface.Name == interfaceName {
			iface.Down = true
		}
	}
}

// Up brings the named interface back up.
func (router *Router) Up(interfaceName string) {
	for _, iface := range router.interfaces {
		if iface.Name == interfaceName {
			iface.Down = false
		}
	}
}
