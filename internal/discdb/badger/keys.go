package badger

import (
	"encoding/binary"
	"fmt"
)

// ============================================================================
// Key namespace design
// ============================================================================
//
// Data Type            Prefix  Key format                        Value
// Host                 "h:"    h:<nqn>                           Host (JSON)
// Subsystem            "s:"    s:<nqn>                           Subsystem (JSON)
// Port                 "o:"    o:<portid(u16 BE)>                Port (JSON)
// host_subsys forward  "hs:"   hs:<hostnqn>:<subsysnqn>          (empty marker)
// host_subsys reverse  "sh:"   sh:<subsysnqn>:<hostnqn>          (empty marker)
// subsys_port forward  "sp:"   sp:<subsysnqn>:<portid(u16 BE)>   (empty marker)
// subsys_port reverse  "ps:"   ps:<portid(u16 BE)>:<subsysnqn>   (empty marker)

const (
	prefixHost      = "h:"
	prefixSubsys    = "s:"
	prefixPort      = "o:"
	prefixHostSub   = "hs:"
	prefixSubHost   = "sh:"
	prefixSubPort   = "sp:"
	prefixPortSub   = "ps:"
)

func keyHost(nqn string) []byte   { return []byte(prefixHost + nqn) }
func keySubsys(nqn string) []byte { return []byte(prefixSubsys + nqn) }

func portIDBytes(portID uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, portID)
	return b
}

func keyPort(portID uint16) []byte {
	return append([]byte(prefixPort), portIDBytes(portID)...)
}

func keyHostSub(hostNQN, subsysNQN string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixHostSub, hostNQN, subsysNQN))
}

func keySubHost(subsysNQN, hostNQN string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixSubHost, subsysNQN, hostNQN))
}

func prefixSubHostOf(subsysNQN string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixSubHost, subsysNQN))
}

func keySubPort(subsysNQN string, portID uint16) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixSubPort, subsysNQN) + string(portIDBytes(portID)))
}

func prefixSubPortOf(subsysNQN string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixSubPort, subsysNQN))
}

func keyPortSub(portID uint16, subsysNQN string) []byte {
	return append(append([]byte(prefixPortSub), portIDBytes(portID)...), append([]byte(":"), subsysNQN...)...)
}

func prefixPortSubOf(portID uint16) []byte {
	return append([]byte(prefixPortSub), append(portIDBytes(portID), ':')...)
}
