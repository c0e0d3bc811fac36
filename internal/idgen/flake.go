// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package idgen

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math/rand/v2"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sony/sonyflake"
)

var (
	defaultOnce      sync.Once
	defaultGenerator *SonyFlakeGenerator
)

// DefaultFlakeGenerator is created on first use. It never fails: when no
// generator can be built, ids come from the random fallback in NextID.
func DefaultFlakeGenerator() *SonyFlakeGenerator {
	defaultOnce.Do(func() {
		gen, err := newFlakeGenerator(machineID)
		if err != nil {
			gen = &SonyFlakeGenerator{}
		}
		defaultGenerator = gen
	})
	return defaultGenerator
}

type SonyFlakeGenerator struct {
	sf *sonyflake.Sonyflake
}

func newFlakeGenerator(machineID func() (uint16, error)) (*SonyFlakeGenerator, error) {
	settings := sonyflake.Settings{
		StartTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		MachineID: machineID,
	}

	sf, err := sonyflake.New(settings)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &SonyFlakeGenerator{sf: sf}, nil
}

// machineID is the lower 16 bits of the first private IPv4 address, as
// sonyflake's default, or a hash of the host name and pid on hosts without
// one (IPv6-only, public addresses only).
func machineID() (uint16, error) {
	if ip := privateIPv4(); ip != nil {
		return uint16(ip[2])<<8 + uint16(ip[3]), nil
	}
	h := fnv.New32a()
	if name, err := os.Hostname(); err == nil {
		_, _ = h.Write([]byte(name))
	}
	var pid [4]byte
	binary.BigEndian.PutUint32(pid[:], uint32(os.Getpid()))
	_, _ = h.Write(pid[:])
	sum := h.Sum32()
	return uint16(sum>>16) ^ uint16(sum), nil
}

func privateIPv4() net.IP {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip := ipnet.IP.To4(); ip != nil && ip.IsPrivate() {
			return ip
		}
	}
	return nil
}

// NextID returns a positive int64 that'll increase roughly in time order.
func (sf *SonyFlakeGenerator) NextID() int64 {
	if sf.sf == nil {
		return rand.Int64N(1 << 62)
	}
	v, err := sf.sf.NextID()
	if err != nil {
		return rand.Int64N(1 << 62)
	}
	return int64(v)
}

var lowerBase32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// NextBase32ID is NextID rendered as unpadded lower-case base32, used to tag
// deserializer sessions in logs.
func (sf *SonyFlakeGenerator) NextBase32ID() string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(sf.NextID()))
	return strings.ToLower(lowerBase32.EncodeToString(b[:]))
}

// NextBase32ID uses the default generator.
func NextBase32ID() string {
	return DefaultFlakeGenerator().NextBase32ID()
}
