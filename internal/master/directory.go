// Package master manages the configured master server list: parsing the
// "<region>:<host:port>" config entries, region-preferred selection, and
// failover removal when a master stops answering.
package master

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/util"
)

// MaxMasters caps the configured master list.
const MaxMasters = 10

// Info is one configured master endpoint. Region 0 is invalid.
type Info struct {
	Address netaddr.Addr
	Region  uint32
}

// Directory is a working copy of the configured master list. The query
// engine removes masters that time out; the configured list is re-parsed
// at the start of each query.
type Directory struct {
	masters []Info
	logger  zerolog.Logger
}

// Parse builds a directory from config lines. Malformed lines are logged
// and skipped; at most MaxMasters entries are kept.
func Parse(lines []string) *Directory {
	d := &Directory{logger: util.ComponentLogger("master")}
	for _, line := range lines {
		if len(d.masters) >= MaxMasters {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		info, err := parseLine(line)
		if err != nil {
			d.logger.Warn().Str("entry", line).Err(err).Msg("bad master server address")
			continue
		}
		d.masters = append(d.masters, info)
	}
	return d
}

func parseLine(line string) (Info, error) {
	sep := strings.Index(line, ":")
	if sep <= 0 {
		return Info{}, fmt.Errorf("missing region prefix")
	}
	region, err := strconv.ParseUint(line[:sep], 10, 32)
	if err != nil {
		return Info{}, fmt.Errorf("bad region %q: %w", line[:sep], err)
	}
	if region == 0 {
		return Info{}, fmt.Errorf("region 0 is invalid")
	}
	addr, err := netaddr.Parse(line[sep+1:])
	if err != nil {
		return Info{}, err
	}
	return Info{Address: addr, Region: uint32(region)}, nil
}

// Len returns the number of masters remaining.
func (d *Directory) Len() int {
	return len(d.masters)
}

// All returns a snapshot of the remaining masters.
func (d *Directory) All() []Info {
	out := make([]Info, len(d.masters))
	copy(out, d.masters)
	return out
}

// Pick selects a master: starting from a position derived from `now`
// (virtual ms), scan forward once and return the first master in the
// preferred region; if none match, settle for the starting entry. Returns
// false when no masters remain.
func (d *Directory) Pick(now uint32, preferredRegion uint32) (Info, bool) {
	count := len(d.masters)
	if count == 0 {
		return Info{}, false
	}

	index := int(now) % count
	for i := 0; i < count; i++ {
		if d.masters[index].Region == preferredRegion {
			d.logger.Debug().
				Str("master", d.masters[index].Address.String()).
				Uint32("region", preferredRegion).
				Msg("found master server in preferred region")
			return d.masters[index], true
		}
		index++
		if index >= count {
			index = 0
		}
	}

	d.logger.Debug().
		Str("master", d.masters[index].Address.String()).
		Msg("no master server in preferred region, settling")
	return d.masters[index], true
}

// Remove drops the master with the given address from the working copy
// (used on timeout failover).
func (d *Directory) Remove(addr netaddr.Addr) {
	for i := range d.masters {
		if d.masters[i].Address == addr {
			d.masters = append(d.masters[:i], d.masters[i+1:]...)
			return
		}
	}
}

// Contains reports whether addr is one of the remaining masters. Only the
// host part is compared: masters may answer from a different source port.
func (d *Directory) Contains(addr netaddr.Addr) bool {
	for i := range d.masters {
		if d.masters[i].Address.IP == addr.IP {
			return true
		}
	}
	return false
}
