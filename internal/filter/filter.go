// Package filter defines the active query filter and the client-side
// acceptance checks applied to ping and info responses.
package filter

import (
	"strings"

	"github.com/scout-project/scout/internal/protocol"
	"github.com/scout-project/scout/internal/registry"
)

// Type selects the high-level query shape.
type Type int

const (
	Normal Type = iota
	Buddy
	Offline
	Favorites
	OfflineFiltered
)

// Any disables a string filter field.
const Any = "any"

// Spec is the active filter for a discovery session.
type Spec struct {
	Type        Type
	GameType    string
	MissionType string
	QueryFlags  uint8
	MinPlayers  uint8
	MaxPlayers  uint8
	MaxBots     uint8
	RegionMask  uint32
	MaxPing     uint32 // ms, 0 = unbounded
	FilterFlags uint8
	MinCPU      uint16
	BuddyList   []uint32
}

// Default returns the permissive filter.
func Default() Spec {
	return Spec{
		GameType:    Any,
		MissionType: Any,
		MaxPlayers:  255,
		MaxBots:     16,
		RegionMask:  0xFFFFFFFF,
	}
}

// Filtered reports whether client-side filtering applies for this query
// shape. Records mid-refresh are exempt regardless (the caller checks
// IsUpdating).
func (s *Spec) Filtered() bool {
	return s.Type == Normal || s.Type == OfflineFiltered
}

// RejectReason names the check an info response failed, for logging.
type RejectReason string

const (
	RejectNone        RejectReason = ""
	RejectGameType    RejectReason = "rules set"
	RejectMissionType RejectReason = "mission type"
	RejectDedicated   RejectReason = "dedicated flag"
	RejectPassworded  RejectReason = "no-password flag"
	RejectPlayers     RejectReason = "player count"
	RejectBots        RejectReason = "maximum bot count"
	RejectCPU         RejectReason = "minimum CPU speed"
)

// CheckPing applies the max-ping bound to a measured RTT.
func (s *Spec) CheckPing(rtt uint32) bool {
	return s.MaxPing == 0 || rtt <= s.MaxPing
}

// CheckInfo applies the info-response filters in protocol order and
// returns the first failing check, or RejectNone.
func (s *Spec) CheckInfo(si *registry.ServerInfo) RejectReason {
	if s.GameType != "" && !strings.EqualFold(s.GameType, Any) &&
		!strings.EqualFold(si.GameType, s.GameType) {
		return RejectGameType
	}
	if s.MissionType != "" && !strings.EqualFold(s.MissionType, Any) &&
		!strings.EqualFold(si.MissionType, s.MissionType) {
		return RejectMissionType
	}
	if s.FilterFlags&protocol.FilterDedicated != 0 && !si.IsDedicated() {
		return RejectDedicated
	}
	if s.FilterFlags&protocol.FilterNotPassworded != 0 && si.IsPassworded() {
		return RejectPassworded
	}
	if si.NumPlayers < s.MinPlayers || si.NumPlayers > s.MaxPlayers {
		return RejectPlayers
	}
	if si.NumBots > s.MaxBots {
		return RejectBots
	}
	if si.CPUSpeed < s.MinCPU {
		return RejectCPU
	}
	return RejectNone
}
