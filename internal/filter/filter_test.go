package filter

import (
	"testing"

	"github.com/scout-project/scout/internal/protocol"
	"github.com/scout-project/scout/internal/registry"
)

func passingServer() *registry.ServerInfo {
	return &registry.ServerInfo{
		GameType:    "Multiplayer",
		MissionType: "ctf",
		NumPlayers:  4,
		MaxPlayers:  16,
		NumBots:     2,
		CPUSpeed:    2000,
		Status:      registry.StatusDedicated,
	}
}

func TestCheckInfo(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Spec, *registry.ServerInfo)
		want   RejectReason
	}{
		{
			name:   "passes default filter",
			mutate: func(s *Spec, si *registry.ServerInfo) {},
			want:   RejectNone,
		},
		{
			name: "game type case-insensitive match",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.GameType = "MULTIPLAYER"
			},
			want: RejectNone,
		},
		{
			name: "game type mismatch",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.GameType = "coop"
			},
			want: RejectGameType,
		},
		{
			name: "mission type mismatch",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.MissionType = "dm"
			},
			want: RejectMissionType,
		},
		{
			name: "any disables mission filter",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.MissionType = "Any"
				si.MissionType = "whatever"
			},
			want: RejectNone,
		},
		{
			name: "dedicated required",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.FilterFlags = protocol.FilterDedicated
				si.Status = 0
			},
			want: RejectDedicated,
		},
		{
			name: "not passworded required",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.FilterFlags = protocol.FilterNotPassworded
				si.Status |= registry.StatusPassworded
			},
			want: RejectPassworded,
		},
		{
			name: "too few players",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.MinPlayers = 8
			},
			want: RejectPlayers,
		},
		{
			name: "too many players",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.MaxPlayers = 2
			},
			want: RejectPlayers,
		},
		{
			name: "too many bots",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.MaxBots = 1
			},
			want: RejectBots,
		},
		{
			name: "cpu too slow",
			mutate: func(s *Spec, si *registry.ServerInfo) {
				s.MinCPU = 3000
			},
			want: RejectCPU,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := Default()
			si := passingServer()
			tt.mutate(&spec, si)
			if got := spec.CheckInfo(si); got != tt.want {
				t.Errorf("CheckInfo = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCheckPing(t *testing.T) {
	s := Default()
	if !s.CheckPing(5000) {
		t.Error("unbounded max ping rejected a slow server")
	}
	s.MaxPing = 150
	if !s.CheckPing(150) {
		t.Error("rtt equal to bound rejected")
	}
	if s.CheckPing(151) {
		t.Error("rtt above bound accepted")
	}
}

func TestFiltered(t *testing.T) {
	tests := []struct {
		typ  Type
		want bool
	}{
		{Normal, true},
		{OfflineFiltered, true},
		{Offline, false},
		{Favorites, false},
		{Buddy, false},
	}
	for _, tt := range tests {
		s := Spec{Type: tt.typ}
		if got := s.Filtered(); got != tt.want {
			t.Errorf("Filtered(%v) = %v, want %v", tt.typ, got, tt.want)
		}
	}
}
