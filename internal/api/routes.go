package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/scout-project/scout/internal/netaddr"
	"github.com/scout-project/scout/internal/query"
	"github.com/scout-project/scout/internal/registry"
	"github.com/scout-project/scout/internal/store"
)

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "scout",
	})
}

// handleStatus returns the latest query progress and whether a query is
// in flight.
func (s *Server) handleStatus(c *gin.Context) {
	s.mu.RLock()
	status := s.lastStatus
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"active":   s.engine.Active(),
		"phase":    status.Phase,
		"message":  status.Message,
		"progress": status.Progress,
		"servers":  s.engine.ServerCount(),
	})
}

type serverJSON struct {
	Address     string `json:"address"`
	Name        string `json:"name"`
	GameType    string `json:"game_type"`
	MissionType string `json:"mission_type"`
	MissionName string `json:"mission_name"`
	Status      string `json:"status"`
	NumPlayers  uint8  `json:"num_players"`
	MaxPlayers  uint8  `json:"max_players"`
	NumBots     uint8  `json:"num_bots"`
	Ping        uint32 `json:"ping"`
	CPUSpeed    uint16 `json:"cpu_speed"`
	Dedicated   bool   `json:"dedicated"`
	Passworded  bool   `json:"passworded"`
	Favorite    bool   `json:"favorite"`
	Local       bool   `json:"local"`
}

func toServerJSON(si registry.ServerInfo) serverJSON {
	return serverJSON{
		Address:     si.Address.String(),
		Name:        si.Name,
		GameType:    si.GameType,
		MissionType: si.MissionType,
		MissionName: si.MissionName,
		Status:      si.Status.String(),
		NumPlayers:  si.NumPlayers,
		MaxPlayers:  si.MaxPlayers,
		NumBots:     si.NumBots,
		Ping:        si.Ping,
		CPUSpeed:    si.CPUSpeed,
		Dedicated:   si.IsDedicated(),
		Passworded:  si.IsPassworded(),
		Favorite:    si.IsFavorite,
		Local:       si.IsLocal,
	}
}

// handleListServers returns the current browser list.
func (s *Server) handleListServers(c *gin.Context) {
	servers := s.engine.Servers()
	out := make([]serverJSON, 0, len(servers))
	for _, si := range servers {
		out = append(out, toServerJSON(si))
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "servers": out})
}

// handleGetServer returns one record by browser index.
func (s *Server) handleGetServer(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index"})
		return
	}
	si, ok := s.engine.Server(index)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such server"})
		return
	}
	c.JSON(http.StatusOK, toServerJSON(si))
}

type lanQueryRequest struct {
	Port        uint16 `json:"port"`
	GameType    string `json:"game_type"`
	MissionType string `json:"mission_type"`
	MinPlayers  uint8  `json:"min_players"`
	MaxPlayers  uint8  `json:"max_players"`
	MaxBots     uint8  `json:"max_bots"`
	MaxPing     uint32 `json:"max_ping"`
	MinCPU      uint16 `json:"min_cpu"`
	FilterFlags uint8  `json:"filter_flags"`
	UseFilters  bool   `json:"use_filters"`
}

func (s *Server) handleQueryLAN(c *gin.Context) {
	req := lanQueryRequest{
		GameType:    "any",
		MissionType: "any",
		MaxPlayers:  255,
		MaxBots:     16,
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Port == 0 {
		req.Port = s.cfg.GetClient().QueryPort
	}

	s.engine.QueryLAN(query.LANQuery{
		Port:            req.Port,
		GameType:        req.GameType,
		MissionType:     req.MissionType,
		MinPlayers:      req.MinPlayers,
		MaxPlayers:      req.MaxPlayers,
		MaxBots:         req.MaxBots,
		RegionMask:      0xFFFFFFFF,
		MaxPing:         req.MaxPing,
		MinCPU:          req.MinCPU,
		FilterFlags:     req.FilterFlags,
		ClearServerInfo: true,
		UseFilters:      req.UseFilters,
	})
	c.JSON(http.StatusOK, gin.H{"status": "querying"})
}

type masterQueryRequest struct {
	lanQueryRequest
	RegionMask uint32   `json:"region_mask"`
	BuddyList  []uint32 `json:"buddy_list"`
}

func (s *Server) handleQueryMasters(c *gin.Context) {
	req := masterQueryRequest{
		lanQueryRequest: lanQueryRequest{
			GameType:    "any",
			MissionType: "any",
			MaxPlayers:  255,
			MaxBots:     16,
		},
		RegionMask: 0xFFFFFFFF,
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Port == 0 {
		req.Port = s.cfg.GetClient().QueryPort
	}

	s.engine.QueryMasters(query.MasterQuery{
		LANPort:     req.Port,
		GameType:    req.GameType,
		MissionType: req.MissionType,
		MinPlayers:  req.MinPlayers,
		MaxPlayers:  req.MaxPlayers,
		MaxBots:     req.MaxBots,
		RegionMask:  req.RegionMask,
		MaxPing:     req.MaxPing,
		MinCPU:      req.MinCPU,
		FilterFlags: req.FilterFlags,
		BuddyList:   req.BuddyList,
	})
	c.JSON(http.StatusOK, gin.H{"status": "querying"})
}

func (s *Server) handleQueryFavorites(c *gin.Context) {
	s.engine.QueryFavorites()
	c.JSON(http.StatusOK, gin.H{"status": "querying"})
}

func (s *Server) handleQuerySingle(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	addr, err := netaddr.Parse(req.Address)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.engine.QuerySingle(addr)
	c.JSON(http.StatusOK, gin.H{"status": "querying"})
}

func (s *Server) handleCancel(c *gin.Context) {
	s.engine.Cancel()
	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

func (s *Server) handleStop(c *gin.Context) {
	s.engine.Stop()
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

func (s *Server) handleStartHeartbeat(c *gin.Context) {
	s.engine.StartHeartbeat()
	c.JSON(http.StatusOK, gin.H{"status": "heartbeat started"})
}

func (s *Server) handleStopHeartbeat(c *gin.Context) {
	s.engine.StopHeartbeat()
	c.JSON(http.StatusOK, gin.H{"status": "heartbeat stopped"})
}

func (s *Server) handleGetFavorites(c *gin.Context) {
	favs, err := s.store.Favorites()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"favorites": favs})
}

func (s *Server) handleAddFavorite(c *gin.Context) {
	var fav store.Favorite
	if err := c.ShouldBindJSON(&fav); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := netaddr.Parse(fav.Address); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.store.AddFavorite(fav); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func (s *Server) handleRemoveFavorite(c *gin.Context) {
	if err := s.store.RemoveFavorite(c.Param("address")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "removed"})
}

func (s *Server) handleHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	entries, err := s.store.History(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}
