package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/clock"
	"github.com/philtim/timearchitect/geonames"
	"github.com/philtim/timearchitect/session"
)

// DefaultSnoozeMinutes is used when a snooze request names no duration
const DefaultSnoozeMinutes = 10

type zoneRequest struct {
	Zone string `json:"zone" binding:"required"`
}

type alarmRequest struct {
	Time string `json:"time"`
}

type snoozeRequest struct {
	Minutes int `json:"minutes" binding:"omitempty,min=1,max=1439"`
}

type keyRequest struct {
	Key string `json:"key" binding:"required"`
}

type preferencesRequest struct {
	Sound   string   `json:"sound"`
	Volume  *float64 `json:"volume"`
	StopKey string   `json:"stop_key"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"zone":   s.session.Active().Code,
		"alarm":  s.session.Alarm().State,
	})
}

func (s *Server) handleZones(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Dashboard("", s.session.Now()))
}

// handleTime serves /api/time/<zone>. Unknown or missing zones resolve to
// the default zone.
func (s *Server) handleTime(c *gin.Context) {
	now := s.session.Now()
	z := s.session.Registry().Resolve(c.Param("zone"))
	view := session.View(z, now)
	view.Delta = clock.FormatDelta(clock.Delta(clock.Local(), z, now))
	c.JSON(http.StatusOK, view)
}

func (s *Server) handleDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Dashboard(c.Query("from"), s.session.Now()))
}

func (s *Server) handleDelta(c *gin.Context) {
	reg := s.session.Registry()
	from, to := reg.Resolve(c.Query("from")), reg.Resolve(c.Query("to"))
	d := clock.Delta(from, to, s.session.Now())
	c.JSON(http.StatusOK, gin.H{
		"from":    from.Code,
		"to":      to.Code,
		"delta":   clock.FormatDelta(d),
		"minutes": int(d.Minutes()),
	})
}

func (s *Server) handleGetZone(c *gin.Context) {
	c.JSON(http.StatusOK, session.View(s.session.Active(), s.session.Now()))
}

func (s *Server) handleSelectZone(c *gin.Context) {
	var req zoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, true)
		return
	}
	z, err := s.session.SelectZone(req.Zone)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, ErrMsgInternalError, err)
		return
	}
	c.JSON(http.StatusOK, session.View(z, s.session.Now()))
}

func (s *Server) handleGetAlarm(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Alarm())
}

func (s *Server) handleSetAlarm(c *gin.Context) {
	var req alarmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	r, err := s.session.SetAlarm(req.Time)
	if err != nil {
		respondAlarmError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleCancelAlarm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"cancelled": s.session.CancelAlarm()})
}

func (s *Server) handleStopAlarm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stopped": s.session.StopAlarm()})
}

func (s *Server) handleSnooze(c *gin.Context) {
	req := snoozeRequest{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err, true)
			return
		}
	}
	if req.Minutes == 0 {
		req.Minutes = DefaultSnoozeMinutes
	}
	r, err := s.session.Snooze(req.Minutes)
	if err != nil {
		respondAlarmError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handlePreview(c *gin.Context) {
	d, err := s.session.Preview()
	if err != nil {
		respondAlarmError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duration_ms": d.Milliseconds()})
}

func (s *Server) handleKey(c *gin.Context) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, true)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stopped": s.session.KeyPressed(req.Key)})
}

func (s *Server) handleGetPreferences(c *gin.Context) {
	c.JSON(http.StatusOK, s.session.Preferences())
}

// handleSavePreferences merges the fields present in the body into the
// current settings.
func (s *Server) handleSavePreferences(c *gin.Context) {
	var req preferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err, false)
		return
	}
	p := s.session.Preferences()
	if req.Sound != "" {
		p.Sound = req.Sound
	}
	if req.Volume != nil {
		p.Volume = *req.Volume
	}
	if req.StopKey != "" {
		p.StopKey = alarm.NormalizeKey(req.StopKey)
	}
	saved, err := s.session.SavePreferences(p)
	if err != nil {
		respondWithError(c, http.StatusInternalServerError, ErrMsgInternalError, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (s *Server) handleCities(c *gin.Context) {
	if s.cities == nil || !s.cities.IsReady() {
		respondServiceUnavailable(c, "City database")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	now := s.session.Now()
	type result struct {
		geonames.City
		Code string `json:"code"`
	}
	out := []result{}
	for _, city := range s.cities.Search(c.Query("q"), limit) {
		out = append(out, result{City: city, Code: geonames.SuggestCode(city, now)})
	}
	c.JSON(http.StatusOK, out)
}
