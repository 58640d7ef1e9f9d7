// Package server exposes the decision engine over HTTP: decision and
// feedback endpoints, strategy and history views, health and metrics.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/intervene/internal/engine"
	"github.com/danielpatrickdp/intervene/internal/history"
	"github.com/danielpatrickdp/intervene/internal/signals"
	"github.com/danielpatrickdp/intervene/internal/strategy"
	"github.com/danielpatrickdp/intervene/internal/telemetry"
)

// #region server

// Server holds the handler dependencies.
type Server struct {
	engine   *engine.Engine
	catalog  *strategy.Catalog
	store    history.Store
	provider telemetry.Provider
	origins  []string
	metrics  *Metrics
	log      *zap.SugaredLogger
	now      func() time.Time
}

// Options carries the optional server collaborators.
type Options struct {
	// Provider, when set, supplies agent-pushed telemetry merged under
	// the request body.
	Provider telemetry.Provider
	// AllowedOrigins configures CORS; empty means allow all.
	AllowedOrigins []string
	// Now overrides the clock; defaults to time.Now.
	Now func() time.Time
	// Log defaults to a nop logger.
	Log *zap.SugaredLogger
}

// New builds a server around an engine.
func New(eng *engine.Engine, catalog *strategy.Catalog, store history.Store, opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop().Sugar()
	}
	s := &Server{
		engine:   eng,
		catalog:  catalog,
		store:    store,
		provider: opts.Provider,
		origins:  opts.AllowedOrigins,
		metrics:  NewMetrics(),
		log:      opts.Log,
		now:      opts.Now,
	}
	return s
}

// Router assembles the gin engine with middleware and routes.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.metrics.instrument())

	corsCfg := cors.DefaultConfig()
	if len(s.origins) == 0 || (len(s.origins) == 1 && s.origins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = s.origins
	}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Authorization", "Content-Type", "X-Requested-With"}
	router.Use(cors.New(corsCfg))

	router.GET("/healthcheck", s.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		api.POST("/intervention", s.postIntervention)
		api.POST("/feedback", s.postFeedback)
		api.POST("/telemetry", s.postTelemetry)
		api.GET("/strategies", s.getStrategies)
		api.GET("/history/:user_id", s.getHistory)
	}
	return router
}

// #endregion server

// #region health

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.now().UTC()})
}

// #endregion health

// #region intervention

// postIntervention decides whether and how to intervene for the signals
// in the request body. When a telemetry provider is wired, its latest
// blob for the user is used as the base and the body overrides it, so a
// thin request carrying only user_id still gets a full decision.
func (s *Server) postIntervention(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	var raw signals.RawSignals
	if err := json.Unmarshal(body, &raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signal payload"})
		return
	}
	if raw.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if s.provider != nil {
		if blob, err := s.provider.Fetch(c.Request.Context(), raw.UserID); err == nil {
			var merged signals.RawSignals
			if err := json.Unmarshal(blob, &merged); err == nil {
				// Body fields win over the stored blob.
				if err := json.Unmarshal(body, &merged); err == nil {
					raw = merged
				}
			}
		} else if !errors.Is(err, telemetry.ErrNoTelemetry) {
			s.log.Warnw("telemetry fetch failed, using body only",
				"user", raw.UserID, "error", err)
		}
	}

	ctx := signals.Normalize(raw, s.now())
	res, err := s.engine.Decide(ctx)
	if err != nil {
		s.log.Errorw("decision failed", "user", raw.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "decision failed"})
		return
	}

	if res.Delivered {
		s.metrics.DecisionsTotal.WithLabelValues("delivered", "").Inc()
		s.metrics.DeliveriesTotal.WithLabelValues(res.Strategy).Inc()
	} else {
		s.metrics.DecisionsTotal.WithLabelValues("deferred", string(res.Reason)).Inc()
	}
	c.JSON(http.StatusOK, res)
}

// #endregion intervention

// #region telemetry-ingest

// postTelemetry stores an agent-pushed signal payload so later thin
// decision requests can pick it up. 503 when no writable telemetry
// backend is configured.
func (s *Server) postTelemetry(c *gin.Context) {
	publisher, ok := s.provider.(telemetry.Publisher)
	if s.provider == nil || !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "telemetry ingestion not configured"})
		return
	}

	var raw signals.RawSignals
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signal payload"})
		return
	}
	if raw.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if err := publisher.Publish(c.Request.Context(), raw.UserID, raw); err != nil {
		s.log.Errorw("telemetry publish failed", "user", raw.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "telemetry publish failed"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"user_id": raw.UserID})
}

// #endregion telemetry-ingest

// #region feedback

type feedbackRequest struct {
	RecordID        string  `json:"record_id" binding:"required"`
	Effectiveness   float64 `json:"effectiveness"`
	Satisfaction    float64 `json:"satisfaction"`
	Completed       bool    `json:"completed"`
	DismissalReason string  `json:"dismissal_reason"`
}

// postFeedback attaches an outcome to a delivered intervention. Unknown
// record ids map to 404; a record referencing a strategy no longer in
// the catalog maps to 422.
func (s *Server) postFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "record_id is required"})
		return
	}

	res, err := s.engine.Feedback(req.RecordID, history.Outcome{
		Effectiveness:   req.Effectiveness,
		Satisfaction:    req.Satisfaction,
		Completed:       req.Completed,
		DismissalReason: req.DismissalReason,
	})
	if err != nil {
		var nf *strategy.NotFoundError
		switch {
		case errors.Is(err, history.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		case errors.As(err, &nf):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		default:
			s.log.Errorw("feedback failed", "record", req.RecordID, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "feedback failed"})
		}
		return
	}

	s.metrics.FeedbackTotal.WithLabelValues(res.Strategy).Inc()
	s.metrics.StrategyWeight.WithLabelValues(res.Strategy).Set(res.UpdatedWeight)
	c.JSON(http.StatusOK, res)
}

// #endregion feedback

// #region strategies

type strategyView struct {
	Name              string  `json:"name"`
	Category          string  `json:"category"`
	Weight            float64 `json:"weight"`
	BaseEffectiveness float64 `json:"base_effectiveness"`
	CognitiveCost     float64 `json:"cognitive_cost"`
	CooldownSeconds   int     `json:"cooldown_seconds"`
	Alpha             float64 `json:"alpha"`
}

func (s *Server) getStrategies(c *gin.Context) {
	all := s.catalog.All()
	views := make([]strategyView, 0, len(all))
	for _, st := range all {
		views = append(views, strategyView{
			Name:              st.Name,
			Category:          string(st.Category),
			Weight:            st.Weight,
			BaseEffectiveness: st.BaseEffectiveness,
			CognitiveCost:     st.CognitiveCost,
			CooldownSeconds:   int(st.Cooldown.Seconds()),
			Alpha:             st.Alpha,
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": views})
}

// #endregion strategies

// #region history

const defaultHistoryLimit = 20

func (s *Server) getHistory(c *gin.Context) {
	userID := c.Param("user_id")
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.store.Recent(userID, limit)
	if err != nil {
		s.log.Errorw("history query failed", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	if records == nil {
		records = []history.InterventionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "records": records})
}

// #endregion history
