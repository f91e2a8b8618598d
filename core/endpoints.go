package core

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	m "github.com/kiprutobrian/MSGARCH/models"
)

func GetHttpServer(sc ServiceContext) *http.Server {
	if sc.Config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.Default()

	engine.Use(cors.New(cors.Config{
		AllowOrigins:     sc.Config.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.GET("/api/ping", func(c *gin.Context) { ping(c, sc) })
	engine.POST("/api/risk", func(c *gin.Context) { computeRisk(c, sc) })
	engine.GET("/api/risk/runs", func(c *gin.Context) { recentRiskRuns(c, sc) })

	server := &http.Server{
		Addr:           sc.Config.Server.Addr,
		Handler:        engine,
		ReadTimeout:    sc.Config.Server.ReadTimeout,
		WriteTimeout:   sc.Config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	return server
}

func ping(c *gin.Context, sc ServiceContext) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func computeRisk(c *gin.Context, sc ServiceContext) {
	var settings m.RiskRequestSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := sc.RunRiskMeasure(settings)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrConfiguration) || errors.Is(err, ErrData) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, res)
}

func recentRiskRuns(c *gin.Context, sc ServiceContext) {
	if sc.PostgresConnection == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "run history persistence is not configured"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	runs, err := sc.PostgresConnection.GetRecentRiskRuns(sc.Context, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, runs)
}
