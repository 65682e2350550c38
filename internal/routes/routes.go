package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/FACorreiaa/loci-discovery/internal/app/domain/affinity"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/catalog"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/favorites"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/feed"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/interaction"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/itinerary"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/recommend"
	"github.com/FACorreiaa/loci-discovery/internal/app/domain/trending"
	"github.com/FACorreiaa/loci-discovery/internal/app/services/distance"
	"github.com/FACorreiaa/loci-discovery/internal/pkg/config"
)

type AppHandlers struct {
	Feed        *feed.Handler
	Trending    *trending.Handler
	Interaction *interaction.Handler
	Affinity    *affinity.Handler
	Itinerary   *itinerary.Handler
}

func Setup(r *gin.Engine, dbPool *pgxpool.Pool, redisClient *redis.Client, cfg *config.Config, log *zap.Logger) {
	handlers := setupDependencies(dbPool, redisClient, cfg, log)
	setupRouter(r, handlers, log)
}

func setupDependencies(dbPool *pgxpool.Pool, redisClient *redis.Client, cfg *config.Config, log *zap.Logger) *AppHandlers {
	// Repositories
	interactionRepo := interaction.NewRepositoryImpl(dbPool, log)
	favoritesRepo := favorites.NewRepositoryImpl(dbPool, log)
	catalogRepo := catalog.NewRepositoryImpl(dbPool, log)
	trendingRepo := trending.NewRepositoryImpl(dbPool, redisClient, log)

	// Services
	affinityCalc := affinity.NewCalculatorImpl(interactionRepo, log)
	recommendSvc := recommend.NewServiceImpl(affinityCalc, favoritesRepo, interactionRepo, log)
	trendingSvc := trending.NewServiceImpl(trendingRepo, log)
	feedSvc := feed.NewServiceImpl(recommendSvc, trendingSvc, favoritesRepo, trendingRepo, interactionRepo, log)

	distanceClient := distance.NewClient(cfg.Distance, log)
	optimizer := itinerary.NewOptimizerImpl(distanceClient, cfg.Distance.DefaultMode, log)

	return &AppHandlers{
		Feed:        feed.NewHandler(feedSvc, catalogRepo, log),
		Trending:    trending.NewHandler(trendingSvc, catalogRepo, log),
		Interaction: interaction.NewHandler(interactionRepo, trendingSvc, log),
		Affinity:    affinity.NewHandler(affinityCalc, log),
		Itinerary:   itinerary.NewHandler(optimizer, catalogRepo, favoritesRepo, log),
	}
}

func setupRouter(r *gin.Engine, h *AppHandlers, log *zap.Logger) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/feed", h.Feed.GetFeed)
		v1.GET("/trending", h.Trending.GetTrending)
		v1.POST("/destinations/:slug/events", h.Trending.RecordDestinationEvent)
		v1.POST("/interactions", h.Interaction.RecordInteraction)
		v1.GET("/affinity", h.Affinity.GetAffinity)
		v1.POST("/itinerary/optimize", h.Itinerary.OptimizeRoute)
	}

	r.NoRoute(func(c *gin.Context) {
		log.Info("404 - Route not found",
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})
}
