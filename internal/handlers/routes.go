package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadyFunc reports whether a dependency is reachable.
type ReadyFunc func(ctx context.Context) bool

func RegisterRoutes(r *gin.Engine, quizzes *QuizHandler, users *UserHandler, auth *Auth) {
	api := r.Group("/api")

	q := api.Group("/quizzes")
	{
		q.GET("/count", quizzes.CountQuizzes)
		q.GET("/all", quizzes.ListQuizzes)
		q.GET("/popular", quizzes.PopularQuizzes)
		q.GET("/user/:authorId", quizzes.AuthorQuizzes)
		q.GET("/:id", quizzes.GetQuiz)

		protected := q.Group("", auth.RequireAuth())
		protected.POST("/userQuizzes", quizzes.MyQuizzes)
		protected.POST("", quizzes.CreateQuiz)
		protected.PUT("/:id", quizzes.UpdateQuiz)
		protected.DELETE("/:id", quizzes.DeleteQuiz)
		protected.POST("/:id/favorites", quizzes.UpdateFavorites)
		protected.POST("/:id/questions", quizzes.AddQuestion)
		protected.POST("/:id/attempts", quizzes.SubmitAnswer)
	}

	u := api.Group("/users")
	{
		u.GET("", users.ListUsers)
		u.GET("/count", users.CountUsers)
		u.GET("/:id", users.GetUser)
		u.POST("", users.Register)

		protected := u.Group("", auth.RequireAuth())
		protected.PUT("/:id", users.UpdateUser)
		protected.DELETE("/:id", users.DeleteUser)
	}

	api.POST("/auth/login", users.Login)
}

// RegisterOps adds the health and metrics endpoints.
func RegisterOps(r *gin.Engine, service string, ready ReadyFunc) {
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		if ready != nil && !ready(ctx) {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"service":   service,
			"timestamp": time.Now(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
