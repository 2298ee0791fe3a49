package router

import (
	"net/http"

	"CommunityHub/internal/handler"
	"CommunityHub/internal/middleware"
	"CommunityHub/internal/pkg"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps 路由需要的全部 handler 与中间件，由 cmd 组装
type Deps struct {
	Log        *zap.Logger
	Metrics    *pkg.Metrics
	Gatherer   prometheus.Gatherer
	Auth       *middleware.Auth
	User       *handler.UserHandler
	Community  *handler.CommunityHandler
	Membership *handler.MembershipHandler
	Webhook    *handler.WebhookHandler
	Post       *handler.PostHandler
	PostLike   *handler.PostLikeHandler
	Comment    *handler.CommentHandler
	Journal    *handler.JournalHandler
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.Logger(d.Log))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	auth := d.Auth.Required()

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", d.User.Register)
		userGroup.POST("/login", d.User.Login)
		userGroup.POST("/logout", auth, d.User.Logout)
		userGroup.GET("/profile", auth, d.User.Profile)
		userGroup.PUT("/profile", auth, d.User.UpdateProfile)
		userGroup.POST("/change-password", auth, d.User.ChangePassword)
	}

	// token相关接口
	r.POST("/api/token/refresh", d.User.TokenRefresh)

	// 社区相关接口
	r.GET("/api/community/list", d.Community.List)
	r.GET("/api/community/:id", d.Community.Get)
	communityGroup := r.Group("/api/community", auth)
	{
		communityGroup.POST("/create", d.Community.Create)
		communityGroup.GET("/joined", d.Community.Joined)
		communityGroup.GET("/:id/members", d.Community.Members)
		communityGroup.GET("/:id/leaderboard", d.Community.Leaderboard)
		communityGroup.POST("/:id/join", d.Community.Join)
		communityGroup.POST("/:id/leave", d.Community.Leave)
	}

	// 付费会员
	membershipGroup := r.Group("/api/membership", auth)
	{
		membershipGroup.POST("/checkout", d.Membership.Checkout)
		membershipGroup.POST("/confirm", d.Membership.Confirm)
		membershipGroup.GET("/:community_id", d.Membership.State)
	}

	// 支付回调，不走登录态，靠签名校验
	r.POST("/api/webhooks/stripe", d.Webhook.Stripe)

	// 帖子相关接口
	postGroup := r.Group("/api/post", auth)
	{
		postGroup.POST("/create", d.Post.CreatePost)
		postGroup.GET("/:id", d.Post.GetPost)
		postGroup.DELETE("/:id", d.Post.DeletePost)
		postGroup.POST("/:id/pin", d.Post.Pin)
		postGroup.GET("/list/:id", d.Post.ListByCommunity)

		postGroup.POST("/:id/like", d.PostLike.Like)
		postGroup.DELETE("/:id/like", d.PostLike.Unlike)
		postGroup.GET("/:id/liked", d.PostLike.IsLiked)
		postGroup.GET("/:id/likes", d.PostLike.Count)

		postGroup.POST("/:id/comments", d.Comment.Create)
		postGroup.GET("/:id/comments", d.Comment.List)
	}
	r.DELETE("/api/comment/:id", auth, d.Comment.Delete)

	// 个人日记，只对本人可见
	journalGroup := r.Group("/api/journal", auth)
	{
		journalGroup.POST("", d.Journal.Create)
		journalGroup.GET("", d.Journal.List)
		journalGroup.DELETE("/:id", d.Journal.Delete)
	}

	return r
}
