// file: internal/transport/http/router/router.go
package router

import (
	"GWExplorer/internal/core/domain"
	"GWExplorer/internal/core/port"
	"GWExplorer/internal/observe"
	"GWExplorer/internal/service"
	"GWExplorer/internal/transport/http/middleware"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Catalog     port.Catalog
	Datastore   port.Datastore
	DSL         *service.DSLService
	AuthDB      *sql.DB
	RateLimiter *middleware.IPRateLimiter

	// SetupToken 是用户表为空时 main 生成的一次性安装令牌，
	// 仅用于创建首个管理员；过了 SetupTokenDeadline 即失效。
	SetupToken         string
	SetupTokenDeadline time.Time
}

// New 创建并配置基于 Gin 的 HTTP 路由器。
// 两个 DSL 动作按宿主平台的动作 API 风格挂载在 /api/3/action 下。
func New(deps Dependencies) http.Handler {
	middleware.RegisterWireTagNames()

	router := gin.Default()

	// --- 配置全局中间件 ---
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(observe.PrometheusMiddleware())
	router.Use(middleware.ErrorHandlingMiddleware())

	authService := service.NewAuthenticator(deps.AuthDB)

	// --- 系统平面 ---
	router.GET("/healthz", healthHandler(deps.Datastore))
	router.GET("/metrics", gin.WrapH(observe.Handler()))

	action := router.Group("/api/3/action")
	action.Use(authMiddleware(authService))
	if deps.RateLimiter != nil {
		action.Use(wrapHTTPMiddleware(deps.RateLimiter.Middleware))
	}
	{
		// --- DSL 动作（本扩展注册的两个远程可调用动作） ---
		action.GET("/show_dsl_metadata", showDSLMetadataHandler(deps))
		action.POST("/show_dsl_metadata", showDSLMetadataHandler(deps))
		action.POST("/dsl_query_data", dslQueryDataHandler(deps))

		// --- 视图能力 ---
		action.GET("/gwexplorer_can_view", canViewHandler(deps.Catalog))
		action.POST("/gwexplorer_can_view", canViewHandler(deps.Catalog))
		action.GET("/gwexplorer_view_info", viewInfoHandler())

		// --- 令牌签发与初始化 ---
		action.POST("/token_create", tokenCreateHandler(deps.AuthDB))
		action.POST("/setup_admin", setupAdminHandler(deps))
	}

	return router
}

// =============================================================================
//  Gin 中间件 (Middleware)
// =============================================================================

// authMiddleware 是一个将 service.Authenticator 集成到 gin 流程的中间件
func authMiddleware(auth *service.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		}))
		handler.ServeHTTP(c.Writer, c.Request)
		if c.Writer.Written() {
			c.Abort()
		}
	}
}

// wrapHTTPMiddleware 将标准库风格的中间件适配到 gin 流程
func wrapHTTPMiddleware(mw func(http.Handler) http.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			c.Next()
		}))
		handler.ServeHTTP(c.Writer, c.Request)
		if c.IsAborted() {
			return
		}
		if c.Writer.Written() {
			c.Abort()
		}
	}
}

// =============================================================================
//  DSL 动作处理器
// =============================================================================

// sortFlag 是同时接受布尔与字符串两种写法的排序开关。
// 只有布尔 true 或字符串 "true"（不区分大小写）视为开启。
type sortFlag bool

func (s *sortFlag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*s = sortFlag(b)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("sort 取值必须是布尔或字符串: %w", err)
	}
	*s = sortFlag(strings.EqualFold(str, "true"))
	return nil
}

// UnmarshalParam 支持查询串绑定 (?sort=true)。
func (s *sortFlag) UnmarshalParam(param string) error {
	*s = sortFlag(strings.EqualFold(param, "true"))
	return nil
}

// actionRequest 是两个 DSL 动作共享的请求载荷。
// GET 调用从查询串取参，POST 调用从 JSON 体取参。
type actionRequest struct {
	ResourceID string          `form:"resourceID" json:"resourceID"`
	Sort       sortFlag        `form:"sort" json:"sort"`
	Payload    *domain.Payload `json:"payload"`
}

// bindActionRequest 按请求方法绑定动作参数；空请求体不算错误。
func bindActionRequest(c *gin.Context) (*actionRequest, bool) {
	var req actionRequest
	if c.Request.Method == http.MethodGet {
		if err := c.ShouldBindQuery(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的查询参数: " + err.Error()})
			return nil, false
		}
		return &req, true
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
			return nil, false
		}
	}
	return &req, true
}

// showDSLMetadataHandler 处理 show_dsl_metadata 动作。
func showDSLMetadataHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		observe.TotalReq.Inc()

		req, ok := bindActionRequest(c)
		if !ok {
			observe.FailReq.Inc()
			return
		}
		if req.ResourceID == "" {
			observe.FailReq.Inc()
			c.JSON(http.StatusBadRequest, domain.MissingField("resourceID", ""))
			return
		}

		identity := service.IdentityFrom(c.Request)
		if err := deps.Catalog.CheckAccess(c.Request.Context(), identity, req.ResourceID); err != nil {
			observe.FailReq.Inc()
			_ = c.Error(err)
			c.Abort()
			return
		}

		envelope := deps.DSL.ShowMetadata(c.Request.Context(), req.ResourceID, bool(req.Sort))
		if !envelope.Success {
			observe.FailReq.Inc()
		}
		c.JSON(http.StatusOK, envelope)
	}
}

// dslQueryDataHandler 处理 dsl_query_data 动作。
func dslQueryDataHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		observe.TotalReq.Inc()

		req, ok := bindActionRequest(c)
		if !ok {
			observe.FailReq.Inc()
			return
		}
		if req.ResourceID == "" {
			observe.FailReq.Inc()
			c.JSON(http.StatusBadRequest, domain.MissingField("resourceID", ""))
			return
		}

		identity := service.IdentityFrom(c.Request)
		if err := deps.Catalog.CheckAccess(c.Request.Context(), identity, req.ResourceID); err != nil {
			observe.FailReq.Inc()
			_ = c.Error(err)
			c.Abort()
			return
		}

		if isEmptyPayload(req.Payload) {
			observe.FailReq.Inc()
			c.JSON(http.StatusBadRequest, domain.MissingField("payload", "payload field required"))
			return
		}

		envelope := deps.DSL.QueryData(c.Request.Context(), req.ResourceID, req.Payload)
		if !envelope.Success {
			observe.FailReq.Inc()
		}
		c.JSON(http.StatusOK, envelope)
	}
}

// isEmptyPayload 判断负载是否缺失（nil 或完全为空的对象）。
func isEmptyPayload(p *domain.Payload) bool {
	if p == nil {
		return true
	}
	return len(p.Workflow) == 0 && p.Limit == 0 && p.Offset == 0
}

// =============================================================================
//  视图能力处理器
// =============================================================================

// canViewHandler 返回资源能否由本扩展渲染的判定结果。
func canViewHandler(cat port.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindActionRequest(c)
		if !ok {
			return
		}
		if req.ResourceID == "" {
			c.JSON(http.StatusBadRequest, domain.MissingField("resourceID", ""))
			return
		}

		res, err := cat.ResourceShow(c.Request.Context(), req.ResourceID)
		if err != nil {
			_ = c.Error(err)
			c.Abort()
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"resource_id": req.ResourceID,
			"can_view":    service.CanView(res),
		})
	}
}

// viewInfoHandler 返回视图能力描述符。
func viewInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, service.Info())
	}
}

// =============================================================================
//  系统与认证处理器
// =============================================================================

// healthHandler 透传数据存储的健康状况。
func healthHandler(ds port.Datastore) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ds.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "datastore": ds.Type()})
	}
}

// tokenCreateHandler 用用户名密码换取 API 令牌。
func tokenCreateHandler(db *sql.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			User string `form:"user" json:"user" binding:"required"`
			Pass string `form:"pass" json:"pass" binding:"required"`
		}
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "用户名或密码不能为空"})
			return
		}
		if service.LoginLocked(req.User) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "失败次数过多，账户已临时锁定"})
			return
		}
		id, role, ok := service.CheckUser(db, req.User, req.Pass)
		if !ok {
			service.RecordLoginFailure(req.User)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码无效"})
			return
		}
		service.ClearLoginFailures(req.User)
		token, err := service.GenToken(id, role)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "生成令牌失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user": gin.H{"id": id, "username": req.User, "role": role}})
	}
}

// setupAdminHandler 用一次性安装令牌创建首个管理员账户。
// 用户表非空后此入口永久关闭。
func setupAdminHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Token string `form:"token" json:"token" binding:"required"`
			User  string `form:"user" json:"user" binding:"required"`
			Pass  string `form:"pass" json:"pass" binding:"required"`
		}
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token、用户名与密码均不能为空"})
			return
		}
		if service.UserCount(deps.AuthDB) > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "系统已初始化，安装入口已关闭"})
			return
		}
		if deps.SetupToken == "" || req.Token != deps.SetupToken || time.Now().After(deps.SetupTokenDeadline) {
			c.JSON(http.StatusForbidden, gin.H{"error": "安装令牌无效或已过期"})
			return
		}
		if err := service.CreateUser(deps.AuthDB, req.User, req.Pass, "admin"); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "创建管理员失败"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"created": req.User, "role": "admin"})
	}
}
