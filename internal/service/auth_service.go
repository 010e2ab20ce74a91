// Package service — API 用户表 + API 令牌 (JWT) 鉴权 + Middleware
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"GWExplorer/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

/* ---------- 配置 ---------- */

var hmacKey = []byte("GWExplorerSecret_datopian")

func init() {
	// 允许通过环境变量覆盖 JWT 密钥
	envKey := os.Getenv("EXPLORER_JWT_KEY")
	if envKey != "" {
		hmacKey = []byte(envKey)
		log.Println("信息: service 使用环境变量 EXPLORER_JWT_KEY 设置的JWT密钥。")
	} else {
		log.Println("警告: service 未找到环境变量 EXPLORER_JWT_KEY，将使用默认JWT密钥。强烈建议设置环境变量以增强安全性！")
	}
}

/* ---------- DB schema and operations ---------- */

// InitUserTable 初始化 API 用户表 (如果不存在)
func InitUserTable(db *sql.DB) error {
	_, err := db.Exec(`
       CREATE TABLE IF NOT EXISTS api_user(
          id INTEGER PRIMARY KEY AUTOINCREMENT,
          username TEXT UNIQUE NOT NULL,
          password_hash TEXT NOT NULL,
          role TEXT NOT NULL
       );
    `)
	if err != nil {
		return fmt.Errorf("创建 api_user 表失败: %w", err)
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_api_user_username ON api_user (username);`)
	if err != nil {
		log.Printf("警告: 为 api_user 表创建 username 索引失败 (可能已存在): %v", err)
	}
	return nil
}

// UserCount 返回用户表中的用户数量
func UserCount(db *sql.DB) int {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM api_user`).Scan(&n)
	if err != nil {
		log.Printf("错误: UserCount 查询失败: %v", err)
		return 0
	}
	return n
}

// CreateUser 创建一个指定角色的 API 用户
func CreateUser(db *sql.DB, user, pass, role string) error {
	if user == "" || pass == "" {
		return errors.New("用户名或密码不能为空")
	}
	if role == "" {
		role = "member"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("生成密码哈希失败: %w", err)
	}
	_, err = db.Exec(`
       INSERT INTO api_user(username, password_hash, role)
       VALUES (?, ?, ?)`, user, string(hash), role)
	if err != nil {
		return fmt.Errorf("插入用户 '%s' 失败: %w", user, err)
	}
	return nil
}

// CheckUser 校验用户名和密码，成功则返回用户 ID、角色和 true
func CheckUser(db *sql.DB, user, pass string) (id int64, role string, ok bool) {
	var hash string
	err := db.QueryRow(`SELECT id, password_hash, role FROM api_user WHERE username = ?`, user).
		Scan(&id, &hash, &role)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("错误: CheckUser 查询用户 '%s' 时失败: %v", user, err)
		}
		return 0, "", false
	}
	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(pass))
	return id, role, err == nil
}

// GetUserById 检索给定用户ID的用户名和角色
func GetUserById(db *sql.DB, id int64) (username string, role string, ok bool) {
	err := db.QueryRow(`SELECT username, role FROM api_user WHERE id = ?`, id).
		Scan(&username, &role)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("错误: GetUserById 查询用户 ID %d 时失败: %v", id, err)
		}
		return "", "", false
	}
	return username, role, true
}

/* ---------- 登录失败锁定 ---------- */

const maxLoginFailures = 5

// loginFailures 记录每个用户名最近的连续失败次数，15 分钟自动过期
var loginFailures = cache.New(15*time.Minute, 5*time.Minute)

// LoginLocked 判断用户名是否因连续失败过多被临时锁定。
func LoginLocked(user string) bool {
	if n, found := loginFailures.Get(user); found {
		if count, ok := n.(int); ok {
			return count >= maxLoginFailures
		}
	}
	return false
}

// RecordLoginFailure 累加一次登录失败。
func RecordLoginFailure(user string) {
	count := 0
	if n, found := loginFailures.Get(user); found {
		if c, ok := n.(int); ok {
			count = c
		}
	}
	loginFailures.Set(user, count+1, cache.DefaultExpiration)
}

// ClearLoginFailures 在成功登录后清除失败记录。
func ClearLoginFailures(user string) {
	loginFailures.Delete(user)
}

/* ---------- API 令牌 (JWT) ---------- */

// Claim 定义 API 令牌的载荷结构
type Claim struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenToken 生成一个新的 API 令牌 (有效期24小时)
func GenToken(uid int64, role string) (string, error) {
	claims := Claim{
		ID:   uid,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "GWExplorer",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(hmacKey)
	if err != nil {
		return "", fmt.Errorf("签名 API 令牌失败: %w", err)
	}
	return signedToken, nil
}

// ErrInvalidToken 表示 API 令牌无效、过期或解析失败。
var ErrInvalidToken = errors.New("invalid or expired token")

// ParseToken 解析并验证 API 令牌字符串
func ParseToken(tokenString string) (*Claim, error) {
	claims := &Claim{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return hmacKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w (detail: %v)", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

/* ---------- Context Helpers ---------- */

type ctxKey int

const identityKey ctxKey = 0

func contextWithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom 从请求上下文中取出已认证身份；匿名请求返回 nil。
func IdentityFrom(r *http.Request) *domain.Identity {
	val := r.Context().Value(identityKey)
	if val == nil {
		return nil
	}
	identity, ok := val.(*domain.Identity)
	if !ok {
		log.Printf("警告: context 中 identityKey 的值类型不是 *domain.Identity: %T", val)
		return nil
	}
	return identity
}

/* ---------- 中间件 (Middleware) ---------- */

// Authenticator 结构体，用于持有用户表所在的数据库连接
type Authenticator struct {
	DB *sql.DB
}

// NewAuthenticator 创建 Authenticator 实例
func NewAuthenticator(db *sql.DB) *Authenticator {
	if db == nil {
		log.Fatal("严重错误: NewAuthenticator 接收到空的数据库连接！")
	}
	return &Authenticator{DB: db}
}

// Middleware 是一个 API 令牌认证中间件。
// 令牌缺失或无效不拦截请求，只是以匿名身份继续；
// 是否放行由后续的 resource_show 授权检查决定。
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString != "" {
				claims, err := ParseToken(tokenString)

				if err == nil && claims != nil {
					username, role, userExists := GetUserById(a.DB, claims.ID)
					if userExists {
						identity := &domain.Identity{UserID: claims.ID, Username: username, Role: role}
						r = r.WithContext(contextWithIdentity(r.Context(), identity))
					} else {
						slog.Warn("令牌对应的用户在数据库中未找到，按匿名处理",
							"user_id", claims.ID, "path", r.URL.Path, "ip", r.RemoteAddr)
					}
				} else {
					slog.Warn("API 令牌无效或解析错误，按匿名处理",
						"path", r.URL.Path, "ip", r.RemoteAddr, "error", err)
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
