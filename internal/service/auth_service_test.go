// file: internal/service/auth_service_test.go
package service

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"GWExplorer/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserLifecycle(t *testing.T) {
	db := createUserDB(t)

	assert.Equal(t, 0, UserCount(db))

	require.NoError(t, CreateUser(db, "alice", "s3cret", "admin"))
	require.NoError(t, CreateUser(db, "bob", "hunter2", ""))
	assert.Equal(t, 2, UserCount(db))

	// 角色缺省为 member
	_, role, ok := CheckUser(db, "bob", "hunter2")
	require.True(t, ok)
	assert.Equal(t, "member", role)

	// 错误密码与不存在的用户
	_, _, ok = CheckUser(db, "alice", "wrong")
	assert.False(t, ok)
	_, _, ok = CheckUser(db, "carol", "whatever")
	assert.False(t, ok)

	// 重复用户名
	assert.Error(t, CreateUser(db, "alice", "again", "member"))
	// 空用户名/密码
	assert.Error(t, CreateUser(db, "", "x", ""))
	assert.Error(t, CreateUser(db, "x", "", ""))

	id, role, ok := CheckUser(db, "alice", "s3cret")
	require.True(t, ok)
	assert.Equal(t, "admin", role)

	username, role, ok := GetUserById(db, id)
	require.True(t, ok)
	assert.Equal(t, "alice", username)
	assert.Equal(t, "admin", role)

	_, _, ok = GetUserById(db, 9999)
	assert.False(t, ok)
}

func TestLoginLockout(t *testing.T) {
	const user = "lockout-case"
	t.Cleanup(func() { ClearLoginFailures(user) })

	assert.False(t, LoginLocked(user))

	for i := 0; i < 4; i++ {
		RecordLoginFailure(user)
		assert.False(t, LoginLocked(user), "第 %d 次失败尚不应锁定", i+1)
	}
	RecordLoginFailure(user)
	assert.True(t, LoginLocked(user), "第 5 次失败后应锁定")

	ClearLoginFailures(user)
	assert.False(t, LoginLocked(user), "清除记录后应解锁")
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := GenToken(42, "member")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.ID)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, "GWExplorer", claims.Issuer)
}

func TestParseToken_Invalid(t *testing.T) {
	_, err := ParseToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = ParseToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticatorMiddleware(t *testing.T) {
	db := createUserDB(t)
	require.NoError(t, CreateUser(db, "alice", "s3cret", "admin"))
	id, _, ok := CheckUser(db, "alice", "s3cret")
	require.True(t, ok)

	auth := NewAuthenticator(db)

	var captured *domain.Identity
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = IdentityFrom(r)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("有效令牌注入身份", func(t *testing.T) {
		token, err := GenToken(id, "admin")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/3/action/show_dsl_metadata", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		require.NotNil(t, captured)
		assert.Equal(t, id, captured.UserID)
		assert.Equal(t, "alice", captured.Username)
		assert.Equal(t, "admin", captured.Role)
	})

	t.Run("无令牌按匿名放行", func(t *testing.T) {
		captured = nil
		req := httptest.NewRequest(http.MethodGet, "/api/3/action/show_dsl_metadata", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, captured)
	})

	t.Run("无效令牌按匿名放行", func(t *testing.T) {
		captured = nil
		req := httptest.NewRequest(http.MethodGet, "/api/3/action/show_dsl_metadata", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, captured)
	})

	t.Run("令牌对应用户不存在按匿名放行", func(t *testing.T) {
		captured = nil
		token, err := GenToken(424242, "admin")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/3/action/show_dsl_metadata", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Nil(t, captured)
	})
}
