package libapi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

func encodedUserObj() string {
	return url.QueryEscape(`{"id": 12345, "name": "测试用户"}`)
}

func encodedUser(expire string) string {
	return url.QueryEscape(fmt.Sprintf(`{"access_token": "tok-abc", "expire": "%s", "userid": 12345}`, expire))
}

func newAuthServer(t *testing.T, profileStatus int, profileMsg string) (*Client, *httptest.Server) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api.php/profile", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "tok-abc", r.PostForm.Get("access_token"))
		fmt.Fprintf(w, `{"status": %d, "msg": %q, "data": null}`, profileStatus, profileMsg)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(zap.NewNop(), WithBaseURL(srv.URL)), srv
}

func TestLoginRestoresSession(t *testing.T) {
	c, _ := newAuthServer(t, 1, "")
	auth := NewAuth(c, "202400001", WeChatSession{
		UserObj: encodedUserObj(),
		User:    encodedUser("2026-09-01 20:00:00"),
	}, zap.NewNop())

	state, err := auth.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", state.AccessToken)
	assert.Equal(t, "202400001", state.UserID, "configured userid wins over the cookie one")
	assert.Equal(t, "测试用户", state.Name)
	want := time.Date(2026, 9, 1, 20, 0, 0, 0, time.Local)
	assert.True(t, state.ExpiresAt.Equal(want))
}

func TestLoginFallsBackToCookieUserID(t *testing.T) {
	c, _ := newAuthServer(t, 1, "")
	auth := NewAuth(c, "", WeChatSession{
		UserObj: encodedUserObj(),
		User:    encodedUser("2026-09-01 20:00:00"),
	}, zap.NewNop())

	state, err := auth.Login(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "12345", state.UserID)
}

func TestLoginRejectedByProvider(t *testing.T) {
	c, _ := newAuthServer(t, 0, "请重新登录")
	auth := NewAuth(c, "202400001", WeChatSession{
		UserObj: encodedUserObj(),
		User:    encodedUser("2026-09-01 20:00:00"),
	}, zap.NewNop())

	_, err := auth.Login(context.Background())
	var aerr *booking.AuthError
	require.ErrorAs(t, err, &aerr)
}

func TestLoginWithoutConfiguredSession(t *testing.T) {
	c := New(zap.NewNop())
	auth := NewAuth(c, "202400001", WeChatSession{}, zap.NewNop())

	_, err := auth.Login(context.Background())
	var aerr *booking.AuthError
	require.ErrorAs(t, err, &aerr)
	assert.Contains(t, err.Error(), "wechatSession")
}

func TestLoginWithoutAccessToken(t *testing.T) {
	c := New(zap.NewNop())
	auth := NewAuth(c, "202400001", WeChatSession{UserObj: encodedUserObj()}, zap.NewNop())

	_, err := auth.Login(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_token")
}

func TestLoginUnparseableExpiryIsTolerated(t *testing.T) {
	c, _ := newAuthServer(t, 1, "")
	auth := NewAuth(c, "202400001", WeChatSession{
		UserObj: encodedUserObj(),
		User:    encodedUser("soonish"),
	}, zap.NewNop())

	state, err := auth.Login(context.Background())
	require.NoError(t, err)
	assert.True(t, state.ExpiresAt.IsZero(), "bad expiry leaves the zero value, not an error")
}

func TestLoginSendsSessionCookies(t *testing.T) {
	var gotCookies []*http.Cookie
	mux := http.NewServeMux()
	mux.HandleFunc("/api.php/profile", func(w http.ResponseWriter, r *http.Request) {
		gotCookies = r.Cookies()
		fmt.Fprint(w, `{"status": 1, "msg": "", "data": null}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	c := New(zap.NewNop(), WithBaseURL(srv.URL))

	auth := NewAuth(c, "202400001", WeChatSession{
		UserObj: encodedUserObj(),
		User:    encodedUser("2026-09-01 20:00:00"),
		Dinepo:  "openid-1",
	}, zap.NewNop())
	_, err := auth.Login(context.Background())
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, ck := range gotCookies {
		names[ck.Name] = true
	}
	assert.True(t, names["userObj"])
	assert.True(t, names["user"])
	assert.True(t, names["dinepo"])
	assert.False(t, names["school"], "empty cookies are not sent")
}

func TestValidate(t *testing.T) {
	c, _ := newAuthServer(t, 0, "token过期")
	auth := NewAuth(c, "202400001", WeChatSession{}, zap.NewNop())

	ok, err := auth.Validate(context.Background(), booking.SessionState{AccessToken: "tok-abc", UserID: "202400001"})
	require.NoError(t, err)
	assert.False(t, ok)
}
