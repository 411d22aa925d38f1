package libapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Toskysun/sdu-seat/internal/domain/booking"
)

// expiry format the provider puts in the user cookie
const expireLayout = "2006-01-02 15:04:05"

// WeChatSession holds the cookies of an authenticated WeChat browser
// session, captured once by the operator and carried in configuration.
// The full OAuth handshake only works inside the WeChat app, so the
// client restores and validates a session instead of performing it.
type WeChatSession struct {
	UserObj    string // URL-encoded JSON: {"id": ..., "name": ...}
	User       string // URL-encoded JSON: {"access_token": ..., "expire": ..., "userid": ...}
	School     string
	Dinepo     string // WeChat OpenID
	ConnectSid string
}

func (s WeChatSession) empty() bool { return s.User == "" && s.UserObj == "" }

// Auth implements booking.AuthClient by injecting the configured WeChat
// session cookies and verifying them against the profile endpoint.
type Auth struct {
	c       *Client
	userID  string
	session WeChatSession
	log     *zap.Logger
}

func NewAuth(c *Client, userID string, session WeChatSession, log *zap.Logger) *Auth {
	return &Auth{c: c, userID: userID, session: session, log: log}
}

// Login resets cookie state, injects the configured session and extracts
// the access token, owner and expiry from it. It fails with an AuthError
// when no usable session is configured or the provider rejects it.
func (a *Auth) Login(ctx context.Context) (booking.SessionState, error) {
	if a.session.empty() {
		return booking.SessionState{}, &booking.AuthError{
			Op: "login",
			Err: fmt.Errorf("no WeChat session configured; capture the userObj/user cookies " +
				"from an authenticated WeChat browser session and set wechatSession in config.json"),
		}
	}

	a.c.ClearCookies()
	if err := a.c.SetCookies(map[string]string{
		"userObj":     a.session.UserObj,
		"user":        a.session.User,
		"school":      a.session.School,
		"dinepo":      a.session.Dinepo,
		"connect.sid": a.session.ConnectSid,
	}); err != nil {
		return booking.SessionState{}, &booking.AuthError{Op: "inject session cookies", Err: err}
	}

	state, err := a.extractState()
	if err != nil {
		return booking.SessionState{}, err
	}

	ok, err := a.Validate(ctx, state)
	if err != nil {
		return booking.SessionState{}, &booking.AuthError{Op: "validate session", Err: err}
	}
	if !ok {
		return booking.SessionState{}, &booking.AuthError{Op: "login", Err: fmt.Errorf("provider rejected the configured session; re-capture the WeChat cookies")}
	}

	a.log.Info("session restored",
		zap.String("user", state.Name),
		zap.String("userid", state.UserID),
		zap.Time("expires", state.ExpiresAt))
	return state, nil
}

// extractState decodes the URL-encoded JSON cookies the provider sets.
func (a *Auth) extractState() (booking.SessionState, error) {
	state := booking.SessionState{UserID: a.userID}

	if a.session.UserObj != "" {
		decoded, err := url.QueryUnescape(a.session.UserObj)
		if err != nil {
			return booking.SessionState{}, &booking.AuthError{Op: "decode userObj cookie", Err: err}
		}
		var userObj struct {
			ID   json.Number `json:"id"`
			Name string      `json:"name"`
		}
		if err := json.Unmarshal([]byte(decoded), &userObj); err != nil {
			return booking.SessionState{}, &booking.AuthError{Op: "parse userObj cookie", Err: err}
		}
		state.Name = userObj.Name
		if state.UserID == "" {
			state.UserID = userObj.ID.String()
		}
	}

	if a.session.User != "" {
		decoded, err := url.QueryUnescape(a.session.User)
		if err != nil {
			return booking.SessionState{}, &booking.AuthError{Op: "decode user cookie", Err: err}
		}
		var user struct {
			AccessToken string      `json:"access_token"`
			Expire      string      `json:"expire"`
			UserID      json.Number `json:"userid"`
		}
		if err := json.Unmarshal([]byte(decoded), &user); err != nil {
			return booking.SessionState{}, &booking.AuthError{Op: "parse user cookie", Err: err}
		}
		state.AccessToken = user.AccessToken
		if state.UserID == "" {
			state.UserID = user.UserID.String()
		}
		if user.Expire != "" {
			t, err := time.ParseInLocation(expireLayout, user.Expire, time.Local)
			if err != nil {
				a.log.Warn("unparseable session expiry", zap.String("expire", user.Expire))
			} else {
				state.ExpiresAt = t
			}
		}
	}

	if state.AccessToken == "" {
		return booking.SessionState{}, &booking.AuthError{Op: "login", Err: fmt.Errorf("configured session carries no access_token")}
	}
	return state, nil
}

// Validate probes the profile endpoint with the session credentials.
// A status other than 1 means the provider no longer accepts the session.
func (a *Auth) Validate(ctx context.Context, s booking.SessionState) (bool, error) {
	form := url.Values{
		"access_token": {s.AccessToken},
		"userid":       {s.UserID},
	}
	env, err := a.c.doJSON(ctx, http.MethodPost, "/api.php/profile", "", nil, form)
	if err != nil {
		return false, err
	}
	if env.Status != 1 {
		a.log.Warn("session validation rejected", zap.String("msg", env.Msg))
		return false, nil
	}
	return true, nil
}
