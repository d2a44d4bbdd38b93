package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/notely/internal/apperr"
)

func sign(t *testing.T, secret string, claims jwt.RegisteredClaims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestJWTVerifier(t *testing.T) {
	v := NewJWTVerifier("s3cret", "authenticated")
	valid := jwt.RegisteredClaims{
		Subject:   "user-1",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	owner, err := v.Verify(sign(t, "s3cret", valid))
	require.NoError(t, err)
	assert.Equal(t, "user-1", owner)

	_, err = v.Verify(sign(t, "other", valid))
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	_, err = v.Verify(sign(t, "s3cret", expired))
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	noSubject := valid
	noSubject.Subject = ""
	_, err = v.Verify(sign(t, "s3cret", noSubject))
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	wrongAud := valid
	wrongAud.Audience = jwt.ClaimStrings{"anon"}
	_, err = v.Verify(sign(t, "s3cret", wrongAud))
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	_, err = v.Verify("garbage")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestStaticToken(t *testing.T) {
	v := StaticToken{Token: "tok", Owner: "local"}
	owner, err := v.Verify("tok")
	require.NoError(t, err)
	assert.Equal(t, "local", owner)

	_, err = v.Verify("nope")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestOwnerContext(t *testing.T) {
	assert.Equal(t, "", OwnerFrom(context.Background()))
	assert.Equal(t, "u1", OwnerFrom(WithOwner(context.Background(), "u1")))
}

func TestSupabaseSendMagicLink(t *testing.T) {
	var got struct {
		path, redirect, apikey string
		body                   map[string]any
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.path = r.URL.Path
		got.redirect = r.URL.Query().Get("redirect_to")
		got.apikey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&got.body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	s := NewSupabase(srv.URL+"/", "anon-key", "http://localhost:5173")
	require.NoError(t, s.SendMagicLink(context.Background(), "a@example.com"))

	assert.Equal(t, "/auth/v1/otp", got.path)
	assert.Equal(t, "http://localhost:5173", got.redirect)
	assert.Equal(t, "anon-key", got.apikey)
	assert.Equal(t, "a@example.com", got.body["email"])
}

func TestSupabaseProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"msg":"email rate limit exceeded"}`))
	}))
	defer srv.Close()

	err := NewSupabase(srv.URL, "k", "").SendMagicLink(context.Background(), "a@example.com")
	var perr *ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusTooManyRequests, perr.Status)
	assert.Equal(t, "email rate limit exceeded", perr.Message)
}

func TestDisabledSender(t *testing.T) {
	assert.ErrorIs(t, Disabled{}.SendMagicLink(context.Background(), "a@example.com"), ErrUnavailable)
}
