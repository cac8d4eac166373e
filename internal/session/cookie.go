package session

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"busreg.io/stager/internal/domain"
)

// CookieConfig describes the stage_id cookie.
type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	HttpOnly bool
}

// DefaultCookieConfig is a session-scoped stage_id cookie on path /.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{Name: "stage_id", Path: "/", Secure: true, HttpOnly: true}
}

// CookieStore keeps the stage pointer in a session cookie of one request.
// Writes are reflected by later Loads in the same request.
type CookieStore struct {
	c   *gin.Context
	cfg CookieConfig

	written bool
	value   string
}

// NewCookieStore binds a store to the request.
func NewCookieStore(c *gin.Context, cfg CookieConfig) *CookieStore {
	if cfg.Name == "" {
		cfg.Name = "stage_id"
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	return &CookieStore{c: c, cfg: cfg}
}

// Load implements Store.
func (s *CookieStore) Load(context.Context) (*domain.Stage, error) {
	id := s.value
	if !s.written {
		v, err := s.c.Cookie(s.cfg.Name)
		if err != nil {
			return nil, nil
		}
		id = v
	}
	if id == "" {
		return nil, nil
	}
	return &domain.Stage{ID: id}, nil
}

// Save implements Store. The cookie has no expiry.
func (s *CookieStore) Save(_ context.Context, stage *domain.Stage) error {
	s.set(stage.ID, 0)
	return nil
}

// Clear implements Store.
func (s *CookieStore) Clear(context.Context) error {
	s.set("", -1)
	return nil
}

func (s *CookieStore) set(value string, maxAge int) {
	s.written, s.value = true, value
	s.c.SetSameSite(http.SameSiteLaxMode)
	s.c.SetCookie(s.cfg.Name, value, maxAge, s.cfg.Path, "", s.cfg.Secure, s.cfg.HttpOnly)
}
