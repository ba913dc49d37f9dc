// Package fixture serves a stand-in for the ERP dashboard pages the account
// form verification visits. It backs browser tests and local demos.
package fixture

import (
	"embed"
	"net/http"
	"sync"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SessionCookie carries the login token.
const SessionCookie = "erp_session"

const (
	LoginPath   = "/login"
	LandingPath = "/dashboard"
	FeaturePath = "/dashboard/masters/akun-perkiraan"
)

//go:embed templates/*.pongo2
var templateFS embed.FS

var (
	loginTmpl     = mustTemplate("templates/login.pongo2")
	dashboardTmpl = mustTemplate("templates/dashboard.pongo2")
	accountsTmpl  = mustTemplate("templates/accounts.pongo2")
)

func mustTemplate(name string) *pongo2.Template {
	src, err := templateFS.ReadFile(name)
	if err != nil {
		panic(err)
	}
	return pongo2.Must(pongo2.FromBytes(src))
}

// Account is one row of the chart of accounts.
type Account struct {
	Code string
	Name string
	Type string
}

var defaultAccounts = []Account{
	{Code: "1-1000", Name: "Kas", Type: "Aset"},
	{Code: "1-1100", Name: "Bank", Type: "Aset"},
	{Code: "2-1000", Name: "Hutang Usaha", Type: "Kewajiban"},
	{Code: "4-1000", Name: "Penjualan", Type: "Pendapatan"},
}

// Server is the fixture application.
type Server struct {
	email     string
	password  string
	showTable bool
	accounts  []Account

	mu       sync.Mutex
	sessions map[string]string

	router *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithCredentials sets the only accepted login.
func WithCredentials(email, password string) Option {
	return func(s *Server) { s.email, s.password = email, password }
}

// WithoutTable renders the feature page without its account table.
func WithoutTable() Option {
	return func(s *Server) { s.showTable = false }
}

// New creates a fixture accepting admin@erp-adi.com / admin123 unless
// WithCredentials says otherwise.
func New(opts ...Option) *Server {
	s := &Server{
		email:     "admin@erp-adi.com",
		password:  "admin123",
		showTable: true,
		accounts:  defaultAccounts,
		sessions:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the gin router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET(LoginPath, s.loginPage)
	r.POST(LoginPath, s.login)
	r.GET("/logout", s.logout)

	authed := r.Group(LandingPath, s.requireSession)
	authed.GET("", s.dashboard)
	authed.GET("/masters/akun-perkiraan", s.accountsPage)
	return r
}

func (s *Server) user(c *gin.Context) (string, bool) {
	token, err := c.Cookie(SessionCookie)
	if err != nil || token == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.sessions[token]
	return email, ok
}

func (s *Server) requireSession(c *gin.Context) {
	email, ok := s.user(c)
	if !ok {
		c.Redirect(http.StatusFound, LoginPath)
		c.Abort()
		return
	}
	c.Set("user", email)
	c.Next()
}

func (s *Server) loginPage(c *gin.Context) {
	if _, ok := s.user(c); ok {
		c.Redirect(http.StatusFound, LandingPath)
		return
	}
	s.render(c, http.StatusOK, loginTmpl, pongo2.Context{})
}

func (s *Server) login(c *gin.Context) {
	email := c.PostForm("email")
	if email != s.email || c.PostForm("password") != s.password {
		s.render(c, http.StatusUnauthorized, loginTmpl, pongo2.Context{
			"email": email,
			"error": "Email atau kata sandi salah",
		})
		return
	}
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = email
	s.mu.Unlock()
	c.SetCookie(SessionCookie, token, 3600, "/", "", false, true)
	c.Redirect(http.StatusSeeOther, LandingPath)
}

func (s *Server) logout(c *gin.Context) {
	if token, err := c.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
	}
	c.SetCookie(SessionCookie, "", -1, "/", "", false, true)
	c.Redirect(http.StatusFound, LoginPath)
}

func (s *Server) dashboard(c *gin.Context) {
	s.render(c, http.StatusOK, dashboardTmpl, pongo2.Context{
		"user":         c.GetString("user"),
		"feature_path": FeaturePath,
	})
}

func (s *Server) accountsPage(c *gin.Context) {
	s.render(c, http.StatusOK, accountsTmpl, pongo2.Context{
		"show_table": s.showTable,
		"accounts":   s.accounts,
	})
}

func (s *Server) render(c *gin.Context, code int, tmpl *pongo2.Template, ctx pongo2.Context) {
	ctx["app_name"] = "ERP ADI"
	body, err := tmpl.ExecuteBytes(ctx)
	if err != nil {
		c.String(http.StatusInternalServerError, "Template execution error: %v", err)
		return
	}
	c.Data(code, "text/html; charset=utf-8", body)
}
