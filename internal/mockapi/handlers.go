package mockapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func apiError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

func userJSON(u *user) gin.H {
	return gin.H{"id": u.ID, "name": u.Name, "email": u.Email, "role": u.Role}
}

func (s *Server) login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	s.mu.Lock()
	u := s.users[strings.ToLower(body.Email)]
	s.mu.Unlock()
	if u == nil || bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(body.Password)) != nil {
		apiError(c, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	s.respondTokens(c, http.StatusOK, u)
}

func (s *Server) register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	var fields []gin.H
	if strings.TrimSpace(body.Name) == "" {
		fields = append(fields, gin.H{"field": "name", "message": "is required"})
	}
	if !strings.Contains(body.Email, "@") {
		fields = append(fields, gin.H{"field": "email", "message": "must be a valid email"})
	}
	if len(body.Password) < 8 {
		fields = append(fields, gin.H{"field": "password", "message": "must be at least 8 characters"})
	}
	if len(fields) > 0 {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation failed", "errors": fields})
		return
	}
	u, err := s.addUser(body.Email, body.Name, body.Password, "member")
	if err != nil {
		apiError(c, http.StatusConflict, "email_taken", err.Error())
		return
	}
	s.respondTokens(c, http.StatusCreated, u)
}

func (s *Server) respondTokens(c *gin.Context, status int, u *user) {
	s.mu.Lock()
	access, refresh, exp, err := s.issueLocked(u)
	s.mu.Unlock()
	if err != nil {
		apiError(c, http.StatusInternalServerError, "token_error", err.Error())
		return
	}
	c.JSON(status, gin.H{
		"access_token":  access,
		"refresh_token": refresh,
		"expires_at":    exp.UTC().Format(time.RFC3339),
		"user":          userJSON(u),
	})
}

func (s *Server) refresh(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	_ = c.ShouldBindJSON(&body)

	s.mu.Lock()
	s.refreshes++
	wait, gate, reject := s.refreshWait, s.gate, s.rejectAll
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			return
		}
	}
	if wait > 0 {
		select {
		case <-time.After(wait):
		case <-c.Request.Context().Done():
			return
		}
	}

	s.mu.Lock()
	grant, ok := s.grants[body.RefreshToken]
	// rotation: a refresh token is single use
	delete(s.grants, body.RefreshToken)
	var u *user
	if ok {
		u = s.usersByID[grant.userID]
	}
	if reject || !ok || u == nil || time.Now().After(grant.expiresAt) {
		s.mu.Unlock()
		apiError(c, http.StatusUnauthorized, "invalid_refresh_token", "Refresh token is invalid or expired")
		return
	}
	access, refresh, exp, err := s.issueLocked(u)
	s.mu.Unlock()
	if err != nil {
		apiError(c, http.StatusInternalServerError, "token_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": access, "refresh_token": refresh, "expires_at": exp.UTC().Format(time.RFC3339)})
}

func (s *Server) logout(c *gin.Context) {
	uid := c.GetString("user_id")
	s.mu.Lock()
	gate := s.logoutGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			return
		}
	}

	s.mu.Lock()
	for token, g := range s.grants {
		if g.userID == uid {
			delete(s.grants, token)
		}
	}
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) me(c *gin.Context) {
	s.mu.Lock()
	u := s.usersByID[c.GetString("user_id")]
	s.mu.Unlock()
	if u == nil {
		apiError(c, http.StatusNotFound, "not_found", "user not found")
		return
	}
	c.JSON(http.StatusOK, userJSON(u))
}

func (s *Server) listTasks(c *gin.Context) {
	s.mu.Lock()
	tasks := append([]gin.H(nil), s.tasks...)
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"data": tasks, "total": len(tasks)})
}

func (s *Server) createTask(c *gin.Context) {
	var body struct {
		Title     string `json:"title"`
		ProjectID int    `json:"project_id"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || strings.TrimSpace(body.Title) == "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
			"message": "Validation failed",
			"errors":  gin.H{"title": []string{"is required"}},
		})
		return
	}
	s.mu.Lock()
	task := gin.H{"id": len(s.tasks) + 1, "title": body.Title, "status": "todo", "project_id": body.ProjectID}
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
	c.JSON(http.StatusCreated, task)
}

func (s *Server) listProjects(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []gin.H{{"id": 1, "name": "Launch"}}, "total": 1})
}

func (s *Server) listNotifications(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": []gin.H{{"id": uuid.NewString(), "message": "Task assigned", "read": false}}})
}

func (s *Server) unreadCount(c *gin.Context) {
	s.mu.Lock()
	n := s.unread
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"count": n})
}
