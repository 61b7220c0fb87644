package handler

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"git-activity-server/internal/backend"
	"git-activity-server/internal/model"
	"git-activity-server/internal/store"
)

type ActivityHandler struct {
	Store *store.Store
	Now   func() time.Time
}

func (h *ActivityHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// userView is the dashboard-facing serialization of a record: the activity
// map flattened to a list, plus the active flag and a recency label.
type userView struct {
	ID           string                `json:"id"`
	Tenant       string                `json:"tenant"`
	UserName     string                `json:"userName"`
	UserEmail    string                `json:"userEmail"`
	LastActivity time.Time             `json:"lastActivity"`
	LastSeen     string                `json:"lastSeen"`
	Active       bool                  `json:"active"`
	Activities   []model.ActivityEntry `json:"activities"`
}

func (h *ActivityHandler) view(rec model.UserRecord) userView {
	activities := make([]model.ActivityEntry, 0, len(rec.Activities))
	for _, entry := range rec.Activities {
		activities = append(activities, entry)
	}
	sort.Slice(activities, func(i, j int) bool {
		a, b := activities[i], activities[j]
		if !a.LastUpdated.Equal(b.LastUpdated) {
			return a.LastUpdated.After(b.LastUpdated)
		}
		return model.ActivityKey(a.RepoName, a.MachineName) < model.ActivityKey(b.RepoName, b.MachineName)
	})

	now := h.now()
	return userView{
		ID:           rec.ID,
		Tenant:       rec.Tenant,
		UserName:     rec.UserName,
		UserEmail:    rec.UserEmail,
		LastActivity: rec.LastActivity,
		LastSeen:     store.DescribeRecency(now, rec.LastActivity),
		Active:       h.Store.IsUserActive(rec),
		Activities:   activities,
	}
}

// Record ingests one activity event.
func (h *ActivityHandler) Record(c *gin.Context) {
	var event model.ActivityEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if err := h.Store.RecordActivity(c.Request.Context(), event); err != nil {
		status, msg := statusForError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func emptyUsersResponse(msg string) gin.H {
	return gin.H{"error": msg, "users": []userView{}, "totalCount": 0, "activeCount": 0}
}

// Users lists one tenant's users, optionally restricted to active ones. A
// missing tenant is an error rather than a cross-tenant scan.
func (h *ActivityHandler) Users(c *gin.Context) {
	tenant := strings.TrimSpace(c.Query("tenant"))
	if tenant == "" {
		c.JSON(http.StatusBadRequest, emptyUsersResponse("tenant query parameter is required"))
		return
	}

	all, err := h.Store.GetAllUsers(c.Request.Context(), tenant)
	if err != nil {
		status, msg := statusForError(err)
		c.JSON(status, emptyUsersResponse(msg))
		return
	}

	activeCount := 0
	for _, rec := range all {
		if h.Store.IsUserActive(rec) {
			activeCount++
		}
	}

	activeOnly := c.Query("active") == "true"
	views := make([]userView, 0, len(all))
	for _, rec := range all {
		if activeOnly && !h.Store.IsUserActive(rec) {
			continue
		}
		views = append(views, h.view(rec))
	}

	c.JSON(http.StatusOK, gin.H{
		"users":       views,
		"totalCount":  len(all),
		"activeCount": activeCount,
	})
}

// User returns one user by email within a tenant.
func (h *ActivityHandler) User(c *gin.Context) {
	tenant := strings.TrimSpace(c.Query("tenant"))
	if tenant == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tenant query parameter is required"})
		return
	}

	rec, err := h.Store.GetUserByEmail(c.Request.Context(), tenant, c.Param("email"))
	if err != nil {
		status, msg := statusForError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": h.view(rec)})
}

func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, backend.ErrNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, backend.ErrConfiguration):
		return http.StatusInternalServerError, "storage misconfigured"
	default:
		return http.StatusServiceUnavailable, "storage unavailable"
	}
}
