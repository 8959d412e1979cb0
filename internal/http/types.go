package http

import (
	"github.com/fyrsmithlabs/servedeck/internal/notify"
	"github.com/fyrsmithlabs/servedeck/internal/project"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string       `json:"status"`
	Counts StatusCounts `json:"counts"`
}

// StatusCounts summarizes the registry and notification log.
type StatusCounts struct {
	Projects      int            `json:"projects"`
	ByStatus      map[string]int `json:"by_status"`
	Notifications int            `json:"notifications"`
}

// ProjectsResponse is the response body for GET /api/v1/projects.
type ProjectsResponse struct {
	Projects []*project.Project `json:"projects"`
}

// CreateProjectRequest is the request body for POST /api/v1/projects.
type CreateProjectRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// MessagesResponse is the response body for GET /api/v1/messages.
type MessagesResponse struct {
	Messages []notify.Notification `json:"messages"`
}

// FocusResponse is the response body for POST /api/v1/focus.
type FocusResponse struct {
	Requests int `json:"requests"`
}

// countByStatus groups projects by status. Unknown status is counted
// under "unknown".
func countByStatus(projects []*project.Project) map[string]int {
	counts := make(map[string]int)
	for _, p := range projects {
		key := string(p.Status)
		if key == "" {
			key = "unknown"
		}
		counts[key]++
	}
	return counts
}
