package livestats

import (
	"time"

	"github.com/dalemusser/producthub/internal/domain/models"
)

// Collections observed by every session.
const (
	CollProducts = "products"
	CollTasks    = "tasks"
	CollUsers    = "users"
)

// Snapshot is one published set of dashboard statistics. It is built
// wholesale by a single recompute and never modified after publication;
// the slices are shared between readers and must be treated as read-only.
type Snapshot struct {
	TotalProducts  int `json:"total_products"`
	ActiveProjects int `json:"active_projects"`
	PendingTasks   int `json:"pending_tasks"`
	TotalTasks     int `json:"total_tasks"`
	TeamMembers    int `json:"team_members"`
	ActiveUsers    int `json:"active_users"`

	RecentProducts []models.Product `json:"recent_products"`
	RecentTasks    []models.Task    `json:"recent_tasks"`

	ProductsByStatus []Bucket `json:"products_by_status"`
	TasksByPriority  []Bucket `json:"tasks_by_priority"`
	UsersByRole      []Bucket `json:"users_by_role"`

	Scope      Scope     `json:"scope"`
	ComputedAt time.Time `json:"computed_at"`
	Sequence   uint64    `json:"sequence"`
}

// Data is the raw input of one recompute.
type Data struct {
	Products []models.Product
	Tasks    []models.Task
	Users    []models.User
}
