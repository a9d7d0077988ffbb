package livestats

import (
	"time"

	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/docstore"
	"github.com/dalemusser/producthub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

// Scope names which tasks a snapshot covers.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeAssigned Scope = "assigned"
)

// Recent-task list lengths per scope.
const (
	AdminRecentTasks  = 5
	MemberRecentTasks = 3
)

// TaskPlan is the task query for one actor. Counts need the whole scoped
// set, so Limit bounds only the recent-task list, not the scan.
type TaskPlan struct {
	Scope     Scope
	Filter    bson.M
	SortField string
	SortDesc  bool
	Limit     int
}

// Query returns the scan for p.
func (p TaskPlan) Query() docstore.Query {
	return docstore.Query{Filter: p.Filter, SortField: p.SortField, SortDesc: p.SortDesc}
}

// PlanTaskQuery returns the task query for actor: every task for admins,
// otherwise only the tasks assigned to the actor.
func PlanTaskQuery(actor authz.Actor) TaskPlan {
	if actor.IsAdmin() {
		return TaskPlan{
			Scope:     ScopeAll,
			SortField: "created_at",
			SortDesc:  true,
			Limit:     AdminRecentTasks,
		}
	}
	return TaskPlan{
		Scope:     ScopeAssigned,
		Filter:    bson.M{"assigned_to": actor.ID},
		SortField: "created_at",
		SortDesc:  true,
		Limit:     MemberRecentTasks,
	}
}

// ScopeTasks drops every task actor may not see. Non-admins see only tasks
// assigned to them, whatever the store returned.
func ScopeTasks(actor authz.Actor, tasks []models.Task) []models.Task {
	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if actor.IsAdmin() || t.AssignedTo == actor.ID {
			out = append(out, t)
		}
	}
	return out
}

// PendingCount counts todo and in-progress tasks: system-wide for admins,
// within the actor's own scoped list otherwise.
func PendingCount(actor authz.Actor, all, scoped []models.Task) int {
	src := scoped
	if actor.IsAdmin() {
		src = all
	}
	n := 0
	for _, t := range src {
		if t.Status.IsPending() {
			n++
		}
	}
	return n
}

// ScopeKey identifies the snapshot an actor sees. Admins all share one.
func ScopeKey(actor authz.Actor) string {
	if actor.IsAdmin() {
		return string(ScopeAll)
	}
	return string(ScopeAssigned) + ":" + actor.ID.Hex()
}

// Aggregate builds a snapshot from raw collection contents. now is the
// reference time for the activity window.
func Aggregate(actor authz.Actor, d Data, now time.Time, recentProducts int) Snapshot {
	plan := PlanTaskQuery(actor)
	scoped := ScopeTasks(actor, d.Tasks)

	return Snapshot{
		TotalProducts:    len(d.Products),
		ActiveProjects:   ActiveProjects(d.Products),
		PendingTasks:     PendingCount(actor, d.Tasks, scoped),
		TotalTasks:       len(scoped),
		TeamMembers:      len(d.Users),
		ActiveUsers:      CountActive(d.Users, ActiveWindow, now),
		RecentProducts:   RecentProducts(d.Products, recentProducts),
		RecentTasks:      RecentTasks(scoped, plan.Limit),
		ProductsByStatus: CountByKey(d.Products, func(p models.Product) models.ProductStatus { return p.Status }),
		TasksByPriority:  CountByKey(scoped, func(t models.Task) models.TaskPriority { return t.Priority }),
		UsersByRole:      CountByKey(d.Users, func(u models.User) models.Role { return u.Role }),
		Scope:            plan.Scope,
		ComputedAt:       now,
	}
}
