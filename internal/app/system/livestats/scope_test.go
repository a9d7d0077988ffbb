package livestats_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/dalemusser/producthub/internal/app/system/authz"
	"github.com/dalemusser/producthub/internal/app/system/livestats"
	"github.com/dalemusser/producthub/internal/domain/models"
	"github.com/dalemusser/producthub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newActor(role models.Role) authz.Actor {
	return authz.Actor{ID: primitive.NewObjectID(), Name: string(role), Role: role}
}

func TestPlanTaskQuery_Admin(t *testing.T) {
	plan := livestats.PlanTaskQuery(newActor(models.RoleAdmin))

	assert.Equal(t, livestats.ScopeAll, plan.Scope)
	assert.Empty(t, plan.Filter)
	assert.Equal(t, "created_at", plan.SortField)
	assert.True(t, plan.SortDesc)
	assert.Equal(t, 5, plan.Limit)
	assert.Zero(t, plan.Query().Limit, "scan must not be truncated")
}

func TestPlanTaskQuery_NonAdmin(t *testing.T) {
	for _, role := range []models.Role{models.RoleProductManager, models.RoleTeamMember, models.RoleStakeholder} {
		actor := newActor(role)
		plan := livestats.PlanTaskQuery(actor)

		assert.Equal(t, livestats.ScopeAssigned, plan.Scope, "role %s", role)
		assert.Equal(t, actor.ID, plan.Filter["assigned_to"], "role %s", role)
		assert.Equal(t, "created_at", plan.SortField)
		assert.True(t, plan.SortDesc)
		assert.Equal(t, 3, plan.Limit)
	}
}

func TestScopeTasks_NonAdminNeverSeesOthersTasks(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	me := newActor(models.RoleTeamMember)
	others := []primitive.ObjectID{primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()}

	for round := 0; round < 50; round++ {
		var tasks []models.Task
		mine := 0
		n := rng.Intn(30)
		for i := 0; i < n; i++ {
			assignee := others[rng.Intn(len(others))]
			if rng.Intn(3) == 0 {
				assignee = me.ID
				mine++
			}
			tasks = append(tasks, testutil.NewTask("t", models.TaskTodo, models.PriorityLow, assignee, refTime))
		}

		scoped := livestats.ScopeTasks(me, tasks)
		require.Len(t, scoped, mine)
		for _, task := range scoped {
			require.Equal(t, me.ID, task.AssignedTo)
		}
	}
}

func TestScopeTasks_AdminSeesAll(t *testing.T) {
	tasks := []models.Task{
		testutil.NewTask("a", models.TaskTodo, models.PriorityLow, primitive.NewObjectID(), refTime),
		testutil.NewTask("b", models.TaskDone, models.PriorityLow, primitive.NewObjectID(), refTime),
	}
	assert.Len(t, livestats.ScopeTasks(newActor(models.RoleAdmin), tasks), 2)
}

func TestPendingCount(t *testing.T) {
	me := newActor(models.RoleTeamMember)
	admin := newActor(models.RoleAdmin)
	other := primitive.NewObjectID()

	all := []models.Task{
		testutil.NewTask("1", models.TaskTodo, models.PriorityLow, me.ID, refTime),
		testutil.NewTask("2", models.TaskInProgress, models.PriorityLow, other, refTime),
		testutil.NewTask("3", models.TaskReview, models.PriorityLow, me.ID, refTime),
		testutil.NewTask("4", models.TaskDone, models.PriorityLow, other, refTime),
		testutil.NewTask("5", models.TaskInProgress, models.PriorityLow, me.ID, refTime),
	}

	assert.Equal(t, 3, livestats.PendingCount(admin, all, livestats.ScopeTasks(admin, all)))
	assert.Equal(t, 2, livestats.PendingCount(me, all, livestats.ScopeTasks(me, all)))
	assert.Equal(t, 0, livestats.PendingCount(admin, nil, nil))
	assert.Equal(t, 0, livestats.PendingCount(me, nil, nil))
}

func TestScopeKey(t *testing.T) {
	a1, a2 := newActor(models.RoleAdmin), newActor(models.RoleAdmin)
	assert.Equal(t, livestats.ScopeKey(a1), livestats.ScopeKey(a2))

	m := newActor(models.RoleTeamMember)
	assert.Equal(t, "assigned:"+m.ID.Hex(), livestats.ScopeKey(m))
}

func TestAggregate_EmptySystem(t *testing.T) {
	for _, actor := range []authz.Actor{newActor(models.RoleAdmin), newActor(models.RoleTeamMember)} {
		snap := livestats.Aggregate(actor, livestats.Data{}, refTime, 3)

		assert.Equal(t, 0, snap.TotalProducts)
		assert.Equal(t, 0, snap.ActiveProjects)
		assert.Equal(t, 0, snap.PendingTasks)
		assert.Equal(t, 0, snap.TeamMembers)
		assert.Equal(t, 0, snap.ActiveUsers)
		require.NotNil(t, snap.RecentProducts)
		require.NotNil(t, snap.RecentTasks)
		assert.Empty(t, snap.RecentProducts)
		assert.Empty(t, snap.RecentTasks)
		assert.Empty(t, snap.ProductsByStatus)
		assert.Equal(t, refTime, snap.ComputedAt)
	}
}

func TestAggregate_ScopesAndLimits(t *testing.T) {
	admin := newActor(models.RoleAdmin)
	me := newActor(models.RoleTeamMember)
	other := primitive.NewObjectID()

	var tasks []models.Task
	for i := 0; i < 8; i++ {
		assignee := other
		if i%2 == 0 {
			assignee = me.ID
		}
		tasks = append(tasks, testutil.NewTask("t", models.TaskTodo, models.PriorityHigh, assignee, refTime.Add(time.Duration(i)*time.Minute)))
	}

	active := testutil.NewUser("A", "a@x.io", models.RoleTeamMember)
	active.LastLogin = refTime.Add(-time.Hour)
	stale := testutil.NewUser("S", "s@x.io", models.RoleAdmin)
	stale.LastLogin = refTime.Add(-8 * 24 * time.Hour)

	d := livestats.Data{
		Products: productsWithStatuses(models.ProductDesign, models.ProductLaunch, models.ProductDevelopment, models.ProductIdeation),
		Tasks:    tasks,
		Users:    []models.User{active, stale},
	}

	snap := livestats.Aggregate(admin, d, refTime, 3)
	assert.Equal(t, 4, snap.TotalProducts)
	assert.Equal(t, 2, snap.ActiveProjects)
	assert.Equal(t, 8, snap.TotalTasks)
	assert.Equal(t, 8, snap.PendingTasks)
	assert.Equal(t, 2, snap.TeamMembers)
	assert.Equal(t, 1, snap.ActiveUsers)
	assert.Len(t, snap.RecentProducts, 3)
	assert.Len(t, snap.RecentTasks, 5)
	assert.Equal(t, tasks[7].ID, snap.RecentTasks[0].ID)
	assert.Equal(t, livestats.ScopeAll, snap.Scope)

	snap = livestats.Aggregate(me, d, refTime, 3)
	assert.Equal(t, 4, snap.TotalTasks)
	assert.Equal(t, 4, snap.PendingTasks)
	assert.Len(t, snap.RecentTasks, 3)
	for _, task := range snap.RecentTasks {
		assert.Equal(t, me.ID, task.AssignedTo)
	}
	assert.Equal(t, tasks[6].ID, snap.RecentTasks[0].ID)
	assert.Equal(t, livestats.ScopeAssigned, snap.Scope)
	assert.Equal(t, []livestats.Bucket{{Key: "high", Label: "High", Count: 4}}, snap.TasksByPriority)
}
