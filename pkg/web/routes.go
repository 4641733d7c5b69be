package web

import (
	"github.com/dukex/taskflow/pkg/identity"
	"github.com/gofiber/fiber/v3"
)

// Register mounts every API route on the router.
func (h *APIHandlers) Register(r fiber.Router) {
	r.Get("/health", h.HealthCheck)

	dep := r.Group("/deployments")
	dep.Post("/", h.CreateDeployment)
	dep.Get("/", h.GetDeployments)
	dep.Get("/:id", h.GetDeployment)

	pd := r.Group("/process-definitions")
	pd.Get("/", h.GetProcessDefinitions)
	pd.Post("/key/:key/start", h.StartProcessInstanceByKey)
	pd.Get("/:id", h.GetProcessDefinition)
	pd.Post("/:id/start", h.StartProcessInstanceByID)
	pd.Post("/:id/suspend", h.SuspendProcessDefinition)
	pd.Post("/:id/activate", h.ActivateProcessDefinition)

	pi := r.Group("/process-instances")
	pi.Get("/", h.GetProcessInstances)
	pi.Get("/:id", h.GetProcessInstance)
	pi.Post("/:id/terminate", h.TerminateProcessInstance)
	pi.Get("/:id/variable-history", h.GetVariableHistory)

	t := r.Group("/tasks")
	t.Get("/", h.GetTasks)
	t.Get("/:id", h.GetTask)
	t.Post("/:id/claim", h.ClaimTask)
	t.Post("/:id/unclaim", h.UnclaimTask)
	t.Post("/:id/complete", h.CompleteTask)
	t.Put("/:id/assignee", h.SetTaskAssignee)
	t.Get("/:id/identity-links", h.GetIdentityLinks)
	t.Post("/:id/candidates", h.AddCandidate)
	t.Delete("/:id/candidates", h.DeleteCandidate)

	v := r.Group("/variables")
	v.Get("/:scopeId", h.GetVariables)
	v.Put("/:scopeId", h.SetVariables)

	u := r.Group("/users")
	u.Get("/", h.GetUsers)
	u.Post("/", h.CreateUser)
	u.Get("/:id", h.GetUser)
	u.Delete("/:id", h.DeleteUser)

	g := r.Group("/groups")
	g.Get("/", h.GetGroups)
	g.Post("/", h.CreateGroup)
	g.Get("/:id", h.GetGroup)
	g.Delete("/:id", h.DeleteGroup)
	g.Put("/:id/members/:memberId", h.membership(func(d *identity.Directory) membershipChange { return d.AddUserToGroup }))
	g.Delete("/:id/members/:memberId", h.membership(func(d *identity.Directory) membershipChange { return d.RemoveUserFromGroup }))

	tn := r.Group("/tenants")
	tn.Get("/", h.GetTenants)
	tn.Post("/", h.CreateTenant)
	tn.Get("/:id", h.GetTenant)
	tn.Delete("/:id", h.DeleteTenant)
	tn.Put("/:id/users/:memberId", h.membership(func(d *identity.Directory) membershipChange { return d.AddUserToTenant }))
	tn.Delete("/:id/users/:memberId", h.membership(func(d *identity.Directory) membershipChange { return d.RemoveUserFromTenant }))
	tn.Put("/:id/groups/:memberId", h.membership(func(d *identity.Directory) membershipChange { return d.AddGroupToTenant }))
	tn.Delete("/:id/groups/:memberId", h.membership(func(d *identity.Directory) membershipChange { return d.RemoveGroupFromTenant }))
}
