// Package web provides HTTP request and response types for the engine API.
package web

import "github.com/dukex/taskflow/pkg/models"

// ResourceRequest is one deployable document sent inline.
type ResourceRequest struct {
	Name    string `json:"name"    validate:"required"`
	Content string `json:"content" validate:"required"`
}

// CreateDeploymentRequest represents the JSON body for creating a deployment.
type CreateDeploymentRequest struct {
	Name      string            `json:"name"      validate:"required,max=255"`
	TenantID  string            `json:"tenant_id" validate:"omitempty,alphanum,max=64"`
	Resources []ResourceRequest `json:"resources" validate:"required,min=1,dive"`
}

// StartInstanceRequest represents the body for starting a process instance.
// TenantID is only used when starting by key.
type StartInstanceRequest struct {
	Variables map[string]any `json:"variables"`
	TenantID  string         `json:"tenant_id" validate:"omitempty,alphanum,max=64"`
}

type TerminateInstanceRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

type ClaimTaskRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

// SetAssigneeRequest assigns a task; an empty user unassigns it.
type SetAssigneeRequest struct {
	UserID string `json:"user_id"`
}

type CompleteTaskRequest struct {
	Variables map[string]any `json:"variables"`
}

// CandidateRequest names a candidate user, a candidate group, or both.
type CandidateRequest struct {
	UserID  string `json:"user_id"  query:"user_id"  validate:"required_without=GroupID"`
	GroupID string `json:"group_id" query:"group_id" validate:"required_without=UserID"`
}

type SetVariablesRequest struct {
	Variables map[string]any `json:"variables" validate:"required"`
}

// VariablesQuery selects between the visible and the local view of a task scope.
type VariablesQuery struct {
	Local bool `query:"local"`
}

type CreateUserRequest struct {
	ID        string `json:"id"         validate:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"   validate:"max=72"`
}

type CreateGroupRequest struct {
	ID   string `json:"id"   validate:"required"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type CreateTenantRequest struct {
	ID   string `json:"id"   validate:"required"`
	Name string `json:"name"`
}

// UserResponse is a user without its password hash.
type UserResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

func TransformUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
	}
}

// VariablesResponse is the variable map of one scope.
type VariablesResponse struct {
	ScopeID   string         `json:"scope_id"`
	Variables map[string]any `json:"variables"`
}
