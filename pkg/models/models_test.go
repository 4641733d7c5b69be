package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    any
		wantErr bool
	}{
		{name: "nil", input: nil, want: nil},
		{name: "string", input: "demo", want: "demo"},
		{name: "bool", input: true, want: true},
		{name: "int", input: 42, want: float64(42)},
		{name: "int64", input: int64(-7), want: float64(-7)},
		{name: "uint8", input: uint8(3), want: float64(3)},
		{name: "float32", input: float32(1.5), want: float64(1.5)},
		{name: "json number", input: json.Number("2.25"), want: 2.25},
		{name: "bad json number", input: json.Number("x"), wantErr: true},
		{name: "slice", input: []string{"a"}, wantErr: true},
		{name: "map", input: map[string]any{"a": 1}, wantErr: true},
		{name: "struct", input: struct{}{}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeValue(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidVariable)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeVariables(t *testing.T) {
	got, err := NormalizeVariables(map[string]any{"a": 1, "b": "x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1), "b": "x"}, got)

	_, err = NormalizeVariables(map[string]any{"": 1})
	assert.ErrorIs(t, err, ErrInvalidVariable)

	_, err = NormalizeVariables(map[string]any{"bad": []int{1}})
	assert.ErrorIs(t, err, ErrInvalidVariable)
}

func TestMergeScopes(t *testing.T) {
	merged := MergeScopes(
		map[string]any{"a": 1, "b": 1},
		map[string]any{"b": 2, "c": 2},
		nil,
		map[string]any{"c": 3},
	)

	assert.Equal(t, map[string]any{"a": 1, "b": 2, "c": 3}, merged)
}

func TestTask_Candidates(t *testing.T) {
	task := &Task{ID: "t1"}

	task.AddCandidateUser("demo")
	task.AddCandidateUser("demo")
	task.AddCandidateGroup("management")
	task.AddCandidateUser("")

	assert.Equal(t, []string{"demo"}, task.CandidateUsers())
	assert.Equal(t, []string{"management"}, task.CandidateGroups())
	assert.True(t, task.HasCandidateGroup("management"))

	task.SetAssignee("john")
	assert.Equal(t, TaskStatusAssigned, task.Status)

	links := task.IdentityLinks()
	require.Len(t, links, 3)
	assert.Equal(t, IdentityLink{TaskID: "t1", Type: IdentityLinkAssignee, UserID: "john"}, links[0])
	assert.Equal(t, IdentityLinkCandidate, links[1].Type)

	task.RemoveCandidateUser("demo")
	task.RemoveCandidateGroup("management")
	assert.Empty(t, task.Candidates)

	task.SetAssignee("")
	assert.Equal(t, TaskStatusCreated, task.Status)
	assert.Empty(t, task.IdentityLinks())
}

func TestTask_CloneIsDeep(t *testing.T) {
	now := time.Now()
	task := &Task{ID: "t1", CompletedAt: &now}
	task.AddCandidateUser("demo")

	clone := task.Clone()
	clone.AddCandidateGroup("sales")
	*clone.CompletedAt = now.Add(time.Hour)

	assert.Len(t, task.Candidates, 1)
	assert.Equal(t, now, *task.CompletedAt)
}

func TestProcessInstance_CloneIsDeep(t *testing.T) {
	instance := &ProcessInstance{
		ID:            "i1",
		ActiveTaskIDs: []string{"t1", "t2"},
		Joins: map[string]*JoinState{
			"join": {NodeID: "join", Arrivals: map[string]int{"f1": 1}},
		},
	}

	clone := instance.Clone()
	clone.RemoveActiveTask("t1")
	clone.Joins["join"].Arrivals["f2"] = 1

	assert.Equal(t, []string{"t1", "t2"}, instance.ActiveTaskIDs)
	assert.Equal(t, []string{"t2"}, clone.ActiveTaskIDs)
	assert.Len(t, instance.Joins["join"].Arrivals, 1)
	assert.Equal(t, 1, instance.PendingJoins())
}

func TestJoinState_Ready(t *testing.T) {
	incoming := []Transition{{ID: "f1"}, {ID: "f2"}}
	join := &JoinState{Arrivals: map[string]int{"f1": 2}}

	assert.False(t, join.Ready(incoming))

	join.Arrivals["f2"] = 1
	assert.True(t, join.Ready(incoming))
}

func TestProcessDefinition_Graph(t *testing.T) {
	definition := &ProcessDefinition{
		Nodes: []Node{
			{ID: "start", Type: NodeTypeStartEvent},
			{ID: "fork", Type: NodeTypeParallelGateway},
			{ID: "a", Type: NodeTypeUserTask},
			{ID: "b", Type: NodeTypeUserTask},
			{ID: "join", Type: NodeTypeParallelGateway},
		},
		Transitions: []Transition{
			{ID: "f0", From: "start", To: "fork"},
			{ID: "f1", From: "fork", To: "a"},
			{ID: "f2", From: "fork", To: "b"},
			{ID: "f3", From: "a", To: "join"},
			{ID: "f4", From: "b", To: "join", Condition: "${ok}"},
		},
	}

	assert.Len(t, definition.StartNodes(), 1)
	assert.Len(t, definition.Outgoing("fork"), 2)
	assert.Len(t, definition.Incoming("join"), 2)

	join, ok := definition.Node("join")
	require.True(t, ok)
	assert.True(t, definition.IsJoin(join))

	fork, _ := definition.Node("fork")
	assert.False(t, definition.IsJoin(fork))

	_, ok = definition.Node("missing")
	assert.False(t, ok)

	assert.True(t, definition.Transitions[4].Conditional())
	assert.True(t, NodeTypeUserTask.IsWaitState())
	assert.False(t, NodeType("serviceTask").Valid())
}

func TestEngineError(t *testing.T) {
	err := NotFound("Claim", "task", "t1")

	assert.True(t, IsNotFound(err))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, "Claim task t1: not found", err.Error())

	err = NewEngineError("Deploy", "deployment", "", ErrInvalidDefinition)
	assert.Equal(t, "Deploy deployment: invalid process definition", err.Error())
}

func TestIdentityValidation(t *testing.T) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	assert.NoError(t, validate.Struct(&User{ID: "demo", Email: "demo@example.com"}))
	assert.Error(t, validate.Struct(&User{ID: "demo!"}))
	assert.Error(t, validate.Struct(&User{ID: "demo", Email: "not-an-email"}))
	assert.NoError(t, validate.Struct(&Group{ID: "management", Name: "Management"}))
	assert.Error(t, validate.Struct(&Group{ID: "sales team"}))
	assert.Error(t, validate.Struct(&Tenant{}))

	membership := Membership{Kind: MembershipUserGroup, LeftID: "demo", RightID: "sales"}
	assert.Equal(t, "user-group:demo:sales", membership.Key())
}
