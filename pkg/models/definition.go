// Package models defines the core domain models for process definitions, instances and human tasks
package models

import (
	"slices"
	"time"
)

// NodeType is the kind of activity a node represents in a process graph.
type NodeType string

const (
	NodeTypeStartEvent       NodeType = "startEvent"
	NodeTypeEndEvent         NodeType = "endEvent"
	NodeTypeUserTask         NodeType = "userTask"
	NodeTypeExclusiveGateway NodeType = "exclusiveGateway"
	NodeTypeParallelGateway  NodeType = "parallelGateway"
)

// NodeTypes lists every supported node type.
var NodeTypes = []NodeType{
	NodeTypeStartEvent,
	NodeTypeEndEvent,
	NodeTypeUserTask,
	NodeTypeExclusiveGateway,
	NodeTypeParallelGateway,
}

// Valid reports whether the node type is supported.
func (t NodeType) Valid() bool {
	return slices.Contains(NodeTypes, t)
}

// IsWaitState reports whether execution stops at nodes of this type.
func (t NodeType) IsWaitState() bool {
	return t == NodeTypeUserTask
}

// Node is one activity of a compiled process graph.
type Node struct {
	ID   string   `json:"id"`
	Type NodeType `json:"type"`
	Name string   `json:"name,omitempty"`

	// User task assignment expressions.
	Assignee        string   `json:"assignee,omitempty"`
	CandidateUsers  []string `json:"candidate_users,omitempty"`
	CandidateGroups []string `json:"candidate_groups,omitempty"`
	Listeners       []string `json:"listeners,omitempty"` // Registered task listener names, run in order

	// Default is the transition taken by an exclusive gateway when no guard holds.
	Default string `json:"default,omitempty"`
}

// Transition is a directed sequence flow between two nodes.
type Transition struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition,omitempty"` // Guard expression; empty means unconditional
}

// Conditional reports whether the transition carries a guard.
func (t Transition) Conditional() bool {
	return t.Condition != ""
}

// ProcessDefinition is an immutable, versioned process graph.
// Identified by "{key}:{version}:{uuid}".
type ProcessDefinition struct {
	ID           string       `json:"id"`
	Key          string       `json:"key"`
	Version      int          `json:"version"`
	Name         string       `json:"name,omitempty"`
	TenantID     string       `json:"tenant_id,omitempty"`
	DeploymentID string       `json:"deployment_id"`
	ResourceName string       `json:"resource_name,omitempty"`
	Suspended    bool         `json:"suspended"`
	Nodes        []Node       `json:"nodes"`
	Transitions  []Transition `json:"transitions"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Node returns the node with the given ID.
func (d *ProcessDefinition) Node(id string) (Node, bool) {
	for _, node := range d.Nodes {
		if node.ID == id {
			return node, true
		}
	}

	return Node{}, false
}

// StartNodes returns every start event in document order.
func (d *ProcessDefinition) StartNodes() []Node {
	var nodes []Node

	for _, node := range d.Nodes {
		if node.Type == NodeTypeStartEvent {
			nodes = append(nodes, node)
		}
	}

	return nodes
}

// Outgoing returns the transitions leaving a node in document order.
func (d *ProcessDefinition) Outgoing(nodeID string) []Transition {
	var transitions []Transition

	for _, transition := range d.Transitions {
		if transition.From == nodeID {
			transitions = append(transitions, transition)
		}
	}

	return transitions
}

// Incoming returns the transitions entering a node in document order.
func (d *ProcessDefinition) Incoming(nodeID string) []Transition {
	var transitions []Transition

	for _, transition := range d.Transitions {
		if transition.To == nodeID {
			transitions = append(transitions, transition)
		}
	}

	return transitions
}

// IsJoin reports whether the node synchronises several incoming branches.
func (d *ProcessDefinition) IsJoin(node Node) bool {
	return node.Type == NodeTypeParallelGateway && len(d.Incoming(node.ID)) > 1
}

// Deployment is a named bundle of process definitions deployed atomically.
type Deployment struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TenantID      string    `json:"tenant_id,omitempty"`
	DefinitionIDs []string  `json:"definition_ids"`
	DeployedAt    time.Time `json:"deployed_at"`
}
