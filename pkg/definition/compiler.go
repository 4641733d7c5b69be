package definition

import (
	"fmt"

	"github.com/dukex/taskflow/pkg/expression"
	"github.com/dukex/taskflow/pkg/models"
)

// Compiler turns resources into process graphs.
type Compiler struct {
	validator     expression.Validator
	knownListener func(name string) bool
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithExpressionValidator rejects expressions the validator cannot parse.
func WithExpressionValidator(validator expression.Validator) CompilerOption {
	return func(c *Compiler) {
		c.validator = validator
	}
}

// WithListenerCheck rejects listener names for which known returns false.
func WithListenerCheck(known func(name string) bool) CompilerOption {
	return func(c *Compiler) {
		c.knownListener = known
	}
}

// NewCompiler creates a compiler. Expressions are checked with the builtin evaluator by default.
func NewCompiler(opts ...CompilerOption) *Compiler {
	c := &Compiler{validator: expression.NewBuiltin()}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Compile parses and validates a resource. The returned definition has no ID or version yet.
func (c *Compiler) Compile(resource Resource) (*models.ProcessDefinition, error) {
	doc, err := Parse(resource)
	if err != nil {
		return nil, err
	}

	definition := &models.ProcessDefinition{
		Key:          doc.Key,
		Name:         doc.Name,
		ResourceName: resource.Name,
		Nodes:        make([]models.Node, 0, len(doc.Nodes)),
		Transitions:  make([]models.Transition, 0, len(doc.Transitions)),
	}

	if definition.Name == "" {
		definition.Name = doc.Key
	}

	ids := make(map[string]string) // id -> "node" | "transition"

	for _, n := range doc.Nodes {
		if kind, ok := ids[n.ID]; ok {
			return nil, invalid(resource.Name, "duplicate id %q (already used by a %s)", n.ID, kind)
		}

		ids[n.ID] = "node"

		node := models.Node{
			ID:              n.ID,
			Type:            n.Type,
			Name:            n.Name,
			Assignee:        n.Assignee,
			CandidateUsers:  n.CandidateUsers,
			CandidateGroups: n.CandidateGroups,
			Listeners:       n.Listeners,
			Default:         n.Default,
		}

		if node.Name == "" {
			node.Name = node.ID
		}

		if err := c.checkNode(resource.Name, node); err != nil {
			return nil, err
		}

		definition.Nodes = append(definition.Nodes, node)
	}

	for i, tr := range doc.Transitions {
		transition := models.Transition{ID: tr.ID, From: tr.From, To: tr.To, Condition: tr.Condition}
		if transition.ID == "" {
			transition.ID = fmt.Sprintf("%s_%s_%d", tr.From, tr.To, i)
		}

		if kind, ok := ids[transition.ID]; ok {
			return nil, invalid(resource.Name, "duplicate id %q (already used by a %s)", transition.ID, kind)
		}

		ids[transition.ID] = "transition"

		if ids[transition.From] != "node" {
			return nil, invalid(resource.Name, "transition %q references unknown source node %q", transition.ID, transition.From)
		}

		if ids[transition.To] != "node" {
			return nil, invalid(resource.Name, "transition %q references unknown target node %q", transition.ID, transition.To)
		}

		if err := c.checkExpression(resource.Name, "transition "+transition.ID, transition.Condition); err != nil {
			return nil, err
		}

		definition.Transitions = append(definition.Transitions, transition)
	}

	if err := checkGraph(resource.Name, definition); err != nil {
		return nil, err
	}

	return definition, nil
}

func (c *Compiler) checkNode(resource string, node models.Node) error {
	if !node.Type.Valid() {
		return invalid(resource, "node %q has unsupported type %q", node.ID, node.Type)
	}

	if node.Type != models.NodeTypeUserTask &&
		(node.Assignee != "" || len(node.CandidateUsers) > 0 || len(node.CandidateGroups) > 0 || len(node.Listeners) > 0) {
		return invalid(resource, "node %q of type %s cannot declare assignment", node.ID, node.Type)
	}

	if node.Default != "" && node.Type != models.NodeTypeExclusiveGateway {
		return invalid(resource, "node %q of type %s cannot declare a default transition", node.ID, node.Type)
	}

	exprs := append([]string{node.Assignee}, node.CandidateUsers...)
	exprs = append(exprs, node.CandidateGroups...)

	for _, expr := range exprs {
		if err := c.checkExpression(resource, "node "+node.ID, expr); err != nil {
			return err
		}
	}

	if c.knownListener != nil {
		for _, name := range node.Listeners {
			if !c.knownListener(name) {
				return invalid(resource, "node %q references unknown listener %q", node.ID, name)
			}
		}
	}

	return nil
}

func (c *Compiler) checkExpression(resource, owner, expr string) error {
	if expr == "" || c.validator == nil {
		return nil
	}

	if err := c.validator.Validate(expr); err != nil {
		return invalid(resource, "%s has an invalid expression: %v", owner, err)
	}

	return nil
}

func checkGraph(resource string, definition *models.ProcessDefinition) error {
	if len(definition.StartNodes()) == 0 {
		return invalid(resource, "no start node")
	}

	for _, node := range definition.Nodes {
		incoming := definition.Incoming(node.ID)
		outgoing := definition.Outgoing(node.ID)

		switch node.Type {
		case models.NodeTypeStartEvent:
			if len(incoming) > 0 {
				return invalid(resource, "start node %q has incoming transitions", node.ID)
			}
		case models.NodeTypeEndEvent:
			if len(outgoing) > 0 {
				return invalid(resource, "end node %q has outgoing transitions", node.ID)
			}
		case models.NodeTypeExclusiveGateway:
			if node.Default == "" {
				break
			}

			found := false

			for _, transition := range outgoing {
				if transition.ID == node.Default {
					found = true

					break
				}
			}

			if !found {
				return invalid(resource, "default transition %q is not an outgoing transition of %q", node.Default, node.ID)
			}
		}
	}

	if cycle := findAutomaticCycle(definition); cycle != "" {
		return invalid(resource, "node %q is part of a cycle without a wait state", cycle)
	}

	return nil
}

// findAutomaticCycle returns a node on a cycle that never reaches a wait state, or "".
// Such a cycle would advance tokens forever.
func findAutomaticCycle(definition *models.ProcessDefinition) string {
	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(definition.Nodes))

	var visit func(node models.Node) string

	visit = func(node models.Node) string {
		state[node.ID] = visiting

		for _, transition := range definition.Outgoing(node.ID) {
			target, _ := definition.Node(transition.To)
			if target.Type.IsWaitState() {
				continue
			}

			switch state[target.ID] {
			case visiting:
				return target.ID
			case unvisited:
				if found := visit(target); found != "" {
					return found
				}
			}
		}

		state[node.ID] = done

		return ""
	}

	for _, node := range definition.Nodes {
		if node.Type.IsWaitState() || state[node.ID] != unvisited {
			continue
		}

		if found := visit(node); found != "" {
			return found
		}
	}

	return ""
}
