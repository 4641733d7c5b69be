package persistence

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/dukex/taskflow/pkg/models"
)

// Snapshot is the full persisted state, decoded and deterministically ordered.
type Snapshot struct {
	Deployments []*models.Deployment
	Definitions []*models.ProcessDefinition
	Instances   []*models.ProcessInstance
	Tasks       []*models.Task
	Variables   []*models.Variable
	History     []*models.HistoricVariableUpdate
	Users       []*models.User
	Groups      []*models.Group
	Tenants     []*models.Tenant
	Memberships []models.Membership
}

// DecodeSnapshot decodes raw rows into a snapshot.
func DecodeSnapshot(rows Rows) (*Snapshot, error) {
	snapshot := &Snapshot{}

	var err error

	if snapshot.Deployments, err = decodeTable[models.Deployment](rows, TableDeployment); err != nil {
		return nil, err
	}

	if snapshot.Definitions, err = decodeTable[models.ProcessDefinition](rows, TableProcessDefinition); err != nil {
		return nil, err
	}

	if snapshot.Instances, err = decodeTable[models.ProcessInstance](rows, TableProcessInstance); err != nil {
		return nil, err
	}

	if snapshot.Tasks, err = decodeTable[models.Task](rows, TableTask); err != nil {
		return nil, err
	}

	if snapshot.Variables, err = decodeTable[models.Variable](rows, TableVariable); err != nil {
		return nil, err
	}

	if snapshot.History, err = decodeTable[models.HistoricVariableUpdate](rows, TableVariableHistory); err != nil {
		return nil, err
	}

	if snapshot.Users, err = decodeTable[models.User](rows, TableUser); err != nil {
		return nil, err
	}

	if snapshot.Groups, err = decodeTable[models.Group](rows, TableGroup); err != nil {
		return nil, err
	}

	if snapshot.Tenants, err = decodeTable[models.Tenant](rows, TableTenant); err != nil {
		return nil, err
	}

	memberships, err := decodeTable[models.Membership](rows, TableMembership)
	if err != nil {
		return nil, err
	}

	for _, membership := range memberships {
		snapshot.Memberships = append(snapshot.Memberships, *membership)
	}

	snapshot.sort()

	return snapshot, nil
}

func decodeTable[T any](rows Rows, table Table) ([]*T, error) {
	result := make([]*T, 0, len(rows[table]))

	for id, data := range rows[table] {
		var value T
		if err := json.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s: %w", table, id, err)
		}

		result = append(result, &value)
	}

	return result, nil
}

func (s *Snapshot) sort() {
	slices.SortFunc(s.Deployments, func(a, b *models.Deployment) int {
		return cmp.Or(a.DeployedAt.Compare(b.DeployedAt), cmp.Compare(a.ID, b.ID))
	})
	slices.SortFunc(s.Definitions, func(a, b *models.ProcessDefinition) int {
		return cmp.Or(cmp.Compare(a.Key, b.Key), cmp.Compare(a.TenantID, b.TenantID), cmp.Compare(a.Version, b.Version))
	})
	slices.SortFunc(s.Instances, func(a, b *models.ProcessInstance) int {
		return cmp.Or(a.StartedAt.Compare(b.StartedAt), cmp.Compare(a.ID, b.ID))
	})
	slices.SortFunc(s.Tasks, func(a, b *models.Task) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	slices.SortFunc(s.Variables, func(a, b *models.Variable) int {
		return cmp.Compare(a.Key(), b.Key())
	})
	slices.SortFunc(s.History, func(a, b *models.HistoricVariableUpdate) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	slices.SortFunc(s.Users, func(a, b *models.User) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Groups, func(a, b *models.Group) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Tenants, func(a, b *models.Tenant) int { return cmp.Compare(a.ID, b.ID) })
	slices.SortFunc(s.Memberships, func(a, b models.Membership) int { return cmp.Compare(a.Key(), b.Key()) })
}
