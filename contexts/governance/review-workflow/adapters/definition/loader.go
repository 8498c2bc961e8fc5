// Package definition reads workflow graphs from YAML so new versions can be
// registered without code changes.
package definition

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"hoaportal/contexts/governance/review-workflow/domain/entities"
	domainerrors "hoaportal/contexts/governance/review-workflow/domain/errors"
	"hoaportal/contexts/governance/review-workflow/domain/services"

	"gopkg.in/yaml.v3"
)

var ErrDefinitionNotFound = errors.New("workflow definition file not found")

type edgeDoc struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

type stageDoc struct {
	Status    string `yaml:"status"`
	VoterRole string `yaml:"voter_role"`
	Approved  string `yaml:"approved"`
	Denied    string `yaml:"denied"`
	Returned  string `yaml:"returned"`
}

type workflowDoc struct {
	Version     int                  `yaml:"version"`
	Initial     string               `yaml:"initial"`
	Submitted   string               `yaml:"submitted"`
	States      []string             `yaml:"states"`
	Terminal    []string             `yaml:"terminal"`
	Edges       []edgeDoc            `yaml:"edges"`
	Roles       map[string][]edgeDoc `yaml:"roles"`
	Stages      []stageDoc           `yaml:"stages"`
	AutoAdvance []edgeDoc            `yaml:"auto_advance,omitempty"`
}

type fileDoc struct {
	Workflows []workflowDoc `yaml:"workflows"`
}

// Load reads and validates a definition file.
func Load(path string) ([]services.GraphSpec, error) {
	raw, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDefinitionNotFound, path)
		}
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a definition document. Unknown keys are rejected, and the
// result is checked by building a validator from it.
func Parse(data []byte) ([]services.GraphSpec, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var file fileDoc
	if err := decoder.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty definition", domainerrors.ErrInvalidWorkflowDefinition)
		}
		return nil, fmt.Errorf("%w: %v", domainerrors.ErrInvalidWorkflowDefinition, err)
	}
	if len(file.Workflows) == 0 {
		return nil, fmt.Errorf("%w: no workflows declared", domainerrors.ErrInvalidWorkflowDefinition)
	}

	specs := make([]services.GraphSpec, 0, len(file.Workflows))
	for _, doc := range file.Workflows {
		specs = append(specs, doc.spec())
	}
	if _, err := services.NewValidator(specs...); err != nil {
		return nil, err
	}
	return specs, nil
}

// Encode renders specs in the format Parse accepts. Role keys are emitted in
// sorted order so output is stable.
func Encode(specs []services.GraphSpec) ([]byte, error) {
	file := fileDoc{Workflows: make([]workflowDoc, 0, len(specs))}
	for _, spec := range specs {
		file.Workflows = append(file.Workflows, documentFor(spec))
	}
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(file); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (d workflowDoc) spec() services.GraphSpec {
	spec := services.GraphSpec{
		Version:     entities.WorkflowVersion(d.Version),
		Initial:     status(d.Initial),
		Submitted:   status(d.Submitted),
		States:      statuses(d.States),
		Terminal:    statuses(d.Terminal),
		Edges:       edges(d.Edges),
		RoleEdges:   make(map[entities.Role][]services.Edge, len(d.Roles)),
		AutoAdvance: edges(d.AutoAdvance),
	}
	for role, items := range d.Roles {
		spec.RoleEdges[entities.Role(strings.TrimSpace(role))] = edges(items)
	}
	for _, stage := range d.Stages {
		spec.Stages = append(spec.Stages, services.ReviewStageSpec{
			Status:    status(stage.Status),
			VoterRole: entities.Role(strings.TrimSpace(stage.VoterRole)),
			Approved:  status(stage.Approved),
			Denied:    status(stage.Denied),
			Returned:  status(stage.Returned),
		})
	}
	return spec
}

func documentFor(spec services.GraphSpec) workflowDoc {
	doc := workflowDoc{
		Version:     int(spec.Version),
		Initial:     string(spec.Initial),
		Submitted:   string(spec.Submitted),
		States:      names(spec.States),
		Terminal:    names(spec.Terminal),
		Edges:       edgeDocs(spec.Edges),
		Roles:       make(map[string][]edgeDoc, len(spec.RoleEdges)),
		AutoAdvance: edgeDocs(spec.AutoAdvance),
	}
	roles := make([]string, 0, len(spec.RoleEdges))
	for role := range spec.RoleEdges {
		roles = append(roles, string(role))
	}
	sort.Strings(roles)
	for _, role := range roles {
		doc.Roles[role] = edgeDocs(spec.RoleEdges[entities.Role(role)])
	}
	for _, stage := range spec.Stages {
		doc.Stages = append(doc.Stages, stageDoc{
			Status:    string(stage.Status),
			VoterRole: string(stage.VoterRole),
			Approved:  string(stage.Approved),
			Denied:    string(stage.Denied),
			Returned:  string(stage.Returned),
		})
	}
	return doc
}

func status(value string) entities.RequestStatus {
	return entities.RequestStatus(strings.TrimSpace(value))
}

func statuses(values []string) []entities.RequestStatus {
	items := make([]entities.RequestStatus, 0, len(values))
	for _, value := range values {
		items = append(items, status(value))
	}
	return items
}

func names(values []entities.RequestStatus) []string {
	items := make([]string, 0, len(values))
	for _, value := range values {
		items = append(items, string(value))
	}
	return items
}

func edges(docs []edgeDoc) []services.Edge {
	if len(docs) == 0 {
		return nil
	}
	items := make([]services.Edge, 0, len(docs))
	for _, doc := range docs {
		items = append(items, services.Edge{From: status(doc.From), To: status(doc.To)})
	}
	return items
}

func edgeDocs(values []services.Edge) []edgeDoc {
	if len(values) == 0 {
		return nil
	}
	items := make([]edgeDoc, 0, len(values))
	for _, edge := range values {
		items = append(items, edgeDoc{From: string(edge.From), To: string(edge.To)})
	}
	return items
}
