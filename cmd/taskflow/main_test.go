package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/taskflow/pkg/engine"
	"github.com/dukex/taskflow/pkg/expression"
	"github.com/dukex/taskflow/pkg/log"
	"github.com/dukex/taskflow/pkg/models"
	"github.com/dukex/taskflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const holidayYAML = `
key: holiday
name: Holiday request
nodes:
  - {id: start, type: startEvent}
  - {id: approve, type: userTask, candidateGroups: management}
  - {id: end, type: endEvent}
transitions:
  - {from: start, to: approve}
  - {from: approve, to: end}
`

func writeResource(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	command := newCommand()
	command.Writer = &out
	command.ErrWriter = io.Discard

	err := command.Run(context.Background(), append([]string{"taskflow"}, args...))

	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", writeResource(t, "holiday.yaml", holidayYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "holiday: ok")

	_, err = run(t, "validate", writeResource(t, "broken.yaml", "key: broken\nnodes: []\n"))
	require.ErrorIs(t, err, models.ErrInvalidDefinition)

	_, err = run(t, "validate")
	assert.Error(t, err)
}

func TestValidateCommand_ExpressionLanguage(t *testing.T) {
	resource := writeResource(t, "templated.yaml", `
key: templated
nodes:
  - {id: start, type: startEvent}
  - {id: approve, type: userTask, assignee: "{{ .owner "}
  - {id: end, type: endEvent}
transitions:
  - {from: start, to: approve}
  - {from: approve, to: end}
`)

	_, err := run(t, "validate", resource)
	require.NoError(t, err)

	_, err = run(t, "--expression-language", "template", "validate", resource)
	require.ErrorIs(t, err, models.ErrInvalidDefinition)

	_, err = run(t, "--expression-language", "juel", "validate", resource)
	require.ErrorIs(t, err, expression.ErrUnknownLanguage)
}

func TestDeployCommand(t *testing.T) {
	dir := t.TempDir()
	resource := writeResource(t, "holiday.yaml", holidayYAML)

	out, err := run(t, "--database-url", "file://"+dir, "deploy", "--name", "holidays", "--tenant", "acme", resource)
	require.NoError(t, err)
	assert.Contains(t, out, "deployment ")
	assert.Contains(t, out, "holiday:1:")

	_, err = run(t, "--database-url", "file://"+dir, "deploy", "--name", "holidays", "--tenant", "acme", resource)
	require.NoError(t, err)

	e := engine.New(log.Discard(), file.NewPersistence(dir))
	require.NoError(t, e.Load(context.Background()))

	def, err := e.Catalog().ResolveLatest("holiday", "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, def.Version)
}

func TestAPI(t *testing.T) {
	e := engine.New(log.Discard(), file.NewPersistence(t.TempDir()))
	require.NoError(t, e.Load(context.Background()))

	app := NewAPI(log.Discard(), e).App()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "taskflow API", string(body))

	req = httptest.NewRequest(http.MethodGet, "/livez", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/process-definitions", nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var definitions []models.ProcessDefinition
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&definitions))
	assert.Empty(t, definitions)
}
