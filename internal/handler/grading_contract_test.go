package handler_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func TestGradingSessionContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "grading_session.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)

	f := newGradingFixture(t)
	session := f.start(t)

	for _, path := range []string{
		fmt.Sprintf("/api/v1/grading/sessions/%d", session.ID),
		fmt.Sprintf("/api/v1/grading/submissions/%d/sessions/current", f.submissionID),
	} {
		resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)

		var payload interface{}
		require.NoError(t, json.Unmarshal(body, &payload))
		require.NoError(t, schema.Validate(payload), path)
	}
}
