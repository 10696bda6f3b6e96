package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/nfse-reader/internal/common"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	cfg := common.LoadConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = ":memory:"
	cfg.Storage.TempDir = filepath.Join(t.TempDir(), "uploads")
	cfg.Layout.LayoutFile = ""
	cfg.Layout.Name = "fortaleza"
	return cfg
}

func TestSelectLayout(t *testing.T) {
	l, err := SelectLayout(common.LayoutConfig{Name: "fortaleza"})
	require.NoError(t, err)
	assert.Len(t, l.Regions, 13)

	_, err = SelectLayout(common.LayoutConfig{Name: "recife"})
	assert.Error(t, err)
}

func TestSelectLayoutFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recife.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`name: recife
dpi: 300
regions:
  - name: numero_nfse
    field: invoice_number
    kind: number
    rect: {y_start: 10, y_end: 50, x_start: 10, x_end: 200}
`), 0o644))

	l, err := SelectLayout(common.LayoutConfig{Name: "recife", LayoutFile: path})
	require.NoError(t, err)
	assert.Equal(t, "recife", l.Name)
	require.Len(t, l.Regions, 1)

	_, err = SelectLayout(common.LayoutConfig{Name: "recife", LayoutFile: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestRenderDPIFollowsLayout(t *testing.T) {
	l, err := SelectLayout(common.LayoutConfig{Name: "fortaleza"})
	require.NoError(t, err)

	assert.Equal(t, 300, RenderDPI(l, 200, nil))
	assert.Equal(t, 300, RenderDPI(l, 300, nil))

	l.DPI = 0
	assert.Equal(t, 200, RenderDPI(l, 200, nil))
}

func TestNewPipelineRendersAtLayoutDPI(t *testing.T) {
	cfg := testConfig(t)
	cfg.OCR.DPI = 200

	// pipeline.New refuses a renderer whose DPI differs from the layout's
	p, err := NewPipeline(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestNewWiresEverything(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.NoError(t, a.Health(ctx))
	assert.NotNil(t, a.Pipeline)

	st, err := a.Executor.Status(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, st)

	data, err := a.Export.TasksXLSX(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
