package core

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"sign-lang-pipeline/internal/core/types"
	"testing"

	"github.com/stretchr/testify/require"
)

const testDataYaml = `train: train/images
val: valid/images
test: test/images
nc: 2
names: ["hello", "thanks"]
`

func writeZip(t *testing.T, path string, files map[string]string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), os.ModePerm))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func datasetFiles() map[string]string {
	return map[string]string{
		"signs/train/images/a.jpg":   "a",
		"signs/train/labels/a.txt":   "0 0.5 0.5 0.1 0.1",
		"signs/valid/images/b.jpg":   "b",
		"signs/valid/labels/b.txt":   "1 0.5 0.5 0.1 0.1",
		"signs/test/images/c.jpg":    "c",
		"signs/data.yaml":            testDataYaml,
		"__MACOSX/signs/._data.yaml": "",
	}
}

// fakeDetector mimics the training framework by leaving a checkpoint where
// the framework would.
type fakeDetector struct {
	calls      []types.TrainParams
	checkpoint string
	err        error
	released   bool
}

func (d *fakeDetector) Train(ctx context.Context, params types.TrainParams) error {
	d.calls = append(d.calls, params)
	if d.err != nil {
		return d.err
	}
	if d.checkpoint == "" {
		return nil
	}

	path := filepath.Join(params.Project, params.Name, "weights", "best.pt")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(d.checkpoint), 0644)
}

func (d *fakeDetector) Release() {
	d.released = true
}

func fakeLoader(detector *fakeDetector) DetectorLoader {
	return func(weights string) (Detector, error) {
		return detector, nil
	}
}
