package tools

import (
	"context"
	"fmt"
	"path"

	"github.com/charmbracelet/log"
	"github.com/researchmesh/a2a-go/pkg/errors"
)

/*
LocalRunner executes the builtin research tools in-process with
placeholder computations. It exists so a mesh can be exercised end to
end without the heavyweight analysis stack; production deployments
substitute a Runner that shells out to the real sandbox.
*/
type LocalRunner struct {
	outputDir string
}

func NewLocalRunner(outputDir string) *LocalRunner {
	if outputDir == "" {
		outputDir = "/outputs"
	}

	return &LocalRunner{outputDir: outputDir}
}

func (runner *LocalRunner) Execute(ctx context.Context, toolID string, inputs map[string]any) (map[string]any, error) {
	log.Info("executing tool", "tool", toolID)

	switch toolID {
	case "kaggle.dataset.download":
		return runner.downloadDataset(inputs)
	case "analyzer.eda":
		return runner.runEDA(inputs)
	case "executor.run_code":
		return runner.runCode(inputs)
	case "ml.train_model":
		return runner.trainModel(inputs)
	case "report.generate":
		return runner.generateReport(inputs)
	default:
		return nil, errors.ErrExecution.WithMessagef("tool %s not implemented", toolID)
	}
}

func (runner *LocalRunner) downloadDataset(inputs map[string]any) (map[string]any, error) {
	ref, _ := inputs["dataset_ref"].(string)

	return map[string]any{
		"dataset_path": path.Join("/data", ref),
		"files":        []string{"data.csv"},
		"size_mb":      10.5,
	}, nil
}

func (runner *LocalRunner) runEDA(inputs map[string]any) (map[string]any, error) {
	datasetPath, _ := inputs["dataset_path"].(string)

	if datasetPath == "" {
		return nil, errors.ErrExecution.WithMessagef("dataset_path is empty")
	}

	return map[string]any{
		"summary_stats":  map[string]any{"mean": 42.0, "std": 10.0},
		"missing_data":   map[string]any{"col1": 5},
		"correlations":   map[string]any{"col1_col2": 0.85},
		"visualizations": []string{path.Join(runner.outputDir, "corr_heatmap.png")},
		"report_path":    path.Join(runner.outputDir, "eda_report.md"),
	}, nil
}

func (runner *LocalRunner) runCode(inputs map[string]any) (map[string]any, error) {
	scriptPath, _ := inputs["script_path"].(string)

	if scriptPath == "" {
		return nil, errors.ErrExecution.WithMessagef("script_path is empty")
	}

	return map[string]any{
		"stdout":    "Execution completed",
		"stderr":    "",
		"artifacts": []string{path.Join(runner.outputDir, "result.csv")},
		"exit_code": 0,
	}, nil
}

func (runner *LocalRunner) trainModel(inputs map[string]any) (map[string]any, error) {
	target, _ := inputs["target_column"].(string)

	return map[string]any{
		"model_path":    path.Join(runner.outputDir, "model.bin"),
		"target_column": target,
		"metrics":       map[string]any{"accuracy": 0.91, "f1": 0.88},
	}, nil
}

func (runner *LocalRunner) generateReport(inputs map[string]any) (map[string]any, error) {
	format, _ := inputs["format"].(string)

	if format == "" {
		format = "markdown"
	}

	return map[string]any{
		"report_path": path.Join(runner.outputDir, fmt.Sprintf("report.%s", format)),
		"format":      format,
	}, nil
}

var _ Runner = (*LocalRunner)(nil)
var _ Runner = (RunnerFunc)(nil)
