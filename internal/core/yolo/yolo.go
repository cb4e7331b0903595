package yolo

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sign-lang-pipeline/internal/core/types"
	"strconv"
	"strings"
	"sync"
)

const DefaultExecutable = "yolo"

// CLIDetector drives Ultralytics training through the yolo command line
// entry point.
type CLIDetector struct {
	executable string
	weights    string
}

func NewCLIDetector(executable, weights string) (*CLIDetector, error) {
	if executable == "" {
		executable = DefaultExecutable
	}
	if weights == "" {
		return nil, fmt.Errorf("pretrained weight name is required")
	}

	path, err := exec.LookPath(executable)
	if err != nil {
		return nil, fmt.Errorf("yolo executable %q not found: %w", executable, err)
	}

	return &CLIDetector{executable: path, weights: weights}, nil
}

func TrainArgs(weights string, params types.TrainParams) []string {
	args := []string{
		"detect", "train",
		"model=" + weights,
		"data=" + params.Data,
		"epochs=" + strconv.Itoa(params.Epochs),
		"batch=" + strconv.Itoa(params.Batch),
		"imgsz=" + strconv.Itoa(params.ImageSize),
		"name=" + params.Name,
		"cache=" + pythonBool(params.Cache),
		"exist_ok=True",
	}
	if params.Project != "" {
		args = append(args, "project="+params.Project)
	}
	return args
}

func (d *CLIDetector) Train(ctx context.Context, params types.TrainParams) error {
	cmd := exec.CommandContext(ctx, d.executable, TrainArgs(d.weights, params)...)
	cmd.Dir = params.WorkDir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("error attaching to yolo stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("error attaching to yolo stderr: %w", err)
	}

	slog.Info("starting yolo training", "args", strings.Join(cmd.Args, " "), "dir", cmd.Dir)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting yolo: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLogs(&wg, stdout, "stdout")
	go streamLogs(&wg, stderr, "stderr")
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("yolo training interrupted: %w", ctx.Err())
		}
		return fmt.Errorf("yolo training exited with error: %w", err)
	}

	return nil
}

func (d *CLIDetector) Release() {}

func streamLogs(wg *sync.WaitGroup, r io.Reader, stream string) {
	defer wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			slog.Info("yolo", "stream", stream, "line", line)
		}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("error reading yolo output", "stream", stream, "error", err)
	}
}

func pythonBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
