package video

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chenBenjamin97/pose-compare/pkg/compare"
	"github.com/chenBenjamin97/pose-compare/pkg/pose"
)

//closeGrace is how long Close waits for the process to exit on its own before killing it
const closeGrace = 3 * time.Second

//CommandEstimator runs an external pose model (e.g. a MediaPipe BlazePose script) as a long lived process.
//Frames go to its standard input and poses come back on its standard output, one JSON object per line.
//Lines that are not JSON objects are treated as the process' log prints and skipped.
type CommandEstimator struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	log   *slog.Logger

	resp chan estimateResponse
	quit chan struct{}
	//done is closed once the process exited and waitErr is set
	done    chan struct{}
	waitErr error

	mu     sync.Mutex
	nextID int
	closed bool
}

//commandArgs builds the process' argv from the configured command line and model settings
func commandArgs(cfg compare.EstimatorConfig) ([]string, error) {
	fields := strings.Fields(cfg.Command)
	if len(fields) == 0 {
		return nil, errors.New("no estimator command configured")
	}

	argv := append([]string{}, fields...)
	argv = append(argv,
		"--model", cfg.Model,
		"--quality", cfg.Quality,
		"--smoothing="+strconv.FormatBool(cfg.Smoothing),
		"--segmentation="+strconv.FormatBool(cfg.Segmentation),
	)
	if cfg.ModelPath != "" {
		argv = append(argv, "--model-path", cfg.ModelPath)
	}
	return argv, nil
}

//StartCommandEstimator starts the process and waits until it reports its model is loaded
func StartCommandEstimator(ctx context.Context, cfg compare.EstimatorConfig, logger *slog.Logger) (*CommandEstimator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	argv, err := commandArgs(cfg)
	if err != nil {
		return nil, err
	}

	//not CommandContext: the process outlives the context it was loaded under
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("StartCommandEstimator: could not get standard input, got '%w'", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("StartCommandEstimator: could not get standard output, got '%w'", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("StartCommandEstimator: could not start '%s', got '%w'", argv[0], err)
	}

	e := &CommandEstimator{
		cmd:   cmd,
		stdin: stdin,
		log:   logger.With("estimator", "command", "pid", cmd.Process.Pid),
		resp:  make(chan estimateResponse),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go e.read(stdout)

	for {
		select {
		case r := <-e.resp:
			if r.Error != "" {
				e.Close()
				return nil, fmt.Errorf("estimator process failed to load: %s", r.Error)
			}
			if r.Ready {
				return e, nil
			}
		case <-e.done:
			return nil, fmt.Errorf("estimator process exited before it was ready: %v", e.waitErr)
		case <-ctx.Done():
			e.Close()
			return nil, ctx.Err()
		}
	}
}

//read forwards every response line until the process closes its output, then reaps the process
func (e *CommandEstimator) read(stdout io.Reader) {
	defer close(e.done)

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 16<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if !bytes.HasPrefix(line, []byte("{")) { //this is a log print, skip it
			if len(line) > 0 {
				e.log.Debug("estimator: process output", "line", string(line))
			}
			continue
		}

		var r estimateResponse
		if err := json.Unmarshal(line, &r); err != nil {
			e.log.Warn("estimator: Error, could not parse process output", "err", err)
			continue
		}
		select {
		case e.resp <- r:
		case <-e.quit:
		}
	}
	if err := scanner.Err(); err != nil {
		e.log.Warn("estimator: Error reading process output", "err", err)
	}

	e.waitErr = e.cmd.Wait()
}

//Estimate sends f to the process and waits for its answer. Answers to calls abandoned earlier are dropped.
func (e *CommandEstimator) Estimate(ctx context.Context, f compare.Frame, opts compare.EstimateOptions) ([]*pose.Pose, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.New("estimator is closed")
	}

	img, err := EncodeJPEG(f)
	if err != nil {
		return nil, err
	}

	e.nextID++
	size := f.Size()
	req := estimateRequest{
		ID:             e.nextID,
		Width:          size.X,
		Height:         size.Y,
		JPEG:           img,
		MaxPoses:       opts.MaxPoses,
		FlipHorizontal: opts.FlipHorizontal,
		ScoreThreshold: opts.ScoreThreshold,
	}
	line, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	if _, err := e.stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("failed to send frame to estimator process: %w", err)
	}

	for {
		select {
		case r := <-e.resp:
			if r.ID != req.ID {
				e.log.Debug("estimator: dropping stale answer", "id", r.ID, "want", req.ID)
				continue
			}
			if r.Error != "" {
				return nil, errors.New(r.Error)
			}
			poses, unknown := posesOf(r, opts.MaxPoses)
			if len(unknown) > 0 {
				e.log.Debug("estimator: dropped keypoints outside the schema", "names", unknown)
			}
			return poses, nil
		case <-e.done:
			return nil, fmt.Errorf("estimator process exited: %v", e.waitErr)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

//Close ends the process: its input is closed so it can exit by itself, it is killed if it does not
func (e *CommandEstimator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.quit)
	e.stdin.Close()

	select {
	case <-e.done:
	case <-time.After(closeGrace):
		e.log.Warn("estimator: process did not exit, killing it")
		e.cmd.Process.Kill()
		<-e.done
	}

	var exitErr *exec.ExitError
	if e.waitErr != nil && !errors.As(e.waitErr, &exitErr) {
		return e.waitErr
	}
	return nil
}
