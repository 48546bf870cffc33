package anpr

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cortexvms/vms-core/internal/vmscore"
)

// CLIDetector shells out to an external detector binary, grounded on
// transcoder.FFmpegDriver's runOnce pattern: one bounded subprocess per
// call, stdout parsed as JSON rather than waited on for a file.
//
// The binary is invoked as `<binary> <framePath>` and must print a JSON
// array of regions to stdout:
//
//	[{"x":10,"y":20,"w":80,"h":30,"confidence":0.92}, ...]
type CLIDetector struct {
	binaryPath string
}

// NewCLIDetector resolves the detector binary from the environment
// variable named by binaryPathEnv. An empty result is valid; Detect then
// fails fast with a Fatal error rather than silently trying to exec "".
func NewCLIDetector(binaryPathEnv string) *CLIDetector {
	return &CLIDetector{binaryPath: os.Getenv(binaryPathEnv)}
}

type cliRegion struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	W          int     `json:"w"`
	H          int     `json:"h"`
	Confidence float64 `json:"confidence"`
}

// Detect implements Detector.
func (d *CLIDetector) Detect(ctx context.Context, framePath string) ([]Region, error) {
	if d.binaryPath == "" {
		return nil, vmscore.New(vmscore.KindFatal, "anpr.CLIDetector.Detect", "no detector binary configured")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, d.binaryPath, framePath)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, vmscore.Wrap(vmscore.KindTransient, "anpr.CLIDetector.Detect", "detector process failed: "+stderr.String(), err)
	}

	var raw []cliRegion
	if err := json.Unmarshal(stdout.Bytes(), &raw); err != nil {
		return nil, vmscore.Wrap(vmscore.KindTransient, "anpr.CLIDetector.Detect", "detector produced malformed output", err)
	}

	regions := make([]Region, 0, len(raw))
	for _, r := range raw {
		regions = append(regions, Region{
			BoundingBox: BoundingBox{X: r.X, Y: r.Y, W: r.W, H: r.H},
			Confidence:  r.Confidence,
		})
	}
	return regions, nil
}

// CLIExtractor shells out to an external OCR binary, invoked as
// `<binary> <framePath> <x> <y> <w> <h>`, printing the normalized plate
// string (or an empty line for "no legible plate") to stdout.
type CLIExtractor struct {
	binaryPath string
}

// NewCLIExtractor resolves the extractor binary from the environment
// variable named by binaryPathEnv.
func NewCLIExtractor(binaryPathEnv string) *CLIExtractor {
	return &CLIExtractor{binaryPath: os.Getenv(binaryPathEnv)}
}

// Extract implements Extractor.
func (e *CLIExtractor) Extract(ctx context.Context, framePath string, region Region) (string, error) {
	if e.binaryPath == "" {
		return "", vmscore.New(vmscore.KindFatal, "anpr.CLIExtractor.Extract", "no extractor binary configured")
	}

	b := region.BoundingBox
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.binaryPath,
		framePath,
		strconv.Itoa(b.X), strconv.Itoa(b.Y), strconv.Itoa(b.W), strconv.Itoa(b.H),
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", vmscore.Wrap(vmscore.KindTransient, "anpr.CLIExtractor.Extract", "extractor process failed: "+stderr.String(), err)
	}

	return strings.TrimRight(stdout.String(), "\r\n"), nil
}
