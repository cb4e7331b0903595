package core

import (
	"context"
	"fmt"
	"sign-lang-pipeline/internal/core/external"
	"sign-lang-pipeline/internal/core/types"
	"sign-lang-pipeline/internal/core/yolo"
)

// DetectorType selects how the object-detection framework is driven.
type DetectorType string

const (
	YoloCli    DetectorType = "yolo_cli"
	YoloPlugin DetectorType = "yolo_plugin"
)

type Detector interface {
	Train(ctx context.Context, params types.TrainParams) error

	Release()
}

// DetectorLoader constructs a pretrained detector from a weight name or path.
type DetectorLoader func(weights string) (Detector, error)

func ParseDetectorType(s string) (DetectorType, error) {
	switch DetectorType(s) {
	case YoloCli, YoloPlugin:
		return DetectorType(s), nil
	case "":
		return YoloCli, nil
	default:
		return "", fmt.Errorf("invalid detector type '%s', must be one of %s, %s", s, YoloCli, YoloPlugin)
	}
}

func NewDetectorLoaders(yoloExec, pluginPath string) map[DetectorType]DetectorLoader {
	return map[DetectorType]DetectorLoader{
		YoloCli: func(weights string) (Detector, error) {
			return yolo.NewCLIDetector(yoloExec, weights)
		},
		YoloPlugin: func(weights string) (Detector, error) {
			if pluginPath == "" {
				return nil, fmt.Errorf("trainer plugin path is not configured")
			}
			return external.LoadPluginDetector(pluginPath, weights)
		},
	}
}
