package classify

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/tendant/cloud-gallery/pkg/gallery/thumbnail"
)

// DetectLabelsAPI is the subset of the Rekognition client used here.
type DetectLabelsAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// RekognitionConfig configures the Rekognition classifier
type RekognitionConfig struct {
	MaxLabels     int32
	MinConfidence float32
	// JPEGQuality of the re-encoded image sent to the service.
	JPEGQuality int
}

// Rekognition labels images with AWS Rekognition DetectLabels.
type Rekognition struct {
	api DetectLabelsAPI
	cfg RekognitionConfig
}

// NewRekognition creates a classifier on top of a Rekognition client
func NewRekognition(api DetectLabelsAPI, cfg RekognitionConfig) *Rekognition {
	if cfg.MaxLabels <= 0 {
		cfg.MaxLabels = 5
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 90
	}
	return &Rekognition{api: api, cfg: cfg}
}

// NewRekognitionFromConfig builds the client from an aws.Config
func NewRekognitionFromConfig(awsCfg aws.Config, cfg RekognitionConfig) *Rekognition {
	return NewRekognition(rekognition.NewFromConfig(awsCfg), cfg)
}

// Classify re-encodes the image as JPEG, since the service only accepts
// JPEG and PNG, and returns label names ordered by confidence.
func (c *Rekognition) Classify(ctx context.Context, data []byte) ([]string, error) {
	img, err := thumbnail.Decode(data)
	if err != nil {
		return nil, err
	}
	jpg, err := thumbnail.EncodeJPEG(img, c.cfg.JPEGQuality)
	if err != nil {
		return nil, err
	}

	input := &rekognition.DetectLabelsInput{
		Image:     &types.Image{Bytes: jpg},
		MaxLabels: aws.Int32(c.cfg.MaxLabels),
	}
	if c.cfg.MinConfidence > 0 {
		input.MinConfidence = aws.Float32(c.cfg.MinConfidence)
	}

	out, err := c.api.DetectLabels(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("rekognition detect labels: %w", err)
	}

	found := make([]types.Label, 0, len(out.Labels))
	for _, l := range out.Labels {
		if l.Name != nil {
			found = append(found, l)
		}
	}
	sort.SliceStable(found, func(i, j int) bool {
		return aws.ToFloat32(found[i].Confidence) > aws.ToFloat32(found[j].Confidence)
	})

	labels := make([]string, 0, len(found))
	for _, l := range found {
		labels = append(labels, aws.ToString(l.Name))
	}
	return Normalize(labels), nil
}
