package classify_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/cloud-gallery/pkg/gallery"
	"github.com/tendant/cloud-gallery/pkg/gallery/classify"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestStatic(t *testing.T) {
	c := classify.NewStatic("cat", "indoor")
	labels, err := c.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "indoor"}, labels)

	// callers may not mutate the configured labels
	labels[0] = "dog"
	again, _ := c.Classify(context.Background(), nil)
	assert.Equal(t, "cat", again[0])
}

func TestHeuristic(t *testing.T) {
	tests := []struct {
		name  string
		w, h  int
		color color.Color
		want  []string
	}{
		{"red landscape", 40, 20, color.RGBA{R: 220, G: 10, B: 10, A: 255}, []string{"landscape", "red"}},
		{"blue portrait", 20, 40, color.RGBA{R: 10, G: 20, B: 200, A: 255}, []string{"portrait", "blue"}},
		{"dark square", 16, 16, color.Black, []string{"square", "dark"}},
		{"white square", 16, 16, color.White, []string{"square", "bright"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			labels, err := classify.Heuristic{}.Classify(context.Background(), solidPNG(t, tt.w, tt.h, tt.color))
			require.NoError(t, err)
			assert.Equal(t, tt.want, labels)
		})
	}

	_, err := classify.Heuristic{}.Classify(context.Background(), []byte("nope"))
	assert.ErrorIs(t, err, gallery.ErrInvalidImage)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"Dog", "pet"}, classify.Normalize([]string{" Dog ", "", "pet", "dog", "Pet"}))
}

type fakeRekognition struct {
	input *rekognition.DetectLabelsInput
	out   *rekognition.DetectLabelsOutput
	err   error
}

func (f *fakeRekognition) DetectLabels(_ context.Context, in *rekognition.DetectLabelsInput, _ ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error) {
	f.input = in
	return f.out, f.err
}

func TestRekognition(t *testing.T) {
	src := solidPNG(t, 32, 32, color.RGBA{G: 200, A: 255})

	t.Run("OrdersByConfidence", func(t *testing.T) {
		fake := &fakeRekognition{out: &rekognition.DetectLabelsOutput{Labels: []types.Label{
			{Name: aws.String("Plant"), Confidence: aws.Float32(80)},
			{Name: aws.String("Grass"), Confidence: aws.Float32(99)},
			{Name: nil, Confidence: aws.Float32(100)},
		}}}
		c := classify.NewRekognition(fake, classify.RekognitionConfig{})

		labels, err := c.Classify(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, []string{"Grass", "Plant"}, labels)

		require.NotNil(t, fake.input)
		assert.Equal(t, int32(5), aws.ToInt32(fake.input.MaxLabels))
		_, err = jpeg.DecodeConfig(bytes.NewReader(fake.input.Image.Bytes))
		assert.NoError(t, err, "image sent as jpeg")
	})

	t.Run("ServiceError", func(t *testing.T) {
		fake := &fakeRekognition{err: errors.New("throttled")}
		_, err := classify.NewRekognition(fake, classify.RekognitionConfig{}).Classify(context.Background(), src)
		assert.Error(t, err)
	})

	t.Run("InvalidImage", func(t *testing.T) {
		fake := &fakeRekognition{}
		_, err := classify.NewRekognition(fake, classify.RekognitionConfig{}).Classify(context.Background(), []byte("x"))
		assert.ErrorIs(t, err, gallery.ErrInvalidImage)
		assert.Nil(t, fake.input)
	})
}
