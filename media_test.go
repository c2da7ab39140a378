package savex

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkerboard() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			c := color.NRGBA{R: 255, A: 255}
			if (x+y)%2 == 0 {
				c = color.NRGBA{B: 255, A: 255}
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestImageRoundTrip(t *testing.T) {
	ctx := context.Background()
	e := NewTestEngine(t)

	t.Run("png is lossless", func(t *testing.T) {
		cfg := mustConfig(t, e, "shots/board.png", WithEncryption("pw"))
		want := checkerboard()
		require.NoError(t, e.SaveImage(ctx, want, 0, cfg))

		got, err := e.LoadImage(ctx, cfg)
		require.NoError(t, err)
		require.Equal(t, want.Bounds(), got.Bounds())
		for y := 0; y < 8; y++ {
			for x := 0; x < 8; x++ {
				assert.Equal(t, want.At(x, y), color.NRGBAModel.Convert(got.At(x, y)))
			}
		}
	})

	t.Run("jpeg", func(t *testing.T) {
		cfg := mustConfig(t, e, "shots/board.JPG", WithLocation(KeyValue))
		require.NoError(t, e.SaveImage(ctx, checkerboard(), 90, cfg))

		got, err := e.LoadImage(ctx, cfg)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 8, 8), got.Bounds())
	})

	t.Run("unknown extension", func(t *testing.T) {
		err := e.SaveImage(ctx, checkerboard(), 0, mustConfig(t, e, "board.gif"))
		assert.ErrorIs(t, err, ErrFormat)
	})

	t.Run("not an image", func(t *testing.T) {
		cfg := mustConfig(t, e, "fake.png")
		require.NoError(t, e.SaveRaw(ctx, []byte("definitely not png"), cfg))
		_, err := e.LoadImage(ctx, cfg)
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestLoadAudio(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		platform string
		path     string
		want     AudioFormat
		wantErr  error
	}{
		{platform: "linux", path: "music/theme.ogg", want: AudioOGG},
		{platform: "linux", path: "music/theme.mp3", want: AudioMP3},
		{platform: "windows", path: "music/theme.mp3", wantErr: ErrFormat},
		{platform: "darwin", path: "music/theme.mp3", wantErr: ErrFormat},
		{platform: "android", path: "music/theme.ogg", wantErr: ErrFormat},
		{platform: "ios", path: "music/theme.wav", want: AudioWAV},
		{platform: "linux", path: "music/theme.XM", want: AudioTracker},
		{platform: "linux", path: "music/theme.flac", wantErr: ErrFormat},
		{platform: "js", path: "music/theme.ogg", wantErr: ErrFormat},
	}

	for _, tt := range tests {
		t.Run(tt.platform+" "+tt.path, func(t *testing.T) {
			e := NewTestEngine(t, WithPlatform(tt.platform))
			cfg := mustConfig(t, e, tt.path)
			if tt.platform != "js" {
				require.NoError(t, e.SaveRaw(ctx, []byte("RIFF"), cfg))
			}

			clip, err := e.LoadAudio(ctx, cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "theme", clip.Name)
			assert.Equal(t, tt.want, clip.Format)
			assert.Equal(t, []byte("RIFF"), clip.Data)
		})
	}

	e := NewTestEngine(t)
	_, err := e.LoadAudio(ctx, mustConfig(t, e, "theme.ogg", WithLocation(KeyValue)))
	assert.ErrorIs(t, err, ErrUnsupportedOperation)
}
