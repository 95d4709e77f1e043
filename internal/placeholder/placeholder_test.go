package placeholder

import (
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnyUserName/tgimg-render/internal/lru"
	"github.com/AnyUserName/tgimg-render/internal/thumbhash"
)

func solid(w, h int, c color.NRGBA) string {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return base64.StdEncoding.EncodeToString(thumbhash.Encode(img))
}

func TestNewHandle_Alphabets(t *testing.T) {
	std := solid(40, 20, color.NRGBA{200, 10, 10, 255})
	h1, err := NewHandle(std)
	require.NoError(t, err)

	raw := strings.TrimRight(std, "=")
	h2, err := NewHandle(raw)
	require.NoError(t, err)
	assert.Equal(t, h1.Raw, h2.Raw)

	urlSafe := strings.NewReplacer("+", "-", "/", "_").Replace(raw)
	h3, err := NewHandle(urlSafe)
	require.NoError(t, err)
	assert.Equal(t, h1.Raw, h3.Raw)

	again, err := NewHandle(std)
	require.NoError(t, err)
	assert.True(t, h1.Equal(again), "same string must map to same id")

	padded, err := NewHandle("  " + std + "\n")
	require.NoError(t, err)
	assert.Equal(t, h1.ID, padded.ID, "surrounding whitespace is not part of the identity")
}

func TestNewHandle_Invalid(t *testing.T) {
	_, err := NewHandle("!!!")
	assert.True(t, errors.Is(err, thumbhash.ErrInvalidHash))

	_, err = NewHandle(base64.StdEncoding.EncodeToString([]byte{1, 2}))
	assert.True(t, errors.Is(err, thumbhash.ErrInvalidHash))
}

func TestDecoder_AverageColorAndRatio(t *testing.T) {
	d := NewDecoder(lru.New[string, string](4), nil)
	h, err := NewHandle(solid(100, 50, color.NRGBA{255, 0, 0, 255}))
	require.NoError(t, err)

	c := d.AverageColor(h)
	assert.InDelta(t, 255, int(c.R), 8)
	assert.InDelta(t, 0, int(c.G), 8)
	assert.Equal(t, uint8(255), c.A)
	assert.True(t, strings.HasPrefix(c.Hex(), "#"))
	assert.Len(t, c.Hex(), 7)

	assert.Greater(t, d.AspectRatio(h), 1.0)
	assert.Zero(t, d.Decodes(), "colour and ratio must not decode the preview")
}

func TestDecoder_ImageDecodesOncePerID(t *testing.T) {
	cache := lru.New[string, string](4)
	d := NewDecoder(cache, nil)
	hash := solid(64, 64, color.NRGBA{0, 128, 255, 255})

	h1, err := NewHandle(hash)
	require.NoError(t, err)
	h2, err := NewHandle(hash)
	require.NoError(t, err)

	u1, err := d.Image(h1)
	require.NoError(t, err)
	u2, err := d.Image(h2)
	require.NoError(t, err)

	assert.Equal(t, u1, u2)
	assert.Equal(t, int64(1), d.Decodes())
	assert.True(t, cache.Has(h1.ID))
	assert.True(t, strings.HasPrefix(u1, "data:image/png;base64,"))
}

func TestDecoder_ConcurrentCallersConverge(t *testing.T) {
	d := NewDecoder(lru.New[string, string](4), nil)
	calls := 0
	d.render = func(raw []byte) (string, error) {
		calls++
		return "data:image/png;base64,stub", nil
	}
	h, err := NewHandle(solid(30, 30, color.NRGBA{1, 2, 3, 255}))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = d.Image(h)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, int64(1), d.Decodes())
}

// rendezvousCache blocks every Get until n Gets are in flight at once.
type rendezvousCache struct {
	*lru.Cache[string, string]
	n       int
	mu      sync.Mutex
	waiting int
	all     chan struct{}
}

func (c *rendezvousCache) Get(key string) (string, bool) {
	c.mu.Lock()
	c.waiting++
	if c.waiting == c.n {
		close(c.all)
	}
	c.mu.Unlock()

	select {
	case <-c.all:
	case <-time.After(2 * time.Second):
	}
	return c.Cache.Get(key)
}

func TestDecoder_DistinctIDsDoNotSerialise(t *testing.T) {
	colours := []color.NRGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
		{255, 255, 255, 255},
	}
	cache := &rendezvousCache{
		Cache: lru.New[string, string](len(colours)),
		n:     len(colours),
		all:   make(chan struct{}),
	}
	d := NewDecoder(cache, nil)
	d.render = func(raw []byte) (string, error) { return "data:image/png;base64,stub", nil }

	handles := make([]Handle, len(colours))
	for i, c := range colours {
		h, err := NewHandle(solid(16, 16, c))
		require.NoError(t, err)
		handles[i] = h
	}

	start := time.Now()
	var wg sync.WaitGroup
	for _, h := range handles {
		wg.Add(1)
		go func(h Handle) {
			defer wg.Done()
			_, err := d.Image(h)
			assert.NoError(t, err)
		}(h)
	}
	wg.Wait()

	select {
	case <-cache.all:
	default:
		t.Fatal("cache lookups for distinct ids never overlapped")
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, int64(len(colours)), d.Decodes())
}

func TestDecoder_EvictionForcesRedecode(t *testing.T) {
	d := NewDecoder(lru.New[string, string](1), nil)
	a, err := NewHandle(solid(10, 10, color.NRGBA{255, 255, 255, 255}))
	require.NoError(t, err)
	b, err := NewHandle(solid(10, 20, color.NRGBA{0, 0, 0, 255}))
	require.NoError(t, err)

	_, _ = d.Image(a)
	_, _ = d.Image(b)
	_, _ = d.Image(a)
	assert.Equal(t, int64(3), d.Decodes())
}

func TestColor_CSS(t *testing.T) {
	assert.Equal(t, "rgba(10, 20, 30, 1)", Color{10, 20, 30, 255}.CSS())
	assert.Equal(t, "#0a141e", Color{10, 20, 30, 255}.Hex())
}
